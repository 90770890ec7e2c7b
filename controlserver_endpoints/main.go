package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/edumdp-dev/perceptron/perceptron_controllers"
	"github.com/joho/godotenv"
)

type serverSettings struct {
	Port               string
	TickInterval       time.Duration
	NTPServer          string
	SimulationSettings string
	DBUser             string
	DBPassword         string
	DBHost             string
	DBPort             string
	DBName             string
	DBTable            string
}

func loadServerSettings() serverSettings {
	tickInterval := perceptron_controllers.DefaultTickInterval
	if raw := os.Getenv("TICK_INTERVAL_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			log.Printf("ignoring invalid TICK_INTERVAL_MS %q", raw)
		} else {
			tickInterval = time.Duration(ms) * time.Millisecond
		}
	}

	return serverSettings{
		Port:               envOrDefault("PORT", "8080"),
		TickInterval:       tickInterval,
		NTPServer:          os.Getenv("NTP_SERVER"),
		SimulationSettings: os.Getenv("SIMULATION_SETTINGS"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             envOrDefault("DB_PORT", "3306"),
		DBName:             os.Getenv("DB_NAME"),
		DBTable:            envOrDefault("DB_TABLE", perceptron_controllers.DefaultRunTable),
	}
}

func envOrDefault(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file loaded, using the process environment")
	}
	settings := loadServerSettings()

	log.Println(" -  -  Perceptron Control Server  -  - ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simController := &perceptron_controllers.SimulationController{NTPServer: settings.NTPServer}
	var dbController *perceptron_controllers.DatabaseController
	if settings.DBHost != "" {
		var err error
		dbController, err = perceptron_controllers.NewDatabaseController(
			settings.DBUser,
			settings.DBPassword,
			settings.DBHost,
			settings.DBPort,
			settings.DBName,
			settings.DBTable)
		if err != nil {
			log.Fatalf("Error connecting to the database: %v", err)
		}
		defer dbController.CloseDb()
		simController.Recorder = dbController
	}

	server := newControlServer(perceptron_controllers.NewSessionMap(), simController, dbController, settings.TickInterval)
	defer server.sessionMap.CloseAll()

	if settings.SimulationSettings != "" {
		go simController.SimulateOnStart(ctx, settings.SimulationSettings)
	}

	httpServer := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: server.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}
