package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/edumdp-dev/perceptron/perceptron_controllers"
	"github.com/gorilla/websocket"
)

type controlServer struct {
	sessionMap    *perceptron_controllers.SessionMap
	simController *perceptron_controllers.SimulationController
	dbController  *perceptron_controllers.DatabaseController
	tickInterval  time.Duration
	upgrader      websocket.Upgrader
}

type mutationResponse struct {
	Accepted bool                                   `json:"accepted"`
	Session  perceptron_controllers.SessionSnapshot `json:"session"`
}

type learningRateBody struct {
	LearningRate float64 `json:"learning_rate"`
}

type activationBody struct {
	Activation perceptron_activations.ActivationMode `json:"activation"`
}

type exampleBody struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
	Y  float64 `json:"y"`
}

type predictBody struct {
	Weights    perceptron_controllers.Weights        `json:"weights"`
	Activation perceptron_activations.ActivationMode `json:"activation"`
	X1         float64                               `json:"x1"`
	X2         float64                               `json:"x2"`
}

type commandBody struct {
	Command string `json:"command"`
}

type sweepResponse struct {
	Results []perceptron_controllers.SweepResult  `json:"results"`
	Summary []perceptron_controllers.SweepSummary `json:"summary"`
}

func newControlServer(sessionMap *perceptron_controllers.SessionMap, simController *perceptron_controllers.SimulationController, dbController *perceptron_controllers.DatabaseController, tickInterval time.Duration) *controlServer {
	return &controlServer{
		sessionMap:    sessionMap,
		simController: simController,
		dbController:  dbController,
		tickInterval:  tickInterval,
		upgrader: websocket.Upgrader{
			// You may need this locally for CORS requests
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *controlServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions", s.listSessionMapHandler)
	mux.HandleFunc("GET /sessions/{id}", s.sessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("GET /sessions/{id}/history", s.historyHandler)
	mux.HandleFunc("POST /sessions/{id}/step", s.stepHandler)
	mux.HandleFunc("POST /sessions/{id}/toggle", s.toggleHandler)
	mux.HandleFunc("POST /sessions/{id}/reset", s.resetHandler)
	mux.HandleFunc("PUT /sessions/{id}/learning-rate", s.learningRateHandler)
	mux.HandleFunc("PUT /sessions/{id}/weights", s.weightsHandler)
	mux.HandleFunc("PUT /sessions/{id}/activation", s.activationHandler)
	mux.HandleFunc("POST /sessions/{id}/examples", s.addExampleHandler)
	mux.HandleFunc("PUT /sessions/{id}/examples/{index}", s.editExampleHandler)
	mux.HandleFunc("DELETE /sessions/{id}/examples/{index}", s.removeExampleHandler)
	mux.HandleFunc("GET /sessions/{id}/events", s.realTimeSessionHandler)
	mux.HandleFunc("GET /sessions/{id}/ws", s.webSocketSessionHandler)
	mux.HandleFunc("POST /predict", s.predictHandler)
	mux.HandleFunc("POST /sweeps", s.sweepHandler)
	mux.HandleFunc("GET /sweeps/stats", s.sweepStatsHandler)
	mux.HandleFunc("GET /sweeps/runs", s.sweepRunsHandler)
	return mux
}

func (s *controlServer) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	request := perceptron_controllers.SessionRequest{InitialConfig: perceptron_controllers.DefaultInitialConfig()}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	session, err := perceptron_controllers.NewTrainingSession(request, s.tickInterval)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sessionMap.Add(session)
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

func (s *controlServer) listSessionMapHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionMap.List())
}

func (s *controlServer) sessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (s *controlServer) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !s.sessionMap.Delete(r.PathValue("id")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *controlServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.History())
}

func (s *controlServer) stepHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.Step()))
}

func (s *controlServer) toggleHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.ToggleRunning()))
}

func (s *controlServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.Reset(), true))
}

func (s *controlServer) learningRateHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var body learningRateBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.SetLearningRate(body.LearningRate)))
}

func (s *controlServer) weightsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var body perceptron_controllers.Weights
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.SetInitialWeights(body)))
}

func (s *controlServer) activationHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var body activationBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.SetActivationMode(body.Activation)))
}

func (s *controlServer) addExampleHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.AddTrainingExample()))
}

func (s *controlServer) editExampleHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var body exampleBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.EditTrainingExample(index, body.X1, body.X2, body.Y)))
}

func (s *controlServer) removeExampleHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mutation(session.RemoveTrainingExample(index)))
}

func (s *controlServer) realTimeSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	// Set http headers required for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientGone := r.Context().Done()
	rc := http.NewResponseController(w)

	messages, unsubscribe := session.Subscribe()
	defer unsubscribe()

	initial := perceptron_controllers.SessionStateMessage{CommandType: "snapshot", SessionState: session.Snapshot()}
	if err := writeEvent(w, rc, initial); err != nil {
		return
	}

	for {
		select {
		case <-clientGone:
			return
		case message, open := <-messages:
			if !open {
				return
			}
			if err := writeEvent(w, rc, message); err != nil {
				return
			}
		}
	}
}

func (s *controlServer) webSocketSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	messages, unsubscribe := session.Subscribe()
	defer unsubscribe()

	replies := make(chan perceptron_controllers.SessionStateMessage, 1)
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			var command commandBody
			if err := conn.ReadJSON(&command); err != nil {
				return
			}
			reply, send := runCommand(session, command.Command)
			if !send {
				continue
			}
			select {
			case replies <- reply:
			case <-r.Context().Done():
				return
			}
		}
	}()

	initial := perceptron_controllers.SessionStateMessage{CommandType: "snapshot", SessionState: session.Snapshot()}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}
	for {
		select {
		case <-readerGone:
			return
		case reply := <-replies:
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		case message, open := <-messages:
			if !open {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		}
	}
}

// runCommand applies a websocket command. Accepted commands reach the client
// through the session subscription, so only refusals and queries produce a reply.
func runCommand(session *perceptron_controllers.TrainingSession, command string) (perceptron_controllers.SessionStateMessage, bool) {
	var snapshot perceptron_controllers.SessionSnapshot
	accepted := true
	switch command {
	case "step":
		snapshot, accepted = session.Step()
	case "toggle":
		snapshot, accepted = session.ToggleRunning()
	case "reset":
		session.Reset()
	case "snapshot":
		return perceptron_controllers.SessionStateMessage{CommandType: "snapshot", SessionState: session.Snapshot()}, true
	default:
		return perceptron_controllers.SessionStateMessage{CommandType: "unknown", SessionState: session.Snapshot()}, true
	}
	if accepted {
		return perceptron_controllers.SessionStateMessage{}, false
	}
	return perceptron_controllers.SessionStateMessage{CommandType: "ignored", SessionState: snapshot}, true
}

func (s *controlServer) predictHandler(w http.ResponseWriter, r *http.Request) {
	var body predictBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := perceptron_controllers.Predict(body.Weights, body.Activation, body.X1, body.X2)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *controlServer) sweepHandler(w http.ResponseWriter, r *http.Request) {
	var settings perceptron_controllers.SimulationSettings
	if !decodeBody(w, r, &settings) {
		return
	}
	results, err := s.simController.RunSweep(r.Context(), settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Results: results,
		Summary: perceptron_controllers.SummarizeSweep(results),
	})
}

func (s *controlServer) sweepStatsHandler(w http.ResponseWriter, r *http.Request) {
	if s.dbController == nil {
		http.Error(w, "Run database is not configured", http.StatusServiceUnavailable)
		return
	}
	stats, err := s.dbController.QueryRunStats(r.Context(), r.FormValue("activation"))
	if err != nil {
		log.Printf("Error while querying run stats: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *controlServer) sweepRunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.dbController == nil {
		http.Error(w, "Run database is not configured", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.dbController.FetchRunsAsJSON(r.Context())
	if err != nil {
		log.Printf("Error while fetching runs: %v", err)
		http.Error(w, "Error while fetching runs", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, runs)
}

func (s *controlServer) lookupSession(w http.ResponseWriter, r *http.Request) (*perceptron_controllers.TrainingSession, bool) {
	id := r.PathValue("id")
	session, ok := s.sessionMap.Get(id)
	if !ok {
		fmt.Println("Session UID not found: ", id)
		http.NotFound(w, r)
		return nil, false
	}
	return session, true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid example index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func mutation(snapshot perceptron_controllers.SessionSnapshot, accepted bool) mutationResponse {
	return mutationResponse{Accepted: accepted, Session: snapshot}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, message perceptron_controllers.SessionStateMessage) error {
	parsedState, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", parsedState); err != nil {
		return err
	}
	return rc.Flush()
}
