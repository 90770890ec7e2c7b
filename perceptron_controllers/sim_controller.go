package perceptron_controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/beevik/ntp"
	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"
)

type SimulationController struct {
	Recorder  RunRecorder
	NTPServer string
}

// Function to read and deserialize JSON file
func (s *SimulationController) LoadSimulationSettings(filename string) (*SimulationSettings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSimulationSettings(data)
}

func ParseSimulationSettings(data []byte) (*SimulationSettings, error) {
	var settings SimulationSettings
	err := json.Unmarshal(data, &settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return &settings, nil
}

// SweepConfigs expands the settings grid, skipping invalid combinations.
func (s *SimulationController) SweepConfigs(settings SimulationSettings) []InitialConfig {
	weights := settings.InitialWeights
	if len(weights) == 0 {
		weights = []Weights{{}}
	}
	var configs []InitialConfig
	for _, activation := range settings.Activations {
		handler, err := perceptron_activations.ActivationFactory(activation)
		if err != nil {
			log.Printf("skipping sweep activation: %v", err)
			continue
		}
		for _, rate := range settings.LearningRates {
			for _, w := range weights {
				config := InitialConfig{Weights: w, LearningRate: rate, Activation: handler.Mode()}
				if _, err := NewTrainingEngine(config, NewExampleSet(DefaultAndGateExamples()...)); err != nil {
					log.Printf("skipping sweep config %+v: %v", config, err)
					continue
				}
				configs = append(configs, config)
			}
		}
	}
	return configs
}

// RunSweep runs one independent engine per configuration. The pool only runs
// separate simulations side by side; every engine is stepped by one goroutine.
func (s *SimulationController) RunSweep(ctx context.Context, settings SimulationSettings) ([]SweepResult, error) {
	configs := s.SweepConfigs(settings)
	if len(configs) == 0 {
		return nil, fmt.Errorf("no valid sweep configuration")
	}
	if len(configs) > MaxSweepRuns {
		return nil, fmt.Errorf("sweep has %d configurations, limit is %d", len(configs), MaxSweepRuns)
	}
	if settings.MaxEpochs > MaxSweepEpochs {
		return nil, fmt.Errorf("max_epochs %d exceeds limit of %d", settings.MaxEpochs, MaxSweepEpochs)
	}
	examples := settings.Examples
	if len(examples) == 0 {
		examples = DefaultAndGateExamples()
	}
	if len(examples) > MaxSweepExamples {
		return nil, fmt.Errorf("sweep has %d examples, limit is %d", len(examples), MaxSweepExamples)
	}
	workers := settings.MaxWorkerCount
	if workers <= 0 {
		workers = 1
	}

	results := make([]SweepResult, len(configs))
	workerPool := pool.New().WithMaxGoroutines(workers)
	for i, config := range configs {
		workerPool.Go(func() {
			startTime := s.currentTime()
			result := RunExperiment(ctx, config, examples, settings.MaxEpochs)
			result.StartTime = startTime
			result.EndTime = s.currentTime()
			result.Token = s.generateToken(i, startTime, config)
			if s.Recorder != nil {
				if err := s.Recorder.InsertRun(ctx, result); err != nil {
					log.Printf("failed to record sweep run %s: %v", result.Token, err)
				}
			}
			results[i] = result
		})
	}
	workerPool.Wait()

	return results, ctx.Err()
}

// RunExperiment drives a fresh engine until it converges, exceeds maxEpochs
// or ctx is cancelled. A non-positive maxEpochs means DefaultMaxEpochs.
func RunExperiment(ctx context.Context, config InitialConfig, examples []TrainingExample, maxEpochs int) SweepResult {
	result := SweepResult{Config: config}
	engine, err := NewTrainingEngine(config, NewExampleSet(examples...))
	if err != nil {
		result.Status = RunStatusInvalid
		return result
	}
	if maxEpochs <= 0 {
		maxEpochs = DefaultMaxEpochs
	}

	for !engine.Converged() {
		if engine.State().Epoch > maxEpochs {
			result.Status = RunStatusLimitReached
			break
		}
		if ctx.Err() != nil {
			result.Status = RunStatusCancelled
			break
		}
		record, ok := engine.Step()
		if !ok {
			result.Status = RunStatusCancelled
			break
		}
		result.Steps++
		if record.WeightsUpdated {
			result.Updates++
		}
	}

	state := engine.State()
	if engine.Converged() {
		result.Status = RunStatusConverged
		result.Epochs = state.Epoch
	} else {
		result.Epochs = state.Epoch - 1
	}
	result.FinalWeights = state.Weights
	return result
}

// SummarizeSweep groups results by activation; epoch statistics only cover converged runs.
func SummarizeSweep(results []SweepResult) []SweepSummary {
	grouped := make(map[string][]SweepResult)
	for _, result := range results {
		activation := string(result.Config.Activation)
		grouped[activation] = append(grouped[activation], result)
	}

	summaries := make([]SweepSummary, 0, len(grouped))
	for activation, group := range grouped {
		var epochs, updates []float64
		for _, result := range group {
			if result.Status != RunStatusConverged {
				continue
			}
			epochs = append(epochs, float64(result.Epochs))
			updates = append(updates, float64(result.Updates))
		}
		summary := SweepSummary{
			Activation:     activation,
			Runs:           len(group),
			ConvergedCount: len(epochs),
		}
		if len(epochs) > 0 {
			summary.MeanEpochs = stat.Mean(epochs, nil)
			summary.MeanUpdates = stat.Mean(updates, nil)
		}
		if len(epochs) > 1 {
			summary.StdDevEpochs = stat.StdDev(epochs, nil)
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Activation < summaries[j].Activation
	})
	return summaries
}

func (s *SimulationController) SimulateOnStart(ctx context.Context, filename string) {
	settings, err := s.LoadSimulationSettings(filename)
	if err != nil {
		log.Printf("Error loading settings: %v", err)
		return
	}
	log.Printf("Settings loaded: %+v", *settings)

	results, err := s.RunSweep(ctx, *settings)
	if err != nil {
		log.Printf("sweep stopped: %v", err)
	}
	for _, summary := range SummarizeSweep(results) {
		log.Printf("%s: %d/%d converged, mean epochs %.2f", summary.Activation, summary.ConvergedCount, summary.Runs, summary.MeanEpochs)
	}
	log.Println("-- All automatic configs finished --")
}

func (s *SimulationController) currentTime() time.Time {
	if s.NTPServer == "" {
		return time.Now()
	}
	t, err := s.getCurrentTimeFromNTP()
	if err != nil {
		return time.Now()
	}
	return t
}

func (s *SimulationController) getCurrentTimeFromNTP() (time.Time, error) {
	t, err := ntp.Time(s.NTPServer)
	if err != nil {
		return t, fmt.Errorf("failed to get time from NTP server: %w", err)
	}
	return t, nil
}

func (s *SimulationController) generateToken(index int, startTime time.Time, config InitialConfig) string {
	idStamp := fmt.Sprintf("%d%v%v%s%s", index, config.Weights, config.LearningRate, config.Activation, startTime)
	h := sha256.New()
	h.Write([]byte(idStamp))
	return hex.EncodeToString(h.Sum(nil))
}
