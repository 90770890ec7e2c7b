package perceptron_controllers

import (
	"context"
	"time"
)

const (
	RunStatusConverged    = "CONVERGED"
	RunStatusLimitReached = "LIMIT_REACHED"
	RunStatusCancelled    = "CANCELLED"
	RunStatusInvalid      = "INVALID_CONFIG"
)

// Sweep bounds. A zero max_epochs falls back to DefaultMaxEpochs.
const (
	DefaultMaxEpochs = 1000
	MaxSweepEpochs   = 10000
	MaxSweepRuns     = 256
	MaxSweepExamples = 64
)

type SimulationSettings struct {
	MaxWorkerCount int               `json:"max_worker_count"`
	MaxEpochs      int               `json:"max_epochs"`
	LearningRates  []float64         `json:"learning_rates"`
	Activations    []string          `json:"activations"`
	InitialWeights []Weights         `json:"initial_weights"`
	Examples       []TrainingExample `json:"examples"`
}

type SweepResult struct {
	Token        string        `json:"token"`
	Config       InitialConfig `json:"config"`
	Status       string        `json:"status"`
	Epochs       int           `json:"epochs"`
	Steps        int           `json:"steps"`
	Updates      int           `json:"updates"`
	FinalWeights Weights       `json:"final_weights"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
}

type SweepSummary struct {
	Activation     string  `json:"activation"`
	Runs           int     `json:"runs"`
	ConvergedCount int     `json:"converged_count"`
	MeanEpochs     float64 `json:"mean_epochs"`
	StdDevEpochs   float64 `json:"std_dev_epochs"`
	MeanUpdates    float64 `json:"mean_updates"`
}

// RunRecorder stores finished sweep runs.
type RunRecorder interface {
	InsertRun(ctx context.Context, result SweepResult) error
}
