package perceptron_controllers

import (
	"fmt"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/edumdp-dev/perceptron/perceptron_core"
)

type Weights struct {
	W1 float64 `json:"w1"`
	W2 float64 `json:"w2"`
	B  float64 `json:"b"`
}

type TrainingExample struct {
	X1 int `json:"x1"`
	X2 int `json:"x2"`
	Y  int `json:"y"`
}

// NewTrainingExample rounds and bounds every field into {0,1}.
func NewTrainingExample(x1 float64, x2 float64, y float64) TrainingExample {
	return TrainingExample{
		X1: perceptron_core.ClampBinary(x1),
		X2: perceptron_core.ClampBinary(x2),
		Y:  perceptron_core.ClampBinary(y),
	}
}

// InitialConfig survives resets; ModelState is derived from it.
type InitialConfig struct {
	Weights      Weights                               `json:"weights"`
	LearningRate float64                               `json:"learning_rate"`
	Activation   perceptron_activations.ActivationMode `json:"activation"`
}

type ModelState struct {
	Weights            Weights                               `json:"weights"`
	Epoch              int                                   `json:"epoch"`
	CurrentStep        int                                   `json:"current_step"`
	TotalErrorsInEpoch int                                   `json:"total_errors_in_epoch"`
	LearningRate       float64                               `json:"learning_rate"`
	Activation         perceptron_activations.ActivationMode `json:"activation"`
}

func NewModelState(config InitialConfig) ModelState {
	return ModelState{
		Weights:            config.Weights,
		Epoch:              1,
		CurrentStep:        0,
		TotalErrorsInEpoch: 0,
		LearningRate:       config.LearningRate,
		Activation:         config.Activation,
	}
}

// HistoryRecord is the single record kept per processed example.
// SigmoidOutput is nil unless the sigmoid activation was in effect.
type HistoryRecord struct {
	Epoch          int                                   `json:"epoch"`
	Step           int                                   `json:"step"`
	X1             int                                   `json:"x1"`
	X2             int                                   `json:"x2"`
	YActual        int                                   `json:"y_actual"`
	Z              float64                               `json:"z"`
	SigmoidOutput  *float64                              `json:"sigmoid_output,omitempty"`
	YPredicted     int                                   `json:"y_predicted"`
	Error          int                                   `json:"error"`
	WeightsUpdated bool                                  `json:"weights_updated"`
	OldWeights     Weights                               `json:"old_weights"`
	NewWeights     Weights                               `json:"new_weights"`
	LearningRate   float64                               `json:"learning_rate"`
	Activation     perceptron_activations.ActivationMode `json:"activation"`
}

// Trace renders the calculation behind the record line by line.
func (h HistoryRecord) Trace() []string {
	lines := []string{
		fmt.Sprintf("z = (%.2f*%d) + (%.2f*%d) + (%.2f) = %.2f", h.OldWeights.W1, h.X1, h.OldWeights.W2, h.X2, h.OldWeights.B, h.Z),
	}
	if h.SigmoidOutput != nil {
		lines = append(lines,
			fmt.Sprintf("sigma(z) = 1 / (1 + e^-(%.2f)) = %.4f", h.Z, *h.SigmoidOutput),
			fmt.Sprintf("y_hat = (%.4f >= 0.5) ? 1 : 0  =>  %d", *h.SigmoidOutput, h.YPredicted),
		)
	} else {
		lines = append(lines, fmt.Sprintf("y_hat = (%.2f >= 0) ? 1 : 0  =>  %d", h.Z, h.YPredicted))
	}
	lines = append(lines, fmt.Sprintf("error = y - y_hat = %d - %d = %d", h.YActual, h.YPredicted, h.Error))
	if !h.WeightsUpdated {
		return append(lines, "weights unchanged")
	}
	return append(lines,
		fmt.Sprintf("w1' = %.2f + %.2f * %d * %d = %.2f", h.OldWeights.W1, h.LearningRate, h.Error, h.X1, h.NewWeights.W1),
		fmt.Sprintf("w2' = %.2f + %.2f * %d * %d = %.2f", h.OldWeights.W2, h.LearningRate, h.Error, h.X2, h.NewWeights.W2),
		fmt.Sprintf("b'  = %.2f + %.2f * %d = %.2f", h.OldWeights.B, h.LearningRate, h.Error, h.NewWeights.B),
	)
}

type PredictionResult struct {
	Z                  float64  `json:"z"`
	YPredicted         int      `json:"y_predicted"`
	SigmoidProbability *float64 `json:"sigmoid_probability,omitempty"`
}

type EngineStatus int

const (
	StatusIdle EngineStatus = iota
	StatusRunning
	StatusConverged
)

func (s EngineStatus) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusConverged:
		return "CONVERGED"
	}
	return "IDLE"
}

func (s EngineStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EngineStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = StatusIdle
	case "RUNNING":
		*s = StatusRunning
	case "CONVERGED":
		*s = StatusConverged
	default:
		return fmt.Errorf("engine status is invalid: %s", text)
	}
	return nil
}
