package perceptron_controllers

import (
	"fmt"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/edumdp-dev/perceptron/perceptron_core"
)

// TrainingEngine owns the model state, the convergence flag and the history.
// It is not safe for concurrent use; TrainingSession serializes access for
// multi-threaded hosts.
type TrainingEngine struct {
	initialConfig   InitialConfig
	defaultExamples []TrainingExample
	examples        *ExampleSet
	activation      perceptron_activations.ActivationHandler

	state     ModelState
	history   []HistoryRecord
	converged bool
	running   bool
}

func NewTrainingEngine(config InitialConfig, examples *ExampleSet) (*TrainingEngine, error) {
	handler, err := perceptron_activations.ActivationFactory(string(config.Activation))
	if err != nil {
		return nil, err
	}
	if !validLearningRate(config.LearningRate) {
		return nil, fmt.Errorf("learning rate is invalid: %v", config.LearningRate)
	}
	if !perceptron_core.IsFinite(config.Weights.W1, config.Weights.W2, config.Weights.B) {
		return nil, fmt.Errorf("initial weights are invalid: %+v", config.Weights)
	}
	if examples == nil {
		examples = NewExampleSet(DefaultAndGateExamples()...)
	}
	config.Activation = handler.Mode()

	return &TrainingEngine{
		initialConfig:   config,
		defaultExamples: examples.Snapshot(),
		examples:        examples,
		activation:      handler,
		state:           NewModelState(config),
	}, nil
}

// Step processes the example at CurrentStep. It returns false without touching
// the state when the model has converged or there is nothing to train on.
func (e *TrainingEngine) Step() (HistoryRecord, bool) {
	if e.converged {
		e.running = false
		return HistoryRecord{}, false
	}
	total := e.examples.Len()
	if total == 0 {
		e.running = false
		return HistoryRecord{}, false
	}
	if e.state.CurrentStep < 0 || e.state.CurrentStep >= total {
		e.state.CurrentStep = 0
	}

	example, _ := e.examples.At(e.state.CurrentStep)
	oldWeights := e.state.Weights
	x1 := float64(example.X1)
	x2 := float64(example.X2)

	z := perceptron_core.WeightedSum(oldWeights.W1, oldWeights.W2, oldWeights.B, x1, x2)
	prediction, probability := e.activation.Activate(z)
	err := example.Y - prediction

	newWeights := oldWeights
	weightsUpdated := false
	errorsInEpoch := e.state.TotalErrorsInEpoch
	if err != 0 {
		errorsInEpoch++
		newWeights.W1 = perceptron_core.DeltaRule(oldWeights.W1, e.state.LearningRate, err, x1)
		newWeights.W2 = perceptron_core.DeltaRule(oldWeights.W2, e.state.LearningRate, err, x2)
		newWeights.B = perceptron_core.DeltaRule(oldWeights.B, e.state.LearningRate, err, 1)
		weightsUpdated = true
	}

	record := HistoryRecord{
		Epoch:          e.state.Epoch,
		Step:           e.state.CurrentStep,
		X1:             example.X1,
		X2:             example.X2,
		YActual:        example.Y,
		Z:              z,
		SigmoidOutput:  probability,
		YPredicted:     prediction,
		Error:          err,
		WeightsUpdated: weightsUpdated,
		OldWeights:     oldWeights,
		NewWeights:     newWeights,
		LearningRate:   e.state.LearningRate,
		Activation:     e.activation.Mode(),
	}
	e.history = append(e.history, record)

	nextStep := (e.state.CurrentStep + 1) % total
	nextEpoch := e.state.Epoch
	if nextStep == 0 {
		if errorsInEpoch == 0 {
			// the converged epoch is kept as the final epoch
			e.converged = true
			e.running = false
		} else {
			nextEpoch++
		}
		errorsInEpoch = 0
	}

	e.state.Weights = newWeights
	e.state.Epoch = nextEpoch
	e.state.CurrentStep = nextStep
	e.state.TotalErrorsInEpoch = errorsInEpoch
	return record, true
}

// ToggleRunning flips between Idle and Running. A converged engine or an empty
// example set never enters Running.
func (e *TrainingEngine) ToggleRunning() bool {
	if e.running {
		e.running = false
		return true
	}
	if e.converged || e.examples.Len() == 0 {
		return false
	}
	e.running = true
	return true
}

func (e *TrainingEngine) Reset() {
	e.running = false
	e.converged = false
	e.history = nil
	e.examples.Restore(e.defaultExamples)
	handler, err := perceptron_activations.ActivationFactory(string(e.initialConfig.Activation))
	if err == nil {
		e.activation = handler
	}
	e.state = NewModelState(e.initialConfig)
}

func (e *TrainingEngine) SetLearningRate(rate float64) bool {
	if !e.idle() || !validLearningRate(rate) {
		return false
	}
	e.initialConfig.LearningRate = rate
	e.state.LearningRate = rate
	return true
}

func (e *TrainingEngine) SetInitialWeights(weights Weights) bool {
	if !e.idle() || !perceptron_core.IsFinite(weights.W1, weights.W2, weights.B) {
		return false
	}
	e.initialConfig.Weights = weights
	e.state.Weights = weights
	return true
}

func (e *TrainingEngine) SetActivationMode(mode perceptron_activations.ActivationMode) bool {
	if !e.idle() {
		return false
	}
	handler, err := perceptron_activations.ActivationFactory(string(mode))
	if err != nil {
		return false
	}
	e.activation = handler
	e.initialConfig.Activation = handler.Mode()
	e.state.Activation = handler.Mode()
	return true
}

func (e *TrainingEngine) EditTrainingExample(index int, x1 float64, x2 float64, y float64) bool {
	if !e.idle() {
		return false
	}
	return e.examples.Edit(index, x1, x2, y)
}

func (e *TrainingEngine) AddTrainingExample() bool {
	if !e.idle() {
		return false
	}
	e.examples.Add(TrainingExample{})
	return true
}

func (e *TrainingEngine) RemoveTrainingExample(index int) bool {
	if !e.idle() {
		return false
	}
	if !e.examples.Remove(index) {
		return false
	}
	if e.state.CurrentStep >= e.examples.Len() {
		e.state.CurrentStep = 0
	}
	return true
}

func (e *TrainingEngine) State() ModelState {
	return e.state
}

func (e *TrainingEngine) History() []HistoryRecord {
	history := make([]HistoryRecord, len(e.history))
	copy(history, e.history)
	return history
}

func (e *TrainingEngine) HistoryLen() int {
	return len(e.history)
}

func (e *TrainingEngine) LastRecord() (HistoryRecord, bool) {
	if len(e.history) == 0 {
		return HistoryRecord{}, false
	}
	return e.history[len(e.history)-1], true
}

func (e *TrainingEngine) Examples() []TrainingExample {
	return e.examples.Snapshot()
}

func (e *TrainingEngine) InitialConfig() InitialConfig {
	return e.initialConfig
}

func (e *TrainingEngine) Converged() bool {
	return e.converged
}

func (e *TrainingEngine) Running() bool {
	return e.running
}

func (e *TrainingEngine) Status() EngineStatus {
	if e.converged {
		return StatusConverged
	}
	if e.running {
		return StatusRunning
	}
	return StatusIdle
}

func (e *TrainingEngine) idle() bool {
	return e.Status() == StatusIdle
}

// Predict evaluates the model for an ad-hoc input without touching any engine.
func Predict(weights Weights, mode perceptron_activations.ActivationMode, x1 float64, x2 float64) (PredictionResult, error) {
	handler, err := perceptron_activations.ActivationFactory(string(mode))
	if err != nil {
		return PredictionResult{}, err
	}
	z := perceptron_core.WeightedSum(weights.W1, weights.W2, weights.B, x1, x2)
	prediction, probability := handler.Activate(z)
	return PredictionResult{
		Z:                  z,
		YPredicted:         prediction,
		SigmoidProbability: probability,
	}, nil
}

func validLearningRate(rate float64) bool {
	return perceptron_core.IsFinite(rate) && rate > 0
}
