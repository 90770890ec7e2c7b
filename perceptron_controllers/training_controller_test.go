package perceptron_controllers

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
)

func newTestEngine(t *testing.T, config InitialConfig, examples ...TrainingExample) *TrainingEngine {
	t.Helper()
	if len(examples) == 0 {
		examples = DefaultAndGateExamples()
	}
	engine, err := NewTrainingEngine(config, NewExampleSet(examples...))
	if err != nil {
		t.Fatalf("NewTrainingEngine() unexpected error: %v", err)
	}
	return engine
}

func runUntilConverged(t *testing.T, engine *TrainingEngine, maxSteps int) int {
	t.Helper()
	steps := 0
	for !engine.Converged() {
		if steps >= maxSteps {
			t.Fatalf("engine did not converge within %d steps", maxSteps)
		}
		if _, ok := engine.Step(); !ok {
			t.Fatalf("Step() refused before convergence at step %d", steps)
		}
		steps++
	}
	return steps
}

func TestNewTrainingEngineValidation(t *testing.T) {
	tests := []struct {
		name   string
		config InitialConfig
	}{
		{"unknown activation", InitialConfig{LearningRate: 1, Activation: "relu"}},
		{"zero rate", InitialConfig{LearningRate: 0, Activation: perceptron_activations.ActivationStep}},
		{"negative rate", InitialConfig{LearningRate: -0.5, Activation: perceptron_activations.ActivationStep}},
		{"nan weight", InitialConfig{Weights: Weights{W1: math.NaN()}, LearningRate: 1, Activation: perceptron_activations.ActivationStep}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTrainingEngine(tt.config, nil); err == nil {
				t.Error("expected error")
			}
		})
	}

	engine, err := NewTrainingEngine(DefaultInitialConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := engine.State()
	if state.Epoch != 1 || state.CurrentStep != 0 || state.TotalErrorsInEpoch != 0 {
		t.Errorf("unexpected initial state %+v", state)
	}
	if len(engine.Examples()) != 4 {
		t.Errorf("expected default AND examples, got %v", engine.Examples())
	}
	if engine.Status() != StatusIdle {
		t.Errorf("Status() = %s, expected IDLE", engine.Status())
	}
}

func TestStepNoErrorKeepsWeights(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig(),
		TrainingExample{X1: 1, X2: 1, Y: 1},
		TrainingExample{X1: 0, X2: 0, Y: 0},
	)

	record, ok := engine.Step()
	if !ok {
		t.Fatal("Step() refused")
	}
	if record.Z != 0 || record.YPredicted != 1 || record.Error != 0 {
		t.Errorf("unexpected record %+v", record)
	}
	if record.WeightsUpdated {
		t.Error("weights should not be updated")
	}
	if record.NewWeights != record.OldWeights || engine.State().Weights != (Weights{}) {
		t.Errorf("weights changed: %+v", record)
	}
	if record.SigmoidOutput != nil {
		t.Error("step activation should not record a sigmoid output")
	}
}

func TestStepErrorUpdatesWeights(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())

	record, ok := engine.Step()
	if !ok {
		t.Fatal("Step() refused")
	}
	if record.Z != 0 || record.YPredicted != 1 || record.Error != -1 {
		t.Errorf("unexpected record %+v", record)
	}
	expected := Weights{W1: 0, W2: 0, B: -1}
	if !record.WeightsUpdated || record.NewWeights != expected {
		t.Errorf("NewWeights = %+v, expected %+v", record.NewWeights, expected)
	}
	state := engine.State()
	if state.Weights != expected || state.CurrentStep != 1 || state.TotalErrorsInEpoch != 1 {
		t.Errorf("unexpected state %+v", state)
	}
}

func TestWeightUpdateArithmetic(t *testing.T) {
	config := InitialConfig{
		Weights:      Weights{W1: 0.3, W2: -0.7, B: 0.2},
		LearningRate: 0.25,
		Activation:   perceptron_activations.ActivationStep,
	}
	engine := newTestEngine(t, config,
		TrainingExample{X1: 1, X2: 0, Y: 0},
		TrainingExample{X1: 0, X2: 1, Y: 1},
		TrainingExample{X1: 1, X2: 1, Y: 1},
	)

	for i := 0; i < 30 && !engine.Converged(); i++ {
		record, _ := engine.Step()
		if record.WeightsUpdated != (record.Error != 0) {
			t.Fatalf("weights_updated/error mismatch in %+v", record)
		}
		if !record.WeightsUpdated {
			if record.NewWeights != record.OldWeights {
				t.Fatalf("weights changed without error in %+v", record)
			}
			continue
		}
		eta := record.LearningRate
		e := float64(record.Error)
		checks := []struct {
			got, expected float64
		}{
			{record.NewWeights.W1, record.OldWeights.W1 + eta*e*float64(record.X1)},
			{record.NewWeights.W2, record.OldWeights.W2 + eta*e*float64(record.X2)},
			{record.NewWeights.B, record.OldWeights.B + eta*e},
		}
		for _, check := range checks {
			if math.Abs(check.got-check.expected) > 1e-12 {
				t.Fatalf("delta rule mismatch: got %v, expected %v in %+v", check.got, check.expected, record)
			}
		}
	}
}

func TestAndGateConvergence(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	steps := runUntilConverged(t, engine, 40)

	state := engine.State()
	if steps != 24 || engine.HistoryLen() != 24 {
		t.Errorf("converged after %d steps, expected 24", steps)
	}
	if state.Epoch != 6 {
		t.Errorf("Epoch = %d, expected 6", state.Epoch)
	}
	expected := Weights{W1: 1, W2: 2, B: -3}
	if state.Weights != expected {
		t.Errorf("Weights = %+v, expected %+v", state.Weights, expected)
	}
	if state.CurrentStep != 0 || state.TotalErrorsInEpoch != 0 {
		t.Errorf("unexpected final state %+v", state)
	}
	if engine.Status() != StatusConverged {
		t.Errorf("Status() = %s, expected CONVERGED", engine.Status())
	}

	w := state.Weights
	if !(w.W1 > 0 && w.W2 > 0 && w.B < 0) {
		t.Errorf("weights %+v are not AND-shaped", w)
	}
	for _, example := range DefaultAndGateExamples() {
		result, err := Predict(w, state.Activation, float64(example.X1), float64(example.X2))
		if err != nil {
			t.Fatal(err)
		}
		if result.YPredicted != example.Y {
			t.Errorf("Predict(%d,%d) = %d, expected %d", example.X1, example.X2, result.YPredicted, example.Y)
		}
	}

	if _, ok := engine.Step(); ok {
		t.Error("Step() after convergence should be refused")
	}
	if engine.HistoryLen() != 24 || engine.State() != state {
		t.Error("state changed after convergence")
	}
	if engine.ToggleRunning() {
		t.Error("ToggleRunning() should be refused after convergence")
	}
}

func TestSigmoidActivationTracksProbability(t *testing.T) {
	config := DefaultInitialConfig()
	config.Activation = perceptron_activations.ActivationSigmoid
	engine := newTestEngine(t, config)
	runUntilConverged(t, engine, 40)

	reference := newTestEngine(t, DefaultInitialConfig())
	runUntilConverged(t, reference, 40)

	history := engine.History()
	referenceHistory := reference.History()
	if len(history) != len(referenceHistory) {
		t.Fatalf("sigmoid history length %d, step history length %d", len(history), len(referenceHistory))
	}
	if history[0].SigmoidOutput == nil || *history[0].SigmoidOutput != 0.5 {
		t.Fatalf("first sigmoid output = %v, expected 0.5", history[0].SigmoidOutput)
	}
	for i, record := range history {
		if record.SigmoidOutput == nil {
			t.Fatalf("record %d has no sigmoid output", i)
		}
		p := *record.SigmoidOutput
		if !(p > 0 && p < 1) {
			t.Errorf("record %d sigmoid output %v outside (0,1)", i, p)
		}
		if record.YPredicted != referenceHistory[i].YPredicted || record.NewWeights != referenceHistory[i].NewWeights {
			t.Errorf("record %d diverged from step activation", i)
		}
		if record.Activation != perceptron_activations.ActivationSigmoid {
			t.Errorf("record %d activation = %s", i, record.Activation)
		}
	}
}

func TestEpochRollover(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	for i := 0; i < 4; i++ {
		engine.Step()
	}

	state := engine.State()
	if state.Epoch != 2 || state.CurrentStep != 0 || state.TotalErrorsInEpoch != 0 {
		t.Errorf("unexpected state after first epoch %+v", state)
	}
	if engine.Converged() {
		t.Error("first epoch had errors, engine must not converge")
	}

	history := engine.History()
	for i, record := range history {
		if record.Epoch != 1 || record.Step != i {
			t.Errorf("record %d has epoch %d step %d", i, record.Epoch, record.Step)
		}
	}

	record, _ := engine.Step()
	if record.Epoch != 2 || record.Step != 0 {
		t.Errorf("first record of epoch 2 has epoch %d step %d", record.Epoch, record.Step)
	}
}

func TestConvergedEpochIsNotIncremented(t *testing.T) {
	config := InitialConfig{
		Weights:      Weights{W1: 1, W2: 1, B: -1.5},
		LearningRate: 1,
		Activation:   perceptron_activations.ActivationStep,
	}
	engine := newTestEngine(t, config)
	for i := 0; i < 4; i++ {
		if _, ok := engine.Step(); !ok {
			t.Fatalf("Step() %d refused", i)
		}
	}
	state := engine.State()
	if !engine.Converged() || state.Epoch != 1 || state.CurrentStep != 0 {
		t.Errorf("expected convergence in epoch 1, got %+v converged=%v", state, engine.Converged())
	}
}

func TestDeterministicHistory(t *testing.T) {
	run := func() []byte {
		config := InitialConfig{
			Weights:      Weights{W1: 0.2, W2: -0.4, B: 0.1},
			LearningRate: 0.3,
			Activation:   perceptron_activations.ActivationSigmoid,
		}
		engine := newTestEngine(t, config)
		runUntilConverged(t, engine, 400)
		data, err := json.Marshal(engine.History())
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	first := run()
	second := run()
	if !bytes.Equal(first, second) {
		t.Error("identical runs produced different histories")
	}
}

func TestIdleOnlyGuards(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	if !engine.ToggleRunning() || engine.Status() != StatusRunning {
		t.Fatal("expected engine to enter Running")
	}

	stateBefore := engine.State()
	examplesBefore := engine.Examples()

	if engine.SetLearningRate(0.5) {
		t.Error("SetLearningRate accepted while running")
	}
	if engine.SetInitialWeights(Weights{W1: 3}) {
		t.Error("SetInitialWeights accepted while running")
	}
	if engine.SetActivationMode(perceptron_activations.ActivationSigmoid) {
		t.Error("SetActivationMode accepted while running")
	}
	if engine.EditTrainingExample(0, 1, 1, 1) {
		t.Error("EditTrainingExample accepted while running")
	}
	if engine.AddTrainingExample() {
		t.Error("AddTrainingExample accepted while running")
	}
	if engine.RemoveTrainingExample(0) {
		t.Error("RemoveTrainingExample accepted while running")
	}

	if engine.State() != stateBefore {
		t.Errorf("state changed while running: %+v", engine.State())
	}
	if !reflect.DeepEqual(engine.Examples(), examplesBefore) {
		t.Errorf("examples changed while running: %v", engine.Examples())
	}

	if !engine.ToggleRunning() || engine.Status() != StatusIdle {
		t.Fatal("expected engine to return to Idle")
	}
	if !engine.SetLearningRate(0.5) || engine.State().LearningRate != 0.5 {
		t.Error("SetLearningRate refused while idle")
	}
}

func TestSettersUpdateInitialConfig(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())

	weights := Weights{W1: 0.5, W2: -0.5, B: 0.25}
	if !engine.SetInitialWeights(weights) {
		t.Fatal("SetInitialWeights refused")
	}
	if !engine.SetLearningRate(0.1) {
		t.Fatal("SetLearningRate refused")
	}
	if !engine.SetActivationMode("SIGMOID") {
		t.Fatal("SetActivationMode refused")
	}
	if engine.SetLearningRate(0) || engine.SetLearningRate(math.Inf(1)) {
		t.Error("invalid learning rate accepted")
	}
	if engine.SetActivationMode("relu") {
		t.Error("unknown activation accepted")
	}

	engine.Step()
	engine.Reset()

	state := engine.State()
	if state.Weights != weights || state.LearningRate != 0.1 || state.Activation != perceptron_activations.ActivationSigmoid {
		t.Errorf("reset did not use the cached configuration: %+v", state)
	}
	record, _ := engine.Step()
	if record.SigmoidOutput == nil {
		t.Error("activation change did not reach the step")
	}
}

func TestResetIdempotent(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	engine.Step()
	engine.Step()
	engine.EditTrainingExample(0, 1, 1, 1)
	engine.ToggleRunning()

	engine.Reset()
	stateOnce := engine.State()
	examplesOnce := engine.Examples()

	engine.Reset()
	if engine.State() != stateOnce || !reflect.DeepEqual(engine.Examples(), examplesOnce) {
		t.Error("second reset changed the state")
	}
	if engine.HistoryLen() != 0 || engine.Converged() || engine.Running() {
		t.Errorf("unexpected engine after reset: history=%d converged=%v running=%v", engine.HistoryLen(), engine.Converged(), engine.Running())
	}
	if !reflect.DeepEqual(engine.Examples(), DefaultAndGateExamples()) {
		t.Errorf("reset did not restore the default examples: %v", engine.Examples())
	}
	if stateOnce != NewModelState(DefaultInitialConfig()) {
		t.Errorf("unexpected reset state %+v", stateOnce)
	}
}

func TestResetLeavesConverged(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	runUntilConverged(t, engine, 40)
	if engine.SetLearningRate(0.5) {
		t.Error("configuration accepted while converged")
	}

	engine.Reset()
	if engine.Status() != StatusIdle {
		t.Errorf("Status() = %s after reset, expected IDLE", engine.Status())
	}
	if _, ok := engine.Step(); !ok {
		t.Error("Step() refused after reset")
	}
}

func TestExampleEditing(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())

	if !engine.EditTrainingExample(1, 0.7, -4, 3) {
		t.Fatal("EditTrainingExample refused")
	}
	edited := engine.Examples()[1]
	if edited != (TrainingExample{X1: 1, X2: 0, Y: 1}) {
		t.Errorf("edited example = %+v, expected clamped {1 0 1}", edited)
	}
	if engine.EditTrainingExample(9, 1, 1, 1) {
		t.Error("out of range edit accepted")
	}

	if !engine.AddTrainingExample() || len(engine.Examples()) != 5 {
		t.Fatal("AddTrainingExample failed")
	}
	if engine.Examples()[4] != (TrainingExample{}) {
		t.Errorf("added example = %+v, expected zero example", engine.Examples()[4])
	}

	for len(engine.Examples()) > 1 {
		if !engine.RemoveTrainingExample(0) {
			t.Fatal("RemoveTrainingExample refused")
		}
	}
	if engine.RemoveTrainingExample(0) {
		t.Error("removing the last example must be refused")
	}
}

func TestRemoveClampsCurrentStep(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	engine.Step()
	engine.Step()
	engine.Step()
	if engine.State().CurrentStep != 3 {
		t.Fatalf("CurrentStep = %d, expected 3", engine.State().CurrentStep)
	}

	if !engine.RemoveTrainingExample(3) {
		t.Fatal("RemoveTrainingExample refused")
	}
	if engine.State().CurrentStep != 0 {
		t.Errorf("CurrentStep = %d, expected 0 after shrink", engine.State().CurrentStep)
	}
	if _, ok := engine.Step(); !ok {
		t.Error("Step() refused after shrink")
	}
}

func TestEmptyExampleSetIsNoOp(t *testing.T) {
	engine, err := NewTrainingEngine(DefaultInitialConfig(), NewExampleSet())
	if err != nil {
		t.Fatal(err)
	}
	if engine.ToggleRunning() {
		t.Error("ToggleRunning() accepted with no examples")
	}
	if _, ok := engine.Step(); ok {
		t.Error("Step() accepted with no examples")
	}
	if engine.HistoryLen() != 0 || engine.State() != NewModelState(DefaultInitialConfig()) {
		t.Error("state changed on empty step")
	}
}

func TestPredict(t *testing.T) {
	weights := Weights{W1: 1, W2: 2, B: -3}

	result, err := Predict(weights, perceptron_activations.ActivationStep, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Z != 0 || result.YPredicted != 1 || result.SigmoidProbability != nil {
		t.Errorf("unexpected step prediction %+v", result)
	}

	result, err = Predict(weights, perceptron_activations.ActivationSigmoid, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Z != -1 || result.YPredicted != 0 || result.SigmoidProbability == nil {
		t.Errorf("unexpected sigmoid prediction %+v", result)
	}

	if _, err := Predict(weights, "softmax", 0, 0); err == nil {
		t.Error("expected error for unknown activation")
	}
}

func TestHistoryRecordTrace(t *testing.T) {
	engine := newTestEngine(t, DefaultInitialConfig())
	record, _ := engine.Step()

	lines := record.Trace()
	if len(lines) != 6 {
		t.Fatalf("Trace() returned %d lines, expected 6: %v", len(lines), lines)
	}
	if lines[0] != "z = (0.00*0) + (0.00*0) + (0.00) = 0.00" {
		t.Errorf("unexpected weighted sum line %q", lines[0])
	}
	if lines[5] != "b'  = 0.00 + 1.00 * -1 = -1.00" {
		t.Errorf("unexpected bias line %q", lines[5])
	}

	record, _ = engine.Step()
	lines = record.Trace()
	if lines[len(lines)-1] != "weights unchanged" {
		t.Errorf("expected unchanged trace, got %v", lines)
	}
}

func TestEngineStatusText(t *testing.T) {
	for _, status := range []EngineStatus{StatusIdle, StatusRunning, StatusConverged} {
		text, err := status.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var decoded EngineStatus
		if err := decoded.UnmarshalText(text); err != nil || decoded != status {
			t.Errorf("round trip of %s gave %s, %v", status, decoded, err)
		}
	}
	var status EngineStatus
	if err := status.UnmarshalText([]byte("PAUSED")); err == nil {
		t.Error("expected error for unknown status")
	}
}
