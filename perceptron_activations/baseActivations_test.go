package perceptron_activations

import "testing"

func TestActivationFactory(t *testing.T) {
	tests := []struct {
		name     string
		expected ActivationMode
		wantErr  bool
	}{
		{"step", ActivationStep, false},
		{"SIGMOID", ActivationSigmoid, false},
		{" Step ", ActivationStep, false},
		{"relu", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		handler, err := ActivationFactory(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ActivationFactory(%q) expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ActivationFactory(%q) unexpected error: %v", tt.name, err)
		}
		if handler.Mode() != tt.expected {
			t.Errorf("ActivationFactory(%q).Mode() = %s, expected %s", tt.name, handler.Mode(), tt.expected)
		}
	}
}

func TestStepActivation(t *testing.T) {
	handler := StepActivation{}
	prediction, probability := handler.Activate(0)
	if prediction != 1 || probability != nil {
		t.Errorf("Activate(0) = (%d, %v), expected (1, nil)", prediction, probability)
	}
	prediction, _ = handler.Activate(-0.01)
	if prediction != 0 {
		t.Errorf("Activate(-0.01) = %d, expected 0", prediction)
	}
}

func TestSigmoidActivation(t *testing.T) {
	handler := SigmoidActivation{}

	prediction, probability := handler.Activate(0)
	if probability == nil || *probability != 0.5 || prediction != 1 {
		t.Fatalf("Activate(0) = (%d, %v), expected (1, 0.5)", prediction, probability)
	}

	prediction, probability = handler.Activate(-2)
	if prediction != 0 || *probability >= 0.5 {
		t.Errorf("Activate(-2) = (%d, %v), expected class 0 below 0.5", prediction, *probability)
	}

	prediction, probability = handler.Activate(1e6)
	if prediction != 1 || *probability >= 1 {
		t.Errorf("Activate(1e6) = (%d, %v), expected class 1 strictly below 1", prediction, *probability)
	}
}

func TestValidateActivation(t *testing.T) {
	for _, mode := range AvailableActivations() {
		if !ValidateActivation(string(mode)) {
			t.Errorf("ValidateActivation(%s) = false", mode)
		}
	}
	if ValidateActivation("tanh") {
		t.Error("ValidateActivation(tanh) = true")
	}
}
