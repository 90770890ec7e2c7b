package perceptron_activations

import (
	"fmt"
	"strings"

	"github.com/edumdp-dev/perceptron/perceptron_core"
)

type ActivationMode string

const (
	ActivationStep    ActivationMode = "step"
	ActivationSigmoid ActivationMode = "sigmoid"
)

// ActivationHandler maps a weighted sum to a binary prediction. Handlers that
// produce a probability return it as the second value, others return nil.
type ActivationHandler interface {
	Mode() ActivationMode
	Activate(z float64) (int, *float64)
}

type StepActivation struct{}
type SigmoidActivation struct{}

func (activation StepActivation) Mode() ActivationMode {
	return ActivationStep
}

func (activation StepActivation) Activate(z float64) (int, *float64) {
	return perceptron_core.HeavisideStep(z), nil
}

func (activation SigmoidActivation) Mode() ActivationMode {
	return ActivationSigmoid
}

func (activation SigmoidActivation) Activate(z float64) (int, *float64) {
	probability := perceptron_core.Sigmoid(z)
	return perceptron_core.SigmoidThreshold(probability), &probability
}

func ActivationFactory(name string) (ActivationHandler, error) {
	switch parsed_name := strings.ToLower(strings.TrimSpace(name)); parsed_name {
	case string(ActivationStep):
		return StepActivation{}, nil
	case string(ActivationSigmoid):
		return SigmoidActivation{}, nil
	}
	return nil, fmt.Errorf("activation mode is invalid: %s", name)
}

func ValidateActivation(name string) bool {
	_, err := ActivationFactory(name)
	return err == nil
}

func AvailableActivations() []ActivationMode {
	return []ActivationMode{ActivationStep, ActivationSigmoid}
}
