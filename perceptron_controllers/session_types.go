package perceptron_controllers

import (
	"sync"
	"time"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/edumdp-dev/perceptron/perceptron_core"
)

type SessionMap struct {
	Sessions map[string]*TrainingSession
	Mutex    sync.RWMutex
}

type SessionStateMessage struct {
	CommandType  string //step, toggle, reset, config, examples or closed
	SessionState SessionSnapshot
}

type SessionSnapshot struct {
	Uid          string                       `json:"uid"`
	StartTime    time.Time                    `json:"start_time"`
	Status       EngineStatus                 `json:"status"`
	Converged    bool                         `json:"converged"`
	State        ModelState                   `json:"state"`
	Initial      InitialConfig                `json:"initial_config"`
	Examples     []TrainingExample            `json:"examples"`
	LastRecord   *HistoryRecord               `json:"last_record,omitempty"`
	HistoryCount int                          `json:"history_count"`
	Boundary     perceptron_core.BoundaryLine `json:"boundary"`
}

// SessionRequest is the optional body used to open a session.
type SessionRequest struct {
	InitialConfig
	Examples []TrainingExample `json:"examples"`
}

func DefaultInitialConfig() InitialConfig {
	return InitialConfig{
		Weights:      Weights{W1: 0, W2: 0, B: 0},
		LearningRate: 1.0,
		Activation:   perceptron_activations.ActivationStep,
	}
}
