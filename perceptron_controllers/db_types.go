package perceptron_controllers

// RunStatsEntry aggregates the recorded runs of one (activation, learning rate) pair
type RunStatsEntry struct {
	Activation     string  `json:"activation"`
	LearningRate   float64 `json:"learning_rate"`
	TotalCount     int     `json:"total_count"`
	ConvergedCount int     `json:"converged_count"`
	AvgEpochs      float64 `json:"avg_epochs"`
	AvgUpdates     float64 `json:"avg_updates"`
}
