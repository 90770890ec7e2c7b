package perceptron_controllers

// ExampleSet is the ordered training data. The caller owns it; the engine
// reads it during a step and edits it only through its idle-only operations.
type ExampleSet struct {
	examples []TrainingExample
}

func DefaultAndGateExamples() []TrainingExample {
	return []TrainingExample{
		{X1: 0, X2: 0, Y: 0},
		{X1: 1, X2: 0, Y: 0},
		{X1: 0, X2: 1, Y: 0},
		{X1: 1, X2: 1, Y: 1},
	}
}

func NewExampleSet(examples ...TrainingExample) *ExampleSet {
	set := &ExampleSet{}
	set.Restore(examples)
	return set
}

func (s *ExampleSet) Len() int {
	return len(s.examples)
}

func (s *ExampleSet) At(index int) (TrainingExample, bool) {
	if index < 0 || index >= len(s.examples) {
		return TrainingExample{}, false
	}
	return s.examples[index], true
}

func (s *ExampleSet) Snapshot() []TrainingExample {
	return copyExamples(s.examples)
}

func (s *ExampleSet) Edit(index int, x1 float64, x2 float64, y float64) bool {
	if index < 0 || index >= len(s.examples) {
		return false
	}
	s.examples[index] = NewTrainingExample(x1, x2, y)
	return true
}

func (s *ExampleSet) Add(example TrainingExample) {
	s.examples = append(s.examples, NewTrainingExample(float64(example.X1), float64(example.X2), float64(example.Y)))
}

// Remove refuses to drop the last remaining example.
func (s *ExampleSet) Remove(index int) bool {
	if index < 0 || index >= len(s.examples) || len(s.examples) <= 1 {
		return false
	}
	s.examples = append(s.examples[:index], s.examples[index+1:]...)
	return true
}

func (s *ExampleSet) Restore(examples []TrainingExample) {
	s.examples = make([]TrainingExample, 0, len(examples))
	for _, example := range examples {
		s.Add(example)
	}
}

func copyExamples(input []TrainingExample) []TrainingExample {
	copied := make([]TrainingExample, len(input))
	copy(copied, input)
	return copied
}
