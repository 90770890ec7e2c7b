package perceptron_controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/edumdp-dev/perceptron/perceptron_activations"
	"github.com/edumdp-dev/perceptron/perceptron_core"
	"github.com/google/uuid"
)

const subscriberBufferSize = 16

// TrainingSession serializes every engine call behind one mutex and drives
// the continuous run through its own RunScheduler.
type TrainingSession struct {
	Uid       string
	StartTime time.Time

	mutex       sync.Mutex
	engine      *TrainingEngine
	scheduler   *RunScheduler
	runCtx      context.Context
	subscribers map[int]chan SessionStateMessage
	nextSubId   int
	closed      bool
}

func NewTrainingSession(request SessionRequest, tickInterval time.Duration) (*TrainingSession, error) {
	var examples *ExampleSet
	if len(request.Examples) > 0 {
		examples = NewExampleSet(request.Examples...)
	}
	engine, err := NewTrainingEngine(request.InitialConfig, examples)
	if err != nil {
		return nil, err
	}
	return &TrainingSession{
		Uid:         uuid.New().String(),
		StartTime:   time.Now(),
		engine:      engine,
		scheduler:   NewRunScheduler(tickInterval),
		runCtx:      context.Background(),
		subscribers: make(map[int]chan SessionStateMessage),
	}, nil
}

// Tick is called by the scheduler; it steps only while the engine is Running.
func (s *TrainingSession) Tick(ctx context.Context) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if ctx.Err() != nil || s.closed || !s.engine.Running() {
		return false
	}
	s.engine.Step()
	s.publish("step")
	return s.engine.Running()
}

// Step advances one example manually. It is refused while Running or Converged.
func (s *TrainingSession) Step() (SessionSnapshot, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.engine.Status() != StatusIdle {
		return s.snapshot(), false
	}
	_, ok := s.engine.Step()
	if ok {
		s.publish("step")
	}
	return s.snapshot(), ok
}

func (s *TrainingSession) ToggleRunning() (SessionSnapshot, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed || !s.engine.ToggleRunning() {
		return s.snapshot(), false
	}
	if s.engine.Running() {
		s.scheduler.Start(s.runCtx, s)
	} else {
		s.scheduler.Stop()
	}
	s.publish("toggle")
	return s.snapshot(), true
}

func (s *TrainingSession) Reset() SessionSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.scheduler.Stop()
	s.engine.Reset()
	s.publish("reset")
	return s.snapshot()
}

func (s *TrainingSession) SetLearningRate(rate float64) (SessionSnapshot, bool) {
	return s.apply("config", func(e *TrainingEngine) bool { return e.SetLearningRate(rate) })
}

func (s *TrainingSession) SetInitialWeights(weights Weights) (SessionSnapshot, bool) {
	return s.apply("config", func(e *TrainingEngine) bool { return e.SetInitialWeights(weights) })
}

func (s *TrainingSession) SetActivationMode(mode perceptron_activations.ActivationMode) (SessionSnapshot, bool) {
	return s.apply("config", func(e *TrainingEngine) bool { return e.SetActivationMode(mode) })
}

func (s *TrainingSession) EditTrainingExample(index int, x1 float64, x2 float64, y float64) (SessionSnapshot, bool) {
	return s.apply("examples", func(e *TrainingEngine) bool { return e.EditTrainingExample(index, x1, x2, y) })
}

func (s *TrainingSession) AddTrainingExample() (SessionSnapshot, bool) {
	return s.apply("examples", func(e *TrainingEngine) bool { return e.AddTrainingExample() })
}

func (s *TrainingSession) RemoveTrainingExample(index int) (SessionSnapshot, bool) {
	return s.apply("examples", func(e *TrainingEngine) bool { return e.RemoveTrainingExample(index) })
}

func (s *TrainingSession) Snapshot() SessionSnapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshot()
}

func (s *TrainingSession) History() []HistoryRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.engine.History()
}

// RunDone exposes the scheduler loop exit, nil when no run was ever started.
func (s *TrainingSession) RunDone() <-chan struct{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.scheduler.Done()
}

// Subscribe registers a state listener. Messages are dropped for listeners
// that fall behind. The returned function unregisters the listener.
func (s *TrainingSession) Subscribe() (<-chan SessionStateMessage, func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	channel := make(chan SessionStateMessage, subscriberBufferSize)
	if s.closed {
		close(channel)
		return channel, func() {}
	}
	id := s.nextSubId
	s.nextSubId++
	s.subscribers[id] = channel

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close stops any run and closes every subscriber channel.
func (s *TrainingSession) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	s.scheduler.Stop()
	if s.engine.Running() {
		s.engine.ToggleRunning()
	}
	s.publish("closed")
	s.closed = true
	for id, channel := range s.subscribers {
		delete(s.subscribers, id)
		close(channel)
	}
}

func (s *TrainingSession) apply(commandType string, operation func(e *TrainingEngine) bool) (SessionSnapshot, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed || !operation(s.engine) {
		return s.snapshot(), false
	}
	s.publish(commandType)
	return s.snapshot(), true
}

func (s *TrainingSession) snapshot() SessionSnapshot {
	state := s.engine.State()
	snapshot := SessionSnapshot{
		Uid:          s.Uid,
		StartTime:    s.StartTime,
		Status:       s.engine.Status(),
		Converged:    s.engine.Converged(),
		State:        state,
		Initial:      s.engine.InitialConfig(),
		Examples:     s.engine.Examples(),
		HistoryCount: s.engine.HistoryLen(),
		Boundary:     perceptron_core.DecisionBoundary(state.Weights.W1, state.Weights.W2, state.Weights.B),
	}
	if record, ok := s.engine.LastRecord(); ok {
		snapshot.LastRecord = &record
	}
	return snapshot
}

func (s *TrainingSession) publish(commandType string) {
	if len(s.subscribers) == 0 {
		return
	}
	message := SessionStateMessage{CommandType: commandType, SessionState: s.snapshot()}
	for _, channel := range s.subscribers {
		select {
		case channel <- message:
		default:
		}
	}
}

func NewSessionMap() *SessionMap {
	return &SessionMap{
		Sessions: make(map[string]*TrainingSession),
	}
}

func (m *SessionMap) Add(session *TrainingSession) {
	m.Mutex.Lock()
	m.Sessions[session.Uid] = session
	m.Mutex.Unlock()
}

func (m *SessionMap) Get(uid string) (*TrainingSession, bool) {
	m.Mutex.RLock()
	defer m.Mutex.RUnlock()
	session, ok := m.Sessions[uid]
	return session, ok
}

// Delete closes and removes the session.
func (m *SessionMap) Delete(uid string) bool {
	m.Mutex.Lock()
	session, ok := m.Sessions[uid]
	delete(m.Sessions, uid)
	m.Mutex.Unlock()
	if ok {
		session.Close()
	}
	return ok
}

// List returns snapshots ordered by start time.
func (m *SessionMap) List() []SessionSnapshot {
	m.Mutex.RLock()
	sessions := make([]*TrainingSession, 0, len(m.Sessions))
	for _, session := range m.Sessions {
		sessions = append(sessions, session)
	}
	m.Mutex.RUnlock()

	snapshots := make([]SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		snapshots = append(snapshots, session.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].StartTime.Equal(snapshots[j].StartTime) {
			return snapshots[i].Uid < snapshots[j].Uid
		}
		return snapshots[i].StartTime.Before(snapshots[j].StartTime)
	})
	return snapshots
}

func (m *SessionMap) CloseAll() {
	m.Mutex.Lock()
	sessions := m.Sessions
	m.Sessions = make(map[string]*TrainingSession)
	m.Mutex.Unlock()
	for _, session := range sessions {
		session.Close()
	}
}
