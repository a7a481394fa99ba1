package ml

import (
	"fmt"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	predictions  map[string]int
	failures     map[string]int
	latencySum   float64
	latencyCount int
	agreements   []float64
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		predictions: make(map[string]int),
		failures:    make(map[string]int),
	}
}

func (m *MockMetrics) ModelPredictionsInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[model]++
}

func (m *MockMetrics) ModelFailuresInc(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[model]++
}

func (m *MockMetrics) VoteLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}

func (m *MockMetrics) VoteAgreementObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agreements = append(m.agreements, v)
}

func (m *MockMetrics) Predictions(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[model]
}

func (m *MockMetrics) Failures(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[model]
}

func (m *MockMetrics) Agreements() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.agreements...)
}

func (m *MockMetrics) LatencyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latencyCount
}

// StubClassifier returns a fixed label, or Err when set. It counts calls.
type StubClassifier struct {
	Label int
	Err   error
	Width int

	mu    sync.Mutex
	calls int
}

func (s *StubClassifier) Predict(x []float64) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Width > 0 && len(x) != s.Width {
		return 0, fmt.Errorf("expected %d features, got %d", s.Width, len(x))
	}
	return s.Label, s.Err
}

func (s *StubClassifier) NumFeatures() int { return s.Width }

func (s *StubClassifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
