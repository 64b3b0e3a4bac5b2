package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// ExecutionRecord holds the wall-clock window of a single run instance.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// MockSleeperModule is a shared, self-contained module for concurrency tests.
// It records the execution time of each run instance that uses it.
type MockSleeperModule struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewMockSleeperModule creates a new sleeper module for testing.
func NewMockSleeperModule(completionChan chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

type sleeperInput struct {
	ID string `grid:"id"`
}

// Register registers the "sleeper" runner's Go handler.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunSleeper", &registry.RegisteredRunner{
		NewInput: func() any { return new(sleeperInput) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(_ context.Context, _ *struct{}, input *sleeperInput) (cty.Value, error) {
			startTime := time.Now()
			time.Sleep(m.sleepDuration)
			endTime := time.Now()

			m.mu.Lock()
			m.ExecutionTimes[input.ID] = &ExecutionRecord{Start: startTime, End: endTime}
			m.mu.Unlock()

			if m.completionChan != nil {
				m.completionChan <- input.ID
			}
			return cty.NilVal, nil
		},
	})
}

// Overlap reports whether any two recorded executions ran concurrently.
func (m *MockSleeperModule) Overlap() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for idA, a := range m.ExecutionTimes {
		for idB, b := range m.ExecutionTimes {
			if idA == idB {
				continue
			}
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				return true
			}
		}
	}
	return false
}
