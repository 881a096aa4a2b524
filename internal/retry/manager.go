// Package retry tracks attempt state per operation.
//
// The driver keeps two operations here: initialization, which is retried
// on a fixed delay after a recoverable failure, and frame rendering, whose
// consecutive failures decide when the session is torn down.
package retry

import (
	"sync"
	"time"
)

// Well-known operation names.
const (
	OpInitialize = "initialize"
	OpFrame      = "frame"
)

// OpState tracks attempts for one operation.
type OpState struct {
	Op string `json:"op"`
	// Attempts counts every recorded attempt, successful or not.
	Attempts int `json:"attempts"`
	// Consecutive counts failures since the last success.
	Consecutive int `json:"consecutive"`
	// MaxConsecutive is the failure budget; zero means unlimited.
	MaxConsecutive int       `json:"max_consecutive"`
	LastError      string    `json:"last_error,omitempty"`
	LastFailure    time.Time `json:"last_failure,omitempty"`
	// NextAttempt is the earliest time the operation may run again.
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// Exhausted reports whether the failure budget is spent.
func (s *OpState) Exhausted() bool {
	return s.MaxConsecutive > 0 && s.Consecutive >= s.MaxConsecutive
}

// Manager manages attempt state for operations.
// It is thread-safe and can be used concurrently.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*OpState
	now    func() time.Time
}

// NewManager creates a new retry manager.
func NewManager() *Manager {
	return &Manager{
		states: make(map[string]*OpState),
		now:    time.Now,
	}
}

// GetOrCreateState returns or creates state for an operation.
// maxConsecutive is only applied on creation.
func (m *Manager) GetOrCreateState(op string, maxConsecutive int) *OpState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(op, maxConsecutive)
}

func (m *Manager) stateLocked(op string, maxConsecutive int) *OpState {
	state, exists := m.states[op]
	if !exists {
		state = &OpState{Op: op, MaxConsecutive: maxConsecutive}
		m.states[op] = state
	}
	return state
}

// SetLimit changes an operation's failure budget.
func (m *Manager) SetLimit(op string, maxConsecutive int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateLocked(op, maxConsecutive).MaxConsecutive = maxConsecutive
}

// GetState returns a copy of an operation's state and whether it exists.
func (m *Manager) GetState(op string) (OpState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, exists := m.states[op]
	if !exists {
		return OpState{}, false
	}
	return *state, true
}

// Due reports whether the operation may run now. Unknown operations are
// always due.
func (m *Manager) Due(op string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, exists := m.states[op]
	if !exists {
		return true
	}
	return !m.now().Before(state.NextAttempt)
}

// RecordSuccess records a successful attempt and clears the failure streak.
func (m *Manager) RecordSuccess(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.stateLocked(op, 0)
	state.Attempts++
	state.Consecutive = 0
	state.NextAttempt = time.Time{}
}

// RecordFailure records a failed attempt. The operation is not due again
// until delay has elapsed. It returns the failure streak length and whether
// the budget is now spent.
func (m *Manager) RecordFailure(op string, err error, delay time.Duration) (consecutive int, exhausted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.stateLocked(op, 0)
	now := m.now()
	state.Attempts++
	state.Consecutive++
	state.LastFailure = now
	if err != nil {
		state.LastError = err.Error()
	}
	if delay > 0 {
		state.NextAttempt = now.Add(delay)
	} else {
		state.NextAttempt = time.Time{}
	}
	return state.Consecutive, state.Exhausted()
}

// Reset clears an operation's streak and schedule but keeps its budget.
func (m *Manager) Reset(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, exists := m.states[op]; exists {
		state.Consecutive = 0
		state.NextAttempt = time.Time{}
	}
}

// ResetAll forgets every operation.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]*OpState)
}

// GetAllStates returns a copy of every operation's state.
func (m *Manager) GetAllStates() map[string]OpState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]OpState, len(m.states))
	for k, v := range m.states {
		result[k] = *v
	}
	return result
}
