package circuitbreaker

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-process StateStore.
//
// It serves two roles: the local shadow each replica keeps of the shared
// store (see FailoverStore), and the sole store when the service runs
// without a shared backend. It enforces the same TTL decay as the shared
// store so shadow state does not outlive what the store would have kept.
type MemoryStore struct {
	mu       sync.Mutex
	circuits map[string]*memoryCircuit
	ttl      TTLConfig

	// now is overridable for tests.
	now func() time.Time
}

type memoryCircuit struct {
	state        State
	stateExp     time.Time
	failures     int64
	failuresExp  time.Time
	successes    int64
	successesExp time.Time
	nextAttempt  time.Time
	lastFailure  string
}

// NewMemoryStore creates an in-process store with the given TTL bounds.
func NewMemoryStore(ttl TTLConfig) *MemoryStore {
	return &MemoryStore{
		circuits: make(map[string]*memoryCircuit),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Load implements StateStore.
func (s *MemoryStore) Load(_ context.Context, name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circuits[name]
	if !ok {
		return Snapshot{State: StateClosed}, nil
	}
	s.expire(c)

	return Snapshot{
		State:       c.state,
		Failures:    c.failures,
		Successes:   c.successes,
		NextAttempt: c.nextAttempt,
		LastFailure: c.lastFailure,
	}, nil
}

// SetState implements StateStore.
func (s *MemoryStore) SetState(_ context.Context, name string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.state = state
	c.stateExp = s.now().Add(s.ttl.State)
	return nil
}

// IncrFailures implements StateStore.
func (s *MemoryStore) IncrFailures(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	s.expire(c)
	c.failures++
	c.failuresExp = s.now().Add(s.ttl.Failures)
	return c.failures, nil
}

// ResetFailures implements StateStore.
func (s *MemoryStore) ResetFailures(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.circuits[name]; ok {
		c.failures = 0
		c.failuresExp = time.Time{}
	}
	return nil
}

// IncrSuccesses implements StateStore.
func (s *MemoryStore) IncrSuccesses(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	s.expire(c)
	c.successes++
	c.successesExp = s.now().Add(s.ttl.Successes)
	return c.successes, nil
}

// ResetCounters implements StateStore.
func (s *MemoryStore) ResetCounters(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.circuits[name]; ok {
		c.failures = 0
		c.failuresExp = time.Time{}
		c.successes = 0
		c.successesExp = time.Time{}
	}
	return nil
}

// SetNextAttempt implements StateStore.
func (s *MemoryStore) SetNextAttempt(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.nextAttempt = at
	return nil
}

// SetLastFailure implements StateStore.
func (s *MemoryStore) SetLastFailure(_ context.Context, name string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.lastFailure = message
	return nil
}

// setSnapshot overwrites the local record with state observed from the
// shared store, so shadow state tracks the last known canonical copy.
func (s *MemoryStore) setSnapshot(name string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.circuit(name)
	c.state = snap.State
	c.stateExp = now.Add(s.ttl.State)
	c.failures = snap.Failures
	c.failuresExp = now.Add(s.ttl.Failures)
	c.successes = snap.Successes
	c.successesExp = now.Add(s.ttl.Successes)
	c.nextAttempt = snap.NextAttempt
	c.lastFailure = snap.LastFailure
}

// syncFailures overwrites the local failure counter with the value the
// shared store returned from an atomic increment.
func (s *MemoryStore) syncFailures(name string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.failures = count
	c.failuresExp = s.now().Add(s.ttl.Failures)
}

// syncSuccesses overwrites the local probe success counter with the value
// the shared store returned from an atomic increment.
func (s *MemoryStore) syncSuccesses(name string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.circuit(name)
	c.successes = count
	c.successesExp = s.now().Add(s.ttl.Successes)
}

// circuit returns the record for name, creating it lazily. Caller holds mu.
func (s *MemoryStore) circuit(name string) *memoryCircuit {
	c, ok := s.circuits[name]
	if !ok {
		c = &memoryCircuit{state: StateClosed}
		s.circuits[name] = c
	}
	return c
}

// expire applies TTL decay to a record. Caller holds mu.
func (s *MemoryStore) expire(c *memoryCircuit) {
	now := s.now()
	if !c.stateExp.IsZero() && now.After(c.stateExp) {
		c.state = StateClosed
		c.stateExp = time.Time{}
	}
	if !c.failuresExp.IsZero() && now.After(c.failuresExp) {
		c.failures = 0
		c.failuresExp = time.Time{}
	}
	if !c.successesExp.IsZero() && now.After(c.successesExp) {
		c.successes = 0
		c.successesExp = time.Time{}
	}
	if !c.nextAttempt.IsZero() && now.After(c.nextAttempt) {
		c.nextAttempt = time.Time{}
	}
}
