package lockprovider

import (
	"sync"
	"time"
)

type memoryLockState struct {
	epoch     uint64
	holderID  string
	expiresAt time.Time
}

// Memory is the in-process lock provider: single writer per process, used
// as the default when a host does not need cross-process exclusion
// (spec.md §4.13 "in-process memory lock").
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memoryLockState
}

// NewMemory constructs an empty in-process lock table.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memoryLockState)}
}

func (m *Memory) Acquire(name string, ttl time.Duration, holderID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	state, exists := m.locks[name]
	if exists && state.holderID != holderID && now.Before(state.expiresAt) {
		return 0, ErrLocked
	}

	epoch := uint64(1)
	if exists {
		epoch = state.epoch + 1
	}

	m.locks[name] = &memoryLockState{epoch: epoch, holderID: holderID, expiresAt: now.Add(ttl)}

	return epoch, nil
}

func (m *Memory) Release(name string, epoch uint64, holderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.locks[name]
	if !exists || state.epoch != epoch || state.holderID != holderID {
		return nil // already released, or superseded: release is best-effort idempotent
	}

	// Keep the epoch so the next Acquire continues the sequence.
	state.holderID = ""
	state.expiresAt = time.Time{}

	return nil
}

func (m *Memory) Renew(name string, epoch uint64, ttl time.Duration, holderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.locks[name]
	if !exists || state.epoch != epoch || state.holderID != holderID {
		return ErrLocked
	}

	state.expiresAt = time.Now().Add(ttl)

	return nil
}
