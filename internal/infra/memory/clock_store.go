package memory

import (
	"context"
	"sync"

	"livetrivia/internal/domain"
)

// ClockStore is an in-memory implementation of app.ClockStore.
type ClockStore struct {
	mu    sync.RWMutex
	state domain.ClockState
	saved bool
}

func NewClockStore() *ClockStore {
	return &ClockStore{}
}

func (s *ClockStore) LoadClock(_ context.Context) (domain.ClockState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.saved, nil
}

func (s *ClockStore) SaveClock(_ context.Context, state domain.ClockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saved = true
	return nil
}
