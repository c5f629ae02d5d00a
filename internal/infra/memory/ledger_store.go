package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
)

type answerKey struct {
	userID     string
	questionID string
}

// LedgerStore is an in-memory implementation of app.LedgerStore.
type LedgerStore struct {
	mu       sync.RWMutex
	entries  []domain.LedgerEntry
	byID     map[uuid.UUID]int
	answered map[answerKey]struct{}
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		byID:     make(map[uuid.UUID]int),
		answered: make(map[answerKey]struct{}),
	}
}

func (s *LedgerStore) Append(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := answerKey{userID: entry.UserID, questionID: entry.QuestionID}
	if _, ok := s.answered[key]; ok {
		return domain.ErrAlreadyAnswered
	}
	s.answered[key] = struct{}{}

	// Keep entries ordered by submission time even if appends arrive out of order.
	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].SubmittedAt.After(entry.SubmittedAt)
	})
	s.entries = append(s.entries, domain.LedgerEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry
	for j := i; j < len(s.entries); j++ {
		s.byID[s.entries[j].ID] = j
	}
	return nil
}

func (s *LedgerStore) Entry(_ context.Context, id uuid.UUID) (domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	return s.entries[i], nil
}

func (s *LedgerStore) Since(_ context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].SubmittedAt.Before(since)
	})
	return append([]domain.LedgerEntry(nil), s.entries[i:]...), nil
}

func (s *LedgerStore) ForQuestion(_ context.Context, questionID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.QuestionID == questionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *LedgerStore) Totals(_ context.Context, since time.Time) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].SubmittedAt.Before(since)
	})
	return domain.Tally(s.entries[i:]), nil
}
