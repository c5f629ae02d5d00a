package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxPoints   = 1000
	DefaultFloorPoints = 100
)

// Scorer turns answer latency into points.
type Scorer struct {
	Max    int
	Floor  int
	Window time.Duration
	// TrustClient uses the client's claimed value, clamped to [0, Max].
	TrustClient bool
}

// Points awards Max at the start of the window, decaying linearly to Floor at its end.
func (s Scorer) Points(elapsed time.Duration, claimed int) int {
	if s.TrustClient {
		return clamp(claimed, 0, s.Max)
	}
	if s.Window <= 0 || elapsed <= 0 {
		return s.Max
	}
	remaining := s.Window - elapsed
	if remaining <= 0 {
		return s.Floor
	}
	span := int64(s.Max - s.Floor)
	return clamp(s.Floor+int(span*int64(remaining)/int64(s.Window)), s.Floor, s.Max)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ledger validates and appends answer submissions.
type Ledger struct {
	store LedgerStore
	clock clockwork.Clock
}

func NewLedger(store LedgerStore, clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{store: store, clock: clock}
}

// Record appends an entry for player's answer to q. Points survive only when
// the trimmed answer matches the correct choice exactly; anything else,
// including a missing question, is stored with zero points.
func (l *Ledger) Record(ctx context.Context, player domain.Player, q *domain.Question, raw string, points int) (domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		ID:          uuid.New(),
		UserID:      player.ID,
		Username:    player.Name,
		Answer:      raw,
		SubmittedAt: l.clock.Now().UTC(),
	}
	if q != nil {
		entry.QuestionID = q.ID
		if answer := strings.TrimSpace(raw); answer != "" && answer == q.CorrectChoice && points > 0 {
			entry.Points = points
		}
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("append answer: %w", err)
	}
	return entry, nil
}

// Entry fetches a previously recorded entry.
func (l *Ledger) Entry(ctx context.Context, id uuid.UUID) (domain.LedgerEntry, error) {
	return l.store.Entry(ctx, id)
}
