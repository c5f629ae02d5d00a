package app

import (
	"context"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
)

// QuestionProvider produces the next trivia question (Open Trivia DB, static rotation, ...).
type QuestionProvider interface {
	FetchQuestion(ctx context.Context) (domain.Question, error)
}

// ClockStore persists the single phase clock record.
type ClockStore interface {
	LoadClock(ctx context.Context) (domain.ClockState, bool, error)
	SaveClock(ctx context.Context, state domain.ClockState) error
}

// QuestionStore keeps every question ever served. It is append-only.
type QuestionStore interface {
	SaveQuestion(ctx context.Context, q domain.Question) error
	Question(ctx context.Context, id string) (domain.Question, error)
}

// LedgerStore is the append-only answer ledger.
//
// Append must reject a second entry for the same (user, question) pair with
// domain.ErrAlreadyAnswered. Since and ForQuestion return entries ordered by
// SubmittedAt ascending; a zero since returns the whole ledger.
//
// Totals aggregates points per user over the entries submitted at or after
// since (zero since means all time), ordered as domain.Tally orders them.
// Stores answer it without handing back every entry in the ledger.
type LedgerStore interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	Entry(ctx context.Context, id uuid.UUID) (domain.LedgerEntry, error)
	Since(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error)
	ForQuestion(ctx context.Context, questionID string) ([]domain.LedgerEntry, error)
	Totals(ctx context.Context, since time.Time) ([]domain.LeaderboardEntry, error)
}

// ProfileDirectory looks up externally managed player profiles.
// Users without a profile are simply absent from the result.
type ProfileDirectory interface {
	Profiles(ctx context.Context, userIDs []string) (map[string]domain.Profile, error)
}

// AvatarResolver turns a stored avatar key into a URL a browser can load.
type AvatarResolver interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}
