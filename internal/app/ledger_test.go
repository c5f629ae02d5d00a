package app_test

import (
	"context"
	"testing"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/domain"
	"livetrivia/internal/infra/memory"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func parisQuestion() *domain.Question {
	return &domain.Question{
		ID:               "q-paris",
		CorrectChoice:    "Paris",
		Choices:          []string{"Paris", "Lyon", "Nice"},
		EliminationOrder: []string{"Nice"},
	}
}

func TestRecordScoresExactMatchOnly(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger(memory.NewLedgerStore(), clockwork.NewFakeClock())
	q := parisQuestion()

	alice, err := ledger.Record(ctx, domain.Player{ID: "u1", Name: "alice"}, q, "Paris", 800)
	require.NoError(t, err)
	require.Equal(t, 800, alice.Points)
	require.Equal(t, "q-paris", alice.QuestionID)

	bob, err := ledger.Record(ctx, domain.Player{ID: "u2", Name: "bob"}, q, "paris", 800)
	require.NoError(t, err)
	require.Zero(t, bob.Points, "comparison is case-sensitive")
	require.Equal(t, "paris", bob.Answer)

	carol, err := ledger.Record(ctx, domain.Player{ID: "u3", Name: "carol"}, q, "  Paris\n", 640)
	require.NoError(t, err)
	require.Equal(t, 640, carol.Points, "surrounding whitespace is trimmed")

	for i, answer := range []string{"Lyon", "", "Paris!", "PARIS"} {
		e, err := ledger.Record(ctx, domain.Player{ID: "x" + answer, Name: "x"}, q, answer, 1000)
		require.NoError(t, err, "case %d", i)
		require.Zero(t, e.Points, "case %d", i)
	}
}

func TestRecordRejectsSecondSubmission(t *testing.T) {
	ctx := context.Background()
	ledger := app.NewLedger(memory.NewLedgerStore(), clockwork.NewFakeClock())
	q := parisQuestion()
	player := domain.Player{ID: "u1", Name: "alice"}

	_, err := ledger.Record(ctx, player, q, "Lyon", 900)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, player, q, "Paris", 900)
	require.ErrorIs(t, err, domain.ErrAlreadyAnswered)
}

func TestRecordWithoutQuestionScoresZero(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore()
	ledger := app.NewLedger(store, clockwork.NewFakeClock())

	e, err := ledger.Record(ctx, domain.Player{ID: "u1"}, nil, "Paris", 900)
	require.NoError(t, err)
	require.Zero(t, e.Points)

	got, err := ledger.Entry(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestScorerDecaysWithElapsedTime(t *testing.T) {
	s := app.Scorer{Max: 1000, Floor: 100, Window: 15 * time.Second}

	require.Equal(t, 1000, s.Points(0, 0))
	require.Equal(t, 550, s.Points(7500*time.Millisecond, 0))
	require.Equal(t, 100, s.Points(15*time.Second, 0))
	require.Equal(t, 100, s.Points(time.Minute, 0))

	prev := s.Points(0, 0)
	for elapsed := time.Second; elapsed <= 15*time.Second; elapsed += time.Second {
		p := s.Points(elapsed, 0)
		require.LessOrEqual(t, p, prev)
		prev = p
	}
}

func TestScorerTrustingClientClamps(t *testing.T) {
	s := app.Scorer{Max: 1000, Floor: 100, Window: 15 * time.Second, TrustClient: true}
	require.Equal(t, 800, s.Points(14*time.Second, 800))
	require.Equal(t, 1000, s.Points(0, 50000))
	require.Equal(t, 0, s.Points(0, -5))
}
