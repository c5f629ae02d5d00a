package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"livetrivia/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ClockStore keeps the phase clock in the single phase_clock row (id = 1).
type ClockStore struct {
	pool *pgxpool.Pool
}

func NewClockStore(pool *pgxpool.Pool) *ClockStore {
	return &ClockStore{pool: pool}
}

func (s *ClockStore) LoadClock(ctx context.Context) (domain.ClockState, bool, error) {
	var (
		phase            string
		startedAt        time.Time
		current, retired []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT phase, started_at, current, retired FROM phase_clock WHERE id = 1`,
	).Scan(&phase, &startedAt, &current, &retired)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ClockState{}, false, nil
	}
	if err != nil {
		return domain.ClockState{}, false, fmt.Errorf("load clock: %w", err)
	}

	state := domain.ClockState{StartedAt: startedAt.UTC()}
	if state.Phase, err = domain.ParsePhase(phase); err != nil {
		return domain.ClockState{}, false, err
	}
	if state.Current, err = unmarshalQuestion(current); err != nil {
		return domain.ClockState{}, false, err
	}
	if state.Retired, err = unmarshalQuestion(retired); err != nil {
		return domain.ClockState{}, false, err
	}
	return state, true, nil
}

func (s *ClockStore) SaveClock(ctx context.Context, state domain.ClockState) error {
	current, err := marshalQuestion(state.Current)
	if err != nil {
		return err
	}
	retired, err := marshalQuestion(state.Retired)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO phase_clock (id, phase, started_at, current, retired, updated_at)
		VALUES (1, $1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET phase = EXCLUDED.phase,
		    started_at = EXCLUDED.started_at,
		    current = EXCLUDED.current,
		    retired = EXCLUDED.retired,
		    updated_at = now()`,
		state.Phase.String(), state.StartedAt.UTC(), current, retired,
	)
	if err != nil {
		return fmt.Errorf("save clock: %w", err)
	}
	return nil
}

// marshalQuestion returns nil for a nil question so the column stores NULL.
func marshalQuestion(q *domain.Question) ([]byte, error) {
	if q == nil {
		return nil, nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal question: %w", err)
	}
	return raw, nil
}

func unmarshalQuestion(raw []byte) (*domain.Question, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("unmarshal question: %w", err)
	}
	return &q, nil
}
