package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"livetrivia/internal/domain"

	"github.com/redis/go-redis/v9"
)

const clockKey = "trivia:clock"

// ClockStore keeps the phase clock in a single hash:
//
//	HSET trivia:clock phase <phase> started_at <RFC3339Nano> current <json> retired <json>
type ClockStore struct {
	client *redis.Client
}

func NewClockStore(client *redis.Client) *ClockStore {
	return &ClockStore{client: client}
}

func (s *ClockStore) LoadClock(ctx context.Context) (domain.ClockState, bool, error) {
	fields, err := s.client.HGetAll(ctx, clockKey).Result()
	if err != nil {
		return domain.ClockState{}, false, fmt.Errorf("load clock: %w", err)
	}
	if len(fields) == 0 {
		return domain.ClockState{}, false, nil
	}

	var state domain.ClockState
	if state.Phase, err = domain.ParsePhase(fields["phase"]); err != nil {
		return domain.ClockState{}, false, err
	}
	if state.StartedAt, err = time.Parse(time.RFC3339Nano, fields["started_at"]); err != nil {
		return domain.ClockState{}, false, fmt.Errorf("parse started_at: %w", err)
	}
	if state.Current, err = decodeQuestion(fields["current"]); err != nil {
		return domain.ClockState{}, false, err
	}
	if state.Retired, err = decodeQuestion(fields["retired"]); err != nil {
		return domain.ClockState{}, false, err
	}
	return state, true, nil
}

func (s *ClockStore) SaveClock(ctx context.Context, state domain.ClockState) error {
	current, err := encodeQuestion(state.Current)
	if err != nil {
		return err
	}
	retired, err := encodeQuestion(state.Retired)
	if err != nil {
		return err
	}
	err = s.client.HSet(ctx, clockKey,
		"phase", state.Phase.String(),
		"started_at", state.StartedAt.UTC().Format(time.RFC3339Nano),
		"current", current,
		"retired", retired,
	).Err()
	if err != nil {
		return fmt.Errorf("save clock: %w", err)
	}
	return nil
}

func encodeQuestion(q *domain.Question) (string, error) {
	if q == nil {
		return "", nil
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal question: %w", err)
	}
	return string(raw), nil
}

func decodeQuestion(raw string) (*domain.Question, error) {
	if raw == "" {
		return nil, nil
	}
	var q domain.Question
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}
	return &q, nil
}
