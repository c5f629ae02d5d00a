package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"livetrivia/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LedgerStore keeps the answer ledger in Redis:
//
//	HSETNX trivia:answered {user}|{question} {entryID}     uniqueness
//	HSET   trivia:entries  {entryID} {json}                entry bodies
//	ZADD   trivia:ledger   {submittedAt µs} {entryID}      time index
//	ZADD   trivia:answers:{question} {submittedAt µs} {entryID}
//	ZINCRBY trivia:totals {points} {user}                  running all-time totals
//	HSETNX trivia:first_seen {user} {submittedAt µs}      tie order for totals
//	HSETNX trivia:names {user} {username}
type LedgerStore struct {
	client *redis.Client
	log    zerolog.Logger
}

const (
	answeredKey  = "trivia:answered"
	entriesKey   = "trivia:entries"
	ledgerKey    = "trivia:ledger"
	totalsKey    = "trivia:totals"
	firstSeenKey = "trivia:first_seen"
	namesKey     = "trivia:names"
)

// LedgerOption configures a LedgerStore.
type LedgerOption func(*LedgerStore)

func WithLedgerLogger(log zerolog.Logger) LedgerOption {
	return func(s *LedgerStore) { s.log = log }
}

func NewLedgerStore(client *redis.Client, opts ...LedgerOption) *LedgerStore {
	s := &LedgerStore{client: client, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	field := entry.UserID + "|" + entry.QuestionID
	claimed, err := s.client.HSetNX(ctx, answeredKey, field, entry.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("claim answer: %w", err)
	}
	if !claimed {
		return domain.ErrAlreadyAnswered
	}

	id := entry.ID.String()
	score := float64(entry.SubmittedAt.UnixMicro())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entriesKey, id, raw)
		pipe.ZAdd(ctx, ledgerKey, redis.Z{Score: score, Member: id})
		pipe.ZAdd(ctx, questionAnswersKey(entry.QuestionID), redis.Z{Score: score, Member: id})
		pipe.ZIncrBy(ctx, totalsKey, float64(entry.Points), entry.UserID)
		pipe.HSetNX(ctx, firstSeenKey, entry.UserID, entry.SubmittedAt.UnixMicro())
		pipe.HSetNX(ctx, namesKey, entry.UserID, entry.Username)
		return nil
	})
	if err != nil {
		// Release the claim so the user can retry.
		_ = s.client.HDel(context.WithoutCancel(ctx), answeredKey, field).Err()
		return fmt.Errorf("write entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) Entry(ctx context.Context, id uuid.UUID) (domain.LedgerEntry, error) {
	raw, err := s.client.HGet(ctx, entriesKey, id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("get entry: %w", err)
	}
	var entry domain.LedgerEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return entry, nil
}

func (s *LedgerStore) Since(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	lower := "-inf"
	if !since.IsZero() {
		lower = strconv.FormatInt(since.UnixMicro(), 10)
	}
	return s.rangeOf(ctx, ledgerKey, lower)
}

func (s *LedgerStore) ForQuestion(ctx context.Context, questionID string) ([]domain.LedgerEntry, error) {
	return s.rangeOf(ctx, questionAnswersKey(questionID), "-inf")
}

func (s *LedgerStore) rangeOf(ctx context.Context, key, lower string) ([]domain.LedgerEntry, error) {
	ids, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: lower, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, entriesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.log.Warn().Str("entry_id", ids[i]).Str("index", key).Msg("ledger entry indexed without a body; skipping")
			continue
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", ids[i], err)
		}
		entries = append(entries, entry)
	}
	// Scores are microseconds; restore full precision ordering.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
	})
	return entries, nil
}

// Totals reads the running all-time totals when since is zero and aggregates
// the bounded range otherwise.
func (s *LedgerStore) Totals(ctx context.Context, since time.Time) ([]domain.LeaderboardEntry, error) {
	if !since.IsZero() {
		entries, err := s.Since(ctx, since)
		if err != nil {
			return nil, err
		}
		return domain.Tally(entries), nil
	}

	scores, err := s.client.ZRangeWithScores(ctx, totalsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read totals: %w", err)
	}
	totals := make([]domain.LeaderboardEntry, 0, len(scores))
	if len(scores) == 0 {
		return totals, nil
	}
	users := make([]string, len(scores))
	for i, z := range scores {
		users[i], _ = z.Member.(string)
	}
	firstSeen, err := s.client.HMGet(ctx, firstSeenKey, users...).Result()
	if err != nil {
		return nil, fmt.Errorf("read first seen: %w", err)
	}
	names, err := s.client.HMGet(ctx, namesKey, users...).Result()
	if err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}

	first := make(map[string]int64, len(users))
	for i, user := range users {
		name, _ := names[i].(string)
		totals = append(totals, domain.LeaderboardEntry{UserID: user, Username: name, Points: int(scores[i].Score)})
		first[user] = math.MaxInt64
		if raw, ok := firstSeen[i].(string); ok {
			if at, err := strconv.ParseInt(raw, 10, 64); err == nil {
				first[user] = at
			}
		}
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Points != totals[j].Points {
			return totals[i].Points > totals[j].Points
		}
		return first[totals[i].UserID] < first[totals[j].UserID]
	})
	return totals, nil
}

func questionAnswersKey(questionID string) string {
	return "trivia:answers:" + questionID
}
