package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps served questions in Redis as JSON under
// trivia:question:{id}. With a backing store it is a cache-aside layer whose
// entries expire after ttl (plus up to 10% jitter); without one it is the
// store and entries never expire.
type QuestionCache struct {
	client  *redis.Client
	backing app.QuestionStore
	ttl     time.Duration
	sf      singleflight.Group
}

func NewQuestionCache(client *redis.Client, backing app.QuestionStore, ttl time.Duration) *QuestionCache {
	return &QuestionCache{client: client, backing: backing, ttl: ttl}
}

func (c *QuestionCache) SaveQuestion(ctx context.Context, q domain.Question) error {
	if c.backing != nil {
		if err := c.backing.SaveQuestion(ctx, q); err != nil {
			return err
		}
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	// Questions are immutable; the first write wins.
	if err := c.client.SetNX(ctx, questionKey(q.ID), raw, c.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("cache question: %w", err)
	}
	return nil
}

func (c *QuestionCache) Question(ctx context.Context, id string) (domain.Question, error) {
	if q, ok, err := c.cached(ctx, id); err == nil && ok {
		return q, nil
	}
	if c.backing == nil {
		return domain.Question{}, domain.ErrNoQuestion
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another caller filled the cache.
		if q, ok, err := c.cached(ctx, id); err == nil && ok {
			return q, nil
		}
		q, err := c.backing.Question(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		if raw, err := json.Marshal(q); err == nil {
			_ = c.client.Set(ctx, questionKey(id), raw, c.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) cached(ctx context.Context, id string) (domain.Question, bool, error) {
	raw, err := c.client.Get(ctx, questionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, err
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, false, fmt.Errorf("decode cached question %s: %w", id, err)
	}
	return q, true, nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.backing == nil || c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}

func questionKey(id string) string {
	return "trivia:question:" + id
}
