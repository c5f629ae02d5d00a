package cli

import (
	"context"
	"fmt"
	"time"

	"livetrivia/internal/app"
	"livetrivia/internal/config"
	"livetrivia/internal/infra/memory"
	pgstore "livetrivia/internal/infra/postgres"
	infraredis "livetrivia/internal/infra/redis"
	avatars3 "livetrivia/internal/infra/s3"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultQuestionCacheTTL = 10 * time.Minute

type stores struct {
	clock     app.ClockStore
	ledger    app.LedgerStore
	questions app.QuestionStore
	profiles  app.ProfileDirectory
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks the backends: Postgres when configured (with Redis as a
// question cache in front of it if both are set), else Redis, else memory.
func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (*stores, error) {
	st := &stores{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
	}

	switch {
	case cfg.Postgres.URL != "":
		db := openBun(cfg.Postgres.URL)
		st.closers = append(st.closers, func() { _ = db.Close() })
		if _, err := migrateDB(ctx, db); err != nil {
			st.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)

		st.clock = pgstore.NewClockStore(pool)
		st.profiles = pgstore.NewProfileDirectory(pool)
		st.ledger = pgstore.NewLedgerStore(db)
		st.questions = pgstore.NewQuestionStore(db)
		if redisClient != nil {
			ttl := config.Duration(cfg.Redis.TTL, defaultQuestionCacheTTL)
			st.questions = infraredis.NewQuestionCache(redisClient, st.questions, ttl)
		}
		log.Info().Bool("redis_cache", redisClient != nil).Msg("using postgres stores")

	case redisClient != nil:
		st.clock = infraredis.NewClockStore(redisClient)
		st.ledger = infraredis.NewLedgerStore(redisClient,
			infraredis.WithLedgerLogger(log.With().Str("component", "ledger").Logger()))
		st.questions = infraredis.NewQuestionCache(redisClient, nil, 0)
		st.profiles = memory.NewProfileDirectory()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis stores")

	default:
		st.clock = memory.NewClockStore()
		st.ledger = memory.NewLedgerStore()
		st.questions = memory.NewQuestionStore()
		st.profiles = memory.NewProfileDirectory()
		log.Warn().Msg("no postgres or redis configured; game state is kept in memory")
	}
	return st, nil
}

// newAvatars returns nil when no avatar location is configured.
func newAvatars(ctx context.Context, cfg config.Config, log zerolog.Logger) (app.AvatarResolver, error) {
	if cfg.Avatars.Bucket == "" && cfg.Avatars.BaseURL == "" {
		return nil, nil
	}
	avatars, err := avatars3.NewAvatars(ctx, avatars3.Config{
		Bucket:     cfg.Avatars.Bucket,
		Region:     cfg.Avatars.Region,
		Endpoint:   cfg.Avatars.Endpoint,
		BaseURL:    cfg.Avatars.BaseURL,
		PresignTTL: config.Duration(cfg.Avatars.PresignTTL, avatars3.DefaultPresignTTL),
	}, log)
	if err != nil {
		return nil, err
	}
	return avatars, nil
}
