package dbconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
)

// StoreOptions tunes the change feed of the opened store.
type StoreOptions struct {
	Clock            clockwork.Clock // memory backend only
	FallbackInterval time.Duration   // postgres resync interval, zero keeps the default
}

// OpenStore connects the configured backend and starts its change feed. The
// feed stops when ctx is cancelled.
func OpenStore(ctx context.Context, cfg Config, opts StoreOptions) (docstore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendPostgres:
		return openPostgres(ctx, cfg, opts)
	case BackendRedis:
		return openRedis(ctx, cfg)
	default:
		log.Info().Msg("using in-memory document store")
		return docstore.NewMemoryStore(opts.Clock), nil
	}
}

func openPostgres(ctx context.Context, cfg Config, opts StoreOptions) (docstore.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	store := docstore.NewPostgresStore(pool, cfg.NotifyChannel)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	lcfg := docstore.DefaultListenerConfig()
	lcfg.DatabaseURL = cfg.DSN()
	lcfg.NotifyChannel = cfg.NotifyChannel
	if opts.FallbackInterval > 0 {
		lcfg.FallbackInterval = opts.FallbackInterval
	}
	listener, err := docstore.NewPostgresChangeListener(store.Hub(), lcfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	go func() {
		if err := listener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("change listener stopped")
		}
	}()

	return store, nil
}

func openRedis(ctx context.Context, cfg Config) (docstore.Store, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info().Str("addr", redisOpts.Addr).Int("db", redisOpts.DB).Msg("connected to redis")

	store := docstore.NewRedisStore(client, docstore.RedisStoreOptions{Prefix: cfg.RedisPrefix})
	if err := store.Listen(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
