package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

const (
	keyPrefix    = "helix:turn:"
	pollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process using the same Redis.
// A lock expires after ttl if its holder dies.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
	log *logging.Logger
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, ttl time.Duration, log *logging.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log.Sub("lock.redis")}
}

// NewRedisFromConfig connects using a redis:// URL or host:port address.
func NewRedisFromConfig(cfg config.RedisConfig, ttl time.Duration, log *logging.Logger) (*Redis, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	return NewRedis(redis.NewClient(opts), ttl, log), nil
}

// Lock polls SETNX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The turn's ctx may already be cancelled; release regardless.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				r.log.Warn().Err(err).Str("key", key).Msg("failed to release lock")
			}
		})
	}, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
