package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "caisse:lock:"
	retryInitial = 10 * time.Millisecond
	retryMax     = 200 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every server process pointing at the same
// Redis. Keys expire after ttl so a crashed holder cannot wedge the till;
// a live holder renews them every ttl/3 until it unlocks.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	release := func() {
		// Release even when the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(ctx, r.client, []string{held[i]}, token).Err(); err != nil {
				r.logger.Warn("release lock", slog.String("key", held[i]), slog.Any("error", err))
			}
		}
		held = nil
	}

	for _, key := range keys {
		redisKey := keyPrefix + key
		if err := r.acquire(ctx, redisKey, token); err != nil {
			release()
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, redisKey)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.renew(token, append([]string(nil), held...), stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			release()
		})
	}, nil
}

func (r *Redis) renew(token string, keys []string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		for _, key := range keys {
			n, err := renewScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
			switch {
			case err != nil:
				r.logger.Warn("renew lock", slog.String("key", key), slog.Any("error", err))
			case n == 0:
				r.logger.Warn("lock lease lost", slog.String("key", key))
			}
		}
		cancel()
	}
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	wait := retryInitial
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if wait *= 2; wait > retryMax {
			wait = retryMax
		}
	}
}
