package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"caisse/internal/logging"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, normalize([]string{"c", "a", "", "b", "a"}))
}

func exerciseLocker(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "product:1", "seq:invoice:2026")
	require.NoError(t, err)

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(blocked, "product:1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Disjoint keys are not serialized.
	other, err := locker.Lock(ctx, "product:2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := locker.Lock(ctx, "product:1")
	require.NoError(t, err)
	again()
}

func TestMemoryLocker(t *testing.T) {
	exerciseLocker(t, NewMemory())
}

func TestMemoryLockerSerializesCounter(t *testing.T) {
	locker := NewMemory()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(first bool) {
			defer wg.Done()
			keys := []string{"a", "b"}
			if first {
				keys = []string{"b", "a"}
			}
			unlock, err := locker.Lock(context.Background(), keys...)
			if err != nil {
				return
			}
			defer unlock()
			value := counter
			time.Sleep(time.Millisecond)
			counter = value + 1
		}(i%2 == 0)
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseLocker(t, NewRedis(client, 5*time.Second, nil))
	require.False(t, mr.Exists(keyPrefix+"product:1"))
}

func TestRedisLockerKeysExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedis(client, time.Second, logging.Discard())

	crashed, err := locker.Lock(context.Background(), "product:9")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(context.Background(), "product:9")
	require.NoError(t, err)
	// The stale holder must not release the new holder's key.
	crashed()
	require.True(t, mr.Exists(keyPrefix+"product:9"))
	unlock()
	require.False(t, mr.Exists(keyPrefix+"product:9"))
}

func TestRedisLockerRenewsHeldKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ttl := 90 * time.Millisecond
	locker := NewRedis(client, ttl, logging.Discard())

	unlock, err := locker.Lock(context.Background(), "seq:invoice:2026")
	require.NoError(t, err)
	key := keyPrefix + "seq:invoice:2026"

	mr.FastForward(70 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(key) > 50*time.Millisecond
	}, time.Second, 5*time.Millisecond)
	// 110ms in total, past the original lease.
	mr.FastForward(40 * time.Millisecond)
	require.True(t, mr.Exists(key))

	unlock()
	require.False(t, mr.Exists(key))
}
