package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/lock"
)

func TestWithLockSerializesHolders(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})

	go func() {
		err := locker.WithLock(ctx, lock.SessionKey("till-1", "cart"), 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
		require.NoError(t, err)
	}()

	<-firstDone

	go func() {
		err := locker.WithLock(ctx, lock.SessionKey("till-1", "cart"), 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}()

	close(releaseFirst)
	time.Sleep(20 * time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestTryLockRejectsSecondHolder(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client, Prefix: "pos:lock:"}
	ctx := context.Background()
	key := lock.SessionKey("till-1", "checkout")

	release, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists("pos:lock:checkout:till-1"))

	_, err = locker.TryLock(ctx, key, time.Minute)
	require.ErrorIs(t, err, lock.ErrNotAcquired)

	other, err := locker.TryLock(ctx, lock.SessionKey("till-2", "checkout"), time.Minute)
	require.NoError(t, err)
	other()

	release()
	require.False(t, mr.Exists("pos:lock:checkout:till-1"))
	again, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestTryLockExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	_, err = locker.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	release, err := locker.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	release()
}
