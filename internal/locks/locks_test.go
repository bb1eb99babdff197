package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/ledger"
)

func TestSourceKey(t *testing.T) {
	assert.Equal(t, "posting:3:receipt:42", SourceKey(3, "receipt", 42))
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "posting:1:receipt:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := holders.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Empty(t, l.slots)
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	first, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer first()

	done := make(chan struct{})
	go func() {
		release, err := l.Acquire(ctx, "b")
		if err == nil {
			release()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
}

func TestLocalLocker_AcquireHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ledger.ErrCancelled)

	// releasing twice must not free a lock someone else holds
	release()
	release()

	again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.slots)
}
