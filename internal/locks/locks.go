// Package locks serializes work on a single posting source across requests.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// Locker grants exclusive access to a key until release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// SourceKey is the lock key shared by post and reverse of one source.
func SourceKey(companyID uint, sourceType string, sourceID uint) string {
	return fmt.Sprintf("posting:%d:%s:%d", companyID, sourceType, sourceID)
}

// RedisLocker uses redislock so that several API instances share one lock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker over an existing redis client. Acquire
// retries for up to wait before giving up.
func NewRedisLocker(rdb redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, wait: wait}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	backoff := 50 * time.Millisecond
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(backoff), int(l.wait/backoff)),
	}

	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ledger.Errorf(ledger.CodeConcurrentModification, "source %s is locked by another request", key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// detached so a cancelled request still frees the key
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}

// LocalLocker is an in-process keyed lock used when Redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ledger.Errorf(ledger.CodeCancelled, "waiting for lock %s: %v", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
