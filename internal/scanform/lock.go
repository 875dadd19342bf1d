package scanform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/scanform-backend/pkg/redis"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultLockWait  = 5 * time.Second
	lockPollInterval = 50 * time.Millisecond
	lockScope        = "order"
)

// ErrLockBusy is returned when another writer keeps an order locked past the wait budget.
var ErrLockBusy = errors.New("order lock busy")

// Unlock releases a held order lock.
type Unlock func(ctx context.Context) error

// Locker serializes read-modify-write cycles on one order's scan form list.
type Locker interface {
	Lock(ctx context.Context, orderID int64) (Unlock, error)
}

// RedisLocker leases per-order keys with SET NX and a random owner token.
type RedisLocker struct {
	store redis.LockStore
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisLocker constructs a Redis-backed per-order locker.
func NewRedisLocker(store redis.LockStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis lock store required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait}, nil
}

// Lock polls until the order key is acquired, the wait budget runs out or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, orderID int64) (Unlock, error) {
	key := l.store.LockKey(lockScope, strconv.FormatInt(orderID, 10))
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.store.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire order lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := l.store.ReleaseLock(ctx, key, token); err != nil {
					return fmt.Errorf("release order lock: %w", err)
				}
				return nil
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// LocalLocker is an in-process keyed mutex used when Redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker builds an empty keyed mutex.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[int64]*localLock{}}
}

// Lock blocks until the order is free or ctx ends.
func (l *LocalLocker) Lock(ctx context.Context, orderID int64) (Unlock, error) {
	l.mu.Lock()
	entry, ok := l.locks[orderID]
	if !ok {
		entry = &localLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderID, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { l.release(orderID, entry, true) })
		return nil
	}, nil
}

func (l *LocalLocker) release(orderID int64, entry *localLock, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, orderID)
	}
}
