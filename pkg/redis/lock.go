package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockExpired is returned on release when the TTL ran out and the key is gone or re-taken.
	ErrLockExpired = errors.New("lock expired before release")
)

// compare-and-delete so an expired holder never frees a lock someone else now owns
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const (
	minPoll = 10 * time.Millisecond
	maxPoll = 250 * time.Millisecond
)

// Lock is one held advisory lock, identified by a random token.
type Lock struct {
	client *Client
	key    string
	token  string
}

type Locker struct {
	client    *Client
	keyPrefix string
}

func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "lock:"
	}
	return &Locker{client: client, keyPrefix: keyPrefix}
}

// Acquire makes a single SET NX attempt.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: l.client, key: l.keyPrefix + key, token: uuid.NewString()}

	ok, err := l.client.rdb.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	l.client.logger.WithContext(ctx).Debugf("Acquired lock %s", lock.key)
	return lock, nil
}

// TryAcquire polls Acquire, doubling the interval up to maxPoll, until wait has passed.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	poll := minPoll

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if !errors.Is(err, ErrLockNotAcquired) {
			return lock, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		poll = min(poll*2, maxPoll)
	}
}

func (lock *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		lock.client.logger.WithContext(ctx).Warnf("Lock %s expired while held", lock.key)
		return ErrLockExpired
	}
	lock.client.logger.WithContext(ctx).Debugf("Released lock %s", lock.key)
	return nil
}
