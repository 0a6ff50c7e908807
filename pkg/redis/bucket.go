package redis

import (
	"context"
	"fmt"
	"time"
)

// BucketLocker serializes writers of one (experiment, time bucket) group across processes.
type BucketLocker struct {
	locker *Locker
	ttl    time.Duration
	wait   time.Duration
}

func NewBucketLocker(locker *Locker, ttl, wait time.Duration) *BucketLocker {
	return &BucketLocker{
		locker: locker,
		ttl:    ttl,
		wait:   wait,
	}
}

// BucketKey names the lock of a bucket. A nil bucket is the "no time recorded" group.
func BucketKey(experimentFK int64, bucket *float64) string {
	if bucket == nil {
		return fmt.Sprintf("timepoint:%d:null", experimentFK)
	}
	return fmt.Sprintf("timepoint:%d:%.4f", experimentFK, *bucket)
}

// LockBucket blocks until the bucket lock is held or the wait runs out.
// The returned function releases it.
func (b *BucketLocker) LockBucket(ctx context.Context, experimentFK int64, bucket *float64) (func(context.Context) error, error) {
	key := BucketKey(experimentFK, bucket)
	lock, err := b.locker.TryAcquire(ctx, key, b.ttl, b.wait)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return lock.Release, nil
}
