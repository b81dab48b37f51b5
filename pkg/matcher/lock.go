package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RunLock is a redis-backed single-writer guard. The deployment assumption is
// at most one matcher run per store pair; the lock turns a violated
// assumption into a refused run instead of a double-applied backlog.
type RunLock struct {
	Rds *redis.Client
	Key string
	TTL time.Duration
}

const DefaultLockKey = "traderev:matcher:lock"

func NewRunLock(rds *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{
		Rds: rds,
		Key: DefaultLockKey,
		TTL: ttl,
	}
}

// Acquire takes the lock for the given run id
func (l *RunLock) Acquire(ctx context.Context, runID string) (err error) {
	ok, err := l.Rds.SetNX(ctx, l.Key, runID, l.TTL).Result()
	if err != nil {
		return fmt.Errorf("run lock acquire failed: %w", err)
	}
	if !ok {
		holder, _ := l.Rds.Get(ctx, l.Key).Result()
		return fmt.Errorf("another matcher run holds the lock, run:%s", holder)
	}

	logger.Debugf("run lock acquired by run:%s", runID)

	return nil
}

// Release drops the lock if this run still holds it
func (l *RunLock) Release(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	holder, err := l.Rds.Get(ctx, l.Key).Result()
	if err != nil || holder != runID {
		return
	}
	if err := l.Rds.Del(ctx, l.Key).Err(); err != nil {
		logger.Errorf("run lock release failed with err:%s", err)
	}
}
