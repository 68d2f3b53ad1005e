package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-intake-api/pkg/errors"
)

const processingLockKey = "course-intake:processing:lock"

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLockRepository serialises processing runs across replicas with a Redis
// lease. Without a Redis client it falls back to a process-local lease.
type RunLockRepository struct {
	client *redis.Client
	logger *zap.Logger
	key    string

	mu    sync.Mutex
	local string
}

// NewRunLockRepository constructs the lock repository.
func NewRunLockRepository(client *redis.Client, logger *zap.Logger) *RunLockRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunLockRepository{client: client, logger: logger, key: processingLockKey}
}

// Acquire takes the lease for ttl and returns its owner token. A held lease
// yields ErrRunInProgress.
func (r *RunLockRepository) Acquire(ctx context.Context, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.local != "" {
			return "", appErrors.ErrRunInProgress
		}
		r.local = token
		return token, nil
	}

	ok, err := r.client.SetNX(ctx, r.key, token, ttl).Result()
	if err != nil {
		return "", appErrors.Wrap(fmt.Errorf("redis setnx %s: %w", r.key, err), appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "acquire processing lock")
	}
	if !ok {
		return "", appErrors.ErrRunInProgress
	}
	return token, nil
}

// Release drops the lease if token still owns it.
func (r *RunLockRepository) Release(ctx context.Context, token string) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.local == token {
			r.local = ""
		}
		return nil
	}

	released, err := releaseLockScript.Run(ctx, r.client, []string{r.key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", r.key, err)
	}
	if released == 0 {
		r.logger.Warn("processing lock expired before release", zap.String("key", r.key))
	}
	return nil
}
