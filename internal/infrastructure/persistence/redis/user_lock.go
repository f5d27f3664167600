package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dororo-lms/lms-backend/internal/domain/shared"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LOCK
// Serializes status writes per user across API instances. The lock is a
// SET NX PX key holding a random token; only the holder of the token can
// release it, and the TTL frees the key if the holder dies.
// ══════════════════════════════════════════════════════════════════════════════

var errLockHeld = errors.New("lock held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UserLocker implements command.UserLocker on Redis.
type UserLocker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	retrier *retry.Retrier
	logger  *logger.Logger
}

// NewUserLocker creates a UserLocker. ttl <= 0 uses TTLUserLock.
func NewUserLocker(cache *Cache, ttl time.Duration, log *logger.Logger) *UserLocker {
	if ttl <= 0 {
		ttl = TTLUserLock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &UserLocker{
		client:  cache.Client(),
		ttl:     ttl,
		retrier: retry.LockRetrier(),
		logger:  log.With(logger.Component("user_lock")),
	}
}

// Lock acquires the user's lock, retrying with backoff while another holder
// has it. Returns ErrUserLockBusy once the retry budget is spent.
func (l *UserLocker) Lock(ctx context.Context, userID string) (func(), error) {
	key := LockKey(userID)
	token := uuid.NewString()

	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			return retry.Retryable(errLockHeld)
		}
		return nil
	})
	switch {
	case errors.Is(err, errLockHeld):
		return nil, fmt.Errorf("lock %s: %w", userID, shared.ErrUserLockBusy)
	case err != nil:
		return nil, fmt.Errorf("lock %s: %w", userID, err)
	}

	return func() {
		// release must not depend on the caller's context being alive
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("user lock release failed", logger.UserID(userID), logger.Err(err))
		}
	}, nil
}
