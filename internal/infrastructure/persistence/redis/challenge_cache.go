package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dororo-lms/lms-backend/internal/application/query"
)

// ChallengeCache stores challenge payloads per solved.ac handle.
// It implements query.ChallengeCache.
type ChallengeCache struct {
	cache *Cache
}

// NewChallengeCache creates a ChallengeCache.
func NewChallengeCache(cache *Cache) *ChallengeCache {
	return &ChallengeCache{cache: cache}
}

// Get returns the cached payload, or nil on a miss.
func (c *ChallengeCache) Get(ctx context.Context, handle string) (*query.ChallengeDTO, error) {
	var dto query.ChallengeDTO
	err := c.cache.Get(ctx, ChallengeKey(handle), &dto)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Set stores dto for ttl.
func (c *ChallengeCache) Set(ctx context.Context, handle string, dto *query.ChallengeDTO, ttl time.Duration) error {
	if dto == nil {
		return ErrCacheNilValue
	}
	return c.cache.Set(ctx, ChallengeKey(handle), dto, ttl)
}

var _ query.ChallengeCache = (*ChallengeCache)(nil)
