package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache accelerates reads of submitted attempt results. The persisted
// attempt stays authoritative; every failure here degrades to a direct read.
// Submitted results are immutable, so entries simply expire.
type ResultCache struct {
	helper *CacheHelper
	ttl    time.Duration
	logger *slog.Logger
}

func NewResultCache(client *redis.Client, logger *slog.Logger) *ResultCache {
	return &ResultCache{
		helper: NewCacheHelper(client, ResultCacheConfig.Prefix),
		ttl:    ResultCacheConfig.TTL,
		logger: logger,
	}
}

// Get reports a hit and fills dest. Backend errors are logged and surface as
// a miss.
func (rc *ResultCache) Get(ctx context.Context, attemptID string, dest interface{}) bool {
	err := rc.helper.Get(ctx, attemptID, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		rc.logger.Warn("result cache read failed", "attempt_id", attemptID, "error", err)
	}
	return false
}

// Put stores a submitted result best-effort.
func (rc *ResultCache) Put(ctx context.Context, attemptID string, value interface{}) {
	if err := rc.helper.Set(ctx, attemptID, value, rc.ttl); err != nil {
		rc.logger.Warn("result cache write failed", "attempt_id", attemptID, "error", err)
	}
}

// Drop removes an entry best-effort. Used on attempt deletion.
func (rc *ResultCache) Drop(ctx context.Context, attemptID string) {
	if err := rc.helper.Delete(ctx, attemptID); err != nil {
		rc.logger.Warn("result cache delete failed", "attempt_id", attemptID, "error", err)
	}
}
