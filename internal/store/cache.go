// internal/store/cache.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"coaching-workers/internal/common/logger"
	"coaching-workers/internal/models"
)

const diagnosisKeyPrefix = "diagnosis:"

// CachedDiagnosisRepository fronts another repository with a Redis read-through cache.
// Cache failures are logged and never fail a lookup.
type CachedDiagnosisRepository struct {
	inner  DiagnosisRepository
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedDiagnosisRepository(inner DiagnosisRepository, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedDiagnosisRepository {
	return &CachedDiagnosisRepository{
		inner:  inner,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "diagnosis-cache"}),
	}
}

func DiagnosisCacheKey(followupID string) string {
	return diagnosisKeyPrefix + followupID
}

func (c *CachedDiagnosisRepository) Get(ctx context.Context, followupID string) (*models.DiagnosisRecord, error) {
	key := DiagnosisCacheKey(followupID)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var rec models.DiagnosisRecord
		if jsonErr := json.Unmarshal([]byte(val), &rec); jsonErr == nil {
			return &rec, nil
		}
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	rec, err := c.inner.Get(ctx, followupID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return rec, nil
}

// Save writes through to the inner repository and drops the cached copy.
func (c *CachedDiagnosisRepository) Save(ctx context.Context, rec *models.DiagnosisRecord) error {
	if err := c.inner.Save(ctx, rec); err != nil {
		return err
	}
	if err := c.redis.Del(ctx, DiagnosisCacheKey(rec.FollowupID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{"followupId": rec.FollowupID, "error": err.Error()})
	}
	return nil
}
