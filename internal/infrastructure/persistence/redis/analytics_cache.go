package redis

import (
	"context"
	"errors"
	"time"

	"github.com/edulearn/progress-service/internal/domain/analytics"
	"github.com/edulearn/progress-service/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS SNAPSHOT CACHE
// Implements analytics.SnapshotCache on top of the generic Cache. Keys
// are (kind, subject id); the TTL backstops invalidations the mutation
// path might lose between commit and the cache call.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsCache implements analytics.SnapshotCache for Redis.
type AnalyticsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewAnalyticsCache creates a new AnalyticsCache.
// A zero ttl falls back to TTLAnalyticsSnapshot.
func NewAnalyticsCache(cache *Cache, ttl time.Duration) *AnalyticsCache {
	if ttl <= 0 {
		ttl = TTLAnalyticsSnapshot
	}
	return &AnalyticsCache{
		cache: cache,
		ttl:   ttl,
	}
}

// GetUser returns the cached user snapshot or analytics.ErrSnapshotMiss.
func (c *AnalyticsCache) GetUser(ctx context.Context, userID progress.UserID) (*analytics.UserSnapshot, error) {
	var snap analytics.UserSnapshot
	err := c.cache.Get(ctx, UserAnalyticsKey(int64(userID)), &snap)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, analytics.ErrSnapshotMiss
		}
		return nil, err
	}
	return &snap, nil
}

// SetUser stores a user snapshot.
func (c *AnalyticsCache) SetUser(ctx context.Context, snap *analytics.UserSnapshot) error {
	return c.cache.Set(ctx, UserAnalyticsKey(snap.UserID), snap, c.ttl)
}

// GetCourse returns the cached course snapshot or analytics.ErrSnapshotMiss.
func (c *AnalyticsCache) GetCourse(ctx context.Context, courseID progress.CourseID) (*analytics.CourseSnapshot, error) {
	var snap analytics.CourseSnapshot
	err := c.cache.Get(ctx, CourseAnalyticsKey(int64(courseID)), &snap)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, analytics.ErrSnapshotMiss
		}
		return nil, err
	}
	return &snap, nil
}

// SetCourse stores a course snapshot.
func (c *AnalyticsCache) SetCourse(ctx context.Context, snap *analytics.CourseSnapshot) error {
	return c.cache.Set(ctx, CourseAnalyticsKey(snap.CourseID), snap, c.ttl)
}

// Invalidate removes the entry for a subject unconditionally.
func (c *AnalyticsCache) Invalidate(ctx context.Context, kind analytics.SnapshotKind, subjectID int64) error {
	var key string
	switch kind {
	case analytics.KindUser:
		key = UserAnalyticsKey(subjectID)
	case analytics.KindCourse:
		key = CourseAnalyticsKey(subjectID)
	default:
		return ErrCacheKeyEmpty
	}
	return c.cache.Delete(ctx, key)
}
