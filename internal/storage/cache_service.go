package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campus-sync/internal/config"
	"github.com/redis/go-redis/v9"
)

// CacheNamespace identifies one class of cached read data
type CacheNamespace string

const (
	// CacheAttendance caches the latest attendance snapshot per account
	CacheAttendance CacheNamespace = "attendance"
	// CacheTimetable caches the timetable snapshot per account
	CacheTimetable CacheNamespace = "timetable"
	// CacheMarks caches the marks snapshot per account
	CacheMarks CacheNamespace = "marks"
	// CacheCourses caches the courses snapshot per account
	CacheCourses CacheNamespace = "courses"
	// CacheProfile caches the student profile per user
	CacheProfile CacheNamespace = "student-profile"
	// CacheNotificationCount caches the unread notification count per user
	CacheNotificationCount CacheNamespace = "notifications:count"
)

// CacheService provides namespaced read caching for synced data. TTLs act
// only as a safety net; the sync coordinator invalidates explicitly after
// every successful sync.
type CacheService struct {
	redis *RedisCache
	ttls  map[CacheNamespace]time.Duration
}

// NewCacheService creates a cache service with per-namespace TTLs
func NewCacheService(redis *RedisCache, cfg *config.CacheConfig) *CacheService {
	return &CacheService{
		redis: redis,
		ttls: map[CacheNamespace]time.Duration{
			CacheAttendance:        cfg.AttendanceTTL,
			CacheTimetable:         cfg.TimetableTTL,
			CacheMarks:             cfg.MarksTTL,
			CacheCourses:           cfg.CoursesTTL,
			CacheProfile:           cfg.ProfileTTL,
			CacheNotificationCount: cfg.NotificationCountTTL,
		},
	}
}

// Key builds a cache key for a namespace and id. Format: <namespace>:<id>
func (c *CacheService) Key(ns CacheNamespace, id string) string {
	return fmt.Sprintf("%s:%s", ns, id)
}

// Get retrieves a cached value and deserializes it into dest. Returns false
// on cache miss. A corrupted entry is deleted and treated as a miss.
func (c *CacheService) Get(ctx context.Context, ns CacheNamespace, id string, dest interface{}) (bool, error) {
	key := c.Key(ns, id)

	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		_ = c.redis.Del(ctx, key)
		return false, nil
	}

	return true, nil
}

// Set stores a value with the namespace's default TTL
func (c *CacheService) Set(ctx context.Context, ns CacheNamespace, id string, value interface{}) error {
	return c.SetWithTTL(ctx, ns, id, value, c.ttls[ns])
}

// SetWithTTL stores a value with a custom TTL
func (c *CacheService) SetWithTTL(ctx context.Context, ns CacheNamespace, id string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redis.Set(ctx, c.Key(ns, id), data, ttl)
}

// Del removes a single cached value
func (c *CacheService) Del(ctx context.Context, ns CacheNamespace, id string) error {
	return c.redis.Del(ctx, c.Key(ns, id))
}

// InvalidateAccount removes every derived read cache for a linked account.
// Called after a successful sync and on unlink.
func (c *CacheService) InvalidateAccount(ctx context.Context, accountID string) error {
	return c.redis.Del(ctx,
		c.Key(CacheAttendance, accountID),
		c.Key(CacheTimetable, accountID),
		c.Key(CacheMarks, accountID),
		c.Key(CacheCourses, accountID),
	)
}

// InvalidateProfile removes the cached student profile for a user
func (c *CacheService) InvalidateProfile(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, c.Key(CacheProfile, userID))
}

// InvalidateNotificationCount removes the cached unread count for a user
func (c *CacheService) InvalidateNotificationCount(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, c.Key(CacheNotificationCount, userID))
}
