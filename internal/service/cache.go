// AnalyticsCache — LRU-кэш аналитики пользователей с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "le_analytics_cache_hits_total",
		Help: "Общее количество попаданий в кэш аналитики.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "le_analytics_cache_misses_total",
		Help: "Общее количество промахов кэша аналитики.",
	})
)

// AnalyticsCache — per-instance кэш ответов аналитики по userID.
// Нулевой размер выключает кэш: Get всегда промахивается.
type AnalyticsCache struct {
	cache *expirable.LRU[string, *model.UserStorageAnalytics]
}

// NewAnalyticsCache создаёт кэш с указанным максимальным размером и TTL.
func NewAnalyticsCache(maxSize int, ttl time.Duration) *AnalyticsCache {
	if maxSize <= 0 {
		return &AnalyticsCache{}
	}
	return &AnalyticsCache{
		cache: expirable.NewLRU[string, *model.UserStorageAnalytics](maxSize, nil, ttl),
	}
}

// Get возвращает аналитику пользователя из кэша.
func (c *AnalyticsCache) Get(userID string) (*model.UserStorageAnalytics, bool) {
	if c.cache != nil {
		if val, ok := c.cache.Get(userID); ok {
			cacheHitsTotal.Inc()
			return val, true
		}
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *AnalyticsCache) Set(userID string, a *model.UserStorageAnalytics) {
	if c.cache != nil {
		c.cache.Add(userID, a)
	}
}

// Invalidate удаляет запись пользователя (после прогона или проверки стоимости).
func (c *AnalyticsCache) Invalidate(userID string) {
	if c.cache != nil {
		c.cache.Remove(userID)
	}
}

// Len возвращает количество записей.
func (c *AnalyticsCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
