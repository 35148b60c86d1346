package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/cost"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

// AnalyticsService — аналитика хранилища пользователя для дашборда.
type AnalyticsService struct {
	files   repository.FileRepository
	usage   repository.UsageRepository
	rates   model.CostRates
	rules   cost.AdvisorRules
	cache   *AnalyticsCache
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyticsService создаёт сервис аналитики.
func NewAnalyticsService(
	files repository.FileRepository,
	usage repository.UsageRepository,
	rates model.CostRates,
	rules cost.AdvisorRules,
	cache *AnalyticsCache,
	timeout time.Duration,
	logger *slog.Logger,
) *AnalyticsService {
	if cache == nil {
		cache = NewAnalyticsCache(0, 0)
	}
	return &AnalyticsService{
		files:   files,
		usage:   usage,
		rates:   rates,
		rules:   rules,
		cache:   cache,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "analytics")),
	}
}

// GetUserStorageAnalytics возвращает снимок использования, стоимость и
// рекомендации. Только чтение: состояние не меняется.
// Возвращённое значение разделяется с кэшем и не должно изменяться.
func (s *AnalyticsService) GetUserStorageAnalytics(ctx context.Context, userID string) (*model.UserStorageAnalytics, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return cached, nil
	}
	return s.ComputeUserStorageAnalytics(ctx, userID)
}

// ComputeUserStorageAnalytics строит аналитику по текущему состоянию файлов
// без чтения кэша и обновляет запись кэша.
func (s *AnalyticsService) ComputeUserStorageAnalytics(ctx context.Context, userID string) (*model.UserStorageAnalytics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	files, err := s.files.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("файлы пользователя %s: %w", userID, err)
	}

	snapshot := cost.Aggregate(files)
	result := &model.UserStorageAnalytics{
		UserID:      userID,
		Analytics:   snapshot,
		Costs:       cost.Calculate(snapshot, s.rates),
		Suggestions: cost.Suggest(snapshot, s.rates, s.rules),
		TotalFiles:  snapshot.Total.Count,
	}

	s.cache.Set(userID, result)
	return result, nil
}

// GetStoredUsage возвращает снимок, сохранённый последним прогоном.
func (s *AnalyticsService) GetStoredUsage(ctx context.Context, userID string) (*model.StorageUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.usage.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("снимок использования %s: %w", userID, err)
	}
	return u, nil
}

// RefreshUsage пересчитывает и сохраняет снимок использования пользователя,
// сбрасывая кэш аналитики.
func (s *AnalyticsService) RefreshUsage(ctx context.Context, userID string, now time.Time) (*model.StorageUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	files, err := s.files.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("файлы пользователя %s: %w", userID, err)
	}

	snapshot := cost.Aggregate(files)
	u := &model.StorageUsage{
		UserID:        userID,
		HotBytes:      snapshot.Hot.SizeBytes,
		WarmBytes:     snapshot.Warm.SizeBytes,
		ArchiveBytes:  snapshot.Archive.SizeBytes,
		FavoriteBytes: snapshot.Favorites.SizeBytes,
		TotalBytes:    snapshot.Total.SizeBytes,
		FileCount:     snapshot.Total.Count,
		MonthlyCost:   cost.Calculate(snapshot, s.rates).Total,
		UpdatedAt:     now,
	}
	if err := s.usage.Upsert(ctx, u); err != nil {
		return nil, fmt.Errorf("сохранение снимка %s: %w", userID, err)
	}

	s.cache.Invalidate(userID)
	return u, nil
}
