package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// UsageRepository — сохранённые снимки использования (таблица storage_usage).
type UsageRepository interface {
	// Upsert сохраняет снимок пользователя, заменяя предыдущий.
	Upsert(ctx context.Context, u *model.StorageUsage) error
	// Get возвращает сохранённый снимок пользователя.
	Get(ctx context.Context, userID string) (*model.StorageUsage, error)
}

type usageRepo struct {
	db DBTX
}

// NewUsageRepository создаёт репозиторий снимков использования.
func NewUsageRepository(db DBTX) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Upsert(ctx context.Context, u *model.StorageUsage) error {
	query := `
		INSERT INTO storage_usage (user_id, hot_bytes, warm_bytes, archive_bytes,
			favorite_bytes, total_bytes, file_count, monthly_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			hot_bytes = EXCLUDED.hot_bytes,
			warm_bytes = EXCLUDED.warm_bytes,
			archive_bytes = EXCLUDED.archive_bytes,
			favorite_bytes = EXCLUDED.favorite_bytes,
			total_bytes = EXCLUDED.total_bytes,
			file_count = EXCLUDED.file_count,
			monthly_cost = EXCLUDED.monthly_cost,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		u.UserID, u.HotBytes, u.WarmBytes, u.ArchiveBytes,
		u.FavoriteBytes, u.TotalBytes, u.FileCount, u.MonthlyCost, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка использования: %w", err)
	}
	return nil
}

func (r *usageRepo) Get(ctx context.Context, userID string) (*model.StorageUsage, error) {
	query := `
		SELECT user_id, hot_bytes, warm_bytes, archive_bytes, favorite_bytes,
			total_bytes, file_count, monthly_cost, updated_at
		FROM storage_usage
		WHERE user_id = $1`

	u := &model.StorageUsage{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.HotBytes, &u.WarmBytes, &u.ArchiveBytes, &u.FavoriteBytes,
		&u.TotalBytes, &u.FileCount, &u.MonthlyCost, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения снимка использования: %w", err)
	}
	return u, nil
}
