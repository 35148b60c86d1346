package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// CostAlertRepository — оповещения о стоимости (таблица cost_alerts).
type CostAlertRepository interface {
	// Append добавляет оповещение. Пустой ID генерируется.
	Append(ctx context.Context, a *model.CostAlert) error
	// ListByUser возвращает последние оповещения пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.CostAlert, error)
}

type costAlertRepo struct {
	db DBTX
}

// NewCostAlertRepository создаёт репозиторий оповещений.
func NewCostAlertRepository(db DBTX) CostAlertRepository {
	return &costAlertRepo{db: db}
}

func (r *costAlertRepo) Append(ctx context.Context, a *model.CostAlert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO cost_alerts (id, user_id, severity, cost, cost_limit, percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		a.ID, a.UserID, string(a.Severity), a.Cost, a.Limit, a.Percentage, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи оповещения: %w", err)
	}
	return nil
}

func (r *costAlertRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*model.CostAlert, error) {
	query := `
		SELECT id, user_id, severity, cost, cost_limit, percentage, created_at
		FROM cost_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения оповещений: %w", err)
	}
	defer rows.Close()

	result := []*model.CostAlert{}
	for rows.Next() {
		a := &model.CostAlert{}
		var severity string
		if err := rows.Scan(&a.ID, &a.UserID, &severity, &a.Cost, &a.Limit, &a.Percentage, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования оповещения: %w", err)
		}
		a.Severity = model.CostStatus(severity)
		result = append(result, a)
	}
	return result, rows.Err()
}
