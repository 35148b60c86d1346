package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

// PlanRepository — тарифный план пользователя (таблица user_subscriptions).
type PlanRepository interface {
	// GetPlanForUser возвращает план активной подписки.
	// ErrNotFound — активной подписки нет.
	GetPlanForUser(ctx context.Context, userID string) (model.Plan, error)
}

type planRepo struct {
	db DBTX
}

// NewPlanRepository создаёт репозиторий подписок.
func NewPlanRepository(db DBTX) PlanRepository {
	return &planRepo{db: db}
}

func (r *planRepo) GetPlanForUser(ctx context.Context, userID string) (model.Plan, error) {
	query := `
		SELECT plan
		FROM user_subscriptions
		WHERE user_id = $1 AND status = 'active'`

	var plan string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&plan); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения подписки: %w", err)
	}
	return model.Plan(plan), nil
}
