package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

// resolvedPolicy — план пользователя и его политика.
type resolvedPolicy struct {
	plan   model.Plan
	policy model.LifecyclePolicy
}

// policyResolver определяет политику владельца файла.
// Результат запоминается на время жизни резолвера (один прогон).
type policyResolver struct {
	plans   repository.PlanRepository
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	memo map[string]resolvedPolicy
}

func newPolicyResolver(plans repository.PlanRepository, timeout time.Duration, logger *slog.Logger) *policyResolver {
	return &policyResolver{
		plans:   plans,
		timeout: timeout,
		logger:  logger,
		memo:    make(map[string]resolvedPolicy),
	}
}

// resolve возвращает политику пользователя.
//
// Нет активной подписки или неизвестный план — политика freemium
// (ErrPolicyLookup в логе). Ошибка хранилища возвращается и не запоминается:
// применить freemium к платному плану из-за сбоя БД нельзя.
func (r *policyResolver) resolve(ctx context.Context, userID string) (resolvedPolicy, error) {
	r.mu.Lock()
	if p, ok := r.memo[userID]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	plan, err := r.plans.GetPlanForUser(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.logger.Warn("Активная подписка не найдена, применяется политика freemium",
			slog.String("user_id", userID),
			slog.String("error", ErrPolicyLookup.Error()),
		)
		plan = model.PlanFreemium
	case err != nil:
		return resolvedPolicy{}, fmt.Errorf("план пользователя %s: %w", userID, err)
	}

	policy, known := model.PolicyFor(plan)
	if !known {
		r.logger.Warn("Неизвестный тарифный план, применяется политика freemium",
			slog.String("user_id", userID),
			slog.String("plan", string(plan)),
			slog.String("error", ErrPolicyLookup.Error()),
		)
		plan = model.PlanFreemium
	}

	p := resolvedPolicy{plan: plan, policy: policy}
	r.mu.Lock()
	r.memo[userID] = p
	r.mu.Unlock()
	return p, nil
}
