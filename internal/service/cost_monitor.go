package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/cost"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/repository"
)

var costAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "le_cost_alerts_total",
	Help: "Количество оповещений о стоимости по уровню",
}, []string{"severity"})

// CostMonitor сравнивает стоимость хранения пользователя с лимитом плана.
type CostMonitor struct {
	analytics  *AnalyticsService
	plans      repository.PlanRepository
	alerts     repository.CostAlertRepository
	thresholds cost.Thresholds
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewCostMonitor создаёт монитор стоимости.
func NewCostMonitor(
	analytics *AnalyticsService,
	plans repository.PlanRepository,
	alerts repository.CostAlertRepository,
	thresholds cost.Thresholds,
	timeout time.Duration,
	logger *slog.Logger,
) *CostMonitor {
	return &CostMonitor{
		analytics:  analytics,
		plans:      plans,
		alerts:     alerts,
		thresholds: thresholds,
		timeout:    timeout,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "cost_monitor")),
	}
}

// CheckUserCosts вычисляет процент использования лимита и уровень по
// свежему снимку файлов, минуя кэш аналитики.
// Для warning и critical добавляется оповещение; ошибка записи оповещения
// логируется, результат проверки всё равно возвращается.
func (m *CostMonitor) CheckUserCosts(ctx context.Context, userID string) (*model.CostCheck, error) {
	resolver := newPolicyResolver(m.plans, m.timeout, m.logger)
	rp, err := resolver.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	a, err := m.analytics.ComputeUserStorageAnalytics(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit, _ := model.PlanCostLimit(rp.plan)
	pct, status := cost.Evaluate(a.Analytics, m.analytics.rates, limit, m.thresholds)
	check := &model.CostCheck{
		UserID:     userID,
		Plan:       rp.plan,
		Costs:      a.Costs,
		Limit:      limit,
		Percentage: pct,
		Status:     status,
	}

	if check.Status == model.CostStatusOK {
		return check, nil
	}

	costAlertsTotal.WithLabelValues(string(check.Status)).Inc()
	m.logger.Warn("Стоимость хранения приближается к лимиту плана",
		slog.String("user_id", userID),
		slog.String("plan", string(rp.plan)),
		slog.String("severity", string(check.Status)),
		slog.Float64("cost", a.Costs.Total),
		slog.Float64("limit", limit),
		slog.Float64("percentage", pct),
	)

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	err = m.alerts.Append(alertCtx, &model.CostAlert{
		UserID:     userID,
		Severity:   check.Status,
		Cost:       a.Costs.Total,
		Limit:      limit,
		Percentage: pct,
		CreatedAt:  m.now().UTC(),
	})
	if err != nil {
		m.logger.Error("Ошибка записи оповещения о стоимости",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return check, nil
}

// ListAlerts возвращает последние оповещения пользователя.
func (m *CostMonitor) ListAlerts(ctx context.Context, userID string, limit int) ([]*model.CostAlert, error) {
	if limit <= 0 || limit > 100 {
		return nil, fmt.Errorf("%w: limit должен быть в диапазоне 1..100", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	alerts, err := m.alerts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("оповещения пользователя %s: %w", userID, err)
	}
	return alerts, nil
}
