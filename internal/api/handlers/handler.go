// handler.go — основной обработчик API Lifecycle Engine.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/mediastore/lifecycle-engine/internal/api/errors"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/service"
)

// AnalyticsProvider — аналитика хранилища пользователя.
type AnalyticsProvider interface {
	GetUserStorageAnalytics(ctx context.Context, userID string) (*model.UserStorageAnalytics, error)
	GetStoredUsage(ctx context.Context, userID string) (*model.StorageUsage, error)
}

// CostChecker — проверка стоимости и история оповещений.
type CostChecker interface {
	CheckUserCosts(ctx context.Context, userID string) (*model.CostCheck, error)
	ListAlerts(ctx context.Context, userID string, limit int) ([]*model.CostAlert, error)
}

// SweepRunner — ручной запуск прогона жизненного цикла.
type SweepRunner interface {
	RunSweep(ctx context.Context) (*service.SweepResult, error)
}

// APIHandler — основной обработчик API Lifecycle Engine.
type APIHandler struct {
	health    *HealthHandler
	analytics AnalyticsProvider
	costs     CostChecker
	sweeps    SweepRunner
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	analytics AnalyticsProvider,
	costs CostChecker,
	sweeps SweepRunner,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		analytics: analytics,
		costs:     costs,
		sweeps:    sweeps,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// handleServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrSweepInProgress):
		apierrors.SweepInProgress(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.Warn("Запрос прерван по таймауту или отмене",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Превышено время ожидания хранилища")
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
