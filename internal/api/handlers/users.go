// users.go — обработчики аналитики и стоимости хранилища пользователя.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/mediastore/lifecycle-engine/internal/api/errors"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/middleware"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
)

const (
	defaultAlertsLimit = 20
	maxAlertsLimit     = 100
)

// storageUsageResponse — сохранённый снимок использования хранилища.
type storageUsageResponse struct {
	UserID        string    `json:"userId"`
	HotBytes      int64     `json:"hotBytes"`
	WarmBytes     int64     `json:"warmBytes"`
	ArchiveBytes  int64     `json:"archiveBytes"`
	FavoriteBytes int64     `json:"favoriteBytes"`
	TotalBytes    int64     `json:"totalBytes"`
	FileCount     int       `json:"fileCount"`
	MonthlyCost   float64   `json:"monthlyCost"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type costAlertsResponse struct {
	Items []*model.CostAlert `json:"items"`
	Total int                `json:"total"`
}

// GetUserStorageAnalytics — GET /api/v1/users/{user_id}/storage/analytics.
func (h *APIHandler) GetUserStorageAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.analytics.GetUserStorageAnalytics(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetStorageUsage — GET /api/v1/users/{user_id}/storage/usage.
// Снимок, сохранённый последним прогоном; 404, если прогонов ещё не было.
func (h *APIHandler) GetStorageUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	u, err := h.analytics.GetStoredUsage(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, storageUsageResponse{
		UserID:        u.UserID,
		HotBytes:      u.HotBytes,
		WarmBytes:     u.WarmBytes,
		ArchiveBytes:  u.ArchiveBytes,
		FavoriteBytes: u.FavoriteBytes,
		TotalBytes:    u.TotalBytes,
		FileCount:     u.FileCount,
		MonthlyCost:   u.MonthlyCost,
		UpdatedAt:     u.UpdatedAt,
	})
}

// CheckUserCosts — POST /api/v1/users/{user_id}/costs/check.
func (h *APIHandler) CheckUserCosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	res, err := h.costs.CheckUserCosts(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListCostAlerts — GET /api/v1/users/{user_id}/costs/alerts?limit=N.
func (h *APIHandler) ListCostAlerts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		apierrors.ValidationError(w, "Неверный параметр limit: "+err.Error())
		return
	}
	l := defaultAlertsLimit
	if limit != nil {
		l = *limit
	}
	if l < 1 || l > maxAlertsLimit {
		apierrors.ValidationError(w, "limit должен быть в диапазоне 1-100")
		return
	}

	alerts, err := h.costs.ListAlerts(r.Context(), userID, l)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []*model.CostAlert{}
	}
	writeJSON(w, http.StatusOK, costAlertsResponse{Items: alerts, Total: len(alerts)})
}

// userIDParam извлекает user_id из пути и проверяет доступ субъекта к данным.
// При ошибке ответ уже записан.
func (h *APIHandler) userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var userID openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "user_id", chi.URLParam(r, "user_id"), &userID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Неверный формат user_id: ожидается UUID")
		return "", false
	}

	id := userID.String()
	if !middleware.CanAccessUser(r.Context(), id) {
		apierrors.Forbidden(w, "Нет доступа к данным другого пользователя")
		return "", false
	}
	return id, true
}
