// sweep.go — ручной запуск прогона жизненного цикла.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/middleware"
)

// RunLifecycleSweep — POST /api/v1/lifecycle/sweep.
// Выполняется синхронно. Если прогон уже идёт, ответ 409.
// Ошибки отдельных файлов попадают в счётчики результата, ответ 200.
// Сбой выборки прерывает прогон, ответ 500.
func (h *APIHandler) RunLifecycleSweep(w http.ResponseWriter, r *http.Request) {
	initiator := "anonymous"
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		initiator = claims.Subject
	}
	h.logger.Info("Ручной запуск прогона жизненного цикла", slog.String("initiator", initiator))

	res, err := h.sweeps.RunSweep(r.Context())
	if err != nil {
		if res != nil {
			h.logger.Warn("Прогон прерван",
				slog.Int("processed", res.Processed),
				slog.Int("deleted", res.Deleted),
			)
		}
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
