package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/v1/lifecycle/sweep", "/api/v1/lifecycle/sweep"},
		{"/api/v1/users/6f1c2a9e-5d1b-4c47-9a55-0c1f6b0b7e21/costs/check", "/api/v1/users/{id}/costs/check"},
		{"/api/v1/users/not-a-uuid/storage/analytics", "/api/v1/users/not-a-uuid/storage/analytics"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	h := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/lifecycle/sweep", "409")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/lifecycle/sweep", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("прирост le_http_requests_total = %v, ожидался 1", got)
	}
}

func TestRequestLogger_PassesStatus(t *testing.T) {
	h := RequestLogger(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusTeapot || rec.Body.String() != "ok" {
		t.Errorf("ответ изменён middleware: %d %q", rec.Code, rec.Body.String())
	}
}

func TestStatusOf_DefaultsTo200(t *testing.T) {
	ww := chimw.NewWrapResponseWriter(httptest.NewRecorder(), 1)
	_, _ = ww.Write([]byte("{}"))
	if got := statusOf(ww); got != http.StatusOK {
		t.Errorf("statusOf = %d, ожидался 200", got)
	}
}
