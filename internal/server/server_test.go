package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/handlers"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/api/middleware"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/domain/model"
	"github.com/bigkaa/mediastore/lifecycle-engine/internal/service"
)

const (
	testUserID = "6f1c2a9e-5d1b-4c47-9a55-0c1f6b0b7e21"
	testKID    = "server-test"
)

type stubServices struct{}

func (stubServices) GetUserStorageAnalytics(_ context.Context, userID string) (*model.UserStorageAnalytics, error) {
	return &model.UserStorageAnalytics{UserID: userID, Suggestions: []model.Suggestion{}}, nil
}

func (stubServices) GetStoredUsage(_ context.Context, userID string) (*model.StorageUsage, error) {
	return &model.StorageUsage{UserID: userID}, nil
}

func (stubServices) CheckUserCosts(_ context.Context, userID string) (*model.CostCheck, error) {
	return &model.CostCheck{UserID: userID, Status: model.CostStatusOK}, nil
}

func (stubServices) ListAlerts(context.Context, string, int) ([]*model.CostAlert, error) {
	return nil, nil
}

func (stubServices) RunSweep(context.Context) (*service.SweepResult, error) {
	return &service.SweepResult{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler() *handlers.APIHandler {
	s := stubServices{}
	return handlers.NewAPIHandler(handlers.NewHealthHandler(), s, s, s, testLogger())
}

func newAuth(t *testing.T) (*middleware.JWTAuth, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jwks, _ := json.Marshal(map[string]any{"keys": []map[string]any{{
		"kty": "RSA", "kid": testKID, "use": "sig", "alg": "RS256",
		"n": base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}})
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		t.Fatal(err)
	}
	return middleware.NewJWTAuthWithKeyfunc(kf, "", "mediastore-admins", testLogger()), key
}

func token(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = testKID
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func request(router http.Handler, method, path, bearer string) int {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouter_WithAuth(t *testing.T) {
	auth, key := newAuth(t)
	router := NewRouter(newHandler(), auth)

	owner := token(t, key, jwt.MapClaims{"sub": testUserID})
	admin := token(t, key, jwt.MapClaims{"sub": "admin", "realm_access": map[string]any{"roles": []string{"mediastore-admins"}}})
	scheduler := token(t, key, jwt.MapClaims{"sub": "sa", "client_id": "scheduler", "scope": "lifecycle:write"})
	reader := token(t, key, jwt.MapClaims{"sub": "sa", "client_id": "billing", "scope": "lifecycle:read"})

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		want   int
	}{
		{"liveness без токена", http.MethodGet, "/health/live", "", http.StatusOK},
		{"metrics без токена", http.MethodGet, "/metrics", "", http.StatusOK},
		{"аналитика без токена", http.MethodGet, "/api/v1/users/" + testUserID + "/storage/analytics", "", http.StatusUnauthorized},
		{"аналитика владельца", http.MethodGet, "/api/v1/users/" + testUserID + "/storage/analytics", owner, http.StatusOK},
		{"проверка стоимости сервисом биллинга", http.MethodPost, "/api/v1/users/" + testUserID + "/costs/check", reader, http.StatusOK},
		{"прогон пользователем", http.MethodPost, "/api/v1/lifecycle/sweep", owner, http.StatusForbidden},
		{"прогон администратором", http.MethodPost, "/api/v1/lifecycle/sweep", admin, http.StatusOK},
		{"прогон планировщиком", http.MethodPost, "/api/v1/lifecycle/sweep", scheduler, http.StatusOK},
		{"прогон со scope read", http.MethodPost, "/api/v1/lifecycle/sweep", reader, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := request(router, tt.method, tt.path, tt.bearer); got != tt.want {
				t.Errorf("ожидался %d, получен %d", tt.want, got)
			}
		})
	}
}

func TestRouter_WithoutAuth(t *testing.T) {
	router := NewRouter(newHandler(), nil)

	if got := request(router, http.MethodPost, "/api/v1/lifecycle/sweep", ""); got != http.StatusOK {
		t.Errorf("прогон без аутентификации: ожидался 200, получен %d", got)
	}
	if got := request(router, http.MethodGet, "/api/v1/users/"+testUserID+"/costs/alerts", ""); got != http.StatusOK {
		t.Errorf("оповещения без аутентификации: ожидался 200, получен %d", got)
	}
	if got := request(router, http.MethodGet, "/api/v1/unknown", ""); got != http.StatusNotFound {
		t.Errorf("неизвестный путь: ожидался 404, получен %d", got)
	}
}
