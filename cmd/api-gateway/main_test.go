package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-intake-api/internal/handler"
	"github.com/noah-isme/course-intake-api/internal/models"
	"github.com/noah-isme/course-intake-api/internal/service"
	"github.com/noah-isme/course-intake-api/pkg/config"
	"github.com/noah-isme/course-intake-api/pkg/storage"
)

func testRouter(t *testing.T) (http.Handler, *service.AuthService) {
	t.Helper()
	cfg := &config.Config{Env: "test", APIPrefix: "/api/v1"}
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret"})
	metrics := service.NewMetricsService()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exports := service.NewExportService(nil, store, storage.NewSignedURLSigner("secret", time.Hour), service.ExportConfig{}, zap.NewNop(), nil, nil)

	router := newRouter(cfg, zap.NewNop(), routerDeps{
		auth:       auth,
		metrics:    metrics,
		intentions: handler.NewIntentionHandler(nil),
		processing: handler.NewProcessingHandler(nil, nil),
		timetable:  handler.NewTimetableHandler(nil, exports),
		observe:    handler.NewMetricsHandler(metrics, nil),
	})
	return router, auth
}

func bearer(t *testing.T, auth *service.AuthService, role models.UserRole, studentID string) string {
	t.Helper()
	token, _, err := auth.IssueToken("u-1", role, studentID)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterPublicEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/forged", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterRequiresToken(t *testing.T) {
	router, _ := testRouter(t)

	for _, route := range [][2]string{
		{http.MethodGet, "/api/v1/intentions"},
		{http.MethodPost, "/api/v1/intentions/process"},
		{http.MethodGet, "/api/v1/processing-runs"},
		{http.MethodGet, "/api/v1/timetable?term=2024FA"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(route[0], route[1], nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, route[1])
	}
}

func TestRouterStudentsCannotProcess(t *testing.T) {
	router, auth := testRouter(t)
	token := bearer(t, auth, models.RoleStudent, "S1")

	for _, route := range [][2]string{
		{http.MethodPost, "/api/v1/intentions/process"},
		{http.MethodGet, "/api/v1/processing-runs/latest/report"},
		{http.MethodPost, "/api/v1/timetable/export"},
		{http.MethodGet, "/api/v1/intentions?studentId=S2"},
	} {
		req := httptest.NewRequest(route[0], route[1], nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusForbidden, w.Code, route[1])
	}
}

func TestRouterMetricsSummaryForStaff(t *testing.T) {
	router, auth := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/summary", nil)
	req.Header.Set("Authorization", bearer(t, auth, models.RoleRegistrar, ""))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "requests_total")
}
