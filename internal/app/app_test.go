package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/receiving/internal/observability"
	"github.com/odyssey-erp/receiving/internal/receiving"
	"github.com/odyssey-erp/receiving/jobs"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "INR", cfg.ReceivingCurrency)
	require.Equal(t, language.MustParse("en-IN"), cfg.Locale())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsUnknownCurrency(t *testing.T) {
	t.Setenv("RECEIVING_CURRENCY", "XX1")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	t.Cleanup(RefreshTestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:     logger,
		Config:     &Config{AppEnv: "test"},
		JobHandler: jobs.NewHandler(nil, logger),
		Metrics:    observability.NewMetrics(),
	})

	for _, path := range []string{"/healthz", "/metrics", "/jobs/health"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterGuardsReceivingRoutes(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	t.Cleanup(RefreshTestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := receiving.NewHandler(logger, receiving.NewService(nil, nil, nil, nil, nil, nil), receiving.Display{})
	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           &Config{AppEnv: "test", AuthJWTSecret: "s3cret"},
		ReceivingHandler: handler,
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/receiving/grns/1", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/receiving/lines/recompute", strings.NewReader(`{"line":{"quantity":2,"unit_cost":3},"source":"quantity"}`))
	token, err := NewActorAuth("s3cret", "").IssueToken(5, time.Minute, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
