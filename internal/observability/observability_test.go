package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DevDonal19/imparablesmujeres/internal/config"
	"github.com/DevDonal19/imparablesmujeres/internal/observability"
)

func TestNewLogger_Levels(t *testing.T) {
	logger, err := observability.NewLogger(config.LoggerConfig{Level: "DEBUG"})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = observability.NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	require.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = observability.NewLogger(config.LoggerConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)

	_, err = observability.NewLogger(config.LoggerConfig{Format: "xml"})
	require.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics
	require.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordLogin("success")
		m.RecordAuthFailure("token_expired")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	m.RecordLogin("rejected")
	m.RecordLogin("rejected")
	m.RecordAuthFailure("token_expired")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	require.Contains(t, body, `imparables_logins_total{outcome="rejected"} 2`)
	require.Contains(t, body, `imparables_auth_failures_total{kind="token_expired"} 1`)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := observability.NewMetricsWithRegistry(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(observability.RequestLogger(zap.New(core), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusTeapot) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, http.StatusTeapot, entries[0].ContextMap()["status"])
	require.Equal(t, "/ping", entries[0].ContextMap()["path"])
}
