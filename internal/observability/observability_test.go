package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/contacts-api/internal/config"
)

func TestNewLogger(t *testing.T) {
	app := config.AppConfig{Name: "contacts-api", Env: "development", Version: "test"}

	logger, err := NewLogger(config.LoggerConfig{Level: "DEBUG"}, app)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "nonsense", Format: "console"}, app)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = NewLogger(config.LoggerConfig{Format: "xml"}, app)
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordAuthAttempt("login", OutcomeSuccess)
	m.RecordAuthAttempt("login", OutcomeSuccess)
	m.RecordAuthAttempt("login", OutcomeRejected)
	m.RecordRateLimited("login")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("login", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("login")))

	t.Run("nil metrics are no-ops", func(t *testing.T) {
		var nilMetrics *Metrics
		assert.NotPanics(t, func() {
			nilMetrics.RecordAuthAttempt("login", OutcomeSuccess)
			nilMetrics.RecordRateLimited("login")
			nilMetrics.RecordError("/", "GET", "X")
			nilMetrics.RecordRequest("/", "GET", 200, 0)
		})
		assert.Nil(t, nilMetrics.AuthAttempts())
		assert.Nil(t, nilMetrics.Registry())
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/confirm/:token", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/confirm/secret-token-value", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/confirm/:token", ctx["route"])
	assert.EqualValues(t, fiber.StatusAccepted, ctx["status"])
	for _, v := range ctx {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "secret-token-value")
		}
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("/confirm/:token", "GET", "202")))
}
