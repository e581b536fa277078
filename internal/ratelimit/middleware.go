package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-api/internal/auth"
	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/observability"
	apperrors "github.com/spec-kit/contacts-api/pkg/util/errorutil"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// Middleware guards fiber routes with a Limiter.
type Middleware struct {
	limiter *Limiter
	cfg     config.RateLimitConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewMiddleware builds the route guard factory.
func NewMiddleware(limiter *Limiter, cfg config.RateLimitConfig, logger *zap.Logger, metrics *observability.Metrics) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{limiter: limiter, cfg: cfg, logger: logger, metrics: metrics}
}

// Default guards route with the configured call budget.
func (m *Middleware) Default(route string) fiber.Handler {
	return m.Limit(route, m.cfg.Calls, m.cfg.Window())
}

// Limit guards route with limit calls per window per caller. Callers are the
// authenticated user when one is loaded, the client IP otherwise. When the
// counter store fails the request is let through.
func (m *Middleware) Limit(route string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := m.key(route, c)

		decision, err := m.limiter.Allow(c.UserContext(), key, limit, window)
		if err != nil {
			m.logger.Warn("rate limiter unavailable; allowing request",
				zap.String("route", route),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set(HeaderLimit, strconv.Itoa(decision.Limit))
		c.Set(HeaderRemaining, strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			m.metrics.RecordRateLimited(route)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			return apperrors.ErrRateLimited
		}
		return c.Next()
	}
}

func (m *Middleware) key(route string, c *fiber.Ctx) string {
	caller := "ip:" + c.IP()
	if user, ok := auth.UserFromContext(c); ok {
		caller = "user:" + user.ID
	}
	prefix := m.cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}
	return prefix + ":" + route + ":" + caller
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
