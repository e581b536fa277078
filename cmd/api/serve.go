package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/contacts-api/internal/api/http"
	"github.com/spec-kit/contacts-api/internal/api/http/handlers"
	"github.com/spec-kit/contacts-api/internal/auth"
	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/events"
	"github.com/spec-kit/contacts-api/internal/mailer"
	"github.com/spec-kit/contacts-api/internal/observability"
	"github.com/spec-kit/contacts-api/internal/persistence"
	"github.com/spec-kit/contacts-api/internal/ratelimit"
	"github.com/spec-kit/contacts-api/internal/repository"
	"github.com/spec-kit/contacts-api/internal/service"
	"github.com/spec-kit/contacts-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API together with the background email worker.
Without POSTGRES_DSN users are kept in memory; without REDIS_ADDR rate
limit counters are kept in memory.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	checks := map[string]handlers.Pinger{}

	var userRepo repository.UserRepository
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
		checks["postgres"] = pg
	} else {
		logger.Warn("users are stored in process memory")
		userRepo = repository.NewMemoryUserRepository()
	}

	var counters ratelimit.CounterStore = ratelimit.NewMemoryStore()
	if redis.Client != nil {
		counters = ratelimit.NewRedisStore(redis.Client)
		checks["redis"] = redis
	}

	queue := events.NewQueue(cfg.Mail.QueueSize)
	emailWorker := worker.NewEmailWorker(queue, newMailer(cfg.Mail, logger), logger)

	authService, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:  userRepo,
		Publisher: queue,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		RateLimit:      ratelimit.NewMiddleware(ratelimit.NewLimiter(counters), cfg.RateLimit, logger, metrics),
		Metrics:        metrics,
	})

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		emailWorker.Run(workerCtx)
	}()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-listenErr:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	// Closing the queue lets the worker drain what is already buffered.
	queue.Close()
	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownTimeout):
		logger.Warn("email worker did not drain in time", zap.Int("pending", queue.Len()))
		cancelWorker()
		<-drained
	}
	return nil
}

func newMailer(cfg config.MailConfig, logger *zap.Logger) mailer.Mailer {
	if cfg.Username == "" {
		logger.Warn("MAIL_USERNAME not set; confirmation emails are logged instead of sent")
		return mailer.NewLogMailer(logger)
	}
	return mailer.NewSMTPMailer(cfg, logger)
}
