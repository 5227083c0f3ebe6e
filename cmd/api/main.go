// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfphealth/nfp-backend/internal/admin"
	"github.com/nfphealth/nfp-backend/internal/auth"
	"github.com/nfphealth/nfp-backend/internal/campaign"
	"github.com/nfphealth/nfp-backend/internal/config"
	"github.com/nfphealth/nfp-backend/internal/core"
	"github.com/nfphealth/nfp-backend/internal/enquiry"
	"github.com/nfphealth/nfp-backend/internal/health"
	"github.com/nfphealth/nfp-backend/internal/mailer"
	"github.com/nfphealth/nfp-backend/internal/middleware"
	"github.com/nfphealth/nfp-backend/internal/rating"
	"github.com/nfphealth/nfp-backend/internal/server"
	"github.com/nfphealth/nfp-backend/internal/user"
)

const (
	drainDelay    = 5 * time.Second
	purgeInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	_ = godotenv.Load() //nolint:errcheck // .env is optional

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Log, cfg.IsDevelopment())
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB.DB, "nfp"),
	)
	metrics, err := middleware.NewMetrics(registry)
	if err != nil {
		return err
	}

	mail := mailer.Select(cfg.Mail, logger)
	if mail == nil {
		logger.Warn("no mail transport configured, confirmation and bulk email disabled")
	}

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, cfg.Admin.EmailDomain,
		user.WithTx(db.DB),
		user.WithLogger(logger),
	)
	userHandler := user.NewHandler(userSvc)

	authOpts := []auth.Option{auth.WithLogger(logger)}
	if mail != nil {
		authOpts = append(authOpts,
			auth.WithVerificationMail(mail, cfg.Mail.VerifyURL, cfg.Mail.Signature))
	}
	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, redis.Client, authOpts...)
	authHandler := auth.NewHandler(authSvc)

	enquiryOpts := []enquiry.ServiceOption{enquiry.WithObserver(metrics)}
	if mail != nil {
		enquiryOpts = append(enquiryOpts, enquiry.WithMailer(mail, cfg.Mail.Signature))
	}
	enquirySvc := enquiry.NewService(
		enquiry.NewRepository(db.DB),
		enquiry.RulesFromConfig(cfg.Submission),
		logger,
		enquiryOpts...,
	)
	enquiryHandler := enquiry.NewHandler(enquirySvc)

	ratingSvc := rating.NewService(rating.NewRepository(db.DB), cfg.Cache.RatingsTTL)
	ratingHandler := rating.NewHandler(ratingSvc)

	campaignSvc := campaign.NewService(mail, campaign.NewRepository(db.DB),
		campaign.WithObserver(metrics),
		campaign.WithLogger(logger),
	)
	campaignHandler := campaign.NewHandler(campaignSvc)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Metrics:    admin.NewMetricsService(userSvc, enquirySvc, ratingSvc, cfg.Cache.MetricsTTL),
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	for _, mw := range globalMiddleware(cfg, logger, metrics,
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit:    baseLimit(cfg.RateLimit),
			FailOpen: true,
		}).Handler,
	) {
		router.Use(mw)
	}

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	optionalAuth := middleware.OptionalAuth(authSvc)
	adminOnly := middleware.RequireAdmin
	roleLimits := middleware.RoleRateLimiter(redis.Client,
		middleware.DefaultRoleLimits(baseLimit(cfg.RateLimit)))
	bulkLimit := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerHour(
			cfg.RateLimit.BulkEmailPerHour,
			cfg.RateLimit.BulkEmailPerHour,
		),
		KeyFunc: middleware.KeyByUserAndEndpoint,
	}).Handler

	enquiryHandler.RegisterRoutes(router, authenticator, adminOnly)
	ratingHandler.RegisterRoutes(router, authenticator, optionalAuth)
	campaignHandler.RegisterRoutes(router, authenticator, adminOnly, bulkLimit)
	adminHandler.RegisterRoutes(router, authenticator, adminOnly)

	router.Route("/v1", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(roleLimits)

		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterStatsRoutes(r, authenticator, adminOnly)
		campaignHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
	})

	go purgeSessions(ctx, authSvc, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func purgeSessions(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

// globalMiddleware runs outermost first. CORS sits ahead of the limiter so
// throttled responses still carry the allow-origin header.
func globalMiddleware(
	cfg *config.Config,
	logger *slog.Logger,
	metrics *middleware.Metrics,
	limiter func(http.Handler) http.Handler,
) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logger(logger),
		metrics.Handler,
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORS),
		limiter,
	}
}

func baseLimit(cfg config.RateLimitConfig) redis_rate.Limit {
	limit := middleware.PerMinute(cfg.Requests, cfg.Burst)
	if cfg.Window > 0 {
		limit.Period = cfg.Window
	}
	return limit
}

func newLogger(w io.Writer, cfg config.LogConfig, addSource bool) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
