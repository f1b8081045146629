// Package main is the entrypoint for the Eventpulse API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zeventbooks/eventpulse/internal/aggregate"
	"github.com/zeventbooks/eventpulse/internal/cache"
	"github.com/zeventbooks/eventpulse/internal/config"
	"github.com/zeventbooks/eventpulse/internal/export"
	"github.com/zeventbooks/eventpulse/internal/handler"
	"github.com/zeventbooks/eventpulse/internal/ingest"
	"github.com/zeventbooks/eventpulse/internal/metrics"
	"github.com/zeventbooks/eventpulse/internal/middleware"
	"github.com/zeventbooks/eventpulse/internal/ratelimit"
	"github.com/zeventbooks/eventpulse/internal/report"
	"github.com/zeventbooks/eventpulse/internal/repository"
	"github.com/zeventbooks/eventpulse/internal/server"
	"github.com/zeventbooks/eventpulse/internal/shortlink"
	"github.com/zeventbooks/eventpulse/internal/store"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics registry. Application metrics plus runtime collectors are
	// exposed on /metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	// Rate limiters share counters across instances through Redis.
	redisClient := cacheClient.Client()
	sessionLimiter := ratelimit.NewRedisLimiter(redisClient, "session", ratelimit.Config{
		Cap:    cfg.RateLimitSessionCap,
		Window: cfg.RateLimitSessionWindow,
	})
	adminLimiter := ratelimit.NewRedisLimiter(redisClient, middleware.ScopeAdmin, ratelimit.Config{
		Cap:    cfg.RateLimitAdminCap,
		Window: cfg.RateLimitAdminWindow,
	})
	redirectLimiter := ratelimit.NewRedisLimiter(redisClient, middleware.ScopeRedirect, ratelimit.Config{
		Cap:    cfg.RateLimitRedirectCap,
		Window: cfg.RateLimitRedirectWindow,
	})

	// Initialize services
	eventStore := store.NewPostgres(repo.Pool())
	ingestService := ingest.New(eventStore, sessionLimiter, logger, recorder)
	ingestService.SetMaxBatchSize(cfg.IngestMaxBatchSize)

	engine := aggregate.New(eventStore, logger, recorder)
	names := report.NewNameResolver(repo, cacheClient, logger)
	reportBuilder := report.NewBuilder(engine, names, logger, recorder)
	linkService := shortlink.NewService(repo, cacheClient, cfg.BaseURL, logger, recorder)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	ingestHandler := handler.NewIngestHandler(ingestService, logger)
	redirectHandler := handler.NewRedirectHandler(linkService, ingestService, logger, recorder)
	reportHandler := handler.NewReportHandler(reportBuilder, logger)
	shortlinkHandler := handler.NewShortlinkHandler(linkService, logger)

	// Setup router
	r := setupRouter(routerDeps{
		health:    healthHandler,
		ingest:    ingestHandler,
		redirect:  redirectHandler,
		report:    reportHandler,
		shortlink: shortlinkHandler,
		metrics:   handler.Metrics(registry),
		repo:      repo,
		cache:     cacheClient,
		admin:     adminLimiter,
		perIP:     redirectLimiter,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Report export runs alongside the server when a target is configured.
	if cfg.ExportEnabled() {
		exporter, err := export.NewExporter(reportBuilder, cfg.ExportTargetURL, cfg.ExportSecret, logger, recorder)
		if err != nil {
			logger.Error("failed to configure report export",
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		exporter.SetInterval(cfg.ExportInterval)

		exportCtx, cancelExport := context.WithCancel(ctx)
		go func() {
			if err := exporter.Run(exportCtx); err != nil && exportCtx.Err() == nil {
				logger.Error("report exporter stopped", slog.String("error", err.Error()))
			}
		}()
		srv.OnShutdown("report exporter", func(context.Context) error {
			cancelExport()
			return nil
		})
		logger.Info("report export enabled",
			"target", redactURL(cfg.ExportTargetURL),
			"interval", cfg.ExportInterval,
		)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter needs to wire routes.
type routerDeps struct {
	health    *handler.HealthHandler
	ingest    *handler.IngestHandler
	redirect  *handler.RedirectHandler
	report    *handler.ReportHandler
	shortlink *handler.ShortlinkHandler
	metrics   http.Handler
	repo      *repository.Repository
	cache     *cache.Cache
	admin     ratelimit.Limiter
	perIP     ratelimit.Limiter
	recorder  metrics.Recorder
	cfg       *config.Config
	logger    *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = deps.cfg.IsDevelopment()
	securityCfg.MaxRequestBodySize = deps.cfg.MaxRequestBodySize
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = deps.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", deps.metrics)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     deps.logger,
		Repository: deps.repo,
		Cache:      deps.cache,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:          deps.logger,
		Metrics:         deps.recorder,
		AdminLimiter:    deps.admin,
		AdminCap:        deps.cfg.RateLimitAdminCap,
		RedirectLimiter: deps.perIP,
		RedirectCap:     deps.cfg.RateLimitRedirectCap,
	}

	// Shortlink resolution with IP-based rate limiting (no auth required)
	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/r/{token}", deps.redirect.Redirect)

	r.Route("/v1", func(r chi.Router) {
		// Ingestion is open to display surfaces and public pages. Abuse
		// is contained by the per-session limiter inside the service,
		// not by API keys, since kiosks cannot hold secrets.
		r.Post("/ingest", deps.ingest.Ingest)

		// Administrative routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAdmin(rateLimitCfg))

			r.With(middleware.RequireRead()).Get("/reports", deps.report.Get)

			r.Route("/shortlinks", func(r chi.Router) {
				r.With(middleware.RequireWrite()).Post("/", deps.shortlink.Create)
				r.With(middleware.RequireRead()).Get("/{token}", deps.shortlink.Get)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
