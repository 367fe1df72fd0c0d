package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mealwise/mealwise/internal/api"
	"github.com/mealwise/mealwise/internal/audit"
	"github.com/mealwise/mealwise/internal/auth"
	"github.com/mealwise/mealwise/internal/config"
	"github.com/mealwise/mealwise/internal/database"
	"github.com/mealwise/mealwise/internal/gate"
	"github.com/mealwise/mealwise/internal/guardrail"
	"github.com/mealwise/mealwise/internal/imagegen"
	"github.com/mealwise/mealwise/internal/kv"
	mw "github.com/mealwise/mealwise/internal/middleware"
	inats "github.com/mealwise/mealwise/internal/nats"
	iredis "github.com/mealwise/mealwise/internal/redis"
	"github.com/mealwise/mealwise/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.HealthCheck{
		"redis":    nil,
		"database": nil,
		"nats":     nil,
	}
	var required []string

	// Key-value backend for guardrails and the API throttle
	var accessor kv.Accessor
	switch cfg.Guardrail.Backend {
	case config.BackendMemory:
		slog.Warn("guardrail backend is in-process memory; limits are per instance")
		accessor = kv.Static(kv.NewMemoryStore())
	default:
		redisAccessor := iredis.NewAccessor(cfg.Redis)
		defer redisAccessor.Close()
		accessor = redisAccessor
		checks["redis"] = redisAccessor.Ping
	}

	// PostgreSQL (optional audit persistence)
	var pool *pgxpool.Pool
	var auditRepo *audit.Repository
	if cfg.DB.Enabled {
		pool, err = database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
		auditRepo = audit.NewRepository(pool)
		checks["database"] = pool.Ping
		required = append(required, "database")
	}

	// Audit recorders: always log, then NATS or direct DB when available
	recorders := audit.Multi{audit.NewLogRecorder(slog.Default())}

	if cfg.NATS.Enabled() {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		checks["nats"] = func(context.Context) error {
			if !natsClient.Healthy() {
				return errors.New("nats disconnected")
			}
			return nil
		}

		recorders = append(recorders, audit.NewPublishingRecorder(inats.NewPublisher(natsClient.JetStream())))

		if auditRepo != nil {
			consumer := audit.NewConsumer(auditRepo, inats.NewConsumerManager(natsClient.JetStream()))
			go func() {
				if err := consumer.Start(ctx); err != nil {
					slog.Error("audit consumer stopped", "error", err)
				}
			}()
		}
	} else if auditRepo != nil {
		recorders = append(recorders, audit.NewRepositoryRecorder(auditRepo))
	}

	// Image generation
	generator, err := imagegen.NewGeminiGenerator(ctx, cfg.ImageGen)
	if err != nil {
		slog.Error("creating image generator", "error", err)
		os.Exit(1)
	}

	g := gate.New(cfg.Guardrail,
		guardrail.NewQuotaChecker(accessor, cfg.Guardrail),
		guardrail.NewRateLimiter(accessor, cfg.Guardrail),
		generator,
		recorders,
		audit.NewIPHasher(cfg.Audit.IPHashKey),
	)

	// auditRepo is passed only when non-nil so the handler sees a nil interface.
	var gateHandler *gate.Handler
	validator := imagegen.NewRequestValidator(cfg.ImageGen.AllowedModels)
	if auditRepo != nil {
		gateHandler = gate.NewHandler(g, validator, auditRepo)
	} else {
		gateHandler = gate.NewHandler(g, validator, nil)
	}

	// Auth
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.Issuer)
	throttle := mw.NewThrottle(accessor, cfg.Guardrail.Namespace, cfg.Throttle.RequestsPerWindow, cfg.Throttle.Window)

	// Router
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		Throttle:           throttle.Middleware,
		Checks:             checks,
		Required:           required,
	}, api.HandlerSet{
		GenerateImage:  gateHandler.Generate,
		ImageStatus:    gateHandler.Status,
		ListAudit:      gateHandler.ListAudit,
		AuthMiddleware: auth.Middleware(jwtManager),
		AdminOnly:      auth.RequireRole(cfg.JWT.AdminRole),
	})

	slog.Info("guardrails configured",
		"daily_limit", cfg.Guardrail.DailyLimit,
		"rate_limit_per_minute", cfg.Guardrail.RateLimitPerMinute,
		"maintenance_mode", cfg.Guardrail.MaintenanceMode,
		"backend", cfg.Guardrail.Backend,
		"generator_configured", generator.Configured(),
	)

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
