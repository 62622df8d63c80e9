package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	connectapp "github.com/syncbridge/backend/internal/application/connector"
	"github.com/syncbridge/backend/internal/infrastructure/auth"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
	"github.com/syncbridge/backend/internal/infrastructure/scheduler"
	"github.com/syncbridge/backend/internal/infrastructure/shopify"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
	"github.com/syncbridge/backend/internal/infrastructure/worker"
	"github.com/syncbridge/backend/internal/interfaces/http/handler"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SyncBridge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Register query tracing on the GORM instance
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		queryTracing := telemetry.NewQueryTracing(200*time.Millisecond, log)
		if err := queryTracing.Register(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Initialize repositories
	integrationRepo := persistence.NewGormIntegrationRepository(db.DB)
	webhookEventRepo := persistence.NewGormWebhookEventRepository(db.DB)

	// Initialize Redis-backed nonce guard for OAuth state replay protection
	nonceStore, err := cache.NewRedisNonceStore(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := nonceStore.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected successfully")

	// Initialize the durable sync queue client
	queueClient := worker.NewClient(cfg.Redis, log)
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", zap.Error(err))
		}
	}()

	// Initialize the Shopify adapter and callback verification
	shopifyAdapter, err := shopify.NewAdapter(&shopify.Config{
		APIKey:             cfg.Shopify.APIKey,
		APISecret:          cfg.Shopify.APISecret,
		WebhookSecret:      cfg.Shopify.WebhookSecret,
		StateSecret:        cfg.Shopify.StateSecret,
		RequiredScopes:     cfg.Shopify.RequiredScopes,
		RedirectBaseURL:    cfg.Shopify.RedirectBaseURL,
		StateTokenTTL:      cfg.Shopify.StateTokenTTL,
		TimeoutSeconds:     cfg.Shopify.TimeoutSeconds,
		MaxRetries:         cfg.Shopify.MaxRetries,
		BackoffBaseSeconds: cfg.Shopify.BackoffBaseSeconds,
	}, log)
	if err != nil {
		log.Fatal("Invalid Shopify configuration", zap.Error(err))
	}
	stateCodec := shopify.NewStateTokenCodec(cfg.Shopify.StateSecret, cfg.Shopify.StateTokenTTL)
	signatureVerifier := shopify.NewSignatureVerifier(cfg.Shopify.APISecret, cfg.Shopify.WebhookSecret)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT)
	syncService := connectapp.NewSyncService(
		integrationRepo,
		shopifyAdapter,
		shopifyAdapter,
		queueClient,
		cfg.Sync,
		cfg.App.BaseURL,
		log,
	)
	connectService := connectapp.NewConnectService(
		integrationRepo,
		webhookEventRepo,
		shopifyAdapter,
		shopifyAdapter,
		stateCodec,
		signatureVerifier,
		nonceStore,
		syncService,
		cfg.Shopify,
		log,
	)
	batchService := connectapp.NewBatchService(integrationRepo, syncService, cfg.Cron, log)
	webhookService := connectapp.NewWebhookService(integrationRepo, webhookEventRepo, signatureVerifier, log)

	// Start the background sync worker pool
	workerServer := worker.NewServer(cfg.Redis, cfg.Sync, log)
	workerServer.RegisterSyncExecutor(syncService)
	if err := workerServer.Start(); err != nil {
		log.Fatal("Failed to start sync worker", zap.Error(err))
	}

	// Initialize HTTP handlers
	integrationHandler := handler.NewIntegrationHandler(connectService, syncService, cfg.App.FrontendURL)
	webhookHandler := handler.NewWebhookHandler(webhookService, log)
	cronHandler := handler.NewCronHandler(batchService, cfg.Cron.CronKey, log)
	systemHandler := handler.NewSystemHandler(version).
		AddReadyCheck("database", func(ctx context.Context) error {
			return db.Ping()
		}).
		AddReadyCheck("redis", func(ctx context.Context) error {
			return nonceStore.Ping(ctx)
		})

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Start request spans (if enabled)
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.TraceTags())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health endpoints live outside API versioning
	systemHandler.RegisterRootRoutes(engine)

	r := router.New(engine, "v1")

	// Apply JWT authentication middleware to API routes. The OAuth callback,
	// webhook ingest and cron routes are skipped; they authenticate with
	// platform HMACs or the cron key instead of a session.
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.InternalServiceToken = cfg.Auth.InternalServiceToken
	jwtConfig.Logger = log
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	r.Register(integrationHandler).
		Register(webhookHandler).
		Register(cronHandler).
		Register(systemHandler)

	// Setup routes
	r.Setup()

	// Start the periodic sync cycle scheduler
	cronScheduler := scheduler.NewSyncCronScheduler(cfg.Cron, batchService, log)
	if err := cronScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop accepting new cycles, then drain the worker pool
	cronScheduler.Stop()
	workerServer.Shutdown()

	if err := tracerProvider.Shutdown(context.Background()); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
