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

	analysisapp "github.com/skininsight/backend/internal/application/analysis"
	entitlementapp "github.com/skininsight/backend/internal/application/entitlement"
	"github.com/skininsight/backend/internal/domain/entitlement"
	"github.com/skininsight/backend/internal/domain/shared"
	"github.com/skininsight/backend/internal/infrastructure/appstore"
	"github.com/skininsight/backend/internal/infrastructure/auth"
	"github.com/skininsight/backend/internal/infrastructure/cache"
	"github.com/skininsight/backend/internal/infrastructure/config"
	"github.com/skininsight/backend/internal/infrastructure/logger"
	"github.com/skininsight/backend/internal/infrastructure/persistence"
	"github.com/skininsight/backend/internal/infrastructure/telemetry"
	"github.com/skininsight/backend/internal/infrastructure/vision"
	"github.com/skininsight/backend/internal/interfaces/http/handler"
	"github.com/skininsight/backend/internal/interfaces/http/middleware"
	"github.com/skininsight/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting SkinInsight Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry providers (no-op when disabled)
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database observability plugins
	if cfg.Telemetry.Enabled {
		meter := meterProvider.Meter("skininsight/db")
		dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{Enabled: true}, log)
		if err != nil {
			log.Warn("Failed to initialize database metrics", zap.Error(err))
		} else if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
			log.Warn("Failed to register database metrics plugin", zap.Error(err))
		}

		if cfg.Telemetry.DBTraceEnabled {
			tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
				Enabled:          true,
				WithoutVariables: cfg.App.Env == "production",
			}, log)
			if err := tracingPlugin.RegisterOtelGorm(db.DB); err != nil {
				log.Warn("Failed to register database tracing", zap.Error(err))
			}
		}
	}

	// Initialize repositories
	profileRepo := persistence.NewProfileRepository(db.DB)
	subscriptionRepo := persistence.NewSubscriptionRepository(db.DB)
	usageLedger := persistence.NewUsageLedgerRepository(db.DB)

	// Transaction dedupe store: Redis when configured, in-process otherwise
	var transactionStore shared.TransactionStore
	if cfg.Redis.Host != "" {
		redisStore, err := cache.NewRedisTransactionStore(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		transactionStore = redisStore
		log.Info("Using Redis transaction store", zap.String("addr", cfg.Redis.Addr()))
	} else {
		transactionStore = cache.NewInMemoryTransactionStore()
		log.Warn("Redis not configured, using in-memory transaction store")
	}
	defer func() {
		if err := transactionStore.Close(); err != nil {
			log.Error("Error closing transaction store", zap.Error(err))
		}
	}()

	// Receipt verifier
	var receiptVerifier appstore.Verifier
	if cfg.AppStore.SkipVerification {
		receiptVerifier = appstore.PassthroughVerifier{}
		log.Warn("Receipt verification disabled, accepting all receipts")
	} else {
		receiptVerifier = appstore.NewAppleVerifier(cfg.AppStore)
	}

	// Vision vendor client
	visionClient := vision.NewAnthropicClient(cfg.Vision)

	// Token verifier
	tokenVerifier := auth.NewVerifier(cfg.JWT)

	// Business metrics with periodic entitlement gauges
	var businessMetrics *telemetry.BusinessMetrics
	if cfg.Telemetry.Enabled {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:               meterProvider.Meter("skininsight/business"),
			Logger:              log,
			EntitlementProvider: telemetry.NewGormEntitlementMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize business metrics", zap.Error(err))
			businessMetrics = nil
		} else {
			businessMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
			defer businessMetrics.Stop()
		}
	}

	// Initialize application services
	catalog := entitlement.DefaultCatalog()
	quotaService := entitlementapp.NewQuotaService(subscriptionRepo, usageLedger, log).
		WithMetrics(businessMetrics)
	purchaseService := entitlementapp.NewPurchaseService(subscriptionRepo, catalog, receiptVerifier, transactionStore, log).
		WithMetrics(businessMetrics)
	analysisService := analysisapp.NewService(profileRepo, quotaService, visionClient, log)

	// Initialize HTTP handlers
	analysisHandler := handler.NewAnalysisHandler(analysisService, log)
	billingHandler := handler.NewBillingHandler(purchaseService, quotaService, profileRepo, log)
	systemHandler := handler.NewSystemHandler()

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
	// 4. Tracing - Propagate trace context
	// 5. Metrics - Record request metrics
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("skininsight/http"), true))
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

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Bearer token authentication for API routes.
	// System endpoints stay public for probes and smoke checks.
	r.Use(middleware.AuthMiddlewareWithConfig(middleware.AuthMiddlewareConfig{
		Verifier: tokenVerifier,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Analysis domain
	analysisRoutes := router.NewDomainGroup("analysis", "/analysis")
	analysisRoutes.POST("/analyze", analysisHandler.Analyze)

	// Billing domain (receipts, usage, subscription)
	billingRoutes := router.NewDomainGroup("billing", "/billing")
	billingRoutes.POST("/receipts", billingHandler.SubmitReceipt)
	billingRoutes.GET("/usage", billingHandler.GetUsage)
	billingRoutes.GET("/subscription", billingHandler.GetSubscription)

	// System domain
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	r.Register(analysisRoutes).
		Register(billingRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
