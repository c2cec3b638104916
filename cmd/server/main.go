package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appgateway "github.com/erp/commerce-recurly/internal/application/gateway"
	"github.com/erp/commerce-recurly/internal/domain/billing"
	"github.com/erp/commerce-recurly/internal/infrastructure/auth"
	recurly "github.com/erp/commerce-recurly/internal/infrastructure/billing"
	"github.com/erp/commerce-recurly/internal/infrastructure/cache"
	"github.com/erp/commerce-recurly/internal/infrastructure/config"
	"github.com/erp/commerce-recurly/internal/infrastructure/logger"
	"github.com/erp/commerce-recurly/internal/infrastructure/persistence"
	"github.com/erp/commerce-recurly/internal/infrastructure/secret"
	"github.com/erp/commerce-recurly/internal/infrastructure/telemetry"
	"github.com/erp/commerce-recurly/internal/infrastructure/token"
	"github.com/erp/commerce-recurly/internal/interfaces/http/handler"
	"github.com/erp/commerce-recurly/internal/interfaces/http/middleware"
	"github.com/erp/commerce-recurly/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// Telemetry
	telemetry.ServiceVersion = version
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

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, zapcore.InfoLevel)

	log.Info("Starting Recurly gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTracingEnabled
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	key, err := cfg.Secrets.Key()
	if err != nil {
		log.Fatal("Invalid secrets configuration", zap.Error(err))
	}
	box := secret.NewBox(key)
	if !box.Enabled() {
		log.Warn("No encryption key configured, gateway private keys are stored in plaintext")
	}

	// Repositories
	configRepo := persistence.NewGormGatewayConfigurationRepository(db.DB, box)
	customFieldRepo := persistence.NewGormCustomFieldSettingsRepository(db.DB)

	// Idempotency
	idempotencyStore, err := cache.OpenIdempotencyStore(ctx, cfg.Idempotency, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Recurly
	recurlyConfig := recurly.DefaultRecurlyConfig()
	recurlyConfig.BaseURL = cfg.Recurly.BaseURL
	recurlyConfig.APIVersion = cfg.Recurly.APIVersion
	recurlyConfig.RequestTimeout = cfg.Recurly.CallTimeout
	recurlyConfig.BreakerMaxFailures = cfg.Recurly.BreakerMaxFailures
	recurlyConfig.BreakerOpenTimeout = cfg.Recurly.BreakerOpenTimeout
	recurlyConfig.BreakerHalfOpenRequests = cfg.Recurly.BreakerHalfOpenRequests
	clients, err := recurly.NewRecurlyClientFactory(recurlyConfig, log)
	if err != nil {
		log.Fatal("Invalid Recurly configuration", zap.Error(err))
	}

	paymentMetrics, err := telemetry.NewPaymentMetrics(meterProvider.Meter("commerce-recurly/payment"))
	if err != nil {
		log.Fatal("Failed to create payment metrics", zap.Error(err))
	}

	// Application services
	tokens := token.NewEngine()
	resolver := appgateway.NewAccountResolver(appgateway.AccountResolverConfig{
		Renderer:     tokens,
		CustomFields: customFieldRepo,
		CallTimeout:  cfg.Recurly.CallTimeout,
		Logger:       log,
	})
	submitter := appgateway.NewPurchaseSubmitter(appgateway.PurchaseSubmitterConfig{
		CallTimeout: cfg.Recurly.CallTimeout,
		Logger:      log,
	})
	returnService := appgateway.NewReturnService(appgateway.ReturnServiceConfig{
		Configurations: configRepo,
		Clients:        clients,
		Resolver:       resolver,
		Submitter:      submitter,
		Messenger:      handler.RequestMessenger(),
		Idempotency:    idempotencyStore,
		IdempotencyTTL: cfg.Idempotency.TTL,
		Recorder:       paymentMetrics,
		Logger:         log,
	})
	configurationService := appgateway.NewConfigurationService(appgateway.ConfigurationServiceConfig{
		Configurations: configRepo,
		CustomFields:   customFieldRepo,
		SharedCredentials: billing.Credentials{
			Subdomain:  cfg.Recurly.SharedSubdomain,
			PrivateKey: cfg.Recurly.SharedPrivateKey,
			PublicKey:  cfg.Recurly.SharedPublicKey,
		},
		Templates: tokens,
		Logger:    log,
	})
	offsiteFormService := appgateway.NewOffsiteFormService(configRepo)
	webhookService := appgateway.NewWebhookService(log)

	// HTTP
	jwtService := auth.NewJWTService(cfg.JWT)

	engine := router.NewEngine(router.EngineConfig{
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		Production:     cfg.App.Env == "production",
		TracingEnabled: cfg.Telemetry.Enabled,
		MeterProvider:  meterProvider,
		Logger:         log,
	})

	r := router.NewRouter(engine)
	router.RegisterGatewayRoutes(r, router.Handlers{
		Payment: handler.NewPaymentHandler(returnService, offsiteFormService),
		Admin:   handler.NewAdminHandler(configurationService),
		Webhook: handler.NewWebhookHandler(webhookService),
		Health:  handler.NewHealthHandler(db, version),
	}, middleware.JWTAuthMiddleware(jwtService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Flush telemetry after the last request has been handled
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
