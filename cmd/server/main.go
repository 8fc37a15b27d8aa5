package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/procurement/backend/docs"
	"github.com/procurement/backend/internal/application/caisse"
	"github.com/procurement/backend/internal/application/document"
	appevent "github.com/procurement/backend/internal/application/event"
	"github.com/procurement/backend/internal/application/procurement"
	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
	"github.com/procurement/backend/internal/infrastructure/cache"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/event"
	"github.com/procurement/backend/internal/infrastructure/logger"
	"github.com/procurement/backend/internal/infrastructure/persistence"
	"github.com/procurement/backend/internal/infrastructure/storage"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"github.com/procurement/backend/internal/interfaces/http/handler"
	"github.com/procurement/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const shutdownTimeout = 30 * time.Second

//	@title			Procurement Ledger API
//	@version		1.0
//	@description	Purchase orders, payment requests and the cash register ledger

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	ActorID
//	@in							header
//	@name						X-Actor-ID
//	@description				Acting user resolved by the gateway

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	level, _ := logger.ParseLevel(cfg.Log.Level)
	log := providers.BridgeLogger(baseLog, level)
	defer func() {
		_ = log.Sync()
	}()

	profiler, err := telemetry.NewProfiler(cfg.Profiling, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}

	log.Info("Starting procurement ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Bool("profiling", profiler.Enabled()),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	if _, err := telemetry.InstrumentDB(db.DB, providers.Meter("procurement/db"), telemetry.DBConfig{
		Tracing:            cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Redis backs identifier counters and the sync window when enabled
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.Sequence.Backend != "redis"),
	)
	redisClient, err := storeFactory.Connect(ctx)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	syncStore, err := storeFactory.CreateStore(redisClient)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	var generator sequence.Generator = persistence.NewGormSequenceGenerator(db.DB)
	if cfg.Sequence.Backend == "redis" {
		if redisClient == nil {
			log.Fatal("sequence.backend is redis but Redis is disabled")
		}
		generator = cache.NewRedisSequenceGenerator(redisClient)
	}
	issuer := sequence.NewIssuer(generator)
	log.Info("Identifier counters ready", zap.String("backend", cfg.Sequence.Backend))

	// Outbox and event delivery
	serializer := event.NewLedgerEventSerializer()
	outboxPublisher := event.NewOutboxPublisher(serializer).WithMaxRetries(cfg.Outbox.MaxRetries)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)

	objects, snapshotWriter := openStorage(ctx, cfg.Storage, log)

	deliveryMetrics, err := event.NewDeliveryMetrics(providers.Meter("procurement/outbox"))
	if err != nil {
		log.Fatal("Failed to create delivery metrics", zap.Error(err))
	}
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(appevent.NewNotificationHandler(appevent.NewLogNotifier(log), notificationLocale(cfg.App.Locale, log), log))
	if cfg.Sync.Enabled {
		var exporter appevent.SnapshotExporter = storage.NewLogSnapshotExporter(log)
		if snapshotWriter != nil {
			exporter = storage.NewObjectSnapshotExporter(snapshotWriter, log)
		}
		bus.Subscribe(event.NewIdempotentHandler(appevent.NewSyncHandler(exporter, log), syncStore, log,
			event.WithKeyFunc(event.ByAggregate),
			event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Sync.Window, Enabled: true}),
			event.WithReleaseOnFailure(true),
			event.WithDeliveryMetrics(deliveryMetrics),
		))
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	processor := event.NewOutboxProcessor(outboxRepo, bus, serializer,
		event.OutboxProcessorConfigFrom(cfg.Outbox), log,
		event.WithProcessorMetrics(deliveryMetrics),
	)
	if cfg.Outbox.ProcessorEnabled {
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// Business metrics
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:           providers.Meter("procurement/business"),
		Logger:          log,
		CollectInterval: cfg.Telemetry.MetricsInterval,
		BalanceProvider: telemetry.NewGormBalanceMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	businessMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)

	// Services
	retry := unitofwork.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	defaultCurrency, err := valueobject.ParseCurrency(cfg.Caisse.DefaultCurrency)
	if err != nil {
		log.Fatal("Invalid caisse.default_currency", zap.Error(err))
	}

	orderService := procurement.NewOrderService(scope, persistence.NewGormOrderRepository(db.DB), issuer, log)
	orderService.SetRetryPolicy(retry)
	orderService.SetBusinessMetrics(businessMetrics)

	requestService := procurement.NewPaymentRequestService(scope, persistence.NewGormPaymentRequestRepository(db.DB), issuer, log)
	requestService.SetRetryPolicy(retry)
	requestService.SetDefaultCurrency(defaultCurrency)
	requestService.SetBusinessMetrics(businessMetrics)

	caisseService := caisse.NewService(scope, persistence.NewGormFundingRequestRepository(db.DB), persistence.NewGormCaisseLedger(db.DB), issuer, log)
	caisseService.SetRetryPolicy(retry)
	caisseService.SetDefaultCurrency(defaultCurrency)
	caisseService.SetBusinessMetrics(businessMetrics)

	currencies := make([]valueobject.Currency, 0, len(cfg.Caisse.Currencies))
	for _, code := range cfg.Caisse.Currencies {
		currency, err := valueobject.ParseCurrency(code)
		if err != nil {
			log.Fatal("Invalid caisse.currencies entry", zap.Error(err))
		}
		currencies = append(currencies, currency)
	}
	if err := caisseService.EnsureCurrencies(ctx, currencies); err != nil {
		log.Fatal("Failed to initialize register balances", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var tracerProvider trace.TracerProvider
	if providers.Traces != nil {
		tracerProvider = providers.Traces
		if profiler.Enabled() && cfg.Profiling.SpanProfiles {
			tracerProvider = providers.EnableSpanProfiles()
		}
	}
	engine, err := router.NewEngine(ctx, router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		HTTP:           cfg.HTTP,
		Logger:         log,
		TracerProvider: tracerProvider,
		Meter:          providers.Meter("procurement/http"),
		Health:         handler.NewHealthHandler(healthChecks(db, redisClient)),
		Swagger:        cfg.Swagger,
		Profiling:      profiler.Enabled(),
	}, router.Handlers{
		Orders:          handler.NewOrderHandler(orderService),
		PaymentRequests: handler.NewPaymentRequestHandler(requestService),
		Caisse:          handler.NewCaisseHandler(caisseService),
		Documents:       handler.NewDocumentHandler(document.NewService(objects, cfg.Storage.PresignExpiration, log)),
		Deliveries:      handler.NewDeliveryHandler(appevent.NewDeliveryService(outboxRepo, log)),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping outbox processor", zap.Error(err))
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	businessMetrics.Stop()
	if err := syncStore.Close(); err != nil {
		log.Error("Error closing idempotency store", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		baseLog.Error("Error flushing telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// openStorage returns the presigning store and, when objects can be written,
// the writer used for sync snapshots. Without object storage proofs get
// placeholder URLs and snapshots go to the log.
func openStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (document.ObjectStorage, storage.ObjectWriter) {
	if !cfg.Enabled {
		log.Warn("Object storage disabled, using in-memory storage")
		return storage.NewMemoryObjectStorage(""), nil
	}
	s3, err := storage.NewS3ObjectStorage(cfg, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create object storage client", zap.Error(err))
	}
	bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3.EnsureBucket(bucketCtx); err != nil {
		log.Fatal("Failed to prepare storage bucket", zap.Error(err))
	}
	log.Info("Object storage ready", zap.String("bucket", s3.Bucket()))
	return s3, s3
}

func notificationLocale(tag string, log *zap.Logger) language.Tag {
	locale, err := language.Parse(tag)
	if err != nil {
		log.Warn("Unknown app.locale, notifications use English", zap.String("locale", tag))
		return language.English
	}
	return locale
}

func healthChecks(db *persistence.Database, redisClient *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
