package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/winefeed/vine/config"
	"github.com/winefeed/vine/internal/handlers"
	"github.com/winefeed/vine/internal/repositories/catalogproduct"
	"github.com/winefeed/vine/internal/repositories/importline"
	"github.com/winefeed/vine/internal/repositories/matchresult"
	"github.com/winefeed/vine/internal/repositories/violation"
	"github.com/winefeed/vine/pkg/database"
	"github.com/winefeed/vine/pkg/events"
	"github.com/winefeed/vine/pkg/health"
	"github.com/winefeed/vine/pkg/kafka"
	"github.com/winefeed/vine/pkg/matching"
	"github.com/winefeed/vine/pkg/middleware"
	"github.com/winefeed/vine/pkg/redis"
	"github.com/winefeed/vine/pkg/startup"
	"github.com/winefeed/vine/pkg/tracing"
	"github.com/winefeed/vine/pkg/tracing/exporters"
	"github.com/winefeed/vine/pkg/winedb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := setupTracing(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to set up tracing")
		os.Exit(1)
	}
	defer tracerShutdown(context.Background())

	dbDep := &databaseDependency{config: cfg, logger: logger}
	redisDep := &redisDependency{config: cfg, logger: logger}

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(dbDep)
	boot.AddDependency(redisDep)

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	defer boot.Stop(context.Background())

	db := dbDep.db

	// repositories
	products := catalogproduct.NewRepository(db, logger)
	lines := importline.NewRepository(db, logger)
	results := matchresult.NewRepository(db, logger)
	violations := violation.NewRepository(db, logger)

	// wine database client, identity fields only
	var suggester matching.Suggester
	if cfg.WineDBEnabled {
		suggester = winedb.NewClient(winedb.Config{
			BaseURL:      cfg.WineDBBaseURL,
			Timeout:      cfg.WineDBTimeout,
			MaxRetries:   cfg.WineDBMaxRetries,
			RetryBackoff: cfg.WineDBRetryBackoff,
			MaxBodyBytes: cfg.WineDBMaxBodyBytes,
		}, logger)
	}

	// event emission
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaMatchEventsTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}
	var emitter *events.Emitter
	if producer != nil {
		emitter = events.NewEmitter(producer, logger)
	} else {
		emitter = events.NewEmitter(nil, logger)
	}

	// matching pipeline
	resolver := matching.NewResolver(products, logger).WithSKUNormalizers(cfg.MatchSKUNormalizers...)
	matcher := matching.NewMatcher(products, suggester, matching.MatcherConfig{
		AutoMatchThreshold: cfg.AutoMatchThreshold,
		SuggestThreshold:   cfg.SuggestThreshold,
		MaxCandidates:      cfg.MaxCandidates,
	}, logger)
	guardrails := matching.NewGuardrailValidator()
	decider := matching.NewDecider(matching.DecisionConfig{
		AutoMatchThreshold: cfg.AutoMatchThreshold,
		SuggestThreshold:   cfg.SuggestThreshold,
		SamplingReviewRate: cfg.SamplingReviewRate,
	})

	var limiter *redis.RateLimiter
	var locker *redis.Locker
	if redisDep.client != nil {
		limiter = redis.NewRateLimiter(redisDep.client, "vine:ratelimit:")
		locker = redis.NewLocker(redisDep.client, "vine:lock:")
	}
	autoCreator := matching.NewAutoCreator(products, limiter, locker, matching.AutoCreateConfig{
		Enabled:      cfg.AutoCreateEnabled,
		WindowDays:   cfg.AutoCreateWindowDays,
		MaxPerWindow: int64(cfg.AutoCreateMaxPerWindow),
	}, logger)

	service := matching.NewService(
		lines, results, violations,
		resolver, matcher, guardrails, decider, autoCreator, emitter,
		matching.ServiceConfig{WorkerCount: cfg.MatchWorkerCount},
		logger,
	)

	reporter := health.NewReporter(results, lines, products, health.ReporterConfig{
		WindowDays:        cfg.HealthWindowDays,
		MinSampleSize:     cfg.HealthMinSampleSize,
		MinAutoMatchRate:  cfg.HealthMinAutoMatchRate,
		MaxSuggestedRate:  cfg.HealthMaxSuggestedRate,
		MinAvgConfidence:  cfg.HealthMinAvgConfidence,
		MaxAutoCreateRate: cfg.HealthMaxAutoCreateRate,
	}, logger)

	// kafka line ingestion
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled && len(cfg.KafkaBrokers) > 0 {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaLinesTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, func(ctx context.Context, msg *kafka.IncomingMessage) error {
			batch := msg.LineBatch
			_, err := service.IngestBatch(ctx, batch.TenantID, batch.ImportID, batch.SourceType, batch.SourceID, batch.Lines)
			return err
		})
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start Kafka consumer")
			os.Exit(1)
		}
		defer consumer.Stop()
	}

	checker := health.NewChecker(db, clientOrNil(redisDep), version)

	e := newEcho(cfg, logger, checker, service, lines, results, violations, reporter)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting %s on %s", cfg.AppName, addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()
	checker.SetReady(true)

	<-ctx.Done()
	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
}

// version is stamped at build time with -ldflags "-X main.version=..."
var version = "dev"

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func setupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OtelEnabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OtelEndpoint,
		Protocol: cfg.OtelProtocol,
		Insecure: cfg.OtelInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}

func newEcho(
	cfg *config.Config,
	logger ectologger.Logger,
	checker *health.Checker,
	service *matching.Service,
	lines *importline.Repository,
	results *matchresult.Repository,
	violations *violation.Repository,
	reporter *health.Reporter,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/health/live", checker.LivenessHandler)
	e.GET("/health/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewMatchHandler(service, lines, results, violations, logger).Register(api)
	handlers.NewStatusHandler(reporter, logger).Register(api)

	return e
}

func clientOrNil(dep *redisDependency) *redis.Client {
	if dep == nil {
		return nil
	}
	return dep.client
}

// databaseDependency connects to PostgreSQL and runs migrations on start.
type databaseDependency struct {
	config *config.Config
	logger ectologger.Logger
	sqlxDB *sqlx.DB
	db     database.DB
}

func (d *databaseDependency) GetName() string { return "postgres" }
func (d *databaseDependency) DependsOn() []string { return nil }

func (d *databaseDependency) Start(ctx context.Context) error {
	cfg := d.config
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	sqlxDB, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return err
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	driver, err := migratepostgres.WithInstance(sqlxDB.DB, &migratepostgres.Config{})
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(d.logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return err
	}

	d.sqlxDB = sqlxDB
	d.db = database.NewDatabaseInstance(sqlxDB, d.logger)
	return nil
}

func (d *databaseDependency) Stop(ctx context.Context) error {
	if d.sqlxDB == nil {
		return nil
	}
	return d.sqlxDB.Close()
}

// redisDependency connects to Redis on start. Redis backs the auto-create
// rate cap and per-key locks; the service starts without it and falls back to
// database counts.
type redisDependency struct {
	config *config.Config
	logger ectologger.Logger
	client *redis.Client
}

func (d *redisDependency) GetName() string { return "redis" }
func (d *redisDependency) DependsOn() []string { return nil }

func (d *redisDependency) Start(ctx context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     d.config.RedisHost,
		Port:     d.config.RedisPort,
		Password: d.config.RedisPassword,
		DB:       d.config.RedisDB,
	}, d.logger)
	if err != nil {
		d.logger.WithError(err).Warn("Redis unavailable, auto-create falls back to database counts")
		return nil
	}
	d.client = client
	return nil
}

func (d *redisDependency) Stop(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Close()
}
