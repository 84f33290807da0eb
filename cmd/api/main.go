package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/meeplestash/config"
	"github.com/Ramsey-B/meeplestash/internal/repositories/expansionlink"
	gamerepo "github.com/Ramsey-B/meeplestash/internal/repositories/game"
	"github.com/Ramsey-B/meeplestash/pkg/bgg"
	"github.com/Ramsey-B/meeplestash/pkg/database"
	"github.com/Ramsey-B/meeplestash/pkg/events"
	"github.com/Ramsey-B/meeplestash/pkg/kafka"
	"github.com/Ramsey-B/meeplestash/pkg/middleware"
	"github.com/Ramsey-B/meeplestash/pkg/reconcile"
	catalogroutes "github.com/Ramsey-B/meeplestash/pkg/routes/catalog"
	gameroutes "github.com/Ramsey-B/meeplestash/pkg/routes/game"
	"github.com/Ramsey-B/meeplestash/pkg/routes/health"
	"github.com/Ramsey-B/meeplestash/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		Timeout:     cfg.OTLPTimeout,
	})
	if err != nil {
		return err
	}
	if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	sqlxDB, err := database.Connect(database.ConnectionConfig{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer sqlxDB.Close()

	migrationDriver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
	if err != nil {
		return err
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrations.Migrate(cfg.DatabaseName, migrationDriver); err != nil {
		return err
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)

	var redisClient *redis.Client
	var catalogCache *bgg.Cache
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis is unreachable, catalog caching disabled")
			redisClient = nil
		} else {
			catalogCache = bgg.NewCache(redisClient, cfg.CatalogTTL, logger)
			defer redisClient.Close()
		}
	}

	var producer *kafka.Producer
	if cfg.EventsEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}
	emitter := events.NewEmitter(producer, logger)

	gameRepo := gamerepo.NewRepository(db, logger)
	linkRepo := expansionlink.NewRepository(db, logger)
	catalogClient := bgg.NewClient(bgg.Config{
		BaseURL: cfg.BGGBaseURL,
		Timeout: cfg.BGGRequestTimeout,
	}, catalogCache, logger)
	reconciler := reconcile.NewReconciler(logger, gameRepo, linkRepo, catalogClient, emitter)

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*gamerepo.Repository](container, gameRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*expansionlink.Repository](container, linkRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*bgg.Client](container, catalogClient); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*reconcile.Reconciler](container, reconciler); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*events.Emitter](container, emitter); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(db, redisClient, cfg.Version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	gameroutes.Register(api.Group("/games"))
	catalogroutes.Register(api.Group("/catalog"))

	checker.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]any{"port": cfg.Port}).Info("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
