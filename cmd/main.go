package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/store-order/internal/cache"
	"github.com/fjod/go_cart/store-order/internal/config"
	h "github.com/fjod/go_cart/store-order/internal/http"
	"github.com/fjod/go_cart/store-order/internal/observability"
	"github.com/fjod/go_cart/store-order/internal/publisher"
	"github.com/fjod/go_cart/store-order/internal/repository"
	"github.com/fjod/go_cart/store-order/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("store-order starting",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Strings("fail_actions", cfg.Actions.Failed),
		zap.Strings("complete_actions", cfg.Actions.Completed))

	store, err := openStore(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()
	logger.Info("storage ready")

	orderCache := openCache(cfg.Redis, logger)

	var events publisher.Publisher = publisher.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		logger.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer events.Close()

	engine := service.NewStatusEngine(service.NewPaymentClassifier(cfg.Actions))
	orders := service.NewOrderService(
		repository.NewStoreMapper(store),
		repository.NewAllocator(store),
		engine,
		orderCache,
		events,
		service.WithLogger(logger),
		service.WithCurrency(cfg.Orders.Currency),
		service.WithIDLength(cfg.Orders.IDLength),
	)

	handler := h.NewOrdersHandler(orders, cfg.HTTP.WriteTimeout, logger)
	router := h.NewRouter(handler, logger, cfg.HTTP.WriteTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      otelhttp.NewHandler(router, "store-order"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down store-order")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("store-order stopped")
}

func openStore(cfg config.StorageConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err := repository.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil

	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		db, err := repository.ConnectMongoDB(ctx, repository.MongoSettings{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			MaxPoolSize:    cfg.MongoPool.MaxSize,
			MinPoolSize:    cfg.MongoPool.MinSize,
			MaxConnIdle:    cfg.MongoPool.MaxIdleTime,
			ConnectTimeout: cfg.MongoPool.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil

	default:
		creds := &repository.Credentials{
			Host:              cfg.Host,
			Port:              cfg.Port,
			User:              cfg.User,
			Password:          cfg.Password,
			DBName:            cfg.DBName,
			MigrationsDirPath: cfg.MigrationsPath,
		}
		repo, err := repository.NewPostgresRepository(creds)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(creds.MigrationsDirPath); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}
}

func openCache(cfg config.RedisConfig, logger *zap.Logger) cache.OrderCache {
	if cfg.Addr == "" {
		logger.Info("order cache disabled")
		return cache.NopCache{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// startup does not wait for redis
		logger.Warn("redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	return cache.NewRedisCache(client, cfg.TTL, cfg.MaxJitter, logger)
}
