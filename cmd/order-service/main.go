package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/order-service/internal/auth"
	"github.com/fjod/go_cart/order-service/internal/cache"
	"github.com/fjod/go_cart/order-service/internal/catalog"
	"github.com/fjod/go_cart/order-service/internal/config"
	"github.com/fjod/go_cart/order-service/internal/domain"
	h "github.com/fjod/go_cart/order-service/internal/http"
	"github.com/fjod/go_cart/order-service/internal/logger"
	"github.com/fjod/go_cart/order-service/internal/publisher"
	"github.com/fjod/go_cart/order-service/internal/repository"
	"github.com/fjod/go_cart/order-service/internal/service"
	"github.com/fjod/go_cart/order-service/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logger.Setup(serviceName, true)
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLogger := logger.Setup(serviceName, cfg.IsDevelopment())
	log.Info().Str("env", cfg.Env).Msg("order-service starting...")

	ctx := context.Background()
	var wg sync.WaitGroup

	shutdownTracer, err := telemetry.SetupTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// Carts: MongoDB behind a Redis cache
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := repository.EnsureCartIndexes(ctx, cartRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to create cart indexes")
	}
	log.Info().Str("db", cfg.Mongo.DBName).Msg("connected to MongoDB")

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	cartCache := cache.NewRedisCache(redisClient, cache.WithTTL(cfg.Redis.CacheTTL, cfg.Redis.CacheTTL/10))

	// Orders: Postgres with a transactional outbox
	orderRepo, err := repository.NewOrderRepository(&cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := orderRepo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations completed")

	products := catalog.NewClient(catalog.Config{
		BaseURL: cfg.Catalog.URL,
		Timeout: cfg.Catalog.Timeout,
	})

	policy, err := service.ParseStatusPolicy(cfg.StatusPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid order status policy")
	}

	cartService := service.NewCartService(cartRepo, cartCache, products)
	orderService := service.NewOrderService(orderRepo, cartService,
		service.WithPricing(domain.Pricing{
			TaxRate:               cfg.Pricing.TaxRate,
			FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
			ShippingFee:           cfg.Pricing.ShippingFee,
			TaxPlaces:             cfg.Pricing.TaxPlaces,
		}),
		service.WithStatusPolicy(policy),
	)

	// Start outbox publisher
	writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	poller := publisher.NewOutboxPoller(orderRepo, writer, cfg.Kafka.PollInterval, cfg.Kafka.PollBatchSize)
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	router := h.NewRouter(h.RouterConfig{
		Carts:          h.NewCartHandler(cartService, cfg.HTTP.RequestTimeout, cfg.IsDevelopment()),
		Orders:         h.NewOrdersHandler(orderService, cfg.HTTP.RequestTimeout, cfg.IsDevelopment()),
		Tokens:         auth.NewTokenManager(cfg.JWTSecret),
		Logger:         appLogger,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("order-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down order-service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	pollerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info().Msg("outbox poller stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn().Msg("outbox poller didn't stop in time")
	}

	if err := writer.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka writer")
	}
	if err := orderRepo.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close redis")
	}
	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to disconnect MongoDB")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}

	log.Info().Msg("order-service stopped")
}
