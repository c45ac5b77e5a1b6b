package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/gateway"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/webhook"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New("storefront", cfg.LogLevel)
	slog.SetDefault(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	client := gateway.NewClient(gateway.Config{
		Domain:      cfg.StorefrontDomain,
		APIPath:     cfg.StorefrontAPIPath,
		AccessToken: cfg.StorefrontToken,
		Timeout:     cfg.RequestTimeout,
		RateLimit:   cfg.GatewayRateLimit,
	}, log)

	tagCache, closeCache := setupCache(ctx, cfg, log)
	defer closeCache()

	reads := cache.NewReadThrough(tagCache, log)
	catalogService := catalog.NewService(client, reads, cfg.CatalogCacheTTL, log)
	invalidator := webhook.NewInvalidator(cfg.RevalidationSecret, reads, log)

	if len(cfg.KafkaBrokers) > 0 {
		consumer := webhook.NewConsumer(invalidator, cfg.RevalidationSecret, log, cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer consumer.Close()
		go consumer.Run(ctx)
		log.Info("invalidation consumer started",
			slog.Any("brokers", cfg.KafkaBrokers), slog.String("topic", cfg.KafkaTopic))
	}

	router := h.NewRouter(h.Handlers{
		Cart:       h.NewCartHandler(client, catalogService, log, cfg.RequestTimeout, cfg.CookieSecure),
		Catalog:    h.NewCatalogHandler(catalogService, cfg.RequestTimeout),
		Revalidate: h.NewRevalidateHandler(invalidator, cfg.RequestTimeout),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      http.MaxBytesHandler(otelhttp.NewHandler(router, "storefront"), cfg.MaxRequestBodySize),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", slog.String("port", cfg.HTTPPort), slog.String("backend", cfg.StorefrontDomain))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}

	log.Info("server exited")
}

// setupCache uses Redis when REDIS_ADDR is set and falls back to a
// process-local cache otherwise.
func setupCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.TagCache, func()) {
	if cfg.RedisAddr == "" {
		mem := cache.NewMemoryTagCache()
		log.Info("using in-memory catalog cache")
		return mem, func() { mem.Close() }
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
	return cache.NewRedisTagCache(redisClient), func() { redisClient.Close() }
}
