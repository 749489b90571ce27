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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appOrder "github.com/latifaja/ecom-orders/internal/application/order"
	"github.com/latifaja/ecom-orders/internal/config"
	domainOrder "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/infrastructure/directory"
	"github.com/latifaja/ecom-orders/internal/infrastructure/id"
	orderkafka "github.com/latifaja/ecom-orders/internal/infrastructure/kafka"
	"github.com/latifaja/ecom-orders/internal/infrastructure/memory"
	infraobs "github.com/latifaja/ecom-orders/internal/infrastructure/observability"
	"github.com/latifaja/ecom-orders/internal/infrastructure/observability/otelsdk"
	"github.com/latifaja/ecom-orders/internal/infrastructure/observability/oteltrace"
	"github.com/latifaja/ecom-orders/internal/infrastructure/observability/prometrics"
	"github.com/latifaja/ecom-orders/internal/infrastructure/observability/zaplogger"
	"github.com/latifaja/ecom-orders/internal/infrastructure/outbox"
	"github.com/latifaja/ecom-orders/internal/infrastructure/postgres"
	idemredis "github.com/latifaja/ecom-orders/internal/infrastructure/redis"
	"github.com/latifaja/ecom-orders/internal/pkg/logging"
	httppresentation "github.com/latifaja/ecom-orders/internal/presentation/http"
	workerpresentation "github.com/latifaja/ecom-orders/internal/presentation/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sdk, otelErr := otelsdk.Setup(ctx, otelsdk.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		Insecure:       cfg.OtelInsecure,
	})
	if sdk == nil {
		return otelErr
	}

	baseLogger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, sdk.ZapCore(cfg.ServiceName))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)
	if otelErr != nil {
		systemLogger.Warn("otel_export_disabled", zap.Error(otelErr))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instruments := prometrics.Standard(prometrics.New(registry, "", ""))

	appLogger := zaplogger.New(baseLogger)
	tel := infraobs.New(
		oteltrace.NewFromProvider(sdk.TracerProvider, cfg.ServiceName),
		appLogger,
		instruments.Counters,
		instruments.Histograms,
	)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var products product.Directory
	if cfg.DirectoryURL == "" {
		systemLogger.Info("directory_in_memory", zap.Int("products", len(memory.DemoProducts())))
		products = memory.NewProductDirectory(memory.DemoProducts()...)
	} else {
		products = directory.NewClient(cfg.DirectoryURL, cfg.DirectoryTimeout, tel)
	}

	// In-process event bus; handlers run with an event-scoped logger
	bus := outbox.NewBus(appLogger)
	subscriber := workerpresentation.NewSubscriber(bus, appLogger)

	appOrder.NewDiscrepancyWorker(subscriber, tel).Start()

	if len(cfg.KafkaBrokers) > 0 {
		forwarder := orderkafka.NewForwarder(orderkafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), tel)
		forwarder.Start(subscriber,
			domainOrder.OrderCreatedEvent{}.EventName(),
			domainOrder.StockDecrementFailedEvent{}.EventName(),
		)
		defer func() {
			if err := forwarder.Close(); err != nil {
				systemLogger.Error("kafka_writer_close_error", zap.Error(err))
			}
		}()
		systemLogger.Info("kafka_forwarder_enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	bus.Start(ctx)

	createOrder := appOrder.NewCreateOrderUseCase(repo, products, id.NewUUIDGenerator(), bus, tel)
	queryOrders := appOrder.NewQueryUseCase(repo, products, tel)

	var guard httppresentation.IdempotencyGuard
	if cfg.RedisAddr != "" {
		rdb := idemredis.NewClient(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			systemLogger.Warn("redis_unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		guard = idemredis.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
	}

	if cfg.SeedOrders {
		n, err := appOrder.NewSeeder(repo, products, createOrder, appLogger).Seed(ctx)
		if err != nil {
			systemLogger.Warn("seed_failed", zap.Int("created", n), zap.Error(err))
		}
	}

	handler := httppresentation.NewHandler(createOrder, queryOrders, guard, tel)
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.Mount("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			systemLogger.Error("http_server_error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
	if err := sdk.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("otel_shutdown_error", zap.Error(err))
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (domainOrder.Repository, func(), error) {
	if cfg.StoreDriver != config.StorePostgres {
		return memory.NewOrderRepository(), func() {}, nil
	}
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	repo := postgres.NewOrderRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}
