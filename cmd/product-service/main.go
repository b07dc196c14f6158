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

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/product-service/internal/clients"
	"github.com/joao-fontenele/product-service/internal/config"
	"github.com/joao-fontenele/product-service/internal/messaging"
	"github.com/joao-fontenele/product-service/internal/products"
	"github.com/joao-fontenele/product-service/internal/telemetry"
)

const (
	serviceName    = "product-service"
	serviceVersion = "0.1.0"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("product service stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	httpClient := clients.NewHTTPClient(cfg.HTTPClientTimeout)
	service := products.NewService(
		products.NewProductRepository(db),
		clients.NewSupplierClient(cfg.SupplierServiceURL, httpClient),
		clients.NewOrderClient(cfg.OrderServiceURL, httpClient),
		logger,
	)

	registry := messaging.NewRegistry()
	events := products.NewEventHandler(service, cfg.FaultInjectionPrefix, logger)
	if err := events.Register(registry, cfg.SupplierDeactivatedTopic, cfg.SupplierEventsGroup); err != nil {
		return err
	}

	deadLetters := messaging.NewDeadLetterProducer(messaging.NewDeadLetterWriter(cfg.KafkaBrokers))
	defer func() { _ = deadLetters.Close() }()

	mux := telemetry.NewRouteMux()
	products.NewHandler(service, logger).Routes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      telemetry.NewHTTPHandler(mux, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting product service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting event consumers", "brokers", cfg.KafkaBrokers, "workers", cfg.ConsumerWorkers)
		return registry.Run(ctx, messaging.RunOptions{
			NewReader: func(topic, groupID string) messaging.MessageReader {
				return messaging.NewReader(cfg.KafkaBrokers, topic, groupID)
			},
			DeadLetters: deadLetters,
			Policy: messaging.RetryPolicy{
				Attempts:       cfg.RetryAttempts,
				Delay:          cfg.RetryDelay,
				Multiplier:     cfg.RetryMultiplier,
				HandlerTimeout: cfg.HandlerTimeout,
			},
			Workers: cfg.ConsumerWorkers,
			Logger:  logger,
		})
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
