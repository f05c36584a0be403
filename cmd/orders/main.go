package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Whiteherobot/microservices-project/internal/config"
	"github.com/Whiteherobot/microservices-project/internal/messaging"
	"github.com/Whiteherobot/microservices-project/internal/orders"
	"github.com/Whiteherobot/microservices-project/internal/product"
	"github.com/Whiteherobot/microservices-project/internal/shipping"
	"github.com/Whiteherobot/microservices-project/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	provider, err := telemetry.Init(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	publishers := orders.Publishers{}
	if len(cfg.KafkaBrokers) > 0 {
		confirmed := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderConfirmed)
		defer func() { _ = confirmed.Close() }()
		restoreFailed := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicStockRestoreFailed)
		defer func() { _ = restoreFailed.Close() }()

		publishers.OrderConfirmed = confirmed
		publishers.StockRestoreFailed = restoreFailed
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	products := product.NewClient(cfg.ProductServiceURL, httpClient, product.Policies{
		List:     cfg.ProductList,
		Decrease: cfg.StockDecrease,
		Restore:  cfg.StockRestore,
	}, logger)
	shippingClient := shipping.NewClient(cfg.ShippingServiceURL, httpClient, cfg.ShippingQuote, logger)

	repo := orders.NewOrderRepository(db)
	saga := orders.NewSaga(products, shippingClient, repo, publishers, logger)
	handler := orders.NewHandler(saga, db, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(handler.HandleCreate))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(handler.HandleGet))
	mux.HandleFunc("GET /healthz", handler.HandleHealth)
	mux.Handle("GET /metrics", provider.MetricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
