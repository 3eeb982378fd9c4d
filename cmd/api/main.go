package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/readify/bookstore/internal/auth"
	"github.com/readify/bookstore/internal/books"
	"github.com/readify/bookstore/internal/messaging"
	"github.com/readify/bookstore/internal/orders"
	"github.com/readify/bookstore/internal/reviews"
	"github.com/readify/bookstore/internal/telemetry"
	"github.com/readify/bookstore/internal/users"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("api", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, messaging.TopicOrderCreated)
		defer func() { _ = producer.Close() }()
	}

	tokens := auth.NewTokenService(jwtSecret)

	userHandler := users.NewHandler(users.NewUserRepository(db), tokens, logger)
	bookHandler := books.NewHandler(books.NewBookRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewOrderRepository(db), producer, logger)
	reviewHandler := reviews.NewHandler(reviews.NewReviewRepository(db), logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}
	protected := func(pattern string, h http.HandlerFunc) {
		route(pattern, tokens.Middleware(h))
	}

	route("POST /api/users/register", userHandler.HandleRegister)
	route("POST /api/users/login", userHandler.HandleLogin)
	route("POST /api/users/reset-password", userHandler.HandleResetPassword)
	route("GET /api/users", userHandler.HandleList)

	route("GET /api/books", bookHandler.HandleList)
	route("GET /api/books/{id}", bookHandler.HandleGet)
	protected("POST /api/books", bookHandler.HandleCreate)
	protected("PUT /api/books/{id}", bookHandler.HandleUpdate)
	protected("DELETE /api/books/{id}", bookHandler.HandleDelete)

	route("POST /api/orders", orderHandler.HandlePlace)
	route("GET /api/orders", orderHandler.HandleList)
	protected("GET /api/orders/user/{userId}", orderHandler.HandleListByUser)
	route("GET /api/orders/{id}", orderHandler.HandleGet)
	protected("PATCH /api/orders/{id}/status", orderHandler.HandleUpdateStatus)
	protected("DELETE /api/orders/{id}", orderHandler.HandleDelete)

	route("GET /api/reviews", reviewHandler.HandleList)
	route("GET /api/reviews/user/{userId}", reviewHandler.HandleListByUser)
	route("GET /api/reviews/book/{bookId}", reviewHandler.HandleListByBook)
	route("GET /api/reviews/{id}", reviewHandler.HandleGet)
	protected("POST /api/reviews", reviewHandler.HandleCreate)
	protected("PUT /api/reviews/{id}", reviewHandler.HandleUpdate)
	protected("DELETE /api/reviews/{id}", reviewHandler.HandleDelete)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
