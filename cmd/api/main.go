package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/influencehub-backend/api/routes"
	"github.com/angelmondragon/influencehub-backend/internal/disputes"
	"github.com/angelmondragon/influencehub-backend/internal/entitysync"
	"github.com/angelmondragon/influencehub-backend/internal/escrow"
	"github.com/angelmondragon/influencehub-backend/internal/fees"
	"github.com/angelmondragon/influencehub-backend/internal/gateway"
	"github.com/angelmondragon/influencehub-backend/pkg/config"
	"github.com/angelmondragon/influencehub-backend/pkg/db"
	"github.com/angelmondragon/influencehub-backend/pkg/logger"
	"github.com/angelmondragon/influencehub-backend/pkg/metrics"
	"github.com/angelmondragon/influencehub-backend/pkg/migrate"
	"github.com/angelmondragon/influencehub-backend/pkg/outbox"
	"github.com/angelmondragon/influencehub-backend/pkg/redis"
	"github.com/angelmondragon/influencehub-backend/pkg/stripe"
	"github.com/angelmondragon/influencehub-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, "influencehub-api", logg)
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	escrowMetrics := metrics.NewEscrowMetrics(registry)

	paymentGateway, err := gateway.NewStripeGateway(
		gateway.NewStripeAPI(stripeClient),
		gateway.WithStatementDescriptor(stripeClient.StatementDescriptorSuffix()),
		gateway.WithMetrics(escrowMetrics),
	)
	if err != nil {
		logg.Error(ctx, "failed to create payment gateway", err)
		os.Exit(1)
	}

	calculator, err := fees.NewCalculator(fees.ScheduleFromConfig(cfg.Fees))
	if err != nil {
		logg.Error(ctx, "invalid fee schedule", err)
		os.Exit(1)
	}

	disputeHandler, err := disputes.NewHandler(disputes.NewRepository(dbClient.DB()), nil)
	if err != nil {
		logg.Error(ctx, "failed to create dispute handler", err)
		os.Exit(1)
	}

	escrowService, err := escrow.NewService(escrow.ServiceParams{
		Repo:           escrow.NewRepository(dbClient.DB()),
		Entities:       entitysync.NewRepository(dbClient.DB()),
		Sync:           entitysync.NewSyncer(),
		Disputes:       disputeHandler,
		Gateway:        paymentGateway,
		Fees:           calculator,
		Tx:             dbClient,
		Outbox:         outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Logger:         logg,
		Metrics:        escrowMetrics,
		GatewayTimeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to create escrow service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			escrowService,
			calculator,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop taking requests before closing the stores they use.
	shutdownErr := server.Shutdown(shutdownCtx)
	shutdownErr = multierr.Append(shutdownErr, redisClient.Close())
	shutdownErr = multierr.Append(shutdownErr, dbClient.Close())
	shutdownErr = multierr.Append(shutdownErr, shutdownTracing(shutdownCtx))
	if shutdownErr != nil {
		logg.Error(shutdownCtx, "api shutdown incomplete", shutdownErr)
		exitCode = 1
	}
	os.Exit(exitCode)
}
