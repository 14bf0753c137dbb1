package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gasflowhq/gasflow-backend/api/routes"
	"github.com/gasflowhq/gasflow-backend/internal/customers"
	"github.com/gasflowhq/gasflow-backend/internal/deliveries"
	"github.com/gasflowhq/gasflow-backend/internal/ledger"
	"github.com/gasflowhq/gasflow-backend/internal/payments"
	"github.com/gasflowhq/gasflow-backend/internal/webhooks"
	"github.com/gasflowhq/gasflow-backend/pkg/config"
	"github.com/gasflowhq/gasflow-backend/pkg/db"
	"github.com/gasflowhq/gasflow-backend/pkg/intasend"
	"github.com/gasflowhq/gasflow-backend/pkg/logger"
	"github.com/gasflowhq/gasflow-backend/pkg/metrics"
	"github.com/gasflowhq/gasflow-backend/pkg/migrate"
	"github.com/gasflowhq/gasflow-backend/pkg/outbox"
	"github.com/gasflowhq/gasflow-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var checkout *intasend.Client
	if cfg.IntaSend.PublicKey != "" {
		checkout, err = intasend.NewClient(context.Background(), cfg.IntaSend, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create intasend client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "intasend public key not set, checkout disabled")
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	customersSvc, err := customers.NewService(customers.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create customers service", err)
		os.Exit(1)
	}

	deliveriesSvc, err := deliveries.NewService(deliveries.NewRepository(dbClient.DB()), dbClient, ledgerSvc, outboxSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deliveries service", err)
		os.Exit(1)
	}

	var checkoutGateway payments.CheckoutCreator
	if checkout != nil {
		checkoutGateway = checkout
	}
	paymentsSvc, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		dbClient,
		ledgerSvc,
		outboxSvc,
		checkoutGateway,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	// Payments settles outstanding credit against new deliveries; the hook is
	// attached after both services exist to keep the packages independent.
	if setter, ok := deliveriesSvc.(deliveries.CreditSettlerSetter); ok {
		setter.SetCreditSettler(paymentsSvc)
	}

	webhooksSvc, err := webhooks.NewService(paymentsSvc, redisClient, cfg.IntaSend.WebhookChallenge, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhooks service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Customers:  customersSvc,
			Deliveries: deliveriesSvc,
			Ledger:     ledgerSvc,
			Payments:   paymentsSvc,
			Webhooks:   webhooksSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
