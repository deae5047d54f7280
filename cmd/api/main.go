package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/client/aws"
	"github.com/sitelink/sitelink-api/internal/config"
	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/logger"
	"github.com/sitelink/sitelink-api/internal/metrics"
	"github.com/sitelink/sitelink-api/internal/server"
	"github.com/sitelink/sitelink-api/internal/services"
)

// @title           SiteLink Billing Sync API
// @version         1.0
// @description     Webhook-driven subscription reconciliation for the SiteLink partner platform

// @host      localhost:8080
// @BasePath  /api/v1
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(cfg.Stage)
	defer logger.Sync()

	ctx := context.Background()

	resolveWebhookSecret(ctx, cfg)
	if cfg.StripeWebhookSecret == "" {
		logger.Fatal("no webhook signing secret configured; set STRIPE_WEBHOOK_SECRET or STRIPE_WEBHOOK_SECRET_ARN")
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to run database migrations", zap.Error(err))
		}
		logger.Info("database schema is current")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("unable to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	queries := db.New(pool)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	subscriptionService := services.NewSubscriptionService(queries, logger.Log, m)
	checkoutService := services.NewCheckoutService(queries, logger.Log, m, cfg.CheckoutLookupAttempts, cfg.CheckoutLookupDelay)
	invoiceService := services.NewInvoiceService(queries, logger.Log, m)
	processor := services.NewWebhookProcessor(queries, logger.Log, m, subscriptionService, checkoutService, invoiceService)

	router := server.New(server.Dependencies{
		Config:    cfg,
		Pool:      pool,
		Queries:   queries,
		Registry:  registry,
		Verifier:  billing.NewVerifier(cfg.StripeWebhookSecret),
		Processor: processor,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests a deadline for completion. The deadline also
	// bounds any checkout resolver still polling for a late subscription.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}

// resolveWebhookSecret swaps the signing secret for the Secrets Manager value
// when an ARN is configured. Environments without AWS credentials keep the
// plain environment variable.
func resolveWebhookSecret(ctx context.Context, cfg *config.Config) {
	if os.Getenv("STRIPE_WEBHOOK_SECRET_ARN") == "" {
		return
	}

	client, err := aws.NewSecretsManagerClient(ctx)
	if err != nil {
		logger.Warn("unable to initialize Secrets Manager client, using STRIPE_WEBHOOK_SECRET", zap.Error(err))
		return
	}

	secret, err := client.GetSecretString(ctx, "STRIPE_WEBHOOK_SECRET_ARN", "STRIPE_WEBHOOK_SECRET")
	if err != nil {
		logger.Warn("unable to resolve webhook secret from Secrets Manager, using STRIPE_WEBHOOK_SECRET", zap.Error(err))
		return
	}
	cfg.StripeWebhookSecret = secret
}
