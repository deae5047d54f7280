// Package server assembles the gin engine: middleware, routes and the
// Prometheus endpoint.
package server

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/config"
	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/handlers"
	"github.com/sitelink/sitelink-api/internal/logger"
	"github.com/sitelink/sitelink-api/internal/services"
)

// Dependencies carries everything the router needs. The caller owns the pool
// and registry lifecycles.
type Dependencies struct {
	Config    *config.Config
	Pool      *pgxpool.Pool
	Queries   db.Querier
	Registry  *prometheus.Registry
	Verifier  *billing.Verifier
	Processor *services.WebhookProcessor
}

// New builds the gin engine with all routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Stage == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(configureCORS(deps.Config))

	// if we are not in production, log the request body
	if deps.Config.Stage != "release" {
		router.Use(handlers.LogRequest())
	}

	healthHandler := handlers.NewHealthHandler(deps.Pool)
	router.GET("/health", healthHandler.Health)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// The webhook endpoint lives outside /api/v1: the provider signs the raw
	// body and the path is configured once in its dashboard.
	webhookHandler := handlers.NewWebhookHandler(deps.Verifier, deps.Processor)
	router.POST("/webhooks/stripe", webhookHandler.HandleProviderWebhook)

	common := handlers.NewCommonServices(deps.Queries)
	webhookEventHandler := handlers.NewWebhookEventHandler(common)
	subscriptionHandler := handlers.NewSubscriptionHandler(common)

	// API v1 routes: read-only views for the back office
	v1 := router.Group("/api/v1")
	{
		webhookEvents := v1.Group("/webhook-events")
		{
			webhookEvents.GET("", webhookEventHandler.ListWebhookEvents)
			webhookEvents.GET("/:event_id", webhookEventHandler.GetWebhookEvent)
		}

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("", subscriptionHandler.ListSubscriptions)
			subscriptions.GET("/:provider_subscription_id", subscriptionHandler.GetSubscription)
			subscriptions.GET("/:provider_subscription_id/invoices", subscriptionHandler.ListSubscriptionInvoices)
		}
	}

	logger.Info("routes registered")
	return router
}

func configureCORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if len(cfg.CORSAllowedOrigins) == 0 {
		// Default to localhost if not set
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		origins := make([]string, len(cfg.CORSAllowedOrigins))
		for i, origin := range cfg.CORSAllowedOrigins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Stripe-Signature"}

	return cors.New(corsConfig)
}
