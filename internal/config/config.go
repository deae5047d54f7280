package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Defaults for the checkout resolution poll loop. The delay and attempt count
// bound how long a checkout.session.completed delivery will wait for the
// matching customer.subscription.created event to land.
const (
	DefaultCheckoutLookupAttempts = 5
	DefaultCheckoutLookupDelay    = 2 * time.Second
)

// Config carries all environment-dependent settings. It is built once at
// startup and passed into the engine explicitly; nothing below this layer
// reads the environment.
type Config struct {
	Port        string
	Stage       string
	DatabaseURL string

	// StripeWebhookSecret is the shared signing secret for inbound webhook
	// verification (whsec_...). Resolved in cmd/api, either directly from the
	// environment or from Secrets Manager.
	StripeWebhookSecret string

	CheckoutLookupAttempts int
	CheckoutLookupDelay    time.Duration

	RunMigrations      bool
	CORSAllowedOrigins []string
}

// Load reads configuration from the environment. DATABASE_URL is the only
// hard requirement at this point; the webhook secret is validated in cmd/api
// after secret resolution has had a chance to run.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "8080"),
		Stage:                  os.Getenv("GIN_MODE"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutLookupAttempts: DefaultCheckoutLookupAttempts,
		CheckoutLookupDelay:    DefaultCheckoutLookupDelay,
		RunMigrations:          true,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if v := os.Getenv("CHECKOUT_LOOKUP_ATTEMPTS"); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil || attempts < 1 {
			return nil, errors.Errorf("invalid CHECKOUT_LOOKUP_ATTEMPTS %q", v)
		}
		cfg.CheckoutLookupAttempts = attempts
	}

	if v := os.Getenv("CHECKOUT_LOOKUP_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil || delay < 0 {
			return nil, errors.Errorf("invalid CHECKOUT_LOOKUP_DELAY %q", v)
		}
		cfg.CheckoutLookupDelay = delay
	}

	if v := os.Getenv("RUN_MIGRATIONS"); v != "" {
		run, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Errorf("invalid RUN_MIGRATIONS %q", v)
		}
		cfg.RunMigrations = run
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
			}
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
