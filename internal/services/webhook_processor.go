package services

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/metrics"
)

// eventHandler reconciles one verified event against local state.
type eventHandler func(ctx context.Context, event *billing.Event) error

// WebhookProcessor records verified deliveries and dispatches them to the
// reconciliation handlers. Recording comes first and is the only step whose
// failure propagates to the caller: once the audit row is committed the
// delivery is accepted, and handler failures are logged and counted so the
// provider does not redeliver an event this service already holds.
type WebhookProcessor struct {
	queries  db.Querier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handlers map[string]eventHandler
}

// NewWebhookProcessor wires the dispatch table over the three reconciliation
// services.
func NewWebhookProcessor(
	queries db.Querier,
	logger *zap.Logger,
	m *metrics.Metrics,
	subscriptions *SubscriptionService,
	checkouts *CheckoutService,
	invoices *InvoiceService,
) *WebhookProcessor {
	return &WebhookProcessor{
		queries: queries,
		logger:  logger,
		metrics: m,
		handlers: map[string]eventHandler{
			billing.EventSubscriptionCreated:      subscriptions.HandleCreated,
			billing.EventSubscriptionUpdated:      subscriptions.HandleUpdated,
			billing.EventSubscriptionDeleted:      subscriptions.HandleDeleted,
			billing.EventCheckoutSessionCompleted: checkouts.HandleCompleted,
			billing.EventInvoicePaymentSucceeded:  invoices.HandlePaymentSucceeded,
			billing.EventInvoicePaymentFailed:     invoices.HandlePaymentFailed,
		},
	}
}

// Process records the event and runs its handler. A non-nil return means the
// audit insert failed and the delivery should be retried by the provider;
// every other outcome, including handler failures and unhandled event types,
// is an accepted delivery.
func (p *WebhookProcessor) Process(ctx context.Context, event *billing.Event) error {
	if _, err := p.queries.InsertWebhookEvent(ctx, db.InsertWebhookEventParams{
		ID:                uuid.New(),
		ProviderEventID:   event.ID,
		EventType:         event.Type,
		ProviderCreatedAt: event.Created,
		Payload:           event.Raw,
	}); err != nil {
		return errors.Wrapf(err, "recording webhook event %s", event.ID)
	}
	p.metrics.EventsReceived.WithLabelValues(event.Type).Inc()

	handler, ok := p.handlers[event.Type]
	if !ok {
		p.metrics.EventsIgnored.Inc()
		p.logger.Info("unhandled event type recorded for audit only",
			zap.String("provider_event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		if p.logger.Core().Enabled(zap.DebugLevel) {
			p.logger.Debug("unhandled event payload", zap.String("payload", spew.Sdump(event)))
		}
		return nil
	}

	if err := handler(ctx, event); err != nil {
		p.metrics.HandlerFailures.WithLabelValues(event.Type).Inc()
		p.logger.Error("event handler failed after audit commit",
			zap.String("provider_event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
	}
	return nil
}
