// Package services implements the reconciliation engine behind the webhook
// endpoint: dispatching recorded events to the subscription reconciler, the
// checkout completion resolver and the invoice recorder.
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/metrics"
)

// SubscriptionService owns the subscription record lifecycle: creation from
// customer.subscription.created, in-place merges from updated/deleted events.
// Every write is a read-then-upsert keyed on the provider subscription id, so
// redelivery and concurrent delivery converge on the provider's view.
type SubscriptionService struct {
	queries db.Querier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSubscriptionService creates a new subscription reconciler.
func NewSubscriptionService(queries db.Querier, logger *zap.Logger, m *metrics.Metrics) *SubscriptionService {
	return &SubscriptionService{queries: queries, logger: logger, metrics: m}
}

// HandleCreated materializes the local record for a provider subscription.
// If the record already exists (redelivery, or a concurrent write), the
// authoritative fields are refreshed in place; creation is idempotent.
func (s *SubscriptionService) HandleCreated(ctx context.Context, event *billing.Event) error {
	payload, err := billing.ParseSubscription(event.Raw)
	if err != nil {
		return err
	}

	existing, found, err := s.lookup(ctx, payload.ID)
	if err != nil {
		return err
	}

	if _, err := s.queries.UpsertSubscription(ctx, mergeAuthoritative(existing, found, payload)); err != nil {
		return errors.Wrapf(err, "upserting subscription %s", payload.ID)
	}

	s.logger.Info("subscription reconciled from created event",
		zap.String("provider_subscription_id", payload.ID),
		zap.String("status", payload.Status),
		zap.Bool("already_existed", found),
	)
	return nil
}

// HandleUpdated patches the authoritative fields of an existing record. An
// update for a subscription with no local record is a logged no-op: there is
// nothing to reconcile against until the created event (or the checkout
// resolver's merge target) lands.
func (s *SubscriptionService) HandleUpdated(ctx context.Context, event *billing.Event) error {
	payload, err := billing.ParseSubscription(event.Raw)
	if err != nil {
		return err
	}

	existing, found, err := s.lookup(ctx, payload.ID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.ReconciliationMisses.WithLabelValues("update").Inc()
		s.logger.Warn("update event for unknown subscription, skipping",
			zap.String("provider_subscription_id", payload.ID),
			zap.String("provider_event_id", event.ID),
		)
		return nil
	}

	if _, err := s.queries.UpsertSubscription(ctx, mergeAuthoritative(existing, true, payload)); err != nil {
		return errors.Wrapf(err, "updating subscription %s", payload.ID)
	}

	s.logger.Info("subscription reconciled from updated event",
		zap.String("provider_subscription_id", payload.ID),
		zap.String("status", payload.Status),
	)
	return nil
}

// HandleDeleted moves an existing record to the terminal status carried by
// the event. Absent record: no-op. A deleted event arriving before created is
// an accepted loss scenario.
func (s *SubscriptionService) HandleDeleted(ctx context.Context, event *billing.Event) error {
	payload, err := billing.ParseSubscription(event.Raw)
	if err != nil {
		return err
	}

	_, found, err := s.lookup(ctx, payload.ID)
	if err != nil {
		return err
	}
	if !found {
		s.metrics.ReconciliationMisses.WithLabelValues("delete").Inc()
		s.logger.Warn("delete event for unknown subscription, skipping",
			zap.String("provider_subscription_id", payload.ID),
			zap.String("provider_event_id", event.ID),
		)
		return nil
	}

	status := payload.Status
	if status == "" {
		status = "canceled"
	}

	_, err = s.queries.UpdateSubscriptionStatus(ctx, db.UpdateSubscriptionStatusParams{
		ProviderSubscriptionID: payload.ID,
		Status:                 status,
		CancellationReason:     textOrNull(payload.CancellationDetails.Reason),
	})
	if err != nil {
		return errors.Wrapf(err, "terminating subscription %s", payload.ID)
	}

	s.logger.Info("subscription moved to terminal status",
		zap.String("provider_subscription_id", payload.ID),
		zap.String("status", status),
	)
	return nil
}

func (s *SubscriptionService) lookup(ctx context.Context, providerSubscriptionID string) (db.Subscription, bool, error) {
	sub, err := s.queries.GetSubscriptionByProviderID(ctx, providerSubscriptionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Subscription{}, false, nil
		}
		return db.Subscription{}, false, errors.Wrapf(err, "looking up subscription %s", providerSubscriptionID)
	}
	return sub, true, nil
}

// mergeAuthoritative builds the upsert field set for a subscription event:
// status, price, amount, period and cancellation fields always follow the
// event, which carries the provider's current authoritative view. Fields the
// checkout flow owns (quote, customer display fields, kit details) are
// carried over from the existing row, and a known partner id is never cleared
// by an event that does not carry one.
func mergeAuthoritative(existing db.Subscription, found bool, payload *billing.SubscriptionPayload) db.UpsertSubscriptionParams {
	params := db.UpsertSubscriptionParams{
		ID:                     uuid.New(),
		ProviderSubscriptionID: payload.ID,
		Status:                 payload.Status,
		PriceID:                textOrNull(payload.PriceID()),
		ProductID:              textOrNull(payload.ProductID()),
		Currency:               textOrNull(payload.Currency),
		BillingInterval:        textOrNull(payload.BillingInterval()),
		PartnerID:              textOrNull(payload.PartnerID()),
		CancelAtPeriodEnd:      payload.CancelAtPeriodEnd,
		CancellationReason:     textOrNull(payload.CancellationDetails.Reason),
	}

	if amount := payload.AmountCents(); amount != 0 {
		params.AmountCents = pgtype.Int8{Int64: amount, Valid: true}
	}
	if start := payload.PeriodStart(); !start.IsZero() {
		params.CurrentPeriodStart = pgtype.Timestamptz{Time: start, Valid: true}
	}
	if end := payload.PeriodEnd(); !end.IsZero() {
		params.CurrentPeriodEnd = pgtype.Timestamptz{Time: end, Valid: true}
	}
	if len(payload.Metadata) > 0 {
		params.Metadata = mustMarshalMetadata(payload.Metadata)
	}

	if found {
		params.ID = existing.ID
		params.QuoteID = existing.QuoteID
		params.CustomerName = existing.CustomerName
		params.CustomerEmail = existing.CustomerEmail
		params.CameraCount = existing.CameraCount
		params.StarterKitIncluded = existing.StarterKitIncluded

		if !params.PartnerID.Valid {
			params.PartnerID = existing.PartnerID
		}
		if !params.PriceID.Valid {
			params.PriceID = existing.PriceID
		}
		if !params.ProductID.Valid {
			params.ProductID = existing.ProductID
		}
		if !params.Currency.Valid {
			params.Currency = existing.Currency
		}
		if !params.BillingInterval.Valid {
			params.BillingInterval = existing.BillingInterval
		}
		if !params.AmountCents.Valid {
			params.AmountCents = existing.AmountCents
		}
		if !params.CurrentPeriodStart.Valid {
			params.CurrentPeriodStart = existing.CurrentPeriodStart
		}
		if !params.CurrentPeriodEnd.Valid {
			params.CurrentPeriodEnd = existing.CurrentPeriodEnd
		}
		if !params.CancellationReason.Valid {
			params.CancellationReason = existing.CancellationReason
		}
		if params.Metadata == nil {
			params.Metadata = existing.Metadata
		}
	}

	return params
}
