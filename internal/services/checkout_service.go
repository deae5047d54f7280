package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/metrics"
)

// errSubscriptionNotReady signals a lookup that found nothing yet and should
// be retried within the attempt budget.
var errSubscriptionNotReady = errors.New("subscription record not materialized yet")

// CheckoutService bridges the race between checkout.session.completed and
// customer.subscription.created. The session carries partner/quote/customer
// context but only references the subscription id; the created event carries
// the authoritative subscription fields but no checkout context. Delivery
// order between the two is not guaranteed, so the resolver polls the
// subscription store with a fixed delay and a fixed attempt ceiling and merges
// the checkout context once the record exists.
type CheckoutService struct {
	queries  db.Querier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	attempts int
	delay    time.Duration
}

// NewCheckoutService creates a checkout completion resolver with the given
// poll budget.
func NewCheckoutService(queries db.Querier, logger *zap.Logger, m *metrics.Metrics, attempts int, delay time.Duration) *CheckoutService {
	if attempts < 1 {
		attempts = 1
	}
	return &CheckoutService{
		queries:  queries,
		logger:   logger,
		metrics:  m,
		attempts: attempts,
		delay:    delay,
	}
}

// HandleCompleted merges checkout-only context into the subscription record
// referenced by the session. Sessions that are not paid subscription
// checkouts are ignored. When the record does not materialize within the
// attempt budget the context is dropped and the loss is observable only via
// logs and the checkout_resolutions counter; no error reaches the caller.
func (s *CheckoutService) HandleCompleted(ctx context.Context, event *billing.Event) error {
	session, err := billing.ParseCheckoutSession(event.Raw)
	if err != nil {
		return err
	}

	if !session.IsPaidSubscription() {
		s.metrics.CheckoutResolutions.WithLabelValues(metrics.CheckoutSkipped).Inc()
		s.logger.Info("checkout session is not a paid subscription checkout, skipping",
			zap.String("checkout_session_id", session.ID),
			zap.String("mode", session.Mode),
			zap.String("payment_status", session.PaymentStatus),
		)
		return nil
	}

	sub, err := s.awaitSubscription(ctx, session.Subscription)
	if err != nil {
		if errors.Is(err, errSubscriptionNotReady) {
			s.metrics.CheckoutResolutions.WithLabelValues(metrics.CheckoutExhausted).Inc()
			s.logger.Error("subscription never materialized within the attempt budget, dropping checkout context",
				zap.String("checkout_session_id", session.ID),
				zap.String("provider_subscription_id", session.Subscription),
				zap.Int("attempts", s.attempts),
				zap.Duration("delay", s.delay),
			)
			return nil
		}
		return err
	}

	if _, err := s.queries.UpsertSubscription(ctx, mergeCheckoutContext(sub, session)); err != nil {
		return errors.Wrapf(err, "merging checkout context into subscription %s", session.Subscription)
	}

	s.metrics.CheckoutResolutions.WithLabelValues(metrics.CheckoutResolved).Inc()
	s.logger.Info("checkout context merged into subscription",
		zap.String("checkout_session_id", session.ID),
		zap.String("provider_subscription_id", session.Subscription),
		zap.String("partner_id", session.PartnerID()),
		zap.String("quote_id", session.QuoteID()),
	)
	return nil
}

// awaitSubscription polls for the subscription record. Constant delay, no
// jitter; the budget is bounded by attempts and by the request context.
func (s *CheckoutService) awaitSubscription(ctx context.Context, providerSubscriptionID string) (db.Subscription, error) {
	var sub db.Subscription

	operation := func() error {
		var err error
		sub, err = s.queries.GetSubscriptionByProviderID(ctx, providerSubscriptionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Debug("subscription not found yet, will retry",
					zap.String("provider_subscription_id", providerSubscriptionID),
				)
				return errSubscriptionNotReady
			}
			return backoff.Permanent(errors.Wrapf(err, "looking up subscription %s", providerSubscriptionID))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.delay), uint64(s.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return db.Subscription{}, err
	}
	return sub, nil
}

// mergeCheckoutContext overlays checkout-only fields onto an existing record
// without touching the authoritative status/price/period fields owned by the
// subscription event handlers. A partner id already on the record survives a
// session that does not carry one.
func mergeCheckoutContext(existing db.Subscription, session *billing.CheckoutSessionPayload) db.UpsertSubscriptionParams {
	params := db.UpsertSubscriptionParams{
		ID:                     existing.ID,
		ProviderSubscriptionID: existing.ProviderSubscriptionID,
		Status:                 existing.Status,
		PriceID:                existing.PriceID,
		ProductID:              existing.ProductID,
		Currency:               existing.Currency,
		AmountCents:            existing.AmountCents,
		BillingInterval:        existing.BillingInterval,
		PartnerID:              existing.PartnerID,
		QuoteID:                existing.QuoteID,
		CustomerName:           existing.CustomerName,
		CustomerEmail:          existing.CustomerEmail,
		CameraCount:            existing.CameraCount,
		StarterKitIncluded:     existing.StarterKitIncluded,
		CurrentPeriodStart:     existing.CurrentPeriodStart,
		CurrentPeriodEnd:       existing.CurrentPeriodEnd,
		CancelAtPeriodEnd:      existing.CancelAtPeriodEnd,
		CancellationReason:     existing.CancellationReason,
		Metadata:               existing.Metadata,
	}

	if partnerID := session.PartnerID(); partnerID != "" {
		params.PartnerID = textOrNull(partnerID)
	}
	if quoteID := session.QuoteID(); quoteID != "" {
		params.QuoteID = textOrNull(quoteID)
	}
	if name := session.CustomerDetails.Name; name != "" {
		params.CustomerName = textOrNull(name)
	}
	if email := session.CustomerDetails.Email; email != "" {
		params.CustomerEmail = textOrNull(email)
	}
	if count := session.CameraCount(); count > 0 {
		params.CameraCount = pgtype.Int4{Int32: count, Valid: true}
	}
	params.StarterKitIncluded = pgtype.Bool{Bool: session.StarterKitIncluded(), Valid: true}

	return params
}
