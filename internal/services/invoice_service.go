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

// InvoiceService records payment facts from invoice.payment_* events and
// patches subscription health on failed payments.
type InvoiceService struct {
	queries db.Querier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewInvoiceService creates a new invoice recorder.
func NewInvoiceService(queries db.Querier, logger *zap.Logger, m *metrics.Metrics) *InvoiceService {
	return &InvoiceService{queries: queries, logger: logger, metrics: m}
}

// HandlePaymentSucceeded records the paid invoice. Linking to the local
// subscription row is best effort: payment facts are recorded even when the
// subscription is unknown, with a NULL link that later deliveries can fill.
func (s *InvoiceService) HandlePaymentSucceeded(ctx context.Context, event *billing.Event) error {
	payload, err := billing.ParseInvoice(event.Raw)
	if err != nil {
		return err
	}

	params := db.UpsertInvoiceParams{
		ID:                     uuid.New(),
		ProviderInvoiceID:      payload.ID,
		ProviderSubscriptionID: textOrNull(payload.Subscription),
		Status:                 "paid",
		AmountPaidCents:        payload.AmountPaid,
		AmountDueCents:         payload.AmountDue,
		Currency:               payload.Currency,
		CustomerEmail:          textOrNull(payload.CustomerEmail),
	}

	if payload.Subscription != "" {
		sub, err := s.queries.GetSubscriptionByProviderID(ctx, payload.Subscription)
		switch {
		case err == nil:
			params.SubscriptionID = pgtype.UUID{Bytes: sub.ID, Valid: true}
		case errors.Is(err, pgx.ErrNoRows):
			s.logger.Info("invoice references unknown subscription, recording without link",
				zap.String("provider_invoice_id", payload.ID),
				zap.String("provider_subscription_id", payload.Subscription),
			)
		default:
			return errors.Wrapf(err, "looking up subscription %s for invoice %s", payload.Subscription, payload.ID)
		}
	}

	if _, err := s.queries.UpsertInvoice(ctx, params); err != nil {
		return errors.Wrapf(err, "recording invoice %s", payload.ID)
	}

	s.logger.Info("invoice payment recorded",
		zap.String("provider_invoice_id", payload.ID),
		zap.String("provider_subscription_id", payload.Subscription),
		zap.Int64("amount_paid_cents", payload.AmountPaid),
		zap.String("currency", payload.Currency),
	)
	return nil
}

// HandlePaymentFailed marks the referenced subscription past_due. An invoice
// without a subscription reference, or one whose subscription is unknown
// locally, is a logged no-op.
func (s *InvoiceService) HandlePaymentFailed(ctx context.Context, event *billing.Event) error {
	payload, err := billing.ParseInvoice(event.Raw)
	if err != nil {
		return err
	}

	if payload.Subscription == "" {
		s.logger.Info("failed invoice has no subscription reference, skipping",
			zap.String("provider_invoice_id", payload.ID),
		)
		return nil
	}

	if _, err := s.queries.GetSubscriptionByProviderID(ctx, payload.Subscription); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.ReconciliationMisses.WithLabelValues("invoice_failed").Inc()
			s.logger.Warn("failed invoice for unknown subscription, skipping",
				zap.String("provider_invoice_id", payload.ID),
				zap.String("provider_subscription_id", payload.Subscription),
			)
			return nil
		}
		return errors.Wrapf(err, "looking up subscription %s for failed invoice %s", payload.Subscription, payload.ID)
	}

	if _, err := s.queries.UpdateSubscriptionStatus(ctx, db.UpdateSubscriptionStatusParams{
		ProviderSubscriptionID: payload.Subscription,
		Status:                 "past_due",
	}); err != nil {
		return errors.Wrapf(err, "marking subscription %s past_due", payload.Subscription)
	}

	s.logger.Warn("subscription marked past_due after failed payment",
		zap.String("provider_invoice_id", payload.ID),
		zap.String("provider_subscription_id", payload.Subscription),
		zap.Int64("amount_due_cents", payload.AmountDue),
	)
	return nil
}
