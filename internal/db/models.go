package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// WebhookEvent is one verified delivery from the billing provider. Rows are
// append-only: they exist for audit and replay, and are never read back by
// the reconciliation path. Duplicate provider event ids are expected and kept.
type WebhookEvent struct {
	ID                uuid.UUID `json:"id"`
	ProviderEventID   string    `json:"provider_event_id"`
	EventType         string    `json:"event_type"`
	ProviderCreatedAt time.Time `json:"provider_created_at"`
	Payload           []byte    `json:"payload"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Subscription is the local mirror of one provider subscription, keyed by the
// provider's id. Authoritative status/price/period fields come from the
// customer.subscription.* events; partner, quote, customer display fields and
// the kit details come from the checkout session. At most one row exists per
// provider subscription id. Rows are never deleted, only moved to a terminal
// status.
type Subscription struct {
	ID                     uuid.UUID          `json:"id"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	Status                 string             `json:"status"`
	PriceID                pgtype.Text        `json:"price_id"`
	ProductID              pgtype.Text        `json:"product_id"`
	Currency               pgtype.Text        `json:"currency"`
	AmountCents            pgtype.Int8        `json:"amount_cents"`
	BillingInterval        pgtype.Text        `json:"billing_interval"`
	PartnerID              pgtype.Text        `json:"partner_id"`
	QuoteID                pgtype.Text        `json:"quote_id"`
	CustomerName           pgtype.Text        `json:"customer_name"`
	CustomerEmail          pgtype.Text        `json:"customer_email"`
	CameraCount            pgtype.Int4        `json:"camera_count"`
	StarterKitIncluded     pgtype.Bool        `json:"starter_kit_included"`
	CurrentPeriodStart     pgtype.Timestamptz `json:"current_period_start"`
	CurrentPeriodEnd       pgtype.Timestamptz `json:"current_period_end"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CancellationReason     pgtype.Text        `json:"cancellation_reason"`
	Metadata               []byte             `json:"metadata"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// Invoice records a payment fact, keyed by the provider invoice id. The
// subscription link is best-effort: both link columns may be NULL when the
// subscription row had not materialized at recording time.
type Invoice struct {
	ID                     uuid.UUID   `json:"id"`
	ProviderInvoiceID      string      `json:"provider_invoice_id"`
	ProviderSubscriptionID pgtype.Text `json:"provider_subscription_id"`
	SubscriptionID         pgtype.UUID `json:"subscription_id"`
	Status                 string      `json:"status"`
	AmountPaidCents        int64       `json:"amount_paid_cents"`
	AmountDueCents         int64       `json:"amount_due_cents"`
	Currency               string      `json:"currency"`
	CustomerEmail          pgtype.Text `json:"customer_email"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}
