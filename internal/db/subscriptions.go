package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const subscriptionColumns = `
id, provider_subscription_id, status, price_id, product_id, currency, amount_cents,
billing_interval, partner_id, quote_id, customer_name, customer_email, camera_count,
starter_kit_included, current_period_start, current_period_end, cancel_at_period_end,
cancellation_reason, metadata, created_at, updated_at`

const getSubscriptionByProviderID = `
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE provider_subscription_id = $1
`

func (q *Queries) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (Subscription, error) {
	row := q.db.QueryRow(ctx, getSubscriptionByProviderID, providerSubscriptionID)
	return scanSubscription(row)
}

const upsertSubscription = `
INSERT INTO subscriptions (
	id, provider_subscription_id, status, price_id, product_id, currency, amount_cents,
	billing_interval, partner_id, quote_id, customer_name, customer_email, camera_count,
	starter_kit_included, current_period_start, current_period_end, cancel_at_period_end,
	cancellation_reason, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (provider_subscription_id) DO UPDATE SET
	status               = EXCLUDED.status,
	price_id             = EXCLUDED.price_id,
	product_id           = EXCLUDED.product_id,
	currency             = EXCLUDED.currency,
	amount_cents         = EXCLUDED.amount_cents,
	billing_interval     = EXCLUDED.billing_interval,
	partner_id           = EXCLUDED.partner_id,
	quote_id             = EXCLUDED.quote_id,
	customer_name        = EXCLUDED.customer_name,
	customer_email       = EXCLUDED.customer_email,
	camera_count         = EXCLUDED.camera_count,
	starter_kit_included = EXCLUDED.starter_kit_included,
	current_period_start = EXCLUDED.current_period_start,
	current_period_end   = EXCLUDED.current_period_end,
	cancel_at_period_end = EXCLUDED.cancel_at_period_end,
	cancellation_reason  = EXCLUDED.cancellation_reason,
	metadata             = EXCLUDED.metadata,
	updated_at           = now()
RETURNING ` + subscriptionColumns

// UpsertSubscriptionParams is the full field set for one subscription row.
// Callers read the existing row first and merge; the upsert itself is
// last-writer-wins on the provider subscription id.
type UpsertSubscriptionParams struct {
	ID                     uuid.UUID
	ProviderSubscriptionID string
	Status                 string
	PriceID                pgtype.Text
	ProductID              pgtype.Text
	Currency               pgtype.Text
	AmountCents            pgtype.Int8
	BillingInterval        pgtype.Text
	PartnerID              pgtype.Text
	QuoteID                pgtype.Text
	CustomerName           pgtype.Text
	CustomerEmail          pgtype.Text
	CameraCount            pgtype.Int4
	StarterKitIncluded     pgtype.Bool
	CurrentPeriodStart     pgtype.Timestamptz
	CurrentPeriodEnd       pgtype.Timestamptz
	CancelAtPeriodEnd      bool
	CancellationReason     pgtype.Text
	Metadata               []byte
}

func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, upsertSubscription,
		arg.ID,
		arg.ProviderSubscriptionID,
		arg.Status,
		arg.PriceID,
		arg.ProductID,
		arg.Currency,
		arg.AmountCents,
		arg.BillingInterval,
		arg.PartnerID,
		arg.QuoteID,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CameraCount,
		arg.StarterKitIncluded,
		arg.CurrentPeriodStart,
		arg.CurrentPeriodEnd,
		arg.CancelAtPeriodEnd,
		arg.CancellationReason,
		arg.Metadata,
	)
	return scanSubscription(row)
}

const updateSubscriptionStatus = `
UPDATE subscriptions SET
	status              = $2,
	cancellation_reason = COALESCE($3, cancellation_reason),
	updated_at          = now()
WHERE provider_subscription_id = $1
RETURNING ` + subscriptionColumns

// UpdateSubscriptionStatusParams patches only the status (and optionally the
// cancellation reason) of an existing row.
type UpdateSubscriptionStatusParams struct {
	ProviderSubscriptionID string
	Status                 string
	CancellationReason     pgtype.Text
}

func (q *Queries) UpdateSubscriptionStatus(ctx context.Context, arg UpdateSubscriptionStatusParams) (Subscription, error) {
	row := q.db.QueryRow(ctx, updateSubscriptionStatus, arg.ProviderSubscriptionID, arg.Status, arg.CancellationReason)
	return scanSubscription(row)
}

const listSubscriptions = `
SELECT ` + subscriptionColumns + `
FROM subscriptions
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

type ListSubscriptionsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListSubscriptions(ctx context.Context, arg ListSubscriptionsParams) ([]Subscription, error) {
	rows, err := q.db.Query(ctx, listSubscriptions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

const countSubscriptions = `SELECT count(*) FROM subscriptions`

func (q *Queries) CountSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countSubscriptions).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row scanner) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID,
		&s.ProviderSubscriptionID,
		&s.Status,
		&s.PriceID,
		&s.ProductID,
		&s.Currency,
		&s.AmountCents,
		&s.BillingInterval,
		&s.PartnerID,
		&s.QuoteID,
		&s.CustomerName,
		&s.CustomerEmail,
		&s.CameraCount,
		&s.StarterKitIncluded,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CancellationReason,
		&s.Metadata,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}
