package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `
id, provider_invoice_id, provider_subscription_id, subscription_id, status,
amount_paid_cents, amount_due_cents, currency, customer_email, created_at, updated_at`

const upsertInvoice = `
INSERT INTO invoices (
	id, provider_invoice_id, provider_subscription_id, subscription_id, status,
	amount_paid_cents, amount_due_cents, currency, customer_email
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (provider_invoice_id) DO UPDATE SET
	provider_subscription_id = COALESCE(EXCLUDED.provider_subscription_id, invoices.provider_subscription_id),
	subscription_id          = COALESCE(EXCLUDED.subscription_id, invoices.subscription_id),
	status                   = EXCLUDED.status,
	amount_paid_cents        = EXCLUDED.amount_paid_cents,
	amount_due_cents         = EXCLUDED.amount_due_cents,
	currency                 = EXCLUDED.currency,
	customer_email           = EXCLUDED.customer_email,
	updated_at               = now()
RETURNING ` + invoiceColumns

// UpsertInvoiceParams records one payment fact. The unique key is the
// provider invoice id, so redeliveries converge on a single row; an earlier
// subscription link is never cleared by a later delivery without one.
type UpsertInvoiceParams struct {
	ID                     uuid.UUID
	ProviderInvoiceID      string
	ProviderSubscriptionID pgtype.Text
	SubscriptionID         pgtype.UUID
	Status                 string
	AmountPaidCents        int64
	AmountDueCents         int64
	Currency               string
	CustomerEmail          pgtype.Text
}

func (q *Queries) UpsertInvoice(ctx context.Context, arg UpsertInvoiceParams) (Invoice, error) {
	row := q.db.QueryRow(ctx, upsertInvoice,
		arg.ID,
		arg.ProviderInvoiceID,
		arg.ProviderSubscriptionID,
		arg.SubscriptionID,
		arg.Status,
		arg.AmountPaidCents,
		arg.AmountDueCents,
		arg.Currency,
		arg.CustomerEmail,
	)
	return scanInvoice(row)
}

const listInvoicesByProviderSubscriptionID = `
SELECT ` + invoiceColumns + `
FROM invoices
WHERE provider_subscription_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListInvoicesByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoicesByProviderSubscriptionID, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row scanner) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.ProviderInvoiceID,
		&i.ProviderSubscriptionID,
		&i.SubscriptionID,
		&i.Status,
		&i.AmountPaidCents,
		&i.AmountDueCents,
		&i.Currency,
		&i.CustomerEmail,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
