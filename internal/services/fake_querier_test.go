package services_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/db"
	"github.com/sitelink/sitelink-api/internal/metrics"
)

// fakeQuerier is an in-memory db.Querier. It is stateful on purpose: the
// checkout resolver tests mutate the subscription store from another
// goroutine while the resolver is polling it.
type fakeQuerier struct {
	mu sync.Mutex

	events        []db.WebhookEvent
	subscriptions map[string]db.Subscription
	invoices      map[string]db.Invoice

	insertEventErr error
	getSubErr      error
}

var _ db.Querier = (*fakeQuerier)(nil)

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		subscriptions: make(map[string]db.Subscription),
		invoices:      make(map[string]db.Invoice),
	}
}

func (f *fakeQuerier) InsertWebhookEvent(_ context.Context, arg db.InsertWebhookEventParams) (db.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertEventErr != nil {
		return db.WebhookEvent{}, f.insertEventErr
	}
	event := db.WebhookEvent{
		ID:                arg.ID,
		ProviderEventID:   arg.ProviderEventID,
		EventType:         arg.EventType,
		ProviderCreatedAt: arg.ProviderCreatedAt,
		Payload:           arg.Payload,
	}
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeQuerier) GetWebhookEvent(_ context.Context, id uuid.UUID) (db.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return e, nil
		}
	}
	return db.WebhookEvent{}, pgx.ErrNoRows
}

func (f *fakeQuerier) ListWebhookEvents(_ context.Context, arg db.ListWebhookEventsParams) ([]db.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.WebhookEvent(nil), f.events...), nil
}

func (f *fakeQuerier) CountWebhookEvents(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.events)), nil
}

func (f *fakeQuerier) GetSubscriptionByProviderID(_ context.Context, providerSubscriptionID string) (db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getSubErr != nil {
		return db.Subscription{}, f.getSubErr
	}
	sub, ok := f.subscriptions[providerSubscriptionID]
	if !ok {
		return db.Subscription{}, pgx.ErrNoRows
	}
	return sub, nil
}

func (f *fakeQuerier) UpsertSubscription(_ context.Context, arg db.UpsertSubscriptionParams) (db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := db.Subscription{
		ID:                     arg.ID,
		ProviderSubscriptionID: arg.ProviderSubscriptionID,
		Status:                 arg.Status,
		PriceID:                arg.PriceID,
		ProductID:              arg.ProductID,
		Currency:               arg.Currency,
		AmountCents:            arg.AmountCents,
		BillingInterval:        arg.BillingInterval,
		PartnerID:              arg.PartnerID,
		QuoteID:                arg.QuoteID,
		CustomerName:           arg.CustomerName,
		CustomerEmail:          arg.CustomerEmail,
		CameraCount:            arg.CameraCount,
		StarterKitIncluded:     arg.StarterKitIncluded,
		CurrentPeriodStart:     arg.CurrentPeriodStart,
		CurrentPeriodEnd:       arg.CurrentPeriodEnd,
		CancelAtPeriodEnd:      arg.CancelAtPeriodEnd,
		CancellationReason:     arg.CancellationReason,
		Metadata:               arg.Metadata,
	}
	if existing, ok := f.subscriptions[arg.ProviderSubscriptionID]; ok {
		// Conflict on provider_subscription_id keeps the original row id.
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	f.subscriptions[arg.ProviderSubscriptionID] = sub
	return sub, nil
}

func (f *fakeQuerier) UpdateSubscriptionStatus(_ context.Context, arg db.UpdateSubscriptionStatusParams) (db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[arg.ProviderSubscriptionID]
	if !ok {
		return db.Subscription{}, pgx.ErrNoRows
	}
	sub.Status = arg.Status
	if arg.CancellationReason.Valid {
		sub.CancellationReason = arg.CancellationReason
	}
	f.subscriptions[arg.ProviderSubscriptionID] = sub
	return sub, nil
}

func (f *fakeQuerier) ListSubscriptions(_ context.Context, arg db.ListSubscriptionsParams) ([]db.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := make([]db.Subscription, 0, len(f.subscriptions))
	for _, s := range f.subscriptions {
		subs = append(subs, s)
	}
	return subs, nil
}

func (f *fakeQuerier) CountSubscriptions(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.subscriptions)), nil
}

func (f *fakeQuerier) UpsertInvoice(_ context.Context, arg db.UpsertInvoiceParams) (db.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := db.Invoice{
		ID:                     arg.ID,
		ProviderInvoiceID:      arg.ProviderInvoiceID,
		ProviderSubscriptionID: arg.ProviderSubscriptionID,
		SubscriptionID:         arg.SubscriptionID,
		Status:                 arg.Status,
		AmountPaidCents:        arg.AmountPaidCents,
		AmountDueCents:         arg.AmountDueCents,
		Currency:               arg.Currency,
		CustomerEmail:          arg.CustomerEmail,
	}
	if existing, ok := f.invoices[arg.ProviderInvoiceID]; ok {
		inv.ID = existing.ID
		if !inv.SubscriptionID.Valid {
			inv.SubscriptionID = existing.SubscriptionID
		}
		if !inv.ProviderSubscriptionID.Valid {
			inv.ProviderSubscriptionID = existing.ProviderSubscriptionID
		}
	}
	f.invoices[arg.ProviderInvoiceID] = inv
	return inv, nil
}

func (f *fakeQuerier) ListInvoicesByProviderSubscriptionID(_ context.Context, providerSubscriptionID string) ([]db.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var invoices []db.Invoice
	for _, inv := range f.invoices {
		if inv.ProviderSubscriptionID.Valid && inv.ProviderSubscriptionID.String == providerSubscriptionID {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

func (f *fakeQuerier) subscription(providerSubscriptionID string) (db.Subscription, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subscriptions[providerSubscriptionID]
	return sub, ok
}

func (f *fakeQuerier) setSubscription(sub db.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[sub.ProviderSubscriptionID] = sub
}

func (f *fakeQuerier) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func textValue(v string) pgtype.Text {
	return pgtype.Text{String: v, Valid: true}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}
