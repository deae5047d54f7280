package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/services"
)

func subscriptionEvent(eventType, raw string) *billing.Event {
	return &billing.Event{
		ID:      "evt_test_1",
		Type:    eventType,
		Created: time.Now().UTC(),
		Raw:     json.RawMessage(raw),
	}
}

const createdPayload = `{
	"id": "sub_100",
	"status": "active",
	"currency": "usd",
	"cancel_at_period_end": false,
	"current_period_start": 1735689600,
	"current_period_end": 1738368000,
	"metadata": {"partner_id": "partner_42"},
	"items": {"data": [{"price": {
		"id": "price_pro",
		"product": "prod_monitoring",
		"unit_amount": 4900,
		"recurring": {"interval": "month"}
	}}]}
}`

func TestSubscriptionServiceHandleCreated(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())

	err := svc.HandleCreated(context.Background(), subscriptionEvent(billing.EventSubscriptionCreated, createdPayload))
	require.NoError(t, err)

	sub, ok := store.subscription("sub_100")
	require.True(t, ok)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID.String)
	assert.Equal(t, "prod_monitoring", sub.ProductID.String)
	assert.Equal(t, int64(4900), sub.AmountCents.Int64)
	assert.Equal(t, "month", sub.BillingInterval.String)
	assert.Equal(t, "partner_42", sub.PartnerID.String)
	assert.True(t, sub.CurrentPeriodStart.Valid)
	assert.True(t, sub.CurrentPeriodEnd.Valid)
	assert.False(t, sub.CancelAtPeriodEnd)
}

func TestSubscriptionServiceHandleCreatedIsIdempotent(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))
	first, ok := store.subscription("sub_100")
	require.True(t, ok)

	// Redelivery of the same event converges on the same row.
	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))
	second, ok := store.subscription("sub_100")
	require.True(t, ok)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	count, err := store.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSubscriptionServiceHandleCreatedPreservesCheckoutContext(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	checkouts := services.NewCheckoutService(store, newTestLogger(), newTestMetrics(), 1, time.Millisecond)
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))
	require.NoError(t, checkouts.HandleCompleted(ctx, subscriptionEvent(billing.EventCheckoutSessionCompleted, `{
		"id": "cs_1", "mode": "subscription", "subscription": "sub_100", "payment_status": "paid",
		"metadata": {"quote_id": "quote_7", "camera_count": "12", "starter_kit_included": "true"},
		"customer_details": {"name": "Acme Security", "email": "ops@acme.example"}
	}`)))

	// A later created redelivery must not wipe the checkout-owned fields.
	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))

	sub, ok := store.subscription("sub_100")
	require.True(t, ok)
	assert.Equal(t, "quote_7", sub.QuoteID.String)
	assert.Equal(t, "Acme Security", sub.CustomerName.String)
	assert.Equal(t, "ops@acme.example", sub.CustomerEmail.String)
	assert.Equal(t, int32(12), sub.CameraCount.Int32)
	assert.True(t, sub.StarterKitIncluded.Bool)
	assert.Equal(t, "partner_42", sub.PartnerID.String)
}

func TestSubscriptionServiceHandleUpdated(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))

	require.NoError(t, svc.HandleUpdated(ctx, subscriptionEvent(billing.EventSubscriptionUpdated, `{
		"id": "sub_100",
		"status": "past_due",
		"currency": "usd",
		"cancel_at_period_end": true,
		"items": {"data": [{"price": {
			"id": "price_pro",
			"product": "prod_monitoring",
			"unit_amount": 4900,
			"recurring": {"interval": "month"}
		}}]}
	}`)))

	sub, ok := store.subscription("sub_100")
	require.True(t, ok)
	assert.Equal(t, "past_due", sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	// Fields absent from the update keep their earlier values.
	assert.Equal(t, "partner_42", sub.PartnerID.String)
	assert.True(t, sub.CurrentPeriodStart.Valid)
	assert.True(t, sub.CurrentPeriodEnd.Valid)
}

func TestSubscriptionServiceHandleUpdatedUnknownSubscriptionIsNoop(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())

	err := svc.HandleUpdated(context.Background(), subscriptionEvent(billing.EventSubscriptionUpdated, `{
		"id": "sub_ghost", "status": "past_due"
	}`))
	require.NoError(t, err)

	_, ok := store.subscription("sub_ghost")
	assert.False(t, ok, "an update must never materialize a record")
}

func TestSubscriptionServiceHandleDeleted(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))

	require.NoError(t, svc.HandleDeleted(ctx, subscriptionEvent(billing.EventSubscriptionDeleted, `{
		"id": "sub_100",
		"status": "canceled",
		"cancellation_details": {"reason": "cancellation_requested"}
	}`)))

	sub, ok := store.subscription("sub_100")
	require.True(t, ok, "deletion moves the row to a terminal status, never removes it")
	assert.Equal(t, "canceled", sub.Status)
	assert.Equal(t, "cancellation_requested", sub.CancellationReason.String)
}

func TestSubscriptionServiceHandleDeletedUnknownSubscriptionIsNoop(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())

	err := svc.HandleDeleted(context.Background(), subscriptionEvent(billing.EventSubscriptionDeleted, `{
		"id": "sub_ghost", "status": "canceled"
	}`))
	require.NoError(t, err)
	_, ok := store.subscription("sub_ghost")
	assert.False(t, ok)
}

func TestSubscriptionServiceHandleDeletedDefaultsStatus(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))
	require.NoError(t, svc.HandleDeleted(ctx, subscriptionEvent(billing.EventSubscriptionDeleted, `{"id": "sub_100"}`)))

	sub, _ := store.subscription("sub_100")
	assert.Equal(t, "canceled", sub.Status)
}

func TestSubscriptionServicePartnerIDIsSticky(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())
	ctx := context.Background()

	require.NoError(t, svc.HandleCreated(ctx, subscriptionEvent(billing.EventSubscriptionCreated, createdPayload)))

	// An update without partner metadata must not clear the stored partner.
	require.NoError(t, svc.HandleUpdated(ctx, subscriptionEvent(billing.EventSubscriptionUpdated, `{
		"id": "sub_100", "status": "active", "currency": "usd"
	}`)))

	sub, _ := store.subscription("sub_100")
	assert.Equal(t, "partner_42", sub.PartnerID.String)
}

func TestSubscriptionServiceRejectsMalformedPayload(t *testing.T) {
	store := newFakeQuerier()
	svc := services.NewSubscriptionService(store, newTestLogger(), newTestMetrics())

	err := svc.HandleCreated(context.Background(), subscriptionEvent(billing.EventSubscriptionCreated, `{"status": "active"}`))
	assert.Error(t, err)
}
