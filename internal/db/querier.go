package db

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the store interface the services program against.
type Querier interface {
	InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (WebhookEvent, error)
	GetWebhookEvent(ctx context.Context, id uuid.UUID) (WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, arg ListWebhookEventsParams) ([]WebhookEvent, error)
	CountWebhookEvents(ctx context.Context) (int64, error)

	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (Subscription, error)
	UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, arg UpdateSubscriptionStatusParams) (Subscription, error)
	ListSubscriptions(ctx context.Context, arg ListSubscriptionsParams) ([]Subscription, error)
	CountSubscriptions(ctx context.Context) (int64, error)

	UpsertInvoice(ctx context.Context, arg UpsertInvoiceParams) (Invoice, error)
	ListInvoicesByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) ([]Invoice, error)
}

var _ Querier = (*Queries)(nil)
