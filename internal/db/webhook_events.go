package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const insertWebhookEvent = `
INSERT INTO webhook_events (id, provider_event_id, event_type, provider_created_at, payload)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, provider_event_id, event_type, provider_created_at, payload, received_at
`

// InsertWebhookEventParams carries one verified delivery into the audit log.
type InsertWebhookEventParams struct {
	ID                uuid.UUID
	ProviderEventID   string
	EventType         string
	ProviderCreatedAt time.Time
	Payload           []byte
}

// InsertWebhookEvent appends a delivery to the audit log. There is no
// uniqueness check on the provider event id: redeliveries are recorded as
// separate rows and downstream idempotency is the handlers' responsibility.
func (q *Queries) InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, insertWebhookEvent,
		arg.ID,
		arg.ProviderEventID,
		arg.EventType,
		arg.ProviderCreatedAt,
		arg.Payload,
	)
	var e WebhookEvent
	err := row.Scan(&e.ID, &e.ProviderEventID, &e.EventType, &e.ProviderCreatedAt, &e.Payload, &e.ReceivedAt)
	return e, err
}

const getWebhookEvent = `
SELECT id, provider_event_id, event_type, provider_created_at, payload, received_at
FROM webhook_events
WHERE id = $1
`

func (q *Queries) GetWebhookEvent(ctx context.Context, id uuid.UUID) (WebhookEvent, error) {
	row := q.db.QueryRow(ctx, getWebhookEvent, id)
	var e WebhookEvent
	err := row.Scan(&e.ID, &e.ProviderEventID, &e.EventType, &e.ProviderCreatedAt, &e.Payload, &e.ReceivedAt)
	return e, err
}

const listWebhookEvents = `
SELECT id, provider_event_id, event_type, provider_created_at, payload, received_at
FROM webhook_events
ORDER BY received_at DESC
LIMIT $1 OFFSET $2
`

type ListWebhookEventsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListWebhookEvents(ctx context.Context, arg ListWebhookEventsParams) ([]WebhookEvent, error) {
	rows, err := q.db.Query(ctx, listWebhookEvents, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []WebhookEvent
	for rows.Next() {
		var e WebhookEvent
		if err := rows.Scan(&e.ID, &e.ProviderEventID, &e.EventType, &e.ProviderCreatedAt, &e.Payload, &e.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const countWebhookEvents = `SELECT count(*) FROM webhook_events`

func (q *Queries) CountWebhookEvents(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countWebhookEvents).Scan(&count)
	return count, err
}
