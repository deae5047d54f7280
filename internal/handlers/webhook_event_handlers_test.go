package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitelink/sitelink-api/internal/db"
)

func newWebhookEventRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewWebhookEventHandler(NewCommonServices(store))

	router := gin.New()
	router.GET("/api/v1/webhook-events", handler.ListWebhookEvents)
	router.GET("/api/v1/webhook-events/:event_id", handler.GetWebhookEvent)
	return router
}

func TestGetWebhookEvent(t *testing.T) {
	store := newFakeStore()
	event := db.WebhookEvent{
		ID:                uuid.New(),
		ProviderEventID:   "evt_1",
		EventType:         "customer.subscription.created",
		ProviderCreatedAt: time.Now().UTC(),
		Payload:           []byte(`{"id": "sub_1"}`),
	}
	store.events = append(store.events, event)
	router := newWebhookEventRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events/"+event.ID.String(), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp db.WebhookEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "evt_1", resp.ProviderEventID)
	assert.Equal(t, "customer.subscription.created", resp.EventType)
}

func TestGetWebhookEventInvalidID(t *testing.T) {
	router := newWebhookEventRouter(newFakeStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetWebhookEventNotFound(t *testing.T) {
	router := newWebhookEventRouter(newFakeStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListWebhookEvents(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		store.events = append(store.events, db.WebhookEvent{
			ID:              uuid.New(),
			ProviderEventID: "evt_x",
			EventType:       "customer.subscription.updated",
		})
	}
	router := newWebhookEventRouter(store)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/webhook-events", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.Equal(t, int64(3), resp.Total)
}
