package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sitelink/sitelink-api/internal/db"
)

// WebhookEventHandler manages the read-only view over the webhook audit log
type WebhookEventHandler struct {
	common *CommonServices
}

// NewWebhookEventHandler creates a new webhook event handler with the required dependencies
func NewWebhookEventHandler(common *CommonServices) *WebhookEventHandler {
	return &WebhookEventHandler{
		common: common,
	}
}

// GetWebhookEvent godoc
// @Summary Get a recorded webhook event by ID
// @Description Retrieves a recorded webhook delivery by its local ID
// @Tags webhook-events
// @Accept json
// @Produce json
// @Param event_id path string true "Event ID"
// @Success 200 {object} db.WebhookEvent
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhook-events/{event_id} [get]
func (h *WebhookEventHandler) GetWebhookEvent(c *gin.Context) {
	eventID := c.Param("event_id")
	parsedUUID, err := uuid.Parse(eventID)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid event ID format", err)
		return
	}

	event, err := h.common.db.GetWebhookEvent(c.Request.Context(), parsedUUID)
	if err != nil {
		handleDBError(c, err, "Webhook event not found")
		return
	}

	sendSuccess(c, http.StatusOK, event)
}

// ListWebhookEvents godoc
// @Summary List recorded webhook events
// @Description Lists recorded webhook deliveries, newest first
// @Tags webhook-events
// @Accept json
// @Produce json
// @Param limit query int false "Items per page"
// @Param offset query int false "Items to skip"
// @Success 200 {object} PaginatedResponse{data=[]db.WebhookEvent}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhook-events [get]
func (h *WebhookEventHandler) ListWebhookEvents(c *gin.Context) {
	limit, offset, err := validatePaginationParams(c)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	events, err := h.common.db.ListWebhookEvents(c.Request.Context(), db.ListWebhookEventsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to retrieve webhook events", err)
		return
	}

	total, err := h.common.db.CountWebhookEvents(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to count webhook events", err)
		return
	}

	sendList(c, events, total)
}
