package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sitelink/sitelink-api/internal/billing"
	"github.com/sitelink/sitelink-api/internal/logger"
	"github.com/sitelink/sitelink-api/internal/services"
)

// maxWebhookBodyBytes bounds the raw delivery body. Provider events are a few
// KB; anything larger is not a legitimate delivery.
const maxWebhookBodyBytes = 64 * 1024

// WebhookHandler terminates provider webhook deliveries: signature check,
// audit record, then dispatch.
type WebhookHandler struct {
	verifier  *billing.Verifier
	processor *services.WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler with the required dependencies
func NewWebhookHandler(verifier *billing.Verifier, processor *services.WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
	}
}

// HandleProviderWebhook godoc
// @Summary Receive a billing provider webhook
// @Description Verifies the delivery signature, records the event and reconciles local subscription state
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleProviderWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			sendError(c, http.StatusBadRequest, "Invalid webhook signature", err)
			return
		}
		sendError(c, http.StatusBadRequest, "Failed to parse webhook payload", err)
		return
	}

	logger.Info("webhook delivery verified",
		zap.String("provider_event_id", event.ID),
		zap.String("event_type", event.Type),
	)

	// A non-nil error here means the audit insert failed; 500 tells the
	// provider to redeliver. Handler failures after the insert do not
	// surface: redelivering an event we already hold would not help.
	if err := h.processor.Process(c.Request.Context(), event); err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to record webhook event", err)
		return
	}

	sendSuccess(c, http.StatusOK, gin.H{"received": true})
}
