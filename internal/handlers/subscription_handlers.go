package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitelink/sitelink-api/internal/db"
)

// SubscriptionHandler manages the read-only view over reconciled subscriptions
type SubscriptionHandler struct {
	common *CommonServices
}

// NewSubscriptionHandler creates a new subscription handler with the required dependencies
func NewSubscriptionHandler(common *CommonServices) *SubscriptionHandler {
	return &SubscriptionHandler{
		common: common,
	}
}

// SubscriptionResponse is the API shape of a reconciled subscription. The
// stored metadata blob is inlined as JSON rather than base64.
type SubscriptionResponse struct {
	ID                     string          `json:"id"`
	ProviderSubscriptionID string          `json:"provider_subscription_id"`
	Status                 string          `json:"status"`
	PriceID                *string         `json:"price_id"`
	ProductID              *string         `json:"product_id"`
	Currency               *string         `json:"currency"`
	AmountCents            *int64          `json:"amount_cents"`
	BillingInterval        *string         `json:"billing_interval"`
	PartnerID              *string         `json:"partner_id"`
	QuoteID                *string         `json:"quote_id"`
	CustomerName           *string         `json:"customer_name"`
	CustomerEmail          *string         `json:"customer_email"`
	CameraCount            *int32          `json:"camera_count"`
	StarterKitIncluded     *bool           `json:"starter_kit_included"`
	CurrentPeriodStart     *string         `json:"current_period_start"`
	CurrentPeriodEnd       *string         `json:"current_period_end"`
	CancelAtPeriodEnd      bool            `json:"cancel_at_period_end"`
	CancellationReason     *string         `json:"cancellation_reason"`
	Metadata               json.RawMessage `json:"metadata,omitempty"`
	CreatedAt              string          `json:"created_at"`
	UpdatedAt              string          `json:"updated_at"`
}

// GetSubscription godoc
// @Summary Get a subscription by provider subscription ID
// @Description Retrieves the reconciled local record for one provider subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param provider_subscription_id path string true "Provider subscription ID"
// @Success 200 {object} SubscriptionResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /subscriptions/{provider_subscription_id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	providerID := c.Param("provider_subscription_id")
	if providerID == "" {
		sendError(c, http.StatusBadRequest, "Provider subscription ID is required", nil)
		return
	}

	sub, err := h.common.db.GetSubscriptionByProviderID(c.Request.Context(), providerID)
	if err != nil {
		handleDBError(c, err, "Subscription not found")
		return
	}

	sendSuccess(c, http.StatusOK, toSubscriptionResponse(sub))
}

// ListSubscriptions godoc
// @Summary List subscriptions
// @Description Lists reconciled subscriptions, newest first
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param limit query int false "Items per page"
// @Param offset query int false "Items to skip"
// @Success 200 {object} PaginatedResponse{data=[]SubscriptionResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	limit, offset, err := validatePaginationParams(c)
	if err != nil {
		sendError(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	subs, err := h.common.db.ListSubscriptions(c.Request.Context(), db.ListSubscriptionsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to retrieve subscriptions", err)
		return
	}

	total, err := h.common.db.CountSubscriptions(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to count subscriptions", err)
		return
	}

	responses := make([]SubscriptionResponse, len(subs))
	for i, sub := range subs {
		responses[i] = toSubscriptionResponse(sub)
	}
	sendList(c, responses, total)
}

// ListSubscriptionInvoices godoc
// @Summary List invoices for a subscription
// @Description Lists recorded payment facts for one provider subscription, newest first
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param provider_subscription_id path string true "Provider subscription ID"
// @Success 200 {object} PaginatedResponse{data=[]db.Invoice}
// @Failure 500 {object} ErrorResponse
// @Router /subscriptions/{provider_subscription_id}/invoices [get]
func (h *SubscriptionHandler) ListSubscriptionInvoices(c *gin.Context) {
	providerID := c.Param("provider_subscription_id")
	if providerID == "" {
		sendError(c, http.StatusBadRequest, "Provider subscription ID is required", nil)
		return
	}

	invoices, err := h.common.db.ListInvoicesByProviderSubscriptionID(c.Request.Context(), providerID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to retrieve invoices", err)
		return
	}

	sendList(c, invoices, int64(len(invoices)))
}

func toSubscriptionResponse(sub db.Subscription) SubscriptionResponse {
	resp := SubscriptionResponse{
		ID:                     sub.ID.String(),
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		Status:                 sub.Status,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		CreatedAt:              sub.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:              sub.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if sub.PriceID.Valid {
		resp.PriceID = &sub.PriceID.String
	}
	if sub.ProductID.Valid {
		resp.ProductID = &sub.ProductID.String
	}
	if sub.Currency.Valid {
		resp.Currency = &sub.Currency.String
	}
	if sub.AmountCents.Valid {
		resp.AmountCents = &sub.AmountCents.Int64
	}
	if sub.BillingInterval.Valid {
		resp.BillingInterval = &sub.BillingInterval.String
	}
	if sub.PartnerID.Valid {
		resp.PartnerID = &sub.PartnerID.String
	}
	if sub.QuoteID.Valid {
		resp.QuoteID = &sub.QuoteID.String
	}
	if sub.CustomerName.Valid {
		resp.CustomerName = &sub.CustomerName.String
	}
	if sub.CustomerEmail.Valid {
		resp.CustomerEmail = &sub.CustomerEmail.String
	}
	if sub.CameraCount.Valid {
		resp.CameraCount = &sub.CameraCount.Int32
	}
	if sub.StarterKitIncluded.Valid {
		resp.StarterKitIncluded = &sub.StarterKitIncluded.Bool
	}
	if sub.CurrentPeriodStart.Valid {
		start := sub.CurrentPeriodStart.Time.UTC().Format(time.RFC3339)
		resp.CurrentPeriodStart = &start
	}
	if sub.CurrentPeriodEnd.Valid {
		end := sub.CurrentPeriodEnd.Time.UTC().Format(time.RFC3339)
		resp.CurrentPeriodEnd = &end
	}
	if sub.CancellationReason.Valid {
		resp.CancellationReason = &sub.CancellationReason.String
	}
	if len(sub.Metadata) > 0 {
		resp.Metadata = json.RawMessage(sub.Metadata)
	}

	return resp
}
