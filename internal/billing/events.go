// Package billing is the boundary to the payment provider (Stripe). It owns
// webhook signature verification and the payload shapes the reconciliation
// services consume; nothing outside this package touches stripe-go types.
package billing

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Event types this service reconciles. Deliveries with any other type are
// recorded for audit and otherwise dropped.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Checkout metadata keys set by the quote-to-checkout flow when the session
// is created. They are echoed back verbatim on checkout.session.completed.
const (
	MetadataPartnerID  = "partner_id"
	MetadataQuoteID    = "quote_id"
	MetadataCameraCnt  = "camera_count"
	MetadataStarterKit = "starter_kit_included"
)

// Event is a verified webhook delivery. Created carries the provider's clock;
// Raw is the provider's object payload, untouched.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     json.RawMessage
}

// SubscriptionPayload is the subscription object carried by the
// customer.subscription.* events. Only the fields the reconciler reads are
// declared; everything else stays in the raw audit payload.
type SubscriptionPayload struct {
	ID                  string            `json:"id"`
	Status              string            `json:"status"`
	Currency            string            `json:"currency"`
	CancelAtPeriodEnd   bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart  int64             `json:"current_period_start"`
	CurrentPeriodEnd    int64             `json:"current_period_end"`
	Metadata            map[string]string `json:"metadata"`
	CancellationDetails struct {
		Reason string `json:"reason"`
	} `json:"cancellation_details"`
	Items struct {
		Data []struct {
			Price struct {
				ID         string `json:"id"`
				Product    string `json:"product"`
				UnitAmount int64  `json:"unit_amount"`
				Recurring  struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceID returns the price of the first subscription item. Subscriptions
// created by the checkout flow always carry exactly one item.
func (p *SubscriptionPayload) PriceID() string {
	if len(p.Items.Data) == 0 {
		return ""
	}
	return p.Items.Data[0].Price.ID
}

// ProductID returns the product of the first subscription item.
func (p *SubscriptionPayload) ProductID() string {
	if len(p.Items.Data) == 0 {
		return ""
	}
	return p.Items.Data[0].Price.Product
}

// AmountCents returns the unit amount of the first subscription item.
func (p *SubscriptionPayload) AmountCents() int64 {
	if len(p.Items.Data) == 0 {
		return 0
	}
	return p.Items.Data[0].Price.UnitAmount
}

// BillingInterval returns the recurring interval of the first item
// ("month", "year", ...).
func (p *SubscriptionPayload) BillingInterval() string {
	if len(p.Items.Data) == 0 {
		return ""
	}
	return p.Items.Data[0].Price.Recurring.Interval
}

// PartnerID returns the owning-partner id echoed through subscription
// metadata, or "" when the event does not carry one.
func (p *SubscriptionPayload) PartnerID() string {
	return p.Metadata[MetadataPartnerID]
}

// PeriodStart returns the current billing period start, or a zero time when
// the event does not carry one.
func (p *SubscriptionPayload) PeriodStart() time.Time {
	return unixOrZero(p.CurrentPeriodStart)
}

// PeriodEnd returns the current billing period end, or a zero time.
func (p *SubscriptionPayload) PeriodEnd() time.Time {
	return unixOrZero(p.CurrentPeriodEnd)
}

// CheckoutSessionPayload is the session object carried by
// checkout.session.completed. Subscription is the provider subscription id;
// the session references it but does not embed the subscription itself.
type CheckoutSessionPayload struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Subscription    string            `json:"subscription"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer_details"`
}

// IsPaidSubscription reports whether this session is a successfully paid
// subscription checkout; everything else is ignored by the resolver.
func (p *CheckoutSessionPayload) IsPaidSubscription() bool {
	return p.Mode == "subscription" && p.Subscription != "" && p.PaymentStatus == "paid"
}

// PartnerID returns the owning-partner id from the session metadata.
func (p *CheckoutSessionPayload) PartnerID() string {
	return p.Metadata[MetadataPartnerID]
}

// QuoteID returns the linked quote id from the session metadata.
func (p *CheckoutSessionPayload) QuoteID() string {
	return p.Metadata[MetadataQuoteID]
}

// CameraCount returns the camera/seat count from the session metadata, or 0
// when absent or unparseable.
func (p *CheckoutSessionPayload) CameraCount() int32 {
	n, err := strconv.ParseInt(p.Metadata[MetadataCameraCnt], 10, 32)
	if err != nil || n < 0 {
		return 0
	}
	return int32(n)
}

// StarterKitIncluded reports whether the checkout included a starter kit.
func (p *CheckoutSessionPayload) StarterKitIncluded() bool {
	switch strings.ToLower(p.Metadata[MetadataStarterKit]) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// InvoicePayload is the invoice object carried by the invoice.payment_*
// events. Subscription may be empty for one-off invoices.
type InvoicePayload struct {
	ID            string `json:"id"`
	Subscription  string `json:"subscription"`
	Status        string `json:"status"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountDue     int64  `json:"amount_due"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
}

// ParseSubscription decodes a customer.subscription.* payload.
func ParseSubscription(raw json.RawMessage) (*SubscriptionPayload, error) {
	var p SubscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "parsing subscription payload")
	}
	if p.ID == "" {
		return nil, errors.New("subscription payload has no id")
	}
	return &p, nil
}

// ParseCheckoutSession decodes a checkout.session.completed payload.
func ParseCheckoutSession(raw json.RawMessage) (*CheckoutSessionPayload, error) {
	var p CheckoutSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "parsing checkout session payload")
	}
	if p.ID == "" {
		return nil, errors.New("checkout session payload has no id")
	}
	return &p, nil
}

// ParseInvoice decodes an invoice.payment_* payload.
func ParseInvoice(raw json.RawMessage) (*InvoicePayload, error) {
	var p InvoicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "parsing invoice payload")
	}
	if p.ID == "" {
		return nil, errors.New("invoice payload has no id")
	}
	return &p, nil
}

func unixOrZero(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
