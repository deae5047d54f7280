package billing

import (
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrInvalidSignature marks a delivery that could not be authenticated. The
// HTTP boundary maps it to a 4xx before anything is recorded or dispatched.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// Verifier authenticates raw webhook deliveries against the shared signing
// secret. Verification recomputes an HMAC-SHA256 over the timestamp-qualified
// body and enforces the provider's default tolerance window, so replayed or
// stale deliveries are rejected alongside forged ones.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier for the given signing secret (whsec_...).
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyAndParse checks the signature header against the raw body and returns
// the verified event envelope. It is a pure check: no side effects on failure.
func (v *Verifier) VerifyAndParse(payload []byte, sigHeader string) (*Event, error) {
	if sigHeader == "" {
		return nil, errors.Wrap(ErrInvalidSignature, "missing signature header")
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		// Payload shapes this service reads are stable across the API
		// versions the provider sends; a version mismatch alone is not a
		// reason to refuse an authenticated delivery.
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return &Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Raw:     event.Data.Raw,
	}, nil
}
