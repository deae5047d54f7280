package billing_test

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/sitelink/sitelink-api/internal/billing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test_secret"

func signedHeader(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

func eventBody(eventID, eventType, objectJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":%q,"created":1735689600,"data":{"object":%s}}`, eventID, eventType, objectJSON))
}

func TestVerifyAndParse_ValidSignature(t *testing.T) {
	v := billing.NewVerifier(testSecret)
	payload := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_123","status":"active"}`)

	event, err := v.VerifyAndParse(payload, signedHeader(t, payload, testSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, billing.EventSubscriptionCreated, event.Type)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), event.Created)
	assert.JSONEq(t, `{"id":"sub_123","status":"active"}`, string(event.Raw))
}

func TestVerifyAndParse_MissingHeader(t *testing.T) {
	v := billing.NewVerifier(testSecret)
	payload := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_123"}`)

	_, err := v.VerifyAndParse(payload, "")
	assert.True(t, errors.Is(err, billing.ErrInvalidSignature))
}

func TestVerifyAndParse_WrongSecret(t *testing.T) {
	v := billing.NewVerifier(testSecret)
	payload := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_123"}`)

	_, err := v.VerifyAndParse(payload, signedHeader(t, payload, "whsec_other_secret", time.Now()))
	assert.True(t, errors.Is(err, billing.ErrInvalidSignature))
}

func TestVerifyAndParse_TamperedBody(t *testing.T) {
	v := billing.NewVerifier(testSecret)
	payload := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_123"}`)
	header := signedHeader(t, payload, testSecret, time.Now())

	tampered := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_999"}`)
	_, err := v.VerifyAndParse(tampered, header)
	assert.True(t, errors.Is(err, billing.ErrInvalidSignature))
}

func TestVerifyAndParse_StaleTimestamp(t *testing.T) {
	v := billing.NewVerifier(testSecret)
	payload := eventBody("evt_123", "customer.subscription.created", `{"id":"sub_123"}`)

	// Outside the default tolerance window.
	_, err := v.VerifyAndParse(payload, signedHeader(t, payload, testSecret, time.Now().Add(-time.Hour)))
	assert.True(t, errors.Is(err, billing.ErrInvalidSignature))
}
