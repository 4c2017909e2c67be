package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "whsec_test"

func signStripe(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeVerify(t *testing.T) {
	s := NewStripe(testSigningSecret)
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signStripe(body, testSigningSecret, time.Now()))
	assert.NoError(t, s.Verify(body, headers))

	headers.Set("Stripe-Signature", signStripe(body, "whsec_wrong", time.Now()))
	assert.ErrorIs(t, s.Verify(body, headers), domain.ErrBadSignature)

	assert.ErrorIs(t, s.Verify(body, http.Header{}), domain.ErrBadSignature)

	// A signature older than the SDK tolerance is rejected.
	headers.Set("Stripe-Signature", signStripe(body, testSigningSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, s.Verify(body, headers), domain.ErrBadSignature)
}

func TestStripeNormalize(t *testing.T) {
	s := NewStripe(testSigningSecret)

	ev, err := s.Normalize([]byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"invoiceId":"42"}}}}`))
	require.NoError(t, err)
	succ, ok := ev.(domain.PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, domain.ProviderStripe, succ.Provider)
	assert.Equal(t, "pi_1", succ.TransactionID)
	assert.Equal(t, "42", succ.InvoiceRef)

	ev, err = s.Normalize([]byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","metadata":{"invoiceId":"7"}}}}`))
	require.NoError(t, err)
	succ, ok = ev.(domain.PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, "cs_1", succ.TransactionID)

	ev, err = s.Normalize([]byte(`{"type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","metadata":{"invoiceId":"42"},"last_payment_error":{"message":"card declined"}}}}`))
	require.NoError(t, err)
	fail, ok := ev.(domain.PaymentFailed)
	require.True(t, ok)
	assert.Equal(t, "card declined", fail.Reason)

	ev, err = s.Normalize([]byte(`{"type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":"cus_9"}}}`))
	require.NoError(t, err)
	cancel, ok := ev.(domain.SubscriptionCancelled)
	require.True(t, ok)
	assert.Equal(t, "cus_9", cancel.CustomerCode)
	assert.Equal(t, "sub_1", cancel.Reference)

	ev, err = s.Normalize([]byte(`{"type":"invoice.finalized","data":{"object":{"id":"in_1"}}}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}
