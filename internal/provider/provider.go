// Package provider verifies and normalizes inbound payment notifications.
// Each adapter turns its provider's payload into a domain.PaymentEvent so
// the reconciliation engine never touches provider-specific shapes.
package provider

import (
	"net/http"

	"github.com/fjlabrie/gestiobill/internal/domain"
)

// Adapter is implemented once per payment provider.
//
// Verify performs the provider's authenticity check against the raw body
// and request headers; it runs before any state is read. Normalize parses
// the body into the event union; a (nil, nil) return means the event type
// is not one this system acts on and the delivery is acknowledged as
// ignored.
type Adapter interface {
	Name() domain.PaymentProvider
	Verify(body []byte, headers http.Header) error
	Normalize(body []byte) (domain.PaymentEvent, error)
}

// SignatureHeader returns the header carrying the provider signature, for
// the audit log. Empty when the adapter has no signature scheme.
func SignatureHeader(p domain.PaymentProvider) string {
	switch p {
	case domain.ProviderStripe:
		return "Stripe-Signature"
	case domain.ProviderHelcim:
		return "Webhook-Signature"
	}
	return ""
}
