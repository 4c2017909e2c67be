package provider

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fjlabrie/gestiobill/internal/domain"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe verifies deliveries with the SDK's constructed-event signature
// check. Invoice correlation rides in the event metadata.
type Stripe struct {
	signingSecret string
}

func NewStripe(signingSecret string) *Stripe {
	return &Stripe{signingSecret: signingSecret}
}

func (s *Stripe) Name() domain.PaymentProvider {
	return domain.ProviderStripe
}

func (s *Stripe) Verify(body []byte, headers http.Header) error {
	sig := headers.Get("Stripe-Signature")
	if sig == "" {
		return fmt.Errorf("%w: missing Stripe-Signature header", domain.ErrBadSignature)
	}
	// The endpoint's API version is pinned in the Stripe dashboard and
	// lags the SDK; only the signature matters here.
	_, err := webhook.ConstructEventWithOptions(body, sig, s.signingSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadSignature, err)
	}
	return nil
}

func (s *Stripe) Normalize(body []byte) (domain.PaymentEvent, error) {
	var ev stripe.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}
	obj := ev.Data.Object

	switch ev.Type {
	case "payment_intent.succeeded", "checkout.session.completed":
		return domain.PaymentSucceeded{
			Provider:      domain.ProviderStripe,
			TransactionID: objString(obj, "id"),
			InvoiceRef:    objMetadata(obj, "invoiceId"),
		}, nil

	case "payment_intent.payment_failed":
		return domain.PaymentFailed{
			Provider:      domain.ProviderStripe,
			TransactionID: objString(obj, "id"),
			InvoiceRef:    objMetadata(obj, "invoiceId"),
			Reason:        failureReason(obj),
		}, nil

	case "customer.subscription.deleted":
		return domain.SubscriptionCancelled{
			Provider:     domain.ProviderStripe,
			CustomerCode: objString(obj, "customer"),
			Reference:    objString(obj, "id"),
		}, nil
	}

	// Event type this system does not act on.
	return nil, nil
}

func objString(obj map[string]interface{}, key string) string {
	v, _ := obj[key].(string)
	return v
}

func objMetadata(obj map[string]interface{}, key string) string {
	md, _ := obj["metadata"].(map[string]interface{})
	v, _ := md[key].(string)
	return v
}

func failureReason(obj map[string]interface{}) string {
	e, _ := obj["last_payment_error"].(map[string]interface{})
	return objString(e, "message")
}
