package provider

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/shopspring/decimal"
)

// PayPal handles IPN-style form deliveries. The flow carries no
// cryptographic signature; authenticity is asserted downstream by
// cross-checking the configured receiver email and the exact invoice
// total against the normalized event. That is a weaker model than the
// other adapters and the reconciliation engine records a trace of every
// check it runs.
type PayPal struct{}

func NewPayPal() *PayPal {
	return &PayPal{}
}

func (p *PayPal) Name() domain.PaymentProvider {
	return domain.ProviderPayPal
}

func (p *PayPal) Verify(body []byte, headers http.Header) error {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return fmt.Errorf("%w: malformed IPN body: %v", domain.ErrBadSignature, err)
	}
	if vals.Get("txn_id") == "" {
		return fmt.Errorf("%w: missing txn_id", domain.ErrBadSignature)
	}
	return nil
}

func (p *PayPal) Normalize(body []byte) (domain.PaymentEvent, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse IPN body: %w", err)
	}

	switch vals.Get("payment_status") {
	case "Completed":
		amount, err := decimal.NewFromString(vals.Get("mc_gross"))
		if err != nil {
			return nil, fmt.Errorf("parse mc_gross %q: %w", vals.Get("mc_gross"), err)
		}
		return domain.PaymentSucceeded{
			Provider:      domain.ProviderPayPal,
			TransactionID: vals.Get("txn_id"),
			InvoiceRef:    vals.Get("invoice"),
			Amount:        amount,
			ReceiverEmail: vals.Get("receiver_email"),
		}, nil

	case "Denied", "Failed", "Reversed":
		return domain.PaymentFailed{
			Provider:      domain.ProviderPayPal,
			TransactionID: vals.Get("txn_id"),
			InvoiceRef:    vals.Get("invoice"),
			Reason:        vals.Get("reason_code"),
		}, nil
	}

	// Pending and other intermediate statuses are acknowledged, not acted on.
	return nil, nil
}
