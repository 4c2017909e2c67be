package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/shopspring/decimal"
)

// Helcim verifies deliveries with an HMAC-SHA256 over the raw body,
// compared byte-for-byte against the Webhook-Signature header. Events
// correlate by the provider-assigned customer code; the cardholder name
// on the payload is carried along as a fallback resolution path.
type Helcim struct {
	sharedSecret string
}

func NewHelcim(sharedSecret string) *Helcim {
	return &Helcim{sharedSecret: sharedSecret}
}

func (h *Helcim) Name() domain.PaymentProvider {
	return domain.ProviderHelcim
}

func (h *Helcim) Verify(body []byte, headers http.Header) error {
	sig := headers.Get("Webhook-Signature")
	if sig == "" {
		return fmt.Errorf("%w: missing Webhook-Signature header", domain.ErrBadSignature)
	}
	mac := hmac.New(sha256.New, []byte(h.sharedSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return fmt.Errorf("%w: HMAC mismatch", domain.ErrBadSignature)
	}
	return nil
}

type helcimPayload struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	TransactionID  string          `json:"transactionId"`
	CustomerCode   string          `json:"customerCode"`
	CardHolderName string          `json:"cardHolderName"`
	Amount         decimal.Decimal `json:"amount"`
	Approved       bool            `json:"approved"`
	Response       string          `json:"responseMessage"`
}

func (h *Helcim) Normalize(body []byte) (domain.PaymentEvent, error) {
	var p helcimPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse helcim payload: %w", err)
	}

	switch p.Type {
	case "cardTransaction":
		txID := p.TransactionID
		if txID == "" {
			txID = p.ID
		}
		if p.Approved {
			return domain.PaymentSucceeded{
				Provider:       domain.ProviderHelcim,
				TransactionID:  txID,
				Amount:         p.Amount,
				CustomerCode:   p.CustomerCode,
				CardholderName: p.CardHolderName,
			}, nil
		}
		return domain.PaymentFailed{
			Provider:      domain.ProviderHelcim,
			TransactionID: txID,
			CustomerCode:  p.CustomerCode,
			Reason:        p.Response,
		}, nil

	case "subscriptionCancelled":
		return domain.SubscriptionCancelled{
			Provider:     domain.ProviderHelcim,
			CustomerCode: p.CustomerCode,
			Reference:    p.ID,
		}, nil
	}

	return nil, nil
}
