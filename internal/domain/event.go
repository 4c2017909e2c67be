package domain

import "github.com/shopspring/decimal"

// MatchConfidence qualifies how a normalized event was correlated to an
// internal record. Fallback matches are heuristics and must be audited.
type MatchConfidence string

const (
	MatchExact    MatchConfidence = "exact"
	MatchFallback MatchConfidence = "fallback"
)

// PaymentEvent is the provider-agnostic representation of an inbound
// payment notification. The union is closed: adapters produce exactly one
// of PaymentSucceeded, PaymentFailed or SubscriptionCancelled, and the
// reconciliation engine dispatches on the concrete type.
type PaymentEvent interface {
	isPaymentEvent()
}

type PaymentSucceeded struct {
	Provider      PaymentProvider
	TransactionID string
	// InvoiceRef is the internal invoice id carried by the provider
	// payload (Stripe metadata, PayPal invoice field). Empty for Helcim,
	// which correlates by customer code instead.
	InvoiceRef     string
	Amount         decimal.Decimal
	ReceiverEmail  string
	CustomerCode   string
	CardholderName string
}

type PaymentFailed struct {
	Provider      PaymentProvider
	TransactionID string
	InvoiceRef    string
	CustomerCode  string
	Reason        string
}

type SubscriptionCancelled struct {
	Provider     PaymentProvider
	CustomerCode string
	Reference    string
}

func (PaymentSucceeded) isPaymentEvent()      {}
func (PaymentFailed) isPaymentEvent()         {}
func (SubscriptionCancelled) isPaymentEvent() {}
