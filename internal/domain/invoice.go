package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "draft"
	InvoiceStatusSent     InvoiceStatus = "sent"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusArchived InvoiceStatus = "archived"
)

type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
	ProviderHelcim PaymentProvider = "helcim"
)

type Invoice struct {
	ID                   int64
	Number               string
	ClientID             int64
	ProjectID            *int64
	AgreementID          *int64
	Status               InvoiceStatus
	Subtotal             decimal.Decimal
	Tax1                 decimal.Decimal
	Tax2                 decimal.Decimal
	Total                decimal.Decimal
	DueDate              *time.Time
	PaidAt               *time.Time
	PaymentProvider      *PaymentProvider
	PaymentTransactionID *string
	CreatedAt            time.Time

	// Items is populated on demand, not by every lookup.
	Items []InvoiceItem
}

// Overdue reports whether the invoice is sent and past its due date.
func (i *Invoice) Overdue(now time.Time) bool {
	return i.Status == InvoiceStatusSent && i.DueDate != nil && i.DueDate.Before(now)
}

// InvoiceItem is an immutable line snapshot taken at invoice creation time.
// It is never recomputed from source records afterwards.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	DueDate     *time.Time
}

// UnpaidAmount is a billable record that can be converted into an invoice
// line. Once its invoice is paid the record is flipped to paid as well.
type UnpaidAmount struct {
	ID          int64
	ClientID    int64
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	Paid        bool
}
