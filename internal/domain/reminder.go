package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReminderType string

const (
	ReminderTypeFirst         ReminderType = "reminder1"
	ReminderTypeSecond        ReminderType = "reminder2"
	ReminderTypeThird         ReminderType = "reminder3"
	ReminderTypeMiseEnDemeure ReminderType = "miseEnDemeure"
)

// ReminderTypes lists all types in dispatch order.
var ReminderTypes = []ReminderType{
	ReminderTypeFirst,
	ReminderTypeSecond,
	ReminderTypeThird,
	ReminderTypeMiseEnDemeure,
}

// OffsetDays returns the offset of the reminder relative to the invoice
// due date: a pre-due nudge, two post-due nudges and the formal notice.
func (t ReminderType) OffsetDays() int {
	switch t {
	case ReminderTypeFirst:
		return -3
	case ReminderTypeSecond:
		return 1
	case ReminderTypeThird:
		return 7
	case ReminderTypeMiseEnDemeure:
		return 14
	}
	return 0
}

type ReminderStatus string

const (
	ReminderStatusSent  ReminderStatus = "sent"
	ReminderStatusError ReminderStatus = "error"
)

// ReminderCandidate is a sent invoice eligible for the reminder scan,
// joined with the contact to notify.
type ReminderCandidate struct {
	InvoiceID     int64
	InvoiceNumber string
	Total         decimal.Decimal
	DueDate       time.Time
	ClientName    string
	ClientEmail   string
	AccountName   string
}

// InvoiceReminder records one dispatch attempt. At most one successful
// record may exist per (invoice, type).
type InvoiceReminder struct {
	ID           int64
	InvoiceID    int64
	Type         ReminderType
	Status       ReminderStatus
	SentTo       string
	ErrorMessage *string
	SentAt       time.Time
}
