package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/fjlabrie/gestiobill/internal/notifier"
)

// ReminderStore is the persistence contract for reminder records. Create
// must refuse a second successful record for the same (invoice, type) so
// overlapping scans cannot double-send.
type ReminderStore interface {
	HasSuccessful(ctx context.Context, invoiceID int64, t domain.ReminderType) (bool, error)
	Create(ctx context.Context, r *domain.InvoiceReminder) (bool, error)
	ListCandidates(ctx context.Context) ([]domain.ReminderCandidate, error)
}

type ReminderService struct {
	reminders ReminderStore
	invoices  InvoiceStore
	accounts  AccountStore
	notifier  notifier.Notifier
	now       func() time.Time
}

func NewReminderService(reminders ReminderStore, invoices InvoiceStore, accounts AccountStore, n notifier.Notifier) *ReminderService {
	return &ReminderService{
		reminders: reminders,
		invoices:  invoices,
		accounts:  accounts,
		notifier:  n,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ScanResult is the outcome of one (invoice, reminder type) pair during a
// scan.
type ScanResult struct {
	InvoiceID int64               `json:"invoiceId"`
	Type      domain.ReminderType `json:"type"`
	Outcome   string              `json:"outcome"` // sent, error or skipped
}

// Scan walks every eligible invoice and dispatches the reminders that
// come due today. A reminder is due when today equals dueDate plus the
// type's offset, date-only. A type that already has a successful record
// is skipped, which is what makes same-day reruns safe. A failed dispatch
// is recorded as an error and not retried within this run; because error
// records do not consume the slot, a later run on a still-matching day
// retries it.
func (s *ReminderService) Scan(ctx context.Context, today time.Time) ([]ScanResult, error) {
	candidates, err := s.reminders.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ScanResult, 0)
	for _, c := range candidates {
		for _, t := range domain.ReminderTypes {
			target := c.DueDate.AddDate(0, 0, t.OffsetDays())
			if !sameDay(today, target) {
				continue
			}

			done, err := s.reminders.HasSuccessful(ctx, c.InvoiceID, t)
			if err != nil {
				return nil, err
			}
			if done {
				results = append(results, ScanResult{InvoiceID: c.InvoiceID, Type: t, Outcome: "skipped"})
				continue
			}

			results = append(results, s.dispatchOne(ctx, c, t))
		}
	}
	return results, nil
}

// SendManual dispatches one specific reminder on staff request. It is only
// allowed when the account has automatic reminders disabled, so the two
// dispatch paths can never collide on the same invoice.
func (s *ReminderService) SendManual(ctx context.Context, invoiceID int64, t domain.ReminderType) (ScanResult, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return ScanResult{}, err
	}
	client, err := s.accounts.GetClient(ctx, inv.ClientID)
	if err != nil {
		return ScanResult{}, err
	}
	account, err := s.accounts.GetAccount(ctx, client.AccountID)
	if err != nil {
		return ScanResult{}, err
	}
	if account.AutoRemindersOn {
		return ScanResult{}, domain.ErrAutoRemindersEnabled
	}
	if inv.DueDate == nil {
		return ScanResult{}, domain.ErrInvalidStatus
	}
	// Post-due reminders, the formal notice included, only make sense for
	// an invoice actually past its due date.
	if t.OffsetDays() > 0 && !inv.Overdue(s.now()) {
		return ScanResult{}, domain.ErrInvoiceNotOverdue
	}

	done, err := s.reminders.HasSuccessful(ctx, invoiceID, t)
	if err != nil {
		return ScanResult{}, err
	}
	if done {
		return ScanResult{}, domain.ErrReminderAlreadySent
	}

	c := domain.ReminderCandidate{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		Total:         inv.Total,
		DueDate:       *inv.DueDate,
		ClientName:    client.Name,
		ClientEmail:   client.Email,
		AccountName:   account.Name,
	}
	return s.dispatchOne(ctx, c, t), nil
}

func (s *ReminderService) dispatchOne(ctx context.Context, c domain.ReminderCandidate, t domain.ReminderType) ScanResult {
	rec := domain.InvoiceReminder{
		InvoiceID: c.InvoiceID,
		Type:      t,
		SentTo:    c.ClientEmail,
	}

	if err := s.notifier.Send(ctx, notifier.Reminder(t, c)); err != nil {
		slog.Error("reminder dispatch failed",
			"error", err,
			"invoice_id", c.InvoiceID,
			"type", t,
		)
		msg := err.Error()
		rec.Status = domain.ReminderStatusError
		rec.ErrorMessage = &msg
		if _, err := s.reminders.Create(ctx, &rec); err != nil {
			slog.Error("reminder record write failed", "error", err, "invoice_id", c.InvoiceID)
		}
		return ScanResult{InvoiceID: c.InvoiceID, Type: t, Outcome: "error"}
	}

	rec.Status = domain.ReminderStatusSent
	inserted, err := s.reminders.Create(ctx, &rec)
	if err != nil {
		slog.Error("reminder record write failed", "error", err, "invoice_id", c.InvoiceID)
		return ScanResult{InvoiceID: c.InvoiceID, Type: t, Outcome: "error"}
	}
	if !inserted {
		// A concurrent scan won the insert race after we passed the
		// dedup check.
		return ScanResult{InvoiceID: c.InvoiceID, Type: t, Outcome: "skipped"}
	}
	return ScanResult{InvoiceID: c.InvoiceID, Type: t, Outcome: "sent"}
}

// sameDay compares two instants date-only, in UTC.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
