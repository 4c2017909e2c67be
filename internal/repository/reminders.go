package repository

import (
	"context"
	"fmt"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReminderStore struct {
	db *pgxpool.Pool
}

func NewReminderStore(db *pgxpool.Pool) *ReminderStore {
	return &ReminderStore{db: db}
}

func (s *ReminderStore) HasSuccessful(ctx context.Context, invoiceID int64, t domain.ReminderType) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoice_reminders
			WHERE invoice_id = $1 AND type = $2 AND status = $3
		)`,
		invoiceID, t, domain.ReminderStatusSent,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reminder: %w", err)
	}
	return exists, nil
}

// Create records one dispatch attempt. A partial unique index on
// (invoice_id, type) for sent rows makes the insert race-safe: when two
// overlapping scans both pass the dedup check, only the first successful
// insert lands and the second reports inserted=false.
func (s *ReminderStore) Create(ctx context.Context, r *domain.InvoiceReminder) (bool, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO invoice_reminders (invoice_id, type, status, sent_to, error_message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (invoice_id, type) WHERE status = 'sent' DO NOTHING
		RETURNING id, sent_at`,
		r.InvoiceID, r.Type, r.Status, r.SentTo, r.ErrorMessage,
	).Scan(&r.ID, &r.SentAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert reminder: %w", err)
	}
	return true, nil
}

// ListCandidates returns every sent invoice with a due date whose account
// has automatic reminders enabled, with the client contact to notify.
func (s *ReminderStore) ListCandidates(ctx context.Context) ([]domain.ReminderCandidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id, i.number, i.total, i.due_date, c.name, c.email, a.name
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		JOIN accounts a ON a.id = c.account_id
		WHERE i.status = $1 AND i.due_date IS NOT NULL AND a.auto_reminders_on
		ORDER BY i.due_date, i.id`,
		domain.InvoiceStatusSent,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.ReminderCandidate
	for rows.Next() {
		var c domain.ReminderCandidate
		if err := rows.Scan(&c.InvoiceID, &c.InvoiceNumber, &c.Total, &c.DueDate,
			&c.ClientName, &c.ClientEmail, &c.AccountName); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
