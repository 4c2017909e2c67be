package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgreementStore struct {
	db *pgxpool.Pool
}

func NewAgreementStore(db *pgxpool.Pool) *AgreementStore {
	return &AgreementStore{db: db}
}

func (s *AgreementStore) Create(ctx context.Context, ag *domain.PaymentAgreement) (*domain.PaymentAgreement, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO payment_agreements
			(project_id, number_of_installments, frequency_days, amount_per_installment, token, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		ag.ProjectID, ag.NumberOfInstallments, ag.FrequencyDays,
		ag.AmountPerInstallment, ag.Token, ag.Status,
	).Scan(&ag.ID, &ag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert agreement: %w", err)
	}
	return ag, nil
}

func (s *AgreementStore) GetByToken(ctx context.Context, token string) (*domain.PaymentAgreement, error) {
	var ag domain.PaymentAgreement
	err := s.db.QueryRow(ctx, `
		SELECT id, project_id, number_of_installments, frequency_days,
			amount_per_installment, token, status, confirmed_at, created_at
		FROM payment_agreements WHERE token = $1`, token,
	).Scan(&ag.ID, &ag.ProjectID, &ag.NumberOfInstallments, &ag.FrequencyDays,
		&ag.AmountPerInstallment, &ag.Token, &ag.Status, &ag.ConfirmedAt, &ag.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAgreementNotFound
		}
		return nil, fmt.Errorf("get agreement by token: %w", err)
	}
	return &ag, nil
}

// Confirm stamps confirmed_at exactly once. The conditional update is the
// gate that makes re-confirmation a detectable no-op.
func (s *AgreementStore) Confirm(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_agreements
		SET status = $1, confirmed_at = $2
		WHERE id = $3 AND status = $4`,
		domain.AgreementStatusConfirmed, at, id, domain.AgreementStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("confirm agreement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Invoices lists the agreement's installment invoices in creation order,
// which is also installment order.
func (s *AgreementStore) Invoices(ctx context.Context, agreementID int64) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE agreement_id = $1 ORDER BY id`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("list agreement invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// RecalculateDueDates sets due_date = confirmedAt + i*frequency for each
// installment invoice, i being the 0-based position in creation order.
func (s *AgreementStore) RecalculateDueDates(ctx context.Context, agreementID int64, confirmedAt time.Time, frequencyDays int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE invoices i
		SET due_date = $2::timestamptz + (r.idx * $3::int) * INTERVAL '1 day'
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY id) - 1 AS idx
			FROM invoices WHERE agreement_id = $1
		) r
		WHERE i.id = r.id`,
		agreementID, confirmedAt, frequencyDays,
	)
	if err != nil {
		return fmt.Errorf("recalculate due dates: %w", err)
	}
	return nil
}
