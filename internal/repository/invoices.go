package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type InvoiceStore struct {
	db *pgxpool.Pool
}

func NewInvoiceStore(db *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{db: db}
}

const invoiceColumns = `id, number, client_id, project_id, agreement_id, status,
	subtotal, tax1, tax2, total, due_date, paid_at,
	payment_provider, payment_transaction_id, created_at`

// invoiceColumnsQ qualifies the columns for queries that join clients.
const invoiceColumnsQ = `i.id, i.number, i.client_id, i.project_id, i.agreement_id, i.status,
	i.subtotal, i.tax1, i.tax2, i.total, i.due_date, i.paid_at,
	i.payment_provider, i.payment_transaction_id, i.created_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.ClientID, &inv.ProjectID, &inv.AgreementID,
		&inv.Status, &inv.Subtotal, &inv.Tax1, &inv.Tax2, &inv.Total,
		&inv.DueDate, &inv.PaidAt, &inv.PaymentProvider,
		&inv.PaymentTransactionID, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Create inserts the invoice with its item snapshots in one transaction.
// Source unpaid-amount records, if any, are linked to the new invoice so
// they can be settled when it is paid.
func (s *InvoiceStore) Create(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, sourceUnpaidIDs []int64) (*domain.Invoice, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (number, client_id, project_id, agreement_id, status,
			subtotal, tax1, tax2, total, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		inv.Number, inv.ClientID, inv.ProjectID, inv.AgreementID, inv.Status,
		inv.Subtotal, inv.Tax1, inv.Tax2, inv.Total, inv.DueDate,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	for i := range items {
		items[i].InvoiceID = inv.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO invoice_items (invoice_id, description, amount, date, due_date)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			items[i].InvoiceID, items[i].Description, items[i].Amount,
			items[i].Date, items[i].DueDate,
		).Scan(&items[i].ID)
		if err != nil {
			return nil, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	if len(sourceUnpaidIDs) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE unpaid_amounts SET invoice_id = $1 WHERE id = ANY($2)`,
			inv.ID, sourceUnpaidIDs,
		)
		if err != nil {
			return nil, fmt.Errorf("link unpaid amounts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (s *InvoiceStore) Items(ctx context.Context, invoiceID int64) ([]domain.InvoiceItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, invoice_id, description, amount, date, due_date
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	var items []domain.InvoiceItem
	for rows.Next() {
		var it domain.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Amount, &it.Date, &it.DueDate); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// NextNumber draws the next human-readable invoice number.
func (s *InvoiceStore) NextNumber(ctx context.Context) (string, error) {
	var seq int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%d-%04d", time.Now().UTC().Year(), seq), nil
}

// UpdateStatus moves the invoice to the target status only if its current
// status is one of the expected prior statuses. The conditional update is
// the optimistic-concurrency guard against concurrent duplicate writes.
func (s *InvoiceStore) UpdateStatus(ctx context.Context, id int64, from []domain.InvoiceStatus, to domain.InvoiceStatus) (bool, error) {
	prior := make([]string, len(from))
	for i, st := range from {
		prior[i] = string(st)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET status = $1 WHERE id = $2 AND status = ANY($3)`,
		to, id, prior,
	)
	if err != nil {
		return false, fmt.Errorf("update invoice status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaid applies the paid transition. The WHERE clause makes duplicate
// deliveries a no-op: only the first writer flips the row.
func (s *InvoiceStore) MarkPaid(ctx context.Context, id int64, provider domain.PaymentProvider, transactionID string, paidAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices
		SET status = $1, paid_at = $2, payment_provider = $3, payment_transaction_id = $4
		WHERE id = $5 AND status <> $1`,
		domain.InvoiceStatusPaid, paidAt, provider, transactionID, id,
	)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SettleUnpaidAmounts flips the source records of a paid invoice.
func (s *InvoiceStore) SettleUnpaidAmounts(ctx context.Context, invoiceID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE unpaid_amounts SET paid = TRUE WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return fmt.Errorf("settle unpaid amounts: %w", err)
	}
	return nil
}

func (s *InvoiceStore) GetUnpaidAmounts(ctx context.Context, ids []int64) ([]domain.UnpaidAmount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, client_id, description, amount, date, paid
		FROM unpaid_amounts WHERE id = ANY($1) ORDER BY date, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list unpaid amounts: %w", err)
	}
	defer rows.Close()

	var out []domain.UnpaidAmount
	for rows.Next() {
		var ua domain.UnpaidAmount
		if err := rows.Scan(&ua.ID, &ua.ClientID, &ua.Description, &ua.Amount, &ua.Date, &ua.Paid); err != nil {
			return nil, fmt.Errorf("scan unpaid amount: %w", err)
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

// FindSentByAccountAndTotal resolves the oldest sent invoice of an account
// whose total matches the paid amount. Used by Helcim correlation, which
// carries no invoice reference.
func (s *InvoiceStore) FindSentByAccountAndTotal(ctx context.Context, accountID int64, total decimal.Decimal) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		SELECT `+invoiceColumnsQ+`
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE c.account_id = $1 AND i.status = $2 AND i.total = $3
		ORDER BY i.created_at
		LIMIT 1`,
		accountID, domain.InvoiceStatusSent, total))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("find invoice by account and total: %w", err)
	}
	return inv, nil
}

// FindPaidByTransaction resolves an invoice of the account already paid by
// the given provider transaction. A hit means the delivery is a replay of
// an applied payment, not a correlation failure.
func (s *InvoiceStore) FindPaidByTransaction(ctx context.Context, accountID int64, provider domain.PaymentProvider, transactionID string) (*domain.Invoice, error) {
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		SELECT `+invoiceColumnsQ+`
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		WHERE c.account_id = $1 AND i.status = $2
			AND i.payment_provider = $3 AND i.payment_transaction_id = $4
		LIMIT 1`,
		accountID, domain.InvoiceStatusPaid, provider, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("find invoice by transaction: %w", err)
	}
	return inv, nil
}

// Delete permanently removes the invoice and its item snapshots.
func (s *InvoiceStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE unpaid_amounts SET invoice_id = NULL WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("unlink unpaid amounts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return tx.Commit(ctx)
}
