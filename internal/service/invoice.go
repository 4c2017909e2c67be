package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjlabrie/gestiobill/internal/config"
	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/shopspring/decimal"
)

// InvoiceStore is the persistence contract the invoice state machine
// needs. Status changes go through conditional updates keyed on the
// expected prior status, so concurrent duplicate writers cannot both win.
type InvoiceStore interface {
	Create(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, sourceUnpaidIDs []int64) (*domain.Invoice, error)
	Get(ctx context.Context, id int64) (*domain.Invoice, error)
	Items(ctx context.Context, invoiceID int64) ([]domain.InvoiceItem, error)
	NextNumber(ctx context.Context) (string, error)
	UpdateStatus(ctx context.Context, id int64, from []domain.InvoiceStatus, to domain.InvoiceStatus) (bool, error)
	MarkPaid(ctx context.Context, id int64, provider domain.PaymentProvider, transactionID string, paidAt time.Time) (bool, error)
	SettleUnpaidAmounts(ctx context.Context, invoiceID int64) error
	GetUnpaidAmounts(ctx context.Context, ids []int64) ([]domain.UnpaidAmount, error)
	FindSentByAccountAndTotal(ctx context.Context, accountID int64, total decimal.Decimal) (*domain.Invoice, error)
	FindPaidByTransaction(ctx context.Context, accountID int64, provider domain.PaymentProvider, transactionID string) (*domain.Invoice, error)
	Delete(ctx context.Context, id int64) error
}

// AccountStore resolves accounts, clients and projects.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
	GetAccountByHelcimCode(ctx context.Context, code string) (*domain.Account, error)
	GetAccountByName(ctx context.Context, name string) (*domain.Account, error)
}

type InvoiceService struct {
	store    InvoiceStore
	accounts AccountStore
	now      func() time.Time
}

func NewInvoiceService(store InvoiceStore, accounts AccountStore) *InvoiceService {
	return &InvoiceService{
		store:    store,
		accounts: accounts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput is one line of a new draft invoice.
type ItemInput struct {
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	DueDate     *time.Time
}

type CreateDraftInput struct {
	ClientID        int64
	ProjectID       *int64
	AgreementID     *int64
	Items           []ItemInput
	UnpaidAmountIDs []int64
	DueDate         *time.Time
}

// CreateDraft creates a draft invoice from direct line items or from
// existing unpaid-amount records. Item values are snapshotted at this
// point and never recomputed. Taxes are applied only when the owning
// account collects them: GST and QST each on the subtotal.
func (s *InvoiceService) CreateDraft(ctx context.Context, in CreateDraftInput) (*domain.Invoice, error) {
	client, err := s.accounts.GetClient(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetAccount(ctx, client.AccountID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.InvoiceItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, domain.InvoiceItem{
			Description: it.Description,
			Amount:      it.Amount,
			Date:        it.Date,
			DueDate:     it.DueDate,
		})
	}

	if len(in.UnpaidAmountIDs) > 0 {
		uas, err := s.store.GetUnpaidAmounts(ctx, in.UnpaidAmountIDs)
		if err != nil {
			return nil, err
		}
		for _, ua := range uas {
			if ua.ClientID != client.ID || ua.Paid {
				continue
			}
			items = append(items, domain.InvoiceItem{
				Description: ua.Description,
				Amount:      ua.Amount,
				Date:        ua.Date,
			})
		}
	}

	if len(items) == 0 {
		return nil, domain.ErrNoItemsSelected
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Amount)
	}

	tax1, tax2 := decimal.Zero, decimal.Zero
	if account.CollectsTaxes {
		tax1 = subtotal.Mul(decimal.NewFromFloat(config.TaxRateGST)).Round(2)
		tax2 = subtotal.Mul(decimal.NewFromFloat(config.TaxRateQST)).Round(2)
	}

	number, err := s.store.NextNumber(ctx)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invoice{
		Number:      number,
		ClientID:    client.ID,
		ProjectID:   in.ProjectID,
		AgreementID: in.AgreementID,
		Status:      domain.InvoiceStatusDraft,
		Subtotal:    subtotal,
		Tax1:        tax1,
		Tax2:        tax2,
		Total:       subtotal.Add(tax1).Add(tax2),
		DueDate:     in.DueDate,
	}
	return s.store.Create(ctx, inv, items, in.UnpaidAmountIDs)
}

// MarkSent moves a draft invoice to sent.
func (s *InvoiceService) MarkSent(ctx context.Context, id int64) error {
	ok, err := s.store.UpdateStatus(ctx, id,
		[]domain.InvoiceStatus{domain.InvoiceStatusDraft}, domain.InvoiceStatusSent)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

// MarkPaid applies the paid transition and settles any linked
// unpaid-amount records. Marking an invoice that is already paid is an
// idempotent no-op: it reports changed=false with no error and mutates
// nothing. Once the paid transition is committed the call succeeds even
// if settling fails; the status change is the authoritative outcome and
// the settle failure is logged for manual follow-up.
func (s *InvoiceService) MarkPaid(ctx context.Context, id int64, provider domain.PaymentProvider, transactionID string) (bool, error) {
	changed, err := s.store.MarkPaid(ctx, id, provider, transactionID, s.now())
	if err != nil {
		return false, err
	}
	if !changed {
		inv, err := s.store.Get(ctx, id)
		if err != nil {
			return false, err
		}
		if inv.Status == domain.InvoiceStatusPaid {
			return false, nil
		}
		return false, fmt.Errorf("mark paid lost update on invoice %d: %w", id, domain.ErrInvalidStatus)
	}
	if err := s.store.SettleUnpaidAmounts(ctx, id); err != nil {
		slog.Error("settle unpaid amounts failed after paid transition",
			"error", err, "invoice_id", id)
	}
	return true, nil
}

// Archive removes a draft or sent invoice from the active lists without
// deleting anything.
func (s *InvoiceService) Archive(ctx context.Context, id int64) error {
	ok, err := s.store.UpdateStatus(ctx, id,
		[]domain.InvoiceStatus{domain.InvoiceStatusDraft, domain.InvoiceStatusSent},
		domain.InvoiceStatusArchived)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

// Unarchive restores an archived invoice to draft, never to any other
// status.
func (s *InvoiceService) Unarchive(ctx context.Context, id int64) error {
	ok, err := s.store.UpdateStatus(ctx, id,
		[]domain.InvoiceStatus{domain.InvoiceStatusArchived}, domain.InvoiceStatusDraft)
	if err != nil {
		return err
	}
	if !ok {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

// Delete permanently removes the invoice and its items. Intended for
// draft and archived invoices; callers are responsible for not deleting
// live ones.
func (s *InvoiceService) Delete(ctx context.Context, id int64) error {
	return s.store.Delete(ctx, id)
}

func (s *InvoiceService) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	return s.store.Get(ctx, id)
}

// Items returns the immutable line snapshots of an invoice.
func (s *InvoiceService) Items(ctx context.Context, id int64) ([]domain.InvoiceItem, error) {
	return s.store.Items(ctx, id)
}

func (s *InvoiceService) transitionConflict(ctx context.Context, id int64) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidStatus
}
