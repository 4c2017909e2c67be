package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/fjlabrie/gestiobill/internal/notifier"
	"github.com/shopspring/decimal"
)

// AgreementStore is the persistence contract for payment agreements.
type AgreementStore interface {
	Create(ctx context.Context, ag *domain.PaymentAgreement) (*domain.PaymentAgreement, error)
	GetByToken(ctx context.Context, token string) (*domain.PaymentAgreement, error)
	Confirm(ctx context.Context, id int64, at time.Time) (bool, error)
	Invoices(ctx context.Context, agreementID int64) ([]domain.Invoice, error)
	RecalculateDueDates(ctx context.Context, agreementID int64, confirmedAt time.Time, frequencyDays int) error
}

// Dispatcher schedules a best-effort notification without blocking the
// caller.
type Dispatcher interface {
	Dispatch(msg notifier.Message)
}

type AgreementService struct {
	store    AgreementStore
	accounts AccountStore
	invoices *InvoiceService
	dispatch Dispatcher
	baseURL  string
	now      func() time.Time
}

func NewAgreementService(store AgreementStore, accounts AccountStore, invoices *InvoiceService, dispatch Dispatcher, baseURL string) *AgreementService {
	return &AgreementService{
		store:    store,
		accounts: accounts,
		invoices: invoices,
		dispatch: dispatch,
		baseURL:  baseURL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreatePlan derives a pending payment agreement from the project budget
// and creates one draft installment invoice per installment. The budget is
// divided evenly; any sub-cent remainder of the division is left where it
// falls rather than redistributed. Delivery of the confirmation email is
// fire-and-forget and its failure never rolls back the created records.
func (s *AgreementService) CreatePlan(ctx context.Context, projectID int64, installments, frequencyDays int) (*domain.PaymentAgreement, []domain.Invoice, error) {
	if installments < 1 || frequencyDays < 1 {
		return nil, nil, domain.ErrInvalidInstallments
	}

	project, err := s.accounts.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	if !project.Budget.IsPositive() {
		return nil, nil, domain.ErrInvalidAmount
	}
	client, err := s.accounts.GetClient(ctx, project.ClientID)
	if err != nil {
		return nil, nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}

	amount := project.Budget.Div(decimal.NewFromInt(int64(installments))).Round(2)

	ag, err := s.store.Create(ctx, &domain.PaymentAgreement{
		ProjectID:            project.ID,
		NumberOfInstallments: installments,
		FrequencyDays:        frequencyDays,
		AmountPerInstallment: amount,
		Token:                token,
		Status:               domain.AgreementStatusPending,
	})
	if err != nil {
		return nil, nil, err
	}

	invoices := make([]domain.Invoice, 0, installments)
	for i := 1; i <= installments; i++ {
		inv, err := s.invoices.CreateDraft(ctx, CreateDraftInput{
			ClientID:    client.ID,
			ProjectID:   &project.ID,
			AgreementID: &ag.ID,
			Items: []ItemInput{{
				Description: fmt.Sprintf("Installment %d/%d — %s", i, installments, project.Name),
				Amount:      amount,
				Date:        s.now(),
			}},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create installment %d: %w", i, err)
		}
		invoices = append(invoices, *inv)
	}

	s.dispatch.Dispatch(notifier.AgreementConfirmation(
		client.Email, client.Name, ag, s.confirmURL(token)))

	return ag, invoices, nil
}

// Confirm transitions the agreement to confirmed exactly once and
// recomputes every installment invoice's due date as confirmedAt plus its
// 0-based index times the frequency. Re-confirming an agreement returns
// ErrAlreadyConfirmed without touching anything.
func (s *AgreementService) Confirm(ctx context.Context, token string) (*domain.PaymentAgreement, []domain.Invoice, error) {
	ag, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	confirmedAt := s.now()
	ok, err := s.store.Confirm(ctx, ag.ID, confirmedAt)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, domain.ErrAlreadyConfirmed
	}
	ag.Status = domain.AgreementStatusConfirmed
	ag.ConfirmedAt = &confirmedAt

	if err := s.store.RecalculateDueDates(ctx, ag.ID, confirmedAt, ag.FrequencyDays); err != nil {
		return nil, nil, err
	}

	invoices, err := s.store.Invoices(ctx, ag.ID)
	if err != nil {
		return nil, nil, err
	}
	// The client just committed to the plan; return the schedule with its
	// line snapshots.
	for i := range invoices {
		items, err := s.invoices.Items(ctx, invoices[i].ID)
		if err != nil {
			return nil, nil, err
		}
		invoices[i].Items = items
	}
	return ag, invoices, nil
}

// Resend re-delivers the confirmation email for a still-pending agreement.
func (s *AgreementService) Resend(ctx context.Context, token string) error {
	ag, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if ag.Status == domain.AgreementStatusConfirmed {
		return domain.ErrAlreadyConfirmed
	}

	project, err := s.accounts.GetProject(ctx, ag.ProjectID)
	if err != nil {
		return err
	}
	client, err := s.accounts.GetClient(ctx, project.ClientID)
	if err != nil {
		return err
	}

	s.dispatch.Dispatch(notifier.AgreementConfirmation(
		client.Email, client.Name, ag, s.confirmURL(ag.Token)))
	return nil
}

func (s *AgreementService) confirmURL(token string) string {
	return fmt.Sprintf("%s/agreements/%s/confirm", s.baseURL, token)
}

// newToken draws a 256-bit random confirmation token.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
