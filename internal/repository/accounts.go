package repository

import (
	"context"
	"fmt"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, name, email, collects_taxes, auto_reminders_on, helcim_customer_code, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.CollectsTaxes, &a.AutoRemindersOn, &a.HelcimCustomerCode, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, name, email, created_at
		FROM clients WHERE id = $1`, id,
	).Scan(&c.ID, &c.AccountID, &c.Name, &c.Email, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (s *AccountStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRow(ctx, `
		SELECT id, client_id, name, budget, created_at
		FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.ClientID, &p.Name, &p.Budget, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// GetAccountByHelcimCode resolves the account a provider-assigned customer
// code belongs to.
func (s *AccountStore) GetAccountByHelcimCode(ctx context.Context, code string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE helcim_customer_code = $1`, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by helcim code: %w", err)
	}
	return a, nil
}

// GetAccountByName is the degraded fallback used when a Helcim customer
// code resolves to nothing. Name matching is a heuristic; callers must log
// every use for audit.
func (s *AccountStore) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE LOWER(name) = LOWER($1)`, name))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account by name: %w", err)
	}
	return a, nil
}
