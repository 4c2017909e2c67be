package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the business owner the service bills on behalf of.
type Account struct {
	ID                 int64
	Name               string
	Email              string
	CollectsTaxes      bool
	AutoRemindersOn    bool
	HelcimCustomerCode *string
	CreatedAt          time.Time
}

// Client is a customer of an account. Invoices are owned by clients.
type Client struct {
	ID        int64
	AccountID int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// Project groups work for a client; its budget feeds the installment plan.
type Project struct {
	ID        int64
	ClientID  int64
	Name      string
	Budget    decimal.Decimal
	CreatedAt time.Time
}
