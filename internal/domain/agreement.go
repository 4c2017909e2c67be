package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AgreementStatus string

const (
	AgreementStatusPending   AgreementStatus = "pending"
	AgreementStatusConfirmed AgreementStatus = "confirmed"
)

// PaymentAgreement is the confirmable contract describing an installment
// plan for a project. Created once at project creation; ConfirmedAt is set
// exactly once by the client-facing confirmation action.
type PaymentAgreement struct {
	ID                   int64
	ProjectID            int64
	NumberOfInstallments int
	FrequencyDays        int
	AmountPerInstallment decimal.Decimal
	Token                string
	Status               AgreementStatus
	ConfirmedAt          *time.Time
	CreatedAt            time.Time
}
