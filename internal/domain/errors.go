package domain

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrAgreementNotFound    = errors.New("agreement not found")
	ErrAlreadyConfirmed     = errors.New("agreement already confirmed")
	ErrNoItemsSelected      = errors.New("no items selected")
	ErrInvalidStatus        = errors.New("invalid status for this transition")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidInstallments  = errors.New("invalid installment count")
	ErrReminderAlreadySent  = errors.New("reminder already sent for this invoice")
	ErrAutoRemindersEnabled = errors.New("automatic reminders enabled for this account")
	ErrInvoiceNotOverdue    = errors.New("invoice is not overdue")
	ErrUnknownProvider      = errors.New("unknown payment provider")
	ErrBadSignature         = errors.New("signature verification failed")
)
