package notifier

import (
	"fmt"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/shopspring/decimal"
)

// AgreementConfirmation asks the client to confirm an installment plan via
// the tokenized link.
func AgreementConfirmation(to, clientName string, ag *domain.PaymentAgreement, confirmURL string) Message {
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"A payment plan has been prepared for your project: %d installments of %s$, one every %d days.\n\n"+
			"Please confirm the plan here:\n%s\n\n"+
			"The first installment comes due on the day you confirm.\n",
		clientName, ag.NumberOfInstallments, ag.AmountPerInstallment.StringFixed(2),
		ag.FrequencyDays, confirmURL,
	)
	return Message{
		To:      to,
		Subject: "Your payment plan is ready to confirm",
		Body:    body,
	}
}

// PaymentReceived confirms a successful payment to the client.
func PaymentReceived(to, clientName, invoiceNumber string, amount decimal.Decimal) Message {
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"We received your payment of %s$ for invoice %s. Thank you!\n",
		clientName, amount.StringFixed(2), invoiceNumber,
	)
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Payment received for invoice %s", invoiceNumber),
		Body:    body,
	}
}

// Reminder builds the templated email for one reminder type.
func Reminder(t domain.ReminderType, c domain.ReminderCandidate) Message {
	due := c.DueDate.Format("2006-01-02")
	total := c.Total.StringFixed(2)

	var subject, body string
	switch t {
	case domain.ReminderTypeFirst:
		subject = fmt.Sprintf("Invoice %s is due soon", c.InvoiceNumber)
		body = fmt.Sprintf(
			"Hello %s,\n\nA friendly heads-up: invoice %s for %s$ is due on %s.\n",
			c.ClientName, c.InvoiceNumber, total, due,
		)
	case domain.ReminderTypeSecond:
		subject = fmt.Sprintf("Invoice %s is past due", c.InvoiceNumber)
		body = fmt.Sprintf(
			"Hello %s,\n\nInvoice %s for %s$ was due on %s and remains unpaid. "+
				"Please settle it at your earliest convenience.\n",
			c.ClientName, c.InvoiceNumber, total, due,
		)
	case domain.ReminderTypeThird:
		subject = fmt.Sprintf("Second notice: invoice %s remains unpaid", c.InvoiceNumber)
		body = fmt.Sprintf(
			"Hello %s,\n\nThis is a second notice for invoice %s (%s$), due %s. "+
				"Please contact %s if there is a problem with this invoice.\n",
			c.ClientName, c.InvoiceNumber, total, due, c.AccountName,
		)
	case domain.ReminderTypeMiseEnDemeure:
		subject = fmt.Sprintf("Mise en demeure — invoice %s", c.InvoiceNumber)
		body = fmt.Sprintf(
			"%s,\n\nDespite previous notices, invoice %s for %s$, due %s, is still unpaid. "+
				"You are hereby formally put on notice (mise en demeure) to pay the full amount "+
				"within ten (10) days, failing which %s reserves the right to pursue any legal "+
				"remedy without further notice.\n",
			c.ClientName, c.InvoiceNumber, total, due, c.AccountName,
		)
	}
	return Message{To: c.ClientEmail, Subject: subject, Body: body}
}
