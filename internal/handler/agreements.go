package handler

import (
	"net/http"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/gorilla/mux"
)

type agreementResponse struct {
	ID                   int64      `json:"id"`
	ProjectID            int64      `json:"projectId"`
	NumberOfInstallments int        `json:"numberOfInstallments"`
	FrequencyDays        int        `json:"frequencyDays"`
	AmountPerInstallment string     `json:"amountPerInstallment"`
	Status               string     `json:"status"`
	ConfirmedAt          *time.Time `json:"confirmedAt,omitempty"`
}

type invoiceResponse struct {
	ID      int64          `json:"id"`
	Number  string         `json:"number"`
	Status  string         `json:"status"`
	Total   string         `json:"total"`
	DueDate *time.Time     `json:"dueDate,omitempty"`
	Items   []itemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func toAgreementResponse(ag *domain.PaymentAgreement, invoices []domain.Invoice) map[string]any {
	out := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		items := make([]itemResponse, len(inv.Items))
		for j, it := range inv.Items {
			items[j] = itemResponse{Description: it.Description, Amount: it.Amount.StringFixed(2)}
		}
		out[i] = invoiceResponse{
			ID:      inv.ID,
			Number:  inv.Number,
			Status:  string(inv.Status),
			Total:   inv.Total.StringFixed(2),
			DueDate: inv.DueDate,
			Items:   items,
		}
	}
	return map[string]any{
		"agreement": agreementResponse{
			ID:                   ag.ID,
			ProjectID:            ag.ProjectID,
			NumberOfInstallments: ag.NumberOfInstallments,
			FrequencyDays:        ag.FrequencyDays,
			AmountPerInstallment: ag.AmountPerInstallment.StringFixed(2),
			Status:               string(ag.Status),
			ConfirmedAt:          ag.ConfirmedAt,
		},
		"invoices": out,
	}
}

// HandleConfirm is the client-facing confirmation action: it stamps the
// agreement once and returns the recalculated installment invoices.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	ag, invoices, err := h.agreements.Confirm(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgreementResponse(ag, invoices))
}

// HandleResend re-delivers the confirmation email for a pending agreement.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if err := h.agreements.Resend(r.Context(), token); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resent"})
}
