package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
)

// HandleReminderCheck runs the daily reminder scan and returns the
// per-invoice outcome list. Intended for a scheduled caller; safe to
// re-run within the same day.
func (h *Handler) HandleReminderCheck(w http.ResponseWriter, r *http.Request) {
	results, err := h.reminders.Scan(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type manualReminderRequest struct {
	InvoiceID int64               `json:"invoiceId"`
	Type      domain.ReminderType `json:"type"`
}

// HandleReminderManual lets staff dispatch one specific reminder, only
// for accounts with automatic reminders disabled.
func (h *Handler) HandleReminderManual(w http.ResponseWriter, r *http.Request) {
	var req manualReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.InvoiceID == 0 || !validReminderType(req.Type) {
		writeError(w, http.StatusBadRequest, "invoiceId and a valid type are required")
		return
	}

	res, err := h.reminders.SendManual(r.Context(), req.InvoiceID, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func validReminderType(t domain.ReminderType) bool {
	for _, v := range domain.ReminderTypes {
		if v == t {
			return true
		}
	}
	return false
}
