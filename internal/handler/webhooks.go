package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/fjlabrie/gestiobill/internal/service"
	"github.com/gorilla/mux"
)

// maxWebhookBody caps inbound delivery size.
const maxWebhookBody = 1 << 20

// HandleWebhook receives one provider delivery and runs it through the
// reconciliation pipeline. The 200 means the delivery is durably recorded
// and any state change committed; it says nothing about notifications.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	res := h.reconciler.Handle(r.Context(), providerName, service.Delivery{
		Endpoint: r.URL.Path,
		Method:   r.Method,
		Headers:  r.Header,
		Body:     body,
	})
	writeJSON(w, res.Status, res)
}

// HandleWebhookCleanup applies the retention policy and reports deletion
// counts.
func (h *Handler) HandleWebhookCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.webhookLogs.Cleanup(r.Context(), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleWebhookLogs returns the most recent audit entries.
func (h *Handler) HandleWebhookLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.webhookLogs.Recent(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
