package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjlabrie/gestiobill/internal/config"
	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/fjlabrie/gestiobill/internal/middleware"
	"github.com/fjlabrie/gestiobill/internal/service"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler holds all dependencies needed by the route handlers.
type Handler struct {
	cfg         *config.Config
	db          *pgxpool.Pool
	reconciler  *service.Reconciler
	agreements  *service.AgreementService
	reminders   *service.ReminderService
	webhookLogs *service.WebhookLogService
	limiter     middleware.Counter
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg         *config.Config
	DB          *pgxpool.Pool
	Reconciler  *service.Reconciler
	Agreements  *service.AgreementService
	Reminders   *service.ReminderService
	WebhookLogs *service.WebhookLogService
	Limiter     middleware.Counter
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		cfg:         deps.Cfg,
		db:          deps.DB,
		reconciler:  deps.Reconciler,
		agreements:  deps.Agreements,
		reminders:   deps.Reminders,
		webhookLogs: deps.WebhookLogs,
		limiter:     deps.Limiter,
	}
}

// Router registers all routes and returns the configured router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recover(), middleware.Logging())

	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)

	// Registered before /webhooks/{provider} so "cleanup" and "logs" are
	// never captured as a provider name.
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.BearerAuth(h.cfg.CronSecret))
	protected.HandleFunc("/reminders/check", h.HandleReminderCheck).Methods(http.MethodPost)
	protected.HandleFunc("/reminders/send-manual", h.HandleReminderManual).Methods(http.MethodPost)
	protected.HandleFunc("/webhooks/cleanup", h.HandleWebhookCleanup).Methods(http.MethodPost)
	protected.HandleFunc("/webhooks/logs", h.HandleWebhookLogs).Methods(http.MethodGet)

	r.HandleFunc("/webhooks/{provider}", h.HandleWebhook).Methods(http.MethodPost)

	public := r.PathPrefix("/agreements").Subrouter()
	public.Use(middleware.RateLimit(h.limiter, config.RateLimitPublic))
	public.HandleFunc("/{token}/confirm", h.HandleConfirm).Methods(http.MethodPost)
	public.HandleFunc("/{token}/resend", h.HandleResend).Methods(http.MethodPost)

	return r
}

// HandleHealth answers the liveness probe after pinging the database.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps sentinel errors to their HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAgreementNotFound),
		errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrClientNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyConfirmed),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidInstallments),
		errors.Is(err, domain.ErrNoItemsSelected),
		errors.Is(err, domain.ErrReminderAlreadySent),
		errors.Is(err, domain.ErrAutoRemindersEnabled),
		errors.Is(err, domain.ErrInvoiceNotOverdue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
