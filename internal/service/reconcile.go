package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/fjlabrie/gestiobill/internal/notifier"
	"github.com/fjlabrie/gestiobill/internal/provider"
	"github.com/google/uuid"
)

// Delivery is one inbound webhook request as received on the wire.
type Delivery struct {
	Endpoint string
	Method   string
	Headers  http.Header
	Body     []byte
}

// Result is what the provider-facing HTTP response should say. Status 200
// means the authoritative state change (if any) is committed; the
// notification channel never influences it.
type Result struct {
	Status  int    `json:"-"`
	Outcome string `json:"outcome"`
}

// Reconciler applies normalized payment events to invoices idempotently.
type Reconciler struct {
	adapters      map[domain.PaymentProvider]provider.Adapter
	invoices      *InvoiceService
	invoiceStore  InvoiceStore
	accounts      AccountStore
	logs          WebhookStore
	dispatch      Dispatcher
	receiverEmail string
}

func NewReconciler(adapters []provider.Adapter, invoices *InvoiceService, invoiceStore InvoiceStore, accounts AccountStore, logs WebhookStore, dispatch Dispatcher, paypalReceiverEmail string) *Reconciler {
	m := make(map[domain.PaymentProvider]provider.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Reconciler{
		adapters:      m,
		invoices:      invoices,
		invoiceStore:  invoiceStore,
		accounts:      accounts,
		logs:          logs,
		dispatch:      dispatch,
		receiverEmail: paypalReceiverEmail,
	}
}

// Handle runs the full pipeline for one delivery: persist to the audit
// log, verify authenticity, normalize, correlate and apply. The delivery
// is logged before anything else so processing failures stay diagnosable.
func (r *Reconciler) Handle(ctx context.Context, providerName string, d Delivery) Result {
	adapter, known := r.adapters[domain.PaymentProvider(providerName)]

	logEntry := &domain.WebhookLog{
		Endpoint: d.Endpoint,
		Method:   d.Method,
		Headers:  headersJSON(d.Headers),
		Body:     string(d.Body),
	}
	if known {
		logEntry.Signature = d.Headers.Get(provider.SignatureHeader(adapter.Name()))
	}
	if err := r.logs.Insert(ctx, logEntry); err != nil {
		slog.Error("webhook audit insert failed", "error", err, "endpoint", d.Endpoint)
		return Result{Status: http.StatusInternalServerError, Outcome: "not recorded"}
	}

	if !known {
		return r.finish(ctx, logEntry.ID, http.StatusNotFound, domain.ErrUnknownProvider.Error())
	}

	if err := adapter.Verify(d.Body, d.Headers); err != nil {
		slog.Warn("webhook authenticity check failed",
			"provider", providerName, "error", err)
		return r.finish(ctx, logEntry.ID, http.StatusUnauthorized, err.Error())
	}

	event, err := adapter.Normalize(d.Body)
	if err != nil {
		return r.finish(ctx, logEntry.ID, http.StatusBadRequest, err.Error())
	}
	if event == nil {
		return r.finish(ctx, logEntry.ID, http.StatusOK, "event type ignored")
	}

	return r.apply(ctx, logEntry.ID, event)
}

// apply dispatches on the closed event union. Every branch is handled; a
// new event variant fails to compile rather than being silently dropped.
func (r *Reconciler) apply(ctx context.Context, logID uuid.UUID, event domain.PaymentEvent) Result {
	switch ev := event.(type) {
	case domain.PaymentSucceeded:
		return r.applyPayment(ctx, logID, ev)

	case domain.PaymentFailed:
		r.attachDebug(ctx, logID, fmt.Sprintf(
			"payment failed: provider=%s transaction=%s invoice=%s reason=%q",
			ev.Provider, ev.TransactionID, ev.InvoiceRef, ev.Reason))
		return r.finish(ctx, logID, http.StatusOK, "payment failure recorded")

	case domain.SubscriptionCancelled:
		r.attachDebug(ctx, logID, fmt.Sprintf(
			"subscription cancelled: provider=%s customer=%s ref=%s",
			ev.Provider, ev.CustomerCode, ev.Reference))
		return r.finish(ctx, logID, http.StatusOK, "cancellation recorded")
	}
	return r.finish(ctx, logID, http.StatusInternalServerError, "unhandled event")
}

func (r *Reconciler) applyPayment(ctx context.Context, logID uuid.UUID, ev domain.PaymentSucceeded) Result {
	trace := newTrace()

	inv, res := r.resolveInvoice(ctx, trace, ev)
	if res != nil {
		r.attachDebug(ctx, logID, trace.String())
		return r.finish(ctx, logID, res.Status, res.Outcome)
	}

	changed, err := r.invoices.MarkPaid(ctx, inv.ID, ev.Provider, ev.TransactionID)
	if err != nil {
		trace.Addf("mark paid failed: %v", err)
		r.attachDebug(ctx, logID, trace.String())
		return r.finish(ctx, logID, http.StatusInternalServerError, "processing failed")
	}
	if !changed {
		trace.Addf("invoice %s already paid, duplicate delivery ignored", inv.Number)
		r.attachDebug(ctx, logID, trace.String())
		return r.finish(ctx, logID, http.StatusOK, "duplicate")
	}
	trace.Addf("invoice %s marked paid, transaction %s", inv.Number, ev.TransactionID)

	// Best effort; the state change above stands regardless.
	if client, err := r.accounts.GetClient(ctx, inv.ClientID); err != nil {
		slog.Error("payment confirmation recipient lookup failed",
			"error", err, "invoice_id", inv.ID)
	} else {
		r.dispatch.Dispatch(notifier.PaymentReceived(
			client.Email, client.Name, inv.Number, inv.Total))
	}

	r.attachDebug(ctx, logID, trace.String())
	return r.finish(ctx, logID, http.StatusOK, "paid")
}

// resolveInvoice correlates the event to an invoice, provider by provider.
// A non-nil Result is the short-circuit HTTP answer.
func (r *Reconciler) resolveInvoice(ctx context.Context, trace *trace, ev domain.PaymentSucceeded) (*domain.Invoice, *Result) {
	switch ev.Provider {
	case domain.ProviderHelcim:
		return r.resolveByCustomer(ctx, trace, ev)
	case domain.ProviderPayPal:
		inv, res := r.resolveByRef(ctx, trace, ev)
		if res != nil {
			return nil, res
		}
		// Receiver and amount double as the authenticity check for the
		// signature-less IPN flow.
		if !strings.EqualFold(ev.ReceiverEmail, r.receiverEmail) {
			trace.Addf("receiver email mismatch: got %q", ev.ReceiverEmail)
			return nil, &Result{Status: http.StatusUnauthorized, Outcome: "receiver mismatch"}
		}
		if !ev.Amount.Equal(inv.Total) {
			trace.Addf("amount mismatch: paid %s, invoice total %s",
				ev.Amount.StringFixed(2), inv.Total.StringFixed(2))
			return nil, &Result{Status: http.StatusUnauthorized, Outcome: "amount mismatch"}
		}
		trace.Add("receiver and amount cross-check passed")
		return inv, nil
	default:
		return r.resolveByRef(ctx, trace, ev)
	}
}

func (r *Reconciler) resolveByRef(ctx context.Context, trace *trace, ev domain.PaymentSucceeded) (*domain.Invoice, *Result) {
	if ev.InvoiceRef == "" {
		trace.Add("no invoice reference on event")
		return nil, &Result{Status: http.StatusBadRequest, Outcome: "missing invoice reference"}
	}
	id, err := strconv.ParseInt(ev.InvoiceRef, 10, 64)
	if err != nil {
		trace.Addf("invoice reference %q is not an id", ev.InvoiceRef)
		return nil, &Result{Status: http.StatusBadRequest, Outcome: "bad invoice reference"}
	}
	inv, err := r.invoiceStore.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			trace.Addf("invoice %d not found", id)
			return nil, &Result{Status: http.StatusBadRequest, Outcome: "invoice not found"}
		}
		trace.Addf("invoice lookup failed: %v", err)
		return nil, &Result{Status: http.StatusInternalServerError, Outcome: "processing failed"}
	}
	trace.Addf("resolved invoice %s by reference", inv.Number)
	return inv, nil
}

// resolveByCustomer maps a Helcim customer code to an account, falling
// back to a cardholder-name match when the code lookup misses. The
// fallback is a heuristic, flagged and logged for manual audit.
func (r *Reconciler) resolveByCustomer(ctx context.Context, trace *trace, ev domain.PaymentSucceeded) (*domain.Invoice, *Result) {
	confidence := domain.MatchExact
	account, err := r.accounts.GetAccountByHelcimCode(ctx, ev.CustomerCode)
	switch {
	case err == nil:
		trace.Addf("customer code %q resolved to account %d", ev.CustomerCode, account.ID)
	case errors.Is(err, domain.ErrAccountNotFound):
		trace.Addf("customer code %q unknown, trying cardholder name fallback", ev.CustomerCode)
		if ev.CardholderName == "" {
			trace.Add("no cardholder name on payload")
			return nil, &Result{Status: http.StatusBadRequest, Outcome: "customer not found"}
		}
		account, err = r.accounts.GetAccountByName(ctx, ev.CardholderName)
		if err != nil {
			trace.Addf("cardholder name %q matched nothing: %v", ev.CardholderName, err)
			return nil, &Result{Status: http.StatusBadRequest, Outcome: "customer not found"}
		}
		confidence = domain.MatchFallback
		trace.Addf("FALLBACK match: cardholder name %q resolved to account %d", ev.CardholderName, account.ID)
		slog.Warn("helcim fallback correlation used",
			"cardholder_name", ev.CardholderName,
			"account_id", account.ID,
			"transaction_id", ev.TransactionID,
		)
	default:
		trace.Addf("account lookup failed: %v", err)
		return nil, &Result{Status: http.StatusInternalServerError, Outcome: "processing failed"}
	}

	// A replayed delivery arrives after the invoice left sent, so the
	// amount lookup below would miss it. Resolve by the recorded
	// transaction first; MarkPaid then reports the duplicate.
	if prior, err := r.invoiceStore.FindPaidByTransaction(ctx, account.ID, ev.Provider, ev.TransactionID); err == nil {
		trace.Addf("transaction %s already applied to invoice %s", ev.TransactionID, prior.Number)
		return prior, nil
	} else if !errors.Is(err, domain.ErrInvoiceNotFound) {
		trace.Addf("transaction lookup failed: %v", err)
		return nil, &Result{Status: http.StatusInternalServerError, Outcome: "processing failed"}
	}

	inv, err := r.invoiceStore.FindSentByAccountAndTotal(ctx, account.ID, ev.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			trace.Addf("no sent invoice for account %d with total %s (confidence=%s)",
				account.ID, ev.Amount.StringFixed(2), confidence)
			return nil, &Result{Status: http.StatusBadRequest, Outcome: "invoice not found"}
		}
		trace.Addf("invoice lookup failed: %v", err)
		return nil, &Result{Status: http.StatusInternalServerError, Outcome: "processing failed"}
	}
	trace.Addf("matched invoice %s by amount (confidence=%s)", inv.Number, confidence)
	return inv, nil
}

func (r *Reconciler) finish(ctx context.Context, logID uuid.UUID, status int, outcome string) Result {
	var errMsg *string
	if status >= 400 {
		errMsg = &outcome
	}
	if err := r.logs.SetResult(ctx, logID, status, errMsg); err != nil {
		slog.Error("webhook audit update failed", "error", err, "log_id", logID)
	}
	return Result{Status: status, Outcome: outcome}
}

func (r *Reconciler) attachDebug(ctx context.Context, logID uuid.UUID, info string) {
	if info == "" {
		return
	}
	if err := r.logs.AttachDebugInfo(ctx, logID, info); err != nil {
		slog.Error("webhook debug attach failed", "error", err, "log_id", logID)
	}
}

func headersJSON(h http.Header) string {
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// trace accumulates the step-by-step correlation record attached to the
// audit log. There is no synchronous channel back to the provider, so this
// is the only place a human can reconstruct what happened.
type trace struct {
	steps []string
}

func newTrace() *trace {
	return &trace{}
}

func (t *trace) Add(step string) {
	t.steps = append(t.steps, step)
}

func (t *trace) Addf(format string, args ...any) {
	t.steps = append(t.steps, fmt.Sprintf(format, args...))
}

func (t *trace) String() string {
	return strings.Join(t.steps, "\n")
}
