package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjlabrie/gestiobill/internal/domain"
	"github.com/fjlabrie/gestiobill/internal/notifier"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory stores implementing the service persistence contracts with
// the same conditional-update semantics as the SQL layer.

type memInvoiceStore struct {
	mu          sync.Mutex
	seq         int64
	numSeq      int64
	invoices    map[int64]*domain.Invoice
	items       map[int64][]domain.InvoiceItem
	unpaid      map[int64]*domain.UnpaidAmount
	settleCalls map[int64]int
	settleErr   error
}

func newMemInvoiceStore() *memInvoiceStore {
	return &memInvoiceStore{
		invoices:    make(map[int64]*domain.Invoice),
		items:       make(map[int64][]domain.InvoiceItem),
		unpaid:      make(map[int64]*domain.UnpaidAmount),
		settleCalls: make(map[int64]int),
	}
}

func (s *memInvoiceStore) Create(ctx context.Context, inv *domain.Invoice, items []domain.InvoiceItem, sourceUnpaidIDs []int64) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	inv.ID = s.seq
	inv.CreatedAt = time.Now().UTC()
	cp := *inv
	s.invoices[inv.ID] = &cp
	s.items[inv.ID] = append([]domain.InvoiceItem(nil), items...)
	return inv, nil
}

func (s *memInvoiceStore) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *memInvoiceStore) Items(ctx context.Context, invoiceID int64) ([]domain.InvoiceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.InvoiceItem(nil), s.items[invoiceID]...), nil
}

func (s *memInvoiceStore) NextNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numSeq++
	return fmt.Sprintf("INV-2026-%04d", s.numSeq), nil
}

func (s *memInvoiceStore) UpdateStatus(ctx context.Context, id int64, from []domain.InvoiceStatus, to domain.InvoiceStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if inv.Status == st {
			inv.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *memInvoiceStore) MarkPaid(ctx context.Context, id int64, provider domain.PaymentProvider, transactionID string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok || inv.Status == domain.InvoiceStatusPaid {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentProvider = &provider
	inv.PaymentTransactionID = &transactionID
	return true, nil
}

func (s *memInvoiceStore) SettleUnpaidAmounts(ctx context.Context, invoiceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settleErr != nil {
		return s.settleErr
	}
	s.settleCalls[invoiceID]++
	return nil
}

func (s *memInvoiceStore) GetUnpaidAmounts(ctx context.Context, ids []int64) ([]domain.UnpaidAmount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UnpaidAmount
	for _, id := range ids {
		if ua, ok := s.unpaid[id]; ok {
			out = append(out, *ua)
		}
	}
	return out, nil
}

func (s *memInvoiceStore) FindSentByAccountAndTotal(ctx context.Context, accountID int64, total decimal.Decimal) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.invoices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		inv := s.invoices[id]
		// accountID association is carried through the client id in tests
		if inv.Status == domain.InvoiceStatusSent && inv.Total.Equal(total) && s.accountOf(inv) == accountID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

func (s *memInvoiceStore) FindPaidByTransaction(ctx context.Context, accountID int64, provider domain.PaymentProvider, transactionID string) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.Status != domain.InvoiceStatusPaid || s.accountOf(inv) != accountID {
			continue
		}
		if inv.PaymentProvider != nil && *inv.PaymentProvider == provider &&
			inv.PaymentTransactionID != nil && *inv.PaymentTransactionID == transactionID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvoiceNotFound
}

// accountOf mirrors the SQL join: tests register clients in the paired
// account store; here the convention is client N belongs to account N.
func (s *memInvoiceStore) accountOf(inv *domain.Invoice) int64 {
	return inv.ClientID
}

func (s *memInvoiceStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return domain.ErrInvoiceNotFound
	}
	delete(s.invoices, id)
	delete(s.items, id)
	return nil
}

type memAccountStore struct {
	accounts map[int64]*domain.Account
	clients  map[int64]*domain.Client
	projects map[int64]*domain.Project
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{
		accounts: make(map[int64]*domain.Account),
		clients:  make(map[int64]*domain.Client),
		projects: make(map[int64]*domain.Project),
	}
}

func (s *memAccountStore) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

func (s *memAccountStore) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return c, nil
}

func (s *memAccountStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

func (s *memAccountStore) GetAccountByHelcimCode(ctx context.Context, code string) (*domain.Account, error) {
	for _, a := range s.accounts {
		if a.HelcimCustomerCode != nil && *a.HelcimCustomerCode == code {
			return a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *memAccountStore) GetAccountByName(ctx context.Context, name string) (*domain.Account, error) {
	for _, a := range s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

type memAgreementStore struct {
	mu         sync.Mutex
	seq        int64
	agreements map[int64]*domain.PaymentAgreement
	invoices   *memInvoiceStore
}

func newMemAgreementStore(invoices *memInvoiceStore) *memAgreementStore {
	return &memAgreementStore{
		agreements: make(map[int64]*domain.PaymentAgreement),
		invoices:   invoices,
	}
}

func (s *memAgreementStore) Create(ctx context.Context, ag *domain.PaymentAgreement) (*domain.PaymentAgreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ag.ID = s.seq
	ag.CreatedAt = time.Now().UTC()
	cp := *ag
	s.agreements[ag.ID] = &cp
	return ag, nil
}

func (s *memAgreementStore) GetByToken(ctx context.Context, token string) (*domain.PaymentAgreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ag := range s.agreements {
		if ag.Token == token {
			cp := *ag
			return &cp, nil
		}
	}
	return nil, domain.ErrAgreementNotFound
}

func (s *memAgreementStore) Confirm(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ag, ok := s.agreements[id]
	if !ok || ag.Status != domain.AgreementStatusPending {
		return false, nil
	}
	ag.Status = domain.AgreementStatusConfirmed
	ag.ConfirmedAt = &at
	return true, nil
}

func (s *memAgreementStore) Invoices(ctx context.Context, agreementID int64) ([]domain.Invoice, error) {
	s.invoices.mu.Lock()
	defer s.invoices.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range s.invoices.invoices {
		if inv.AgreementID != nil && *inv.AgreementID == agreementID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAgreementStore) RecalculateDueDates(ctx context.Context, agreementID int64, confirmedAt time.Time, frequencyDays int) error {
	s.invoices.mu.Lock()
	defer s.invoices.mu.Unlock()
	var ids []int64
	for id, inv := range s.invoices.invoices {
		if inv.AgreementID != nil && *inv.AgreementID == agreementID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		due := confirmedAt.AddDate(0, 0, i*frequencyDays)
		s.invoices.invoices[id].DueDate = &due
	}
	return nil
}

type memReminderStore struct {
	mu         sync.Mutex
	seq        int64
	records    []domain.InvoiceReminder
	candidates []domain.ReminderCandidate
}

func (s *memReminderStore) HasSuccessful(ctx context.Context, invoiceID int64, t domain.ReminderType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.InvoiceID == invoiceID && r.Type == t && r.Status == domain.ReminderStatusSent {
			return true, nil
		}
	}
	return false, nil
}

func (s *memReminderStore) Create(ctx context.Context, r *domain.InvoiceReminder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Status == domain.ReminderStatusSent {
		for _, existing := range s.records {
			if existing.InvoiceID == r.InvoiceID && existing.Type == r.Type && existing.Status == domain.ReminderStatusSent {
				return false, nil
			}
		}
	}
	s.seq++
	r.ID = s.seq
	r.SentAt = time.Now().UTC()
	s.records = append(s.records, *r)
	return true, nil
}

func (s *memReminderStore) ListCandidates(ctx context.Context) ([]domain.ReminderCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ReminderCandidate(nil), s.candidates...), nil
}

func (s *memReminderStore) sentCount(invoiceID int64, t domain.ReminderType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.records {
		if r.InvoiceID == invoiceID && r.Type == t && r.Status == domain.ReminderStatusSent {
			n++
		}
	}
	return n
}

type memWebhookStore struct {
	mu   sync.Mutex
	logs map[uuid.UUID]*domain.WebhookLog

	cleanupSuccessBefore time.Time
	cleanupFailureBefore time.Time
}

func newMemWebhookStore() *memWebhookStore {
	return &memWebhookStore{logs: make(map[uuid.UUID]*domain.WebhookLog)}
}

func (s *memWebhookStore) Insert(ctx context.Context, l *domain.WebhookLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.ProcessedAt = time.Now().UTC()
	cp := *l
	s.logs[l.ID] = &cp
	return nil
}

func (s *memWebhookStore) SetResult(ctx context.Context, id uuid.UUID, status int, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[id]; ok {
		l.ResponseStatus = status
		l.Error = errMsg
	}
	return nil
}

func (s *memWebhookStore) AttachDebugInfo(ctx context.Context, id uuid.UUID, info string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[id]; ok {
		if l.DebugInfo == nil {
			l.DebugInfo = &info
		} else {
			joined := *l.DebugInfo + "\n" + info
			l.DebugInfo = &joined
		}
	}
	return nil
}

func (s *memWebhookStore) Cleanup(ctx context.Context, successBefore, failureBefore time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupSuccessBefore = successBefore
	s.cleanupFailureBefore = failureBefore
	var succ, fail int64
	for id, l := range s.logs {
		ok := l.ResponseStatus >= 200 && l.ResponseStatus < 400
		if ok && l.ProcessedAt.Before(successBefore) {
			delete(s.logs, id)
			succ++
		}
		if !ok && l.ProcessedAt.Before(failureBefore) {
			delete(s.logs, id)
			fail++
		}
	}
	return succ, fail, nil
}

func (s *memWebhookStore) ListRecent(ctx context.Context, limit int) ([]domain.WebhookLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WebhookLog
	for _, l := range s.logs {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.After(out[j].ProcessedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memWebhookStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// fakeDispatcher records dispatched messages synchronously.
type fakeDispatcher struct {
	mu   sync.Mutex
	msgs []notifier.Message
}

func (d *fakeDispatcher) Dispatch(msg notifier.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

// fakeNotifier is a synchronous Notifier whose failures are scripted.
type fakeNotifier struct {
	mu   sync.Mutex
	fail bool
	sent []notifier.Message
}

func (n *fakeNotifier) Send(ctx context.Context, msg notifier.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("smtp unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
