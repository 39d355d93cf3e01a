package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/gateway"
)

type fakeStore struct {
	mu       sync.Mutex
	txns     map[string]*domain.Transaction
	payments map[string]*domain.Payment
	byOrder  map[string]string
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		txns:     map[string]*domain.Transaction{},
		payments: map[string]*domain.Payment{},
		byOrder:  map[string]string{},
	}
}

func (s *fakeStore) Create(_ context.Context, txn *domain.Transaction, pay *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if _, exists := s.byOrder[txn.OrderRef]; exists {
		return fmt.Errorf("duplicate order ref %s", txn.OrderRef)
	}
	cp := *txn
	s.txns[txn.ID] = &cp
	s.byOrder[txn.OrderRef] = txn.ID
	if pay != nil {
		pc := *pay
		s.payments[txn.ID] = &pc
	}
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *fakeStore) GetByOrderRef(_ context.Context, ref string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOrder[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.txns[id]
	return &cp, nil
}

func (s *fakeStore) List(_ context.Context, _ domain.TransactionFilter) ([]domain.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, txn := range s.txns {
		out = append(out, *txn)
	}
	return out, len(out), nil
}

func (s *fakeStore) ListPendingOlderThan(_ context.Context, cutoff time.Time, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, txn := range s.txns {
		if txn.Status == domain.StatusPending && txn.CreatedAt.Before(cutoff) {
			out = append(out, *txn)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyTransition(_ context.Context, txn *domain.Transaction, target domain.TransactionStatus, paymentMethod, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.txns[txn.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != txn.Status {
		return domain.ErrConflict
	}
	stored.Status = target
	if paymentMethod != "" {
		stored.PaymentMethod = paymentMethod
	}
	if notes != "" {
		stored.Notes = notes
	}
	if pay, ok := s.payments[txn.ID]; ok {
		pay.Status = domain.PaymentStatusFor(target)
	}
	return nil
}

func (s *fakeStore) payment(txnID string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pay, ok := s.payments[txnID]; ok {
		cp := *pay
		return &cp
	}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txns)
}

// completedSum re-derives the signed collected total for a contribution
// from transactions currently in COMPLETED.
func (s *fakeStore) completedSum(contributionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, txn := range s.txns {
		if txn.Status != domain.StatusCompleted || txn.ContributionID == nil || *txn.ContributionID != contributionID {
			continue
		}
		switch txn.Type {
		case domain.TransactionTypePayment:
			sum += txn.Amount
		case domain.TransactionTypeRefund:
			sum -= txn.Amount
		}
	}
	return sum
}

type fakeLedger struct {
	mu     sync.Mutex
	totals map[string]int64
	store  *fakeStore
	calls  int
}

func newFakeLedger(store *fakeStore) *fakeLedger {
	return &fakeLedger{totals: map[string]int64{}, store: store}
}

func (l *fakeLedger) ApplyDelta(_ context.Context, contributionID string, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[contributionID] += delta
	l.calls++
	return nil
}

func (l *fakeLedger) Recompute(_ context.Context, contributionID string) (int64, bool, error) {
	derived := l.store.completedSum(contributionID)
	l.mu.Lock()
	defer l.mu.Unlock()
	corrected := l.totals[contributionID] != derived
	l.totals[contributionID] = derived
	return derived, corrected, nil
}

func (l *fakeLedger) total(contributionID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[contributionID]
}

type fakeSink struct {
	mu      sync.Mutex
	records []domain.Notification
}

func (f *fakeSink) Record(_ context.Context, userID, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, domain.Notification{UserID: userID, Title: title, Message: message})
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeGateway struct {
	mu          sync.Mutex
	createCalls int
	failCreate  error
	lastOrder   string
	status      *gateway.StatusResponse
	statusErr   error
	createHook  func()
}

func (g *fakeGateway) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	g.mu.Lock()
	hook := g.createHook
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate != nil {
		return nil, g.failCreate
	}
	g.createCalls++
	g.lastOrder = req.OrderRef
	return &gateway.Charge{
		Token:       fmt.Sprintf("snap-token-%d", g.createCalls),
		RedirectURL: "https://example.com/pay/" + req.OrderRef,
	}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, orderRef string) (*gateway.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.status == nil {
		return &gateway.StatusResponse{OrderRef: orderRef, TransactionStatus: "pending"}, nil
	}
	resp := *g.status
	resp.OrderRef = orderRef
	return &resp, nil
}

type fakeContributions struct {
	items map[string]*domain.Contribution
}

func (f *fakeContributions) GetByID(_ context.Context, id string) (*domain.Contribution, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContributions) List(_ context.Context) ([]domain.Contribution, error) {
	var out []domain.Contribution
	for _, c := range f.items {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeContributions) ListIDs(_ context.Context) ([]string, error) {
	var out []string
	for id := range f.items {
		out = append(out, id)
	}
	return out, nil
}

type fakeUsers struct {
	items map[string]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type testRig struct {
	engine  *Engine
	store   *fakeStore
	ledger  *fakeLedger
	sink    *fakeSink
	gw      *fakeGateway
	contrib *fakeContributions
}

const testContributionID = "contribution-1"

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	store := newFakeStore()
	ledger := newFakeLedger(store)
	sink := &fakeSink{}
	gw := &fakeGateway{}
	contrib := &fakeContributions{items: map[string]*domain.Contribution{
		testContributionID: {
			ID:        testContributionID,
			Title:     "Iuran Keamanan",
			Status:    domain.ContributionActive,
			StartDate: time.Now().Add(-24 * time.Hour),
			EndDate:   time.Now().Add(24 * time.Hour),
		},
	}}
	users := &fakeUsers{items: map[string]*domain.User{
		"user-1": {ID: "user-1", Name: "Budi", Email: "budi@example.com", Role: domain.RoleResident, Locale: "id"},
		"user-2": {ID: "user-2", Name: "Sari", Email: "sari@example.com", Role: domain.RoleResident},
		"admin":  {ID: "admin", Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Locale: "en"},
	}}
	eng := New(Options{
		Store:         store,
		Ledger:        ledger,
		Notifications: sink,
		Gateway:       gw,
		Contributions: contrib,
		Users:         users,
		Logger:        zerolog.Nop(),
	})
	return &testRig{engine: eng, store: store, ledger: ledger, sink: sink, gw: gw, contrib: contrib}
}

func (r *testRig) createPayment(t *testing.T, amount int64) *domain.Transaction {
	t.Helper()
	contributionID := testContributionID
	res, err := r.engine.Create(context.Background(), CreateParams{
		UserID:         "user-1",
		ContributionID: &contributionID,
		Amount:         amount,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res.Transaction
}

func (r *testRig) webhook(t *testing.T, orderRef, status, fraud string) (Outcome, error) {
	t.Helper()
	n := &gateway.Notification{
		OrderRef:          orderRef,
		StatusCode:        "200",
		GrossAmount:       "50000.00",
		TransactionStatus: status,
		FraudStatus:       fraud,
		PaymentType:       "bank_transfer",
		TransactionID:     "mid-1",
	}
	outcome, _, err := r.engine.HandleWebhook(context.Background(), n)
	return outcome, err
}

// assertConserved checks the ledger invariant: the collected total must
// equal the signed sum over COMPLETED transactions at every step.
func (r *testRig) assertConserved(t *testing.T) {
	t.Helper()
	want := r.store.completedSum(testContributionID)
	if got := r.ledger.total(testContributionID); got != want {
		t.Fatalf("ledger total %d drifted from derived sum %d", got, want)
	}
}

func TestCreatePaymentScenario(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	if txn.Status != domain.StatusPending {
		t.Fatalf("new transaction status = %s, want PENDING", txn.Status)
	}
	if pay := rig.store.payment(txn.ID); pay == nil || pay.Status != domain.PaymentPending {
		t.Fatalf("expected PENDING payment projection, got %+v", pay)
	}
	if rig.ledger.total(testContributionID) != 0 {
		t.Fatal("creation must not touch the ledger")
	}

	// Scenario A: capture/accept completes the payment and credits the ledger once.
	outcome, err := rig.webhook(t, txn.OrderRef, "capture", "accept")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("webhook outcome = %v err = %v, want applied", outcome, err)
	}
	if got := rig.ledger.total(testContributionID); got != 50000 {
		t.Fatalf("collected amount = %d, want 50000", got)
	}
	if pay := rig.store.payment(txn.ID); pay.Status != domain.PaymentCompleted {
		t.Fatalf("payment projection = %s, want COMPLETED", pay.Status)
	}
	if rig.sink.count() != 1 {
		t.Fatalf("notification count = %d, want 1", rig.sink.count())
	}
	rig.assertConserved(t)

	// Scenario B: redelivery is a NoOp, no double credit, no extra effects.
	outcome, err = rig.webhook(t, txn.OrderRef, "capture", "accept")
	if err != nil || outcome != OutcomeNoOp {
		t.Fatalf("redelivered webhook outcome = %v err = %v, want noop", outcome, err)
	}
	if got := rig.ledger.total(testContributionID); got != 50000 {
		t.Fatalf("collected amount after redelivery = %d, want 50000", got)
	}
	if rig.sink.count() != 1 {
		t.Fatalf("notification count after redelivery = %d, want 1", rig.sink.count())
	}
	rig.assertConserved(t)
}

func TestWebhookIdempotentUnderRepeatedDelivery(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 75000)

	applied := 0
	for i := 0; i < 5; i++ {
		outcome, err := rig.webhook(t, txn.OrderRef, "settlement", "")
		if err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
		if outcome == OutcomeApplied {
			applied++
		}
		rig.assertConserved(t)
	}
	if applied != 1 {
		t.Fatalf("applied %d times, want exactly 1", applied)
	}
	if got := rig.ledger.total(testContributionID); got != 75000 {
		t.Fatalf("collected amount = %d, want 75000", got)
	}
}

func TestManualOverrideOnCompletedIsNoOp(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)
	if _, err := rig.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
		t.Fatal(err)
	}

	// Scenario C: an admin cannot flip a completed transaction to FAILED.
	outcome, current, err := rig.engine.ManualOverride(context.Background(), txn.ID, domain.StatusFailed, "admin", "")
	if err != nil {
		t.Fatalf("ManualOverride: %v", err)
	}
	if outcome != OutcomeNoOp {
		t.Fatalf("outcome = %v, want noop", outcome)
	}
	if current.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", current.Status)
	}
	if got := rig.ledger.total(testContributionID); got != 50000 {
		t.Fatalf("collected amount = %d, want unchanged 50000", got)
	}
	rig.assertConserved(t)
}

func TestManualOverrideRestrictedTargets(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	for _, target := range []domain.TransactionStatus{domain.StatusPending, domain.StatusProcessing, domain.StatusCancelled} {
		outcome, _, err := rig.engine.ManualOverride(context.Background(), txn.ID, target, "admin", "")
		if outcome != OutcomeRejected || !errors.Is(err, domain.ErrValidation) {
			t.Errorf("override to %s: outcome = %v err = %v, want rejected validation error", target, outcome, err)
		}
	}
}

func TestResumeReturnsFreshTokenWithoutMutation(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	// Scenario D: resume re-charges the same order ref, no new rows.
	charge, current, err := rig.engine.Resume(context.Background(), txn.ID, "user-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if charge.Token == "" || charge.Token == "snap-token-1" {
		t.Fatalf("expected fresh token, got %q", charge.Token)
	}
	if rig.gw.lastOrder != txn.OrderRef {
		t.Fatalf("resume used order ref %q, want %q", rig.gw.lastOrder, txn.OrderRef)
	}
	if rig.store.count() != 1 {
		t.Fatalf("transaction count = %d, want 1", rig.store.count())
	}
	if current.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", current.Status)
	}
}

func TestResumeGuards(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	if _, _, err := rig.engine.Resume(context.Background(), txn.ID, "someone-else"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign resume err = %v, want ErrNotFound", err)
	}

	if _, err := rig.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
		t.Fatal(err)
	}
	if _, _, err := rig.engine.Resume(context.Background(), txn.ID, "user-1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("resume of completed err = %v, want ErrConflict", err)
	}
}

func TestWebhookDenyFailsWithoutLedgerEffect(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	// Scenario E: deny fails the payment, ledger untouched.
	outcome, err := rig.webhook(t, txn.OrderRef, "deny", "")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v err = %v, want applied", outcome, err)
	}
	current, _ := rig.store.GetByID(context.Background(), txn.ID)
	if current.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", current.Status)
	}
	if pay := rig.store.payment(txn.ID); pay.Status != domain.PaymentFailed {
		t.Fatalf("payment projection = %s, want FAILED", pay.Status)
	}
	if got := rig.ledger.total(testContributionID); got != 0 {
		t.Fatalf("collected amount = %d, want 0", got)
	}
	rig.assertConserved(t)
}

func TestNoResurrectionFromTerminalStates(t *testing.T) {
	targets := []domain.TransactionStatus{
		domain.StatusPending, domain.StatusProcessing,
		domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled,
	}
	terminalVia := map[domain.TransactionStatus]func(r *testRig, t *testing.T, txn *domain.Transaction){
		domain.StatusCompleted: func(r *testRig, t *testing.T, txn *domain.Transaction) {
			if _, err := r.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
				t.Fatal(err)
			}
		},
		domain.StatusFailed: func(r *testRig, t *testing.T, txn *domain.Transaction) {
			if _, err := r.webhook(t, txn.OrderRef, "expire", ""); err != nil {
				t.Fatal(err)
			}
		},
		domain.StatusCancelled: func(r *testRig, t *testing.T, txn *domain.Transaction) {
			if _, _, err := r.engine.Cancel(context.Background(), txn.ID, "user-1", ""); err != nil {
				t.Fatal(err)
			}
		},
	}

	for terminal, reach := range terminalVia {
		t.Run(string(terminal), func(t *testing.T) {
			rig := newTestRig(t)
			txn := rig.createPayment(t, 50000)
			reach(rig, t, txn)
			ledgerBefore := rig.ledger.total(testContributionID)
			notificationsBefore := rig.sink.count()

			for _, target := range targets {
				outcome, current, err := rig.engine.AttemptTransition(context.Background(), txn.ID, target, SourceManual)
				if err != nil {
					t.Fatalf("AttemptTransition(%s): %v", target, err)
				}
				if outcome != OutcomeNoOp {
					t.Fatalf("AttemptTransition(%s) outcome = %v, want noop", target, outcome)
				}
				if current.Status != terminal {
					t.Fatalf("status mutated to %s from terminal %s", current.Status, terminal)
				}
			}
			if rig.ledger.total(testContributionID) != ledgerBefore {
				t.Fatal("ledger changed by post-terminal signals")
			}
			if rig.sink.count() != notificationsBefore {
				t.Fatal("notifications recorded for post-terminal signals")
			}
			rig.assertConserved(t)
		})
	}
}

func TestCancelBeatsLateWebhook(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	outcome, _, err := rig.engine.Cancel(context.Background(), txn.ID, "user-1", "")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("cancel outcome = %v err = %v", outcome, err)
	}

	outcome, err = rig.webhook(t, txn.OrderRef, "settlement", "")
	if err != nil || outcome != OutcomeNoOp {
		t.Fatalf("late webhook outcome = %v err = %v, want noop", outcome, err)
	}
	if got := rig.ledger.total(testContributionID); got != 0 {
		t.Fatalf("collected amount = %d, want 0 after cancel", got)
	}
	rig.assertConserved(t)
}

func TestInvalidEdgeIsRejected(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	// Move to PROCESSING via capture/challenge, then try to walk back.
	if _, err := rig.webhook(t, txn.OrderRef, "capture", "challenge"); err != nil {
		t.Fatal(err)
	}
	outcome, _, err := rig.engine.AttemptTransition(context.Background(), txn.ID, domain.StatusPending, SourceWebhook)
	if outcome != OutcomeRejected || !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("outcome = %v err = %v, want rejected ErrInvalidTransition", outcome, err)
	}
}

func TestConcurrentDuplicateWebhooksCreditOnce(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	const deliveries = 16
	var wg sync.WaitGroup
	outcomes := make([]Outcome, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := &gateway.Notification{
				OrderRef:          txn.OrderRef,
				StatusCode:        "200",
				GrossAmount:       "50000.00",
				TransactionStatus: "settlement",
			}
			outcome, _, err := rig.engine.HandleWebhook(context.Background(), n)
			if err != nil {
				t.Errorf("delivery %d: %v", i, err)
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, o := range outcomes {
		if o == OutcomeApplied {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("applied %d times under concurrency, want exactly 1", applied)
	}
	if got := rig.ledger.total(testContributionID); got != 50000 {
		t.Fatalf("collected amount = %d, want 50000", got)
	}
	if rig.ledger.calls != 1 {
		t.Fatalf("ledger delta applied %d times, want 1", rig.ledger.calls)
	}
	rig.assertConserved(t)
}

func TestConcurrentWebhookAgainstOverrideAndCancel(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	run(func() { _, _ = rig.webhook(t, txn.OrderRef, "settlement", "") })
	run(func() { _, _, _ = rig.engine.ManualOverride(context.Background(), txn.ID, domain.StatusFailed, "admin", "") })
	run(func() { _, _, _ = rig.engine.Cancel(context.Background(), txn.ID, "user-1", "") })
	wg.Wait()

	current, err := rig.store.GetByID(context.Background(), txn.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !current.Status.Terminal() {
		t.Fatalf("expected a terminal state, got %s", current.Status)
	}
	// Whatever won, the ledger must agree with the final status.
	rig.assertConserved(t)
}

func TestCreateFailsCleanlyWhenGatewayDown(t *testing.T) {
	rig := newTestRig(t)
	rig.gw.failCreate = errors.New("connection refused")

	contributionID := testContributionID
	_, err := rig.engine.Create(context.Background(), CreateParams{
		UserID:         "user-1",
		ContributionID: &contributionID,
		Amount:         50000,
	})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v, want ErrGateway", err)
	}
	if rig.store.count() != 0 {
		t.Fatalf("transaction rows = %d, want 0 after gateway failure", rig.store.count())
	}
}

func TestCreateValidation(t *testing.T) {
	rig := newTestRig(t)
	contributionID := testContributionID

	if _, err := rig.engine.Create(context.Background(), CreateParams{UserID: "user-1", ContributionID: &contributionID, Amount: 0}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero amount err = %v, want ErrValidation", err)
	}

	missing := "missing"
	if _, err := rig.engine.Create(context.Background(), CreateParams{UserID: "user-1", ContributionID: &missing, Amount: 1000}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown contribution err = %v, want ErrNotFound", err)
	}

	rig.contrib.items[contributionID].Status = domain.ContributionCancelled
	if _, err := rig.engine.Create(context.Background(), CreateParams{UserID: "user-1", ContributionID: &contributionID, Amount: 1000}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("inactive contribution err = %v, want ErrValidation", err)
	}
}

func TestRefundDebitsLedgerOnce(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)
	if _, err := rig.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
		t.Fatal(err)
	}

	contributionID := testContributionID
	refund, err := rig.engine.CreateManual(context.Background(), ManualParams{
		UserID:         "user-1",
		ContributionID: &contributionID,
		Amount:         20000,
		Type:           domain.TransactionTypeRefund,
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}

	outcome, _, err := rig.engine.ManualOverride(context.Background(), refund.ID, domain.StatusCompleted, "admin", "")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("refund override outcome = %v err = %v", outcome, err)
	}
	if got := rig.ledger.total(testContributionID); got != 30000 {
		t.Fatalf("collected amount = %d, want 30000 after refund", got)
	}
	rig.assertConserved(t)

	// Redundant completion stays a NoOp.
	outcome, _, _ = rig.engine.ManualOverride(context.Background(), refund.ID, domain.StatusCompleted, "admin", "")
	if outcome != OutcomeNoOp || rig.ledger.total(testContributionID) != 30000 {
		t.Fatal("refund must not debit twice")
	}
}

func TestAdjustmentHasNoLedgerEffect(t *testing.T) {
	rig := newTestRig(t)
	contributionID := testContributionID
	adj, err := rig.engine.CreateManual(context.Background(), ManualParams{
		UserID:         "user-1",
		ContributionID: &contributionID,
		Amount:         99999,
		Type:           domain.TransactionTypeAdjustment,
		Notes:          "opening balance correction",
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	outcome, _, err := rig.engine.ManualOverride(context.Background(), adj.ID, domain.StatusCompleted, "admin", "")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("adjustment override outcome = %v err = %v", outcome, err)
	}
	if got := rig.ledger.total(testContributionID); got != 0 {
		t.Fatalf("collected amount = %d, want 0 for adjustment", got)
	}
}

func TestWebhookUnknownOrderSurfacesNotFound(t *testing.T) {
	rig := newTestRig(t)
	n := &gateway.Notification{
		OrderRef:          "ORDER-unknown",
		StatusCode:        "200",
		GrossAmount:       "100.00",
		TransactionStatus: "settlement",
	}
	_, _, err := rig.engine.HandleWebhook(context.Background(), n)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNotificationLocalization(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)
	if _, err := rig.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
		t.Fatal(err)
	}
	if rig.sink.count() != 1 {
		t.Fatalf("notification count = %d, want 1", rig.sink.count())
	}
	record := rig.sink.records[0]
	if record.Title != "Pembayaran Berhasil" {
		t.Fatalf("title = %q, want Indonesian success copy", record.Title)
	}
	if record.Message != "Pembayaran Anda sebesar Rp 50.000 telah berhasil." {
		t.Fatalf("unexpected message %q", record.Message)
	}
}

func TestNotificationLocaleFollowsRequestWhenProfileUnset(t *testing.T) {
	rig := newTestRig(t)
	contributionID := testContributionID
	res, err := rig.engine.Create(context.Background(), CreateParams{
		UserID:         "user-2",
		ContributionID: &contributionID,
		Amount:         40000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// user-2 never picked a language, so the locale negotiated for the
	// cancelling request decides the copy.
	outcome, _, err := rig.engine.Cancel(context.Background(), res.Transaction.ID, "user-2", "en")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("cancel outcome = %v err = %v", outcome, err)
	}
	if got := rig.sink.records[0].Title; got != "Payment Cancelled" {
		t.Fatalf("title = %q, want English copy for the request locale", got)
	}
}

func TestNotificationStoredLocaleBeatsRequestLocale(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	outcome, _, err := rig.engine.Cancel(context.Background(), txn.ID, "user-1", "en")
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("cancel outcome = %v err = %v", outcome, err)
	}
	if got := rig.sink.records[0].Title; got != "Pembayaran Dibatalkan" {
		t.Fatalf("title = %q, want Indonesian copy from the stored locale", got)
	}
}

func TestResumeHoldsTransactionLock(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)

	resumeInGateway := make(chan struct{})
	releaseGateway := make(chan struct{})
	rig.gw.mu.Lock()
	rig.gw.createHook = func() {
		close(resumeInGateway)
		<-releaseGateway
	}
	rig.gw.mu.Unlock()

	resumeDone := make(chan error, 1)
	go func() {
		_, _, err := rig.engine.Resume(context.Background(), txn.ID, "user-1")
		resumeDone <- err
	}()
	<-resumeInGateway

	webhookDone := make(chan Outcome, 1)
	go func() {
		outcome, _ := rig.webhook(t, txn.OrderRef, "settlement", "")
		webhookDone <- outcome
	}()

	// While the resume holds the transaction's section, the settlement
	// must not land.
	select {
	case <-webhookDone:
		t.Fatal("webhook completed the transaction during an in-flight resume")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseGateway)
	if err := <-resumeDone; err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if outcome := <-webhookDone; outcome != OutcomeApplied {
		t.Fatalf("webhook outcome = %v, want applied once resume released the lock", outcome)
	}
	rig.assertConserved(t)
}

func TestReconcilePendingAppliesGatewayTruth(t *testing.T) {
	rig := newTestRig(t)
	rig.engine.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	txn := rig.createPayment(t, 50000)
	rig.engine.now = time.Now

	rig.gw.status = &gateway.StatusResponse{TransactionStatus: "settlement", PaymentType: "gopay"}

	applied, err := rig.engine.ReconcilePending(context.Background(), time.Hour, 100)
	if err != nil {
		t.Fatalf("ReconcilePending: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	current, _ := rig.store.GetByID(context.Background(), txn.ID)
	if current.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", current.Status)
	}
	if current.PaymentMethod != "gopay" {
		t.Fatalf("payment method = %q, want gopay", current.PaymentMethod)
	}
	rig.assertConserved(t)

	// A second sweep finds nothing pending.
	applied, err = rig.engine.ReconcilePending(context.Background(), time.Hour, 100)
	if err != nil || applied != 0 {
		t.Fatalf("second sweep applied = %d err = %v, want 0", applied, err)
	}
}

func TestReconcileLedgerRepairsDrift(t *testing.T) {
	rig := newTestRig(t)
	txn := rig.createPayment(t, 50000)
	if _, err := rig.webhook(t, txn.OrderRef, "settlement", ""); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash between status write and ledger delta.
	rig.ledger.mu.Lock()
	rig.ledger.totals[testContributionID] = 0
	rig.ledger.mu.Unlock()

	if err := rig.engine.ReconcileLedger(context.Background()); err != nil {
		t.Fatalf("ReconcileLedger: %v", err)
	}
	if got := rig.ledger.total(testContributionID); got != 50000 {
		t.Fatalf("collected amount = %d, want repaired 50000", got)
	}
}
