package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/platform/ratelimiter"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/storage"
)

// fakeStore is an in-memory SessionStore with the same optimistic locking
// semantics as the SQLite implementation.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	payments map[string][]session.Payment
	history  map[string][]session.HistoryEntry
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]session.Session),
		payments: make(map[string][]session.Payment),
		history:  make(map[string][]session.HistoryEntry),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	s.Payments = append([]session.Payment(nil), f.payments[id]...)
	s.History = append([]session.HistoryEntry(nil), f.history[id]...)
	return s, nil
}

func (f *fakeStore) SaveSession(_ context.Context, s session.Session, appended []session.Payment, entry *session.HistoryEntry, expectedVersion int64) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return session.Session{}, f.saveErr
	}
	current, ok := f.sessions[s.ID]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return session.Session{}, storage.ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	f.sessions[s.ID] = s
	f.payments[s.ID] = append(f.payments[s.ID], appended...)
	if entry != nil {
		f.history[s.ID] = append(f.history[s.ID], *entry)
	}
	return s, nil
}

func (f *fakeStore) ListSessions(_ context.Context, filter storage.ListFilter) (storage.SessionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page storage.SessionPage
	for _, s := range f.sessions {
		if filter.ClientID != "" && s.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != session.StatusUnspecified && s.Status != filter.Status {
			continue
		}
		page.Sessions = append(page.Sessions, s)
	}
	return page, nil
}

func (f *fakeStore) ListPayments(_ context.Context, sessionID string) ([]session.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, storage.ErrNotFound
	}
	return append([]session.Payment(nil), f.payments[sessionID]...), nil
}

func (f *fakeStore) ListHistory(_ context.Context, sessionID string) ([]session.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, storage.ErrNotFound
	}
	return append([]session.HistoryEntry(nil), f.history[sessionID]...), nil
}

type recordingDispatcher struct {
	mu      sync.Mutex
	intents []session.Intent
	err     error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, intents []session.Intent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
	return d.err
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequenceIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%03d", n), nil
	}
}

func managerActor() session.Actor {
	return session.Actor{
		ID:    "manager-1",
		Roles: []string{"manager"},
		Permissions: []string{
			session.PermissionEditPreAssigned,
			session.PermissionAssignResources,
			session.PermissionMarkAttended,
			session.PermissionEditAll,
			session.PermissionCancel,
			session.PermissionMarkReady,
			session.PermissionViewOwn,
		},
	}
}

func newTestService(t *testing.T, store storage.SessionStore, now time.Time, opts ...Option) *Service {
	t.Helper()
	machine := session.NewMachine(session.DefaultConfig(), nil)
	opts = append([]Option{WithClock(fixedClock(now)), WithIDGenerator(sequenceIDs())}, opts...)
	svc, err := NewService(store, machine, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedSession(t *testing.T, store *fakeStore, status session.Status, now time.Time) session.Session {
	t.Helper()
	s := session.Session{
		ID:                "sess-1",
		ClientID:          "client-1",
		Type:              session.TypeStudio,
		SessionDate:       now.AddDate(0, 0, 14),
		Status:            status,
		DepositPercentage: 30,
		RoomID:            "room-1",
		LineItems: []session.LineItem{
			{ID: "item-1", Description: "portrait package", Quantity: 1, UnitPrice: 50000},
		},
		Version:   1,
		CreatedAt: now.AddDate(0, 0, -1),
		UpdatedAt: now.AddDate(0, 0, -1),
	}
	if err := store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func TestCreateSessionPersists(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(t, store, now)

	created, err := svc.CreateSession(context.Background(), session.CreateSessionInput{
		ClientID:    "client-1",
		Type:        session.TypeStudio,
		SessionDate: now.AddDate(0, 0, 14),
		LineItems:   []session.LineItem{{Description: "shoot", Quantity: 1, UnitPrice: 50000}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.Status != session.StatusRequest || created.Version != 1 {
		t.Fatalf("created = %+v", created)
	}

	stored, err := svc.GetSession(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.ID != created.ID {
		t.Fatalf("stored id = %q, want %q", stored.ID, created.ID)
	}
}

func TestAttemptTransitionCommitsAndDispatches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	svc := newTestService(t, store, now, WithDispatcher(dispatcher))
	seedSession(t, store, session.StatusNegotiation, now)

	result, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusPreScheduled,
		Actor: managerActor(),
	})
	if err != nil {
		t.Fatalf("attempt transition: %v", err)
	}

	if result.Session.Status != session.StatusPreScheduled {
		t.Fatalf("status = %s", result.Session.Status)
	}
	if result.Session.Version != 2 {
		t.Fatalf("version = %d, want 2", result.Session.Version)
	}
	if result.Session.PaymentDeadline == nil {
		t.Fatal("payment deadline must be derived")
	}
	if len(result.Intents) != 1 || result.Intents[0].Type != session.IntentSessionPreScheduled {
		t.Fatalf("intents = %+v", result.Intents)
	}

	history, err := svc.ListHistory(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].ToStatus != session.StatusPreScheduled {
		t.Fatalf("history = %+v", history)
	}

	if len(dispatcher.intents) != 1 || dispatcher.intents[0].Type != session.IntentSessionPreScheduled {
		t.Fatalf("intents = %+v", dispatcher.intents)
	}
}

func TestAttemptTransitionGuardErrorsPropagate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	svc := newTestService(t, store, now, WithDispatcher(dispatcher))
	seedSession(t, store, session.StatusPreScheduled, now)

	// No deposit recorded yet.
	_, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusConfirmed,
		Actor: managerActor(),
	})
	var gve *session.GuardViolationError
	if !errors.As(err, &gve) {
		t.Fatalf("expected guard violation error, got %v", err)
	}
	if len(dispatcher.intents) != 0 {
		t.Fatal("no intents may fire on rejected transitions")
	}

	stored, err := svc.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if stored.Status != session.StatusPreScheduled || stored.Version != 1 {
		t.Fatalf("session mutated on rejection: %+v", stored)
	}
}

func TestAttemptTransitionVersionConflict(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(t, store, now)
	seedSession(t, store, session.StatusNegotiation, now)
	store.saveErr = storage.ErrVersionConflict

	_, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusPreScheduled,
		Actor: managerActor(),
	})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestAttemptTransitionStorageFailureIsInfrastructure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(t, store, now)
	seedSession(t, store, session.StatusNegotiation, now)
	store.saveErr = errors.New("sqlite disk I/O error")

	_, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusPreScheduled,
		Actor: managerActor(),
	})
	if apperrors.CodeOf(err) != apperrors.CodeInfrastructure {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeInfrastructure)
	}
	if !errors.Is(err, store.saveErr) {
		t.Fatal("cause must stay on the error chain")
	}
}

func TestAttemptTransitionRateLimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// One token, no refill within the fixed test clock.
	limiter := ratelimiter.New(0.01, 1, time.Minute)
	svc := newTestService(t, store, now, WithLimiter(limiter))
	seedSession(t, store, session.StatusNegotiation, now)

	if _, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusPreScheduled,
		Actor: managerActor(),
	}); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	_, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusConfirmed,
		Actor: managerActor(),
	})
	if apperrors.CodeOf(err) != apperrors.CodeSessionRateLimited {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestAttemptTransitionDispatchFailureDoesNotFailCommit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	dispatcher := &recordingDispatcher{err: errors.New("smtp down")}
	svc := newTestService(t, store, now, WithDispatcher(dispatcher))
	seedSession(t, store, session.StatusNegotiation, now)

	result, err := svc.AttemptTransition(context.Background(), "sess-1", session.AttemptInput{
		To:    session.StatusPreScheduled,
		Actor: managerActor(),
	})
	if err != nil {
		t.Fatalf("attempt transition: %v", err)
	}
	if result.Session.Status != session.StatusPreScheduled {
		t.Fatalf("status = %s", result.Session.Status)
	}
}

func TestRecordPaymentAppendsToLedger(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(t, store, now)
	seedSession(t, store, session.StatusPreScheduled, now)

	committed, payment, err := svc.RecordPayment(context.Background(), "sess-1", session.RecordPaymentInput{
		Kind:   session.PaymentDeposit,
		Amount: 15000,
		Method: session.MethodCard,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if payment.ID == "" || payment.Kind != session.PaymentDeposit {
		t.Fatalf("payment = %+v", payment)
	}
	if committed.Version != 2 {
		t.Fatalf("version = %d, want 2", committed.Version)
	}

	ledger, err := svc.ListPayments(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Amount != 15000 {
		t.Fatalf("ledger = %+v", ledger)
	}
}

func TestRecordPaymentRejectedOnTerminalSession(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(t, store, now)
	seedSession(t, store, session.StatusCanceled, now)

	_, _, err := svc.RecordPayment(context.Background(), "sess-1", session.RecordPaymentInput{
		Kind:   session.PaymentBalance,
		Amount: 1000,
		Method: session.MethodCash,
	})
	if apperrors.CodeOf(err) != apperrors.CodeSessionTerminal {
		t.Fatalf("expected terminal rejection, got %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, newFakeStore(), now)

	_, err := svc.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
