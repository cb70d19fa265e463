package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "booking.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testSession(id string) session.Session {
	zone := time.FixedZone("", -3*60*60)
	sessionDate := time.Date(2026, 9, 20, 15, 0, 0, 0, zone)
	created := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return session.Session{
		ID:                id,
		ClientID:          "client-1",
		Type:              session.TypeStudio,
		SessionDate:       sessionDate,
		Status:            session.StatusRequest,
		DepositPercentage: 30,
		RoomID:            "room-1",
		LineItems: []session.LineItem{
			{ID: id + "-item-1", Description: "portrait package", Quantity: 1, UnitPrice: 50000},
			{ID: id + "-item-2", Description: "extra prints", Quantity: 2, UnitPrice: 2500},
		},
		Photographers: []session.PhotographerAssignment{
			{PhotographerID: "photo-1", Role: "lead"},
		},
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCreateAndGetSessionRoundTrip(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	want := testSession("sess-1")
	deadline := time.Date(2026, 9, 6, 10, 0, 0, 0, time.UTC)
	want.PaymentDeadline = &deadline
	want.DepositAmount = 16500

	if err := store.CreateSession(ctx, want); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	if got.ClientID != want.ClientID || got.Type != want.Type || got.Status != want.Status {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if !got.SessionDate.Equal(want.SessionDate) {
		t.Fatalf("session date = %v, want %v", got.SessionDate, want.SessionDate)
	}
	if _, offset := got.SessionDate.Zone(); offset != -3*60*60 {
		t.Fatalf("session date offset = %d, want -10800", offset)
	}
	if got.PaymentDeadline == nil || !got.PaymentDeadline.Equal(deadline) {
		t.Fatalf("payment deadline = %v, want %v", got.PaymentDeadline, deadline)
	}
	if got.DepositAmount != 16500 {
		t.Fatalf("deposit amount = %d", got.DepositAmount)
	}
	if len(got.LineItems) != 2 || got.LineItems[0].Description != "portrait package" {
		t.Fatalf("line items = %+v", got.LineItems)
	}
	if got.Total() != 55000 {
		t.Fatalf("total = %d, want 55000", got.Total())
	}
	if len(got.Photographers) != 1 || got.Photographers[0].PhotographerID != "photo-1" {
		t.Fatalf("photographers = %+v", got.Photographers)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPaymentsAndHistoryMissingSession(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	if _, err := store.ListPayments(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("list payments: expected ErrNotFound, got %v", err)
	}
	if _, err := store.ListHistory(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("list history: expected ErrNotFound, got %v", err)
	}
}

func TestSaveSessionBumpsVersion(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess.Status = session.StatusNegotiation
	entry := session.HistoryEntry{
		ID:         "hist-1",
		FromStatus: session.StatusRequest,
		ToStatus:   session.StatusNegotiation,
		ActorID:    "manager-1",
		ChangedAt:  time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	}
	saved, err := store.SaveSession(ctx, sess, nil, &entry, 1)
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("saved version = %d, want 2", saved.Version)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Version != 2 || got.Status != session.StatusNegotiation {
		t.Fatalf("got version %d status %s", got.Version, got.Status)
	}
	if len(got.History) != 1 || got.History[0].ToStatus != session.StatusNegotiation {
		t.Fatalf("history = %+v", got.History)
	}
}

func TestSaveSessionVersionConflict(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	// First writer commits against version 1.
	sess.Status = session.StatusNegotiation
	if _, err := store.SaveSession(ctx, sess, nil, nil, 1); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Second writer holds the stale snapshot.
	stale := testSession("sess-1")
	stale.Status = session.StatusNegotiation
	_, err := store.SaveSession(ctx, stale, nil, nil, 1)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestSaveSessionMissingSession(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	sess := testSession("ghost")
	_, err := store.SaveSession(context.Background(), sess, nil, nil, 1)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveSessionAppendsPaymentsInOrder(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	paidAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	first := session.Payment{ID: "pay-1", Kind: session.PaymentDeposit, Amount: 15000, Method: session.MethodCard, PaidAt: paidAt, Reference: "txn-1"}
	if _, err := store.SaveSession(ctx, sess, []session.Payment{first}, nil, 1); err != nil {
		t.Fatalf("first save: %v", err)
	}

	sess.Version = 2
	second := session.Payment{ID: "pay-2", Kind: session.PaymentRefund, Amount: 5000, PaidAt: paidAt.Add(time.Hour)}
	if _, err := store.SaveSession(ctx, sess, []session.Payment{second}, nil, 2); err != nil {
		t.Fatalf("second save: %v", err)
	}

	payments, err := store.ListPayments(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(payments))
	}
	if payments[0].ID != "pay-1" || payments[1].ID != "pay-2" {
		t.Fatalf("payment order = %s, %s", payments[0].ID, payments[1].ID)
	}
	if payments[0].Kind != session.PaymentDeposit || payments[1].Kind != session.PaymentRefund {
		t.Fatalf("payment kinds = %s, %s", payments[0].Kind, payments[1].Kind)
	}
	if payments[1].Method != "" {
		t.Fatalf("refund method = %q, want empty", payments[1].Method)
	}
	if !payments[0].PaidAt.Equal(paidAt) {
		t.Fatalf("paid at = %v, want %v", payments[0].PaidAt, paidAt)
	}
}

func TestSaveSessionReplacesAssignments(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1")
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	attendedAt := time.Date(2026, 9, 20, 18, 0, 0, 0, time.UTC)
	sess.Photographers = []session.PhotographerAssignment{
		{PhotographerID: "photo-1", Role: "lead", Attended: true, AttendedAt: &attendedAt},
		{PhotographerID: "photo-2", Role: "second"},
	}
	if _, err := store.SaveSession(ctx, sess, nil, nil, 1); err != nil {
		t.Fatalf("save session: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(got.Photographers) != 2 {
		t.Fatalf("photographers = %+v", got.Photographers)
	}
	lead := got.Photographers[0]
	if !lead.Attended || lead.AttendedAt == nil || !lead.AttendedAt.Equal(attendedAt) {
		t.Fatalf("lead = %+v", lead)
	}

	// Cancellation releases everyone.
	sess.Photographers = nil
	sess.Version = 2
	if _, err := store.SaveSession(ctx, sess, nil, nil, 2); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err = store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(got.Photographers) != 0 {
		t.Fatalf("photographers after release = %+v", got.Photographers)
	}
}

func TestChangesDeadlineKeepsSessionZone(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	sess := testSession("sess-1")
	zone := sess.SessionDate.Location()
	deadline := time.Date(2026, 9, 17, 23, 59, 59, 0, zone)
	sess.ChangesDeadline = &deadline
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ChangesDeadline == nil || !got.ChangesDeadline.Equal(deadline) {
		t.Fatalf("changes deadline = %v, want %v", got.ChangesDeadline, deadline)
	}
	if hour := got.ChangesDeadline.Hour(); hour != 23 {
		t.Fatalf("changes deadline hour = %d, want 23 in session zone", hour)
	}
}

func TestListSessionsFiltersAndPaginates(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	for _, spec := range []struct {
		id     string
		client string
		status session.Status
	}{
		{id: "sess-1", client: "client-1", status: session.StatusRequest},
		{id: "sess-2", client: "client-1", status: session.StatusConfirmed},
		{id: "sess-3", client: "client-2", status: session.StatusRequest},
	} {
		sess := testSession(spec.id)
		sess.ClientID = spec.client
		sess.Status = spec.status
		if err := store.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create %s: %v", spec.id, err)
		}
	}

	page, err := store.ListSessions(ctx, storage.ListFilter{ClientID: "client-1"})
	if err != nil {
		t.Fatalf("list by client: %v", err)
	}
	if len(page.Sessions) != 2 {
		t.Fatalf("client-1 sessions = %d, want 2", len(page.Sessions))
	}

	page, err = store.ListSessions(ctx, storage.ListFilter{Status: session.StatusRequest})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(page.Sessions) != 2 {
		t.Fatalf("request sessions = %d, want 2", len(page.Sessions))
	}

	page, err = store.ListSessions(ctx, storage.ListFilter{PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page.Sessions) != 2 || page.NextPageToken == "" {
		t.Fatalf("first page = %d sessions, token %q", len(page.Sessions), page.NextPageToken)
	}

	rest, err := store.ListSessions(ctx, storage.ListFilter{PageSize: 2, PageToken: page.NextPageToken})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(rest.Sessions) != 1 || rest.NextPageToken != "" {
		t.Fatalf("second page = %d sessions, token %q", len(rest.Sessions), rest.NextPageToken)
	}
}
