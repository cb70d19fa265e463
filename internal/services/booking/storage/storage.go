// Package storage defines the persistence boundary for the booking service.
package storage

import (
	"context"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such session"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrVersionConflict indicates a concurrent writer committed first. The
// caller holds a stale snapshot and must reload before retrying.
var ErrVersionConflict = apperrors.New(apperrors.CodeSessionVersionConflict, "session was modified concurrently")

// ListFilter narrows a session listing. Zero values match everything.
type ListFilter struct {
	ClientID  string
	Status    session.Status
	PageSize  int
	PageToken string
}

// SessionPage describes a page of session records.
type SessionPage struct {
	Sessions      []session.Session
	NextPageToken string
}

// SessionStore owns the session aggregate: the session row, its line items,
// photographer assignments, the append-only payment ledger and the
// append-only status history.
type SessionStore interface {
	// CreateSession persists a new session with its line items and
	// photographer assignments.
	CreateSession(ctx context.Context, s session.Session) error

	// GetSession loads the full aggregate including payments and history.
	// Returns ErrNotFound if no session exists with the id.
	GetSession(ctx context.Context, id string) (session.Session, error)

	// SaveSession commits one state change atomically: the session row is
	// updated only if its stored version still equals expectedVersion, the
	// appended payments and the optional history entry are inserted in the
	// same transaction, and the version is bumped. Existing payments and
	// history rows are never touched. Returns ErrVersionConflict when a
	// concurrent writer got there first.
	SaveSession(ctx context.Context, s session.Session, appended []session.Payment, entry *session.HistoryEntry, expectedVersion int64) (session.Session, error)

	// ListSessions returns a page of sessions matching the filter, ordered
	// by id, starting after the page token.
	ListSessions(ctx context.Context, filter ListFilter) (SessionPage, error)

	// ListPayments returns the payment ledger in insertion order.
	// Returns ErrNotFound if no session exists with the id.
	ListPayments(ctx context.Context, sessionID string) ([]session.Payment, error)

	// ListHistory returns the status history in insertion order.
	// Returns ErrNotFound if no session exists with the id.
	ListHistory(ctx context.Context, sessionID string) ([]session.HistoryEntry, error)
}
