package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/luminastudio/booking/internal/services/booking/domain/session"
	"github.com/luminastudio/booking/internal/services/booking/storage"
)

const defaultPageSize = 50

// offsetSeconds extracts the UTC offset of a timestamp for zone round-tripping.
func offsetSeconds(value time.Time) int {
	_, offset := value.Zone()
	return offset
}

// CreateSession persists a new session with its line items and assignments.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (
    id, client_id, type, session_date, session_tz_offset, status,
    deposit_percentage, deposit_amount, payment_deadline, changes_deadline,
    estimated_delivery_date, estimated_editing_days, room_id,
    assigned_editor_id, cancellation_reason, canceled_at, canceled_by,
    version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.ClientID,
		sess.Type.String(),
		toMillis(sess.SessionDate),
		offsetSeconds(sess.SessionDate),
		sess.Status.String(),
		sess.DepositPercentage,
		sess.DepositAmount,
		toNullMillis(sess.PaymentDeadline),
		toNullMillis(sess.ChangesDeadline),
		toNullMillis(sess.EstimatedDeliveryDate),
		sess.EstimatedEditingDays,
		sess.RoomID,
		sess.AssignedEditorID,
		sess.CancellationReason,
		toNullMillis(sess.CanceledAt),
		sess.CanceledBy,
		sess.Version,
		toMillis(sess.CreatedAt),
		toMillis(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if err := insertLineItems(ctx, tx, sess.ID, sess.LineItems); err != nil {
		return err
	}
	if err := insertPhotographers(ctx, tx, sess.ID, sess.Photographers); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// GetSession loads the full aggregate including payments and history.
func (s *Store) GetSession(ctx context.Context, id string) (session.Session, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, client_id, type, session_date, session_tz_offset, status,
       deposit_percentage, deposit_amount, payment_deadline, changes_deadline,
       estimated_delivery_date, estimated_editing_days, room_id,
       assigned_editor_id, cancellation_reason, canceled_at, canceled_by,
       version, created_at, updated_at
FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		return session.Session{}, err
	}
	return s.loadAggregate(ctx, sess)
}

// SaveSession commits one state change atomically with optimistic locking.
func (s *Store) SaveSession(ctx context.Context, sess session.Session, appended []session.Payment, entry *session.HistoryEntry, expectedVersion int64) (session.Session, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("begin save session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
UPDATE sessions SET
    client_id = ?, type = ?, session_date = ?, session_tz_offset = ?,
    status = ?, deposit_percentage = ?, deposit_amount = ?,
    payment_deadline = ?, changes_deadline = ?, estimated_delivery_date = ?,
    estimated_editing_days = ?, room_id = ?, assigned_editor_id = ?,
    cancellation_reason = ?, canceled_at = ?, canceled_by = ?,
    version = ?, updated_at = ?
WHERE id = ? AND version = ?`,
		sess.ClientID,
		sess.Type.String(),
		toMillis(sess.SessionDate),
		offsetSeconds(sess.SessionDate),
		sess.Status.String(),
		sess.DepositPercentage,
		sess.DepositAmount,
		toNullMillis(sess.PaymentDeadline),
		toNullMillis(sess.ChangesDeadline),
		toNullMillis(sess.EstimatedDeliveryDate),
		sess.EstimatedEditingDays,
		sess.RoomID,
		sess.AssignedEditorID,
		sess.CancellationReason,
		toNullMillis(sess.CanceledAt),
		sess.CanceledBy,
		expectedVersion+1,
		toMillis(sess.UpdatedAt),
		sess.ID,
		expectedVersion,
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return session.Session{}, fmt.Errorf("update session rows: %w", err)
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sess.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, storage.ErrNotFound
		}
		if err != nil {
			return session.Session{}, fmt.Errorf("check session exists: %w", err)
		}
		return session.Session{}, storage.ErrVersionConflict
	}

	// Assignments change on assign/cancel; replace the whole set.
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_photographers WHERE session_id = ?", sess.ID); err != nil {
		return session.Session{}, fmt.Errorf("clear photographers: %w", err)
	}
	if err := insertPhotographers(ctx, tx, sess.ID, sess.Photographers); err != nil {
		return session.Session{}, err
	}

	// Payments and history are append-only: only new rows are written.
	if len(appended) > 0 {
		base, err := nextPosition(ctx, tx, "session_payments", sess.ID)
		if err != nil {
			return session.Session{}, err
		}
		for i, payment := range appended {
			_, err := tx.ExecContext(ctx, `
INSERT INTO session_payments (id, session_id, position, kind, amount, method, paid_at, reference)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				payment.ID, sess.ID, base+i, payment.Kind.String(), payment.Amount,
				payment.Method, toMillis(payment.PaidAt), payment.Reference,
			)
			if err != nil {
				return session.Session{}, fmt.Errorf("insert payment: %w", err)
			}
		}
	}
	if entry != nil {
		position, err := nextPosition(ctx, tx, "session_status_history", sess.ID)
		if err != nil {
			return session.Session{}, err
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO session_status_history (id, session_id, position, from_status, to_status, reason, notes, actor_id, changed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, sess.ID, position, entry.FromStatus.String(), entry.ToStatus.String(),
			entry.Reason, entry.Notes, entry.ActorID, toMillis(entry.ChangedAt),
		)
		if err != nil {
			return session.Session{}, fmt.Errorf("insert history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("commit save session: %w", err)
	}

	sess.Version = expectedVersion + 1
	return sess, nil
}

// ListSessions returns a page of full aggregates matching the filter.
func (s *Store) ListSessions(ctx context.Context, filter storage.ListFilter) (storage.SessionPage, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	query := `
SELECT id, client_id, type, session_date, session_tz_offset, status,
       deposit_percentage, deposit_amount, payment_deadline, changes_deadline,
       estimated_delivery_date, estimated_editing_days, room_id,
       assigned_editor_id, cancellation_reason, canceled_at, canceled_by,
       version, created_at, updated_at
FROM sessions WHERE id > ?`
	args := []any{filter.PageToken}
	if filter.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.Status != session.StatusUnspecified {
		query += " AND status = ?"
		args = append(args, filter.Status.String())
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.SessionPage{}, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return storage.SessionPage{}, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return storage.SessionPage{}, fmt.Errorf("iterate sessions: %w", err)
	}

	page := storage.SessionPage{}
	if len(sessions) > pageSize {
		sessions = sessions[:pageSize]
		page.NextPageToken = sessions[len(sessions)-1].ID
	}
	for _, sess := range sessions {
		full, err := s.loadAggregate(ctx, sess)
		if err != nil {
			return storage.SessionPage{}, err
		}
		page.Sessions = append(page.Sessions, full)
	}
	return page, nil
}

// ListPayments returns the payment ledger in insertion order. A missing
// session yields ErrNotFound rather than an empty ledger.
func (s *Store) ListPayments(ctx context.Context, sessionID string) ([]session.Payment, error) {
	if err := s.checkSessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.loadPayments(ctx, sessionID)
}

// ListHistory returns the status history in insertion order. A missing
// session yields ErrNotFound rather than an empty history.
func (s *Store) ListHistory(ctx context.Context, sessionID string) ([]session.HistoryEntry, error) {
	if err := s.checkSessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.loadHistory(ctx, sessionID)
}

func (s *Store) checkSessionExists(ctx context.Context, sessionID string) error {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session exists: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (session.Session, error) {
	var (
		sess              session.Session
		typeLabel         string
		statusLabel       string
		sessionDate       int64
		tzOffset          int
		paymentDeadline   sql.NullInt64
		changesDeadline   sql.NullInt64
		estimatedDelivery sql.NullInt64
		canceledAt        sql.NullInt64
		createdAt         int64
		updatedAt         int64
	)
	err := row.Scan(
		&sess.ID, &sess.ClientID, &typeLabel, &sessionDate, &tzOffset, &statusLabel,
		&sess.DepositPercentage, &sess.DepositAmount, &paymentDeadline, &changesDeadline,
		&estimatedDelivery, &sess.EstimatedEditingDays, &sess.RoomID,
		&sess.AssignedEditorID, &sess.CancellationReason, &canceledAt, &sess.CanceledBy,
		&sess.Version, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("scan session: %w", err)
	}

	sess.Type, err = session.ParseType(typeLabel)
	if err != nil {
		return session.Session{}, fmt.Errorf("parse stored type: %w", err)
	}
	sess.Status, err = session.ParseStatus(statusLabel)
	if err != nil {
		return session.Session{}, fmt.Errorf("parse stored status: %w", err)
	}

	zone := time.FixedZone("", tzOffset)
	sess.SessionDate = fromMillis(sessionDate).In(zone)
	sess.PaymentDeadline = fromNullMillis(paymentDeadline)
	if deadline := fromNullMillis(changesDeadline); deadline != nil {
		local := deadline.In(zone)
		sess.ChangesDeadline = &local
	}
	sess.EstimatedDeliveryDate = fromNullMillis(estimatedDelivery)
	sess.CanceledAt = fromNullMillis(canceledAt)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return sess, nil
}

func (s *Store) loadAggregate(ctx context.Context, sess session.Session) (session.Session, error) {
	var err error
	if sess.LineItems, err = s.loadLineItems(ctx, sess.ID); err != nil {
		return session.Session{}, err
	}
	if sess.Photographers, err = s.loadPhotographers(ctx, sess.ID); err != nil {
		return session.Session{}, err
	}
	if sess.Payments, err = s.loadPayments(ctx, sess.ID); err != nil {
		return session.Session{}, err
	}
	if sess.History, err = s.loadHistory(ctx, sess.ID); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Store) loadLineItems(ctx context.Context, sessionID string) ([]session.LineItem, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, description, quantity, unit_price
FROM session_line_items WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []session.LineItem
	for rows.Next() {
		var item session.LineItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadPhotographers(ctx context.Context, sessionID string) ([]session.PhotographerAssignment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT photographer_id, role, attended, attended_at
FROM session_photographers WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list photographers: %w", err)
	}
	defer rows.Close()

	var assignments []session.PhotographerAssignment
	for rows.Next() {
		var assignment session.PhotographerAssignment
		var attended int
		var attendedAt sql.NullInt64
		if err := rows.Scan(&assignment.PhotographerID, &assignment.Role, &attended, &attendedAt); err != nil {
			return nil, fmt.Errorf("scan photographer: %w", err)
		}
		assignment.Attended = attended != 0
		assignment.AttendedAt = fromNullMillis(attendedAt)
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func (s *Store) loadPayments(ctx context.Context, sessionID string) ([]session.Payment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, amount, method, paid_at, reference
FROM session_payments WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []session.Payment
	for rows.Next() {
		var payment session.Payment
		var kindLabel string
		var paidAt int64
		if err := rows.Scan(&payment.ID, &kindLabel, &payment.Amount, &payment.Method, &paidAt, &payment.Reference); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payment.Kind, err = session.ParsePaymentKind(kindLabel)
		if err != nil {
			return nil, fmt.Errorf("parse stored payment kind: %w", err)
		}
		payment.PaidAt = fromMillis(paidAt)
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, sessionID string) ([]session.HistoryEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, from_status, to_status, reason, notes, actor_id, changed_at
FROM session_status_history WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []session.HistoryEntry
	for rows.Next() {
		var entry session.HistoryEntry
		var fromLabel, toLabel string
		var changedAt int64
		if err := rows.Scan(&entry.ID, &fromLabel, &toLabel, &entry.Reason, &entry.Notes, &entry.ActorID, &changedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.FromStatus, err = session.ParseStatus(fromLabel)
		if err != nil {
			return nil, fmt.Errorf("parse stored from status: %w", err)
		}
		entry.ToStatus, err = session.ParseStatus(toLabel)
		if err != nil {
			return nil, fmt.Errorf("parse stored to status: %w", err)
		}
		entry.ChangedAt = fromMillis(changedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func insertLineItems(ctx context.Context, tx *sql.Tx, sessionID string, items []session.LineItem) error {
	for i, item := range items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_line_items (id, session_id, position, description, quantity, unit_price)
VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, sessionID, i, item.Description, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func insertPhotographers(ctx context.Context, tx *sql.Tx, sessionID string, assignments []session.PhotographerAssignment) error {
	for i, assignment := range assignments {
		attended := 0
		if assignment.Attended {
			attended = 1
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_photographers (session_id, photographer_id, role, attended, attended_at, position)
VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, assignment.PhotographerID, assignment.Role, attended,
			toNullMillis(assignment.AttendedAt), i,
		)
		if err != nil {
			return fmt.Errorf("insert photographer: %w", err)
		}
	}
	return nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, table, sessionID string) (int, error) {
	var position int
	query := fmt.Sprintf("SELECT COALESCE(MAX(position), -1) + 1 FROM %s WHERE session_id = ?", table)
	if err := tx.QueryRowContext(ctx, query, sessionID).Scan(&position); err != nil {
		return 0, fmt.Errorf("next position for %s: %w", table, err)
	}
	return position, nil
}
