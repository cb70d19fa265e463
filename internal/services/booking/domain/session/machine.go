package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/platform/id"
)

// successors is the explicit transition table. Cancellation is not listed:
// every non-terminal status may additionally move to CANCELED.
var successors = map[Status][]Status{
	StatusRequest:          {StatusNegotiation, StatusPreScheduled},
	StatusNegotiation:      {StatusPreScheduled},
	StatusPreScheduled:     {StatusConfirmed},
	StatusConfirmed:        {StatusAssigned},
	StatusAssigned:         {StatusAttended},
	StatusAttended:         {StatusInEditing},
	StatusInEditing:        {StatusReadyForDelivery},
	StatusReadyForDelivery: {StatusCompleted},
}

// tableAllows reports whether (from, to) is an explicit edge of the table.
func tableAllows(from, to Status) bool {
	for _, next := range successors[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GuardViolationError reports every unmet precondition for a transition.
type GuardViolationError struct {
	From       Status
	To         Status
	Violations []Violation
}

// Error implements the error interface.
func (e *GuardViolationError) Error() string {
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return fmt.Sprintf("transition %s -> %s blocked: %s", e.From, e.To, strings.Join(codes, ", "))
}

// Intent describes one notification to dispatch after a committed transition.
// The state machine returns intents; it never talks to the dispatcher itself.
type Intent struct {
	Type        string
	SessionID   string
	RecipientID string
	Metadata    map[string]string
}

// Notification intent types emitted by transitions.
const (
	IntentSessionPreScheduled = "session.pre_scheduled"
	IntentSessionConfirmed    = "session.confirmed"
	IntentSessionAssigned     = "session.assigned"
	IntentSessionAttended     = "session.attended"
	IntentSessionInEditing    = "session.in_editing"
	IntentSessionReady        = "session.ready_for_delivery"
	IntentSessionCompleted    = "session.completed"
	IntentSessionCanceled     = "session.canceled"
)

// Outcome is the deterministic result of a permitted transition: the updated
// aggregate snapshot, the audit entry to append, any ledger entries produced
// by the transition itself, and the notifications to dispatch after commit.
type Outcome struct {
	Session          Session
	Entry            HistoryEntry
	AppendedPayments []Payment
	Intents          []Intent
}

// Machine evaluates and applies lifecycle transitions. Guards are registered
// into the table once at construction; Attempt itself is pure and never
// performs I/O.
type Machine struct {
	cfg     Config
	guards  map[edge][]Guard
	refunds RefundPolicy
}

// NewMachine builds a state machine with the given business configuration
// and refund policy. A nil refund policy refunds nothing.
func NewMachine(cfg Config, refunds RefundPolicy) *Machine {
	return &Machine{
		cfg:     cfg,
		guards:  buildGuardTable(cfg),
		refunds: refunds,
	}
}

// Config exposes the machine's business configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Attempt validates and applies one transition. It returns the complete
// outcome to persist atomically, or an error:
//
//   - CodeSessionTerminal when the session is already closed,
//   - CodeSessionInvalidTransition when the edge is not in the table and is
//     not a cancellation,
//   - *GuardViolationError carrying every unmet guard,
//   - CodeValidation for malformed input.
func (m *Machine) Attempt(s Session, in AttemptInput, now func() time.Time, idGenerator func() (string, error)) (Outcome, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	if in.To == StatusUnspecified {
		return Outcome{}, apperrors.New(apperrors.CodeValidation, "target status is required")
	}

	if s.Status.IsTerminal() {
		return Outcome{}, apperrors.WithMetadata(
			apperrors.CodeSessionTerminal,
			fmt.Sprintf("session %s is %s and permits no transitions", s.ID, s.Status),
			map[string]string{"Status": s.Status.String()},
		)
	}

	if in.To != StatusCanceled && !tableAllows(s.Status, in.To) {
		return Outcome{}, apperrors.WithMetadata(
			apperrors.CodeSessionInvalidTransition,
			fmt.Sprintf("transition %s -> %s is not allowed", s.Status, in.To),
			map[string]string{"FromStatus": s.Status.String(), "ToStatus": in.To.String()},
		)
	}

	at := now().UTC()
	candidate := m.applyRequestedResources(s, in)

	violations := Evaluate(m.guardsFor(candidate.Status, in.To), candidate, in, at)
	if len(violations) > 0 {
		return Outcome{}, &GuardViolationError{From: s.Status, To: in.To, Violations: violations}
	}

	updated, payments, err := m.applySideEffects(candidate, in, at, idGenerator)
	if err != nil {
		return Outcome{}, err
	}

	updated.Status = in.To
	updated.UpdatedAt = at

	entryID, err := idGenerator()
	if err != nil {
		return Outcome{}, fmt.Errorf("generate history entry id: %w", err)
	}
	entry := HistoryEntry{
		ID:         entryID,
		FromStatus: s.Status,
		ToStatus:   in.To,
		Reason:     strings.TrimSpace(in.Reason),
		Notes:      strings.TrimSpace(in.Notes),
		ActorID:    in.Actor.ID,
		ChangedAt:  at,
	}
	updated.History = append(append([]HistoryEntry(nil), s.History...), entry)

	return Outcome{
		Session:          updated,
		Entry:            entry,
		AppendedPayments: payments,
		Intents:          intentsFor(s.Status, in.To, updated),
	}, nil
}

// guardsFor resolves the registered guard list for the pair. Cancellation
// uses one shared guard set regardless of the source status.
func (m *Machine) guardsFor(from, to Status) []Guard {
	if to == StatusCanceled {
		return cancelGuards
	}
	return m.guards[edge{from, to}]
}

// applyRequestedResources folds resource assignments carried by the request
// into the candidate aggregate so the ASSIGNED guards validate the final
// state, mirroring how the cancellation reason travels with the request.
func (m *Machine) applyRequestedResources(s Session, in AttemptInput) Session {
	if in.To != StatusAssigned {
		return s
	}
	candidate := s
	if len(in.Photographers) > 0 {
		assignments := make([]PhotographerAssignment, 0, len(in.Photographers))
		seen := make(map[string]bool, len(in.Photographers))
		for _, assignment := range in.Photographers {
			assignment.PhotographerID = strings.TrimSpace(assignment.PhotographerID)
			// Repeated ids would violate the stored assignment key; keep the
			// first occurrence.
			if assignment.PhotographerID == "" || seen[assignment.PhotographerID] {
				continue
			}
			seen[assignment.PhotographerID] = true
			assignment.Attended = false
			assignment.AttendedAt = nil
			assignments = append(assignments, assignment)
		}
		candidate.Photographers = assignments
	}
	if room := strings.TrimSpace(in.RoomID); room != "" {
		candidate.RoomID = room
	}
	return candidate
}

// applySideEffects computes the derived fields for the transition. All
// derivations are deterministic functions of the aggregate, the clock and
// the configuration; no external calls happen here.
func (m *Machine) applySideEffects(s Session, in AttemptInput, at time.Time, idGenerator func() (string, error)) (Session, []Payment, error) {
	updated := s

	switch in.To {
	case StatusPreScheduled:
		deadline := PaymentDeadlineAt(at, m.cfg)
		updated.PaymentDeadline = &deadline
		updated.DepositAmount = DepositFor(s.Total(), s.DepositPercentage)

	case StatusConfirmed:
		updated.PaymentDeadline = nil
		if updated.ChangesDeadline == nil {
			// Set exactly once; immutable thereafter.
			deadline := ChangesDeadlineFor(s.SessionDate, m.cfg)
			updated.ChangesDeadline = &deadline
		}

	case StatusAssigned:
		delivery := EstimatedDeliveryFor(s.SessionDate, s.EstimatedEditingDays, m.cfg)
		updated.EstimatedDeliveryDate = &delivery

	case StatusAttended:
		assignments := append([]PhotographerAssignment(nil), s.Photographers...)
		for i, assignment := range assignments {
			if assignment.PhotographerID == in.Actor.ID {
				attendedAt := at
				assignments[i].Attended = true
				assignments[i].AttendedAt = &attendedAt
			}
		}
		updated.Photographers = assignments

	case StatusInEditing:
		updated.AssignedEditorID = in.Actor.ID

	case StatusCanceled:
		updated.CancellationReason = strings.TrimSpace(in.Reason)
		canceledAt := at
		updated.CanceledAt = &canceledAt
		updated.CanceledBy = in.Actor.ID
		updated.Photographers = nil

		refund := ComputeRefund(s, m.refunds, at)
		if refund > 0 {
			withRefund, payment, err := RecordPayment(updated, RecordPaymentInput{
				Kind:   PaymentRefund,
				Amount: refund,
				PaidAt: at,
			}, func() time.Time { return at }, idGenerator)
			if err != nil {
				return Session{}, nil, err
			}
			return withRefund, []Payment{payment}, nil
		}
	}

	return updated, nil, nil
}

// intentsFor maps a committed transition to its notification intents.
func intentsFor(from, to Status, s Session) []Intent {
	meta := map[string]string{
		"from_status": from.String(),
		"to_status":   to.String(),
	}

	var intents []Intent
	switch to {
	case StatusPreScheduled:
		intents = append(intents, Intent{Type: IntentSessionPreScheduled, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	case StatusConfirmed:
		intents = append(intents, Intent{Type: IntentSessionConfirmed, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	case StatusAssigned:
		intents = append(intents, Intent{Type: IntentSessionAssigned, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
		for _, assignment := range s.Photographers {
			intents = append(intents, Intent{Type: IntentSessionAssigned, SessionID: s.ID, RecipientID: assignment.PhotographerID, Metadata: meta})
		}
	case StatusAttended:
		intents = append(intents, Intent{Type: IntentSessionAttended, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	case StatusInEditing:
		intents = append(intents, Intent{Type: IntentSessionInEditing, SessionID: s.ID, RecipientID: s.AssignedEditorID, Metadata: meta})
	case StatusReadyForDelivery:
		intents = append(intents, Intent{Type: IntentSessionReady, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	case StatusCompleted:
		intents = append(intents, Intent{Type: IntentSessionCompleted, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	case StatusCanceled:
		intents = append(intents, Intent{Type: IntentSessionCanceled, SessionID: s.ID, RecipientID: s.ClientID, Metadata: meta})
	}
	return intents
}

// Edges returns the explicit transition table in a stable order, primarily
// for diagnostics and tests.
func Edges() map[string][]string {
	table := make(map[string][]string, len(successors))
	for from, targets := range successors {
		labels := make([]string, 0, len(targets))
		for _, to := range targets {
			labels = append(labels, to.String())
		}
		sort.Strings(labels)
		table[from.String()] = labels
	}
	return table
}
