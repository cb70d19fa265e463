package session

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/platform/id"
)

// Status describes the lifecycle state of a booked session.
type Status int

const (
	// StatusUnspecified represents an invalid session status value.
	StatusUnspecified Status = iota
	// StatusRequest indicates an initial client request.
	StatusRequest
	// StatusNegotiation indicates scope and pricing are being negotiated.
	StatusNegotiation
	// StatusPreScheduled indicates the session is penciled in awaiting a deposit.
	StatusPreScheduled
	// StatusConfirmed indicates the deposit cleared and the date is locked.
	StatusConfirmed
	// StatusAssigned indicates photographers and resources are assigned.
	StatusAssigned
	// StatusAttended indicates the shoot took place.
	StatusAttended
	// StatusInEditing indicates post-production is underway.
	StatusInEditing
	// StatusReadyForDelivery indicates edited material awaits handover.
	StatusReadyForDelivery
	// StatusCompleted indicates the engagement is closed out.
	StatusCompleted
	// StatusCanceled indicates the engagement was canceled.
	StatusCanceled
)

var statusLabels = map[Status]string{
	StatusRequest:          "REQUEST",
	StatusNegotiation:      "NEGOTIATION",
	StatusPreScheduled:     "PRE_SCHEDULED",
	StatusConfirmed:        "CONFIRMED",
	StatusAssigned:         "ASSIGNED",
	StatusAttended:         "ATTENDED",
	StatusInEditing:        "IN_EDITING",
	StatusReadyForDelivery: "READY_FOR_DELIVERY",
	StatusCompleted:        "COMPLETED",
	StatusCanceled:         "CANCELED",
}

// String returns the stable wire/storage label for the status.
func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "UNSPECIFIED"
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// ParseStatus maps a stable label back to a Status.
func ParseStatus(label string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	for status, l := range statusLabels {
		if l == normalized {
			return status, nil
		}
	}
	return StatusUnspecified, apperrors.WithMetadata(
		apperrors.CodeValidation,
		fmt.Sprintf("unknown session status %q", label),
		map[string]string{"Status": label},
	)
}

// Type describes the kind of engagement being booked.
type Type int

const (
	// TypeUnspecified represents an invalid session type value.
	TypeUnspecified Type = iota
	// TypeStudio indicates an in-studio shoot requiring a room.
	TypeStudio
	// TypeOnLocation indicates a shoot at a client-provided location.
	TypeOnLocation
	// TypeEvent indicates event coverage.
	TypeEvent
)

var typeLabels = map[Type]string{
	TypeStudio:     "STUDIO",
	TypeOnLocation: "ON_LOCATION",
	TypeEvent:      "EVENT",
}

// String returns the stable wire/storage label for the session type.
func (t Type) String() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return "UNSPECIFIED"
}

// ParseType maps a stable label back to a Type.
func ParseType(label string) (Type, error) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	for typ, l := range typeLabels {
		if l == normalized {
			return typ, nil
		}
	}
	return TypeUnspecified, apperrors.WithMetadata(
		apperrors.CodeValidation,
		fmt.Sprintf("unknown session type %q", label),
		map[string]string{"Type": label},
	)
}

// Permission codes checked by transition guards.
const (
	PermissionEditPreAssigned = "session.edit.pre-assigned"
	PermissionAssignResources = "session.assign-resources"
	PermissionMarkAttended    = "session.mark-attended"
	PermissionViewOwn         = "session.view.own"
	PermissionMarkReady       = "session.mark-ready"
	PermissionEditAll         = "session.edit.all"
	PermissionCancel          = "session.cancel"
)

// RoleEditor marks actors allowed to claim sessions for post-production.
const RoleEditor = "editor"

// Actor identifies the caller of a lifecycle operation together with the
// authorization material already resolved at the boundary.
type Actor struct {
	ID          string
	Roles       []string
	Permissions []string
}

// Has reports whether the actor holds the permission code.
func (a Actor) Has(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasRole reports whether the actor holds the role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// LineItem is one quantity × unit-price entry contributing to the total.
type LineItem struct {
	ID          string
	Description string
	Quantity    int
	UnitPrice   int64 // cents
}

// PhotographerAssignment records one photographer attached to a session.
type PhotographerAssignment struct {
	PhotographerID string
	Role           string
	Attended       bool
	AttendedAt     *time.Time
}

// HistoryEntry is one immutable audit trail record for a status change.
type HistoryEntry struct {
	ID         string
	FromStatus Status
	ToStatus   Status
	Reason     string
	Notes      string
	ActorID    string
	ChangedAt  time.Time
}

// Session is the aggregate root for one booked engagement.
//
// Total, paid and balance amounts are projections over line items and the
// payment ledger; they are never stored as authoritative values.
// DepositAmount is the quote snapshot taken when the session is pre-scheduled.
type Session struct {
	ID       string
	ClientID string
	Type     Type
	// SessionDate carries the studio-local timezone; the changes deadline is
	// pinned to end of day in that zone.
	SessionDate time.Time
	Status      Status

	LineItems         []LineItem
	DepositPercentage int
	DepositAmount     int64 // cents, snapshot at pre-scheduling

	PaymentDeadline       *time.Time
	ChangesDeadline       *time.Time // set exactly once, immutable after
	EstimatedDeliveryDate *time.Time
	// EstimatedEditingDays comes from the booked catalog package; zero means
	// the studio default applies.
	EstimatedEditingDays int

	RoomID           string
	Photographers    []PhotographerAssignment
	AssignedEditorID string

	CancellationReason string
	CanceledAt         *time.Time
	CanceledBy         string

	Payments []Payment
	History  []HistoryEntry

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total returns the sum of all line items in cents.
func (s Session) Total() int64 {
	var total int64
	for _, item := range s.LineItems {
		total += int64(item.Quantity) * item.UnitPrice
	}
	return total
}

// PaidAmount projects the net amount paid from the payment ledger.
func (s Session) PaidAmount() int64 {
	return ProjectTotals(s.Total(), s.Payments).Paid
}

// BalanceAmount projects the outstanding balance from the payment ledger.
func (s Session) BalanceAmount() int64 {
	return ProjectTotals(s.Total(), s.Payments).Balance
}

// AssignedPhotographer reports whether the actor is one of the assigned photographers.
func (s Session) AssignedPhotographer(actorID string) bool {
	for _, assignment := range s.Photographers {
		if assignment.PhotographerID == actorID {
			return true
		}
	}
	return false
}

// CreateSessionInput describes the data needed to open a session request.
type CreateSessionInput struct {
	ClientID             string
	Type                 Type
	SessionDate          time.Time
	DepositPercentage    int
	EstimatedEditingDays int
	RoomID               string
	LineItems            []LineItem
	Photographers        []PhotographerAssignment
}

// CreateSession creates a new session in REQUEST status with a generated ID.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	items := make([]LineItem, 0, len(normalized.LineItems))
	for _, item := range normalized.LineItems {
		itemID, err := idGenerator()
		if err != nil {
			return Session{}, fmt.Errorf("generate line item id: %w", err)
		}
		item.ID = itemID
		items = append(items, item)
	}

	createdAt := now().UTC()
	return Session{
		ID:                   sessionID,
		ClientID:             normalized.ClientID,
		Type:                 normalized.Type,
		SessionDate:          normalized.SessionDate,
		Status:               StatusRequest,
		LineItems:            items,
		DepositPercentage:    normalized.DepositPercentage,
		EstimatedEditingDays: normalized.EstimatedEditingDays,
		RoomID:               normalized.RoomID,
		Photographers:        append([]PhotographerAssignment(nil), normalized.Photographers...),
		Version:              1,
		CreatedAt:            createdAt,
		UpdatedAt:            createdAt,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session input.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.ClientID = strings.TrimSpace(input.ClientID)
	if input.ClientID == "" {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "client id is required")
	}
	if input.Type == TypeUnspecified {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "session type is required")
	}
	if input.SessionDate.IsZero() {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "session date is required")
	}
	if input.DepositPercentage < 0 || input.DepositPercentage > 100 {
		return CreateSessionInput{}, apperrors.WithMetadata(
			apperrors.CodeValidation,
			fmt.Sprintf("deposit percentage %d out of range", input.DepositPercentage),
			map[string]string{"DepositPercentage": fmt.Sprintf("%d", input.DepositPercentage)},
		)
	}
	if input.EstimatedEditingDays < 0 {
		return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "estimated editing days must not be negative")
	}
	input.RoomID = strings.TrimSpace(input.RoomID)
	for i, item := range input.LineItems {
		item.Description = strings.TrimSpace(item.Description)
		if item.Description == "" {
			return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "line item description is required")
		}
		if item.Quantity <= 0 {
			return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "line item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "line item unit price must not be negative")
		}
		input.LineItems[i] = item
	}
	seenPhotographers := make(map[string]bool, len(input.Photographers))
	for i, assignment := range input.Photographers {
		assignment.PhotographerID = strings.TrimSpace(assignment.PhotographerID)
		if assignment.PhotographerID == "" {
			return CreateSessionInput{}, apperrors.New(apperrors.CodeValidation, "photographer id is required")
		}
		if seenPhotographers[assignment.PhotographerID] {
			return CreateSessionInput{}, apperrors.WithMetadata(
				apperrors.CodeValidation,
				"photographer assigned more than once",
				map[string]string{"PhotographerID": assignment.PhotographerID},
			)
		}
		seenPhotographers[assignment.PhotographerID] = true
		assignment.Attended = false
		assignment.AttendedAt = nil
		input.Photographers[i] = assignment
	}
	return input, nil
}
