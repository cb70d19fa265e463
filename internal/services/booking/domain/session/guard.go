package session

import (
	"fmt"
	"strings"
	"time"
)

// Violation names one unmet precondition for a transition.
type Violation struct {
	Code    string
	Message string
}

// Violation codes reported by transition guards.
const (
	ViolationClientRequired              = "CLIENT_REQUIRED"
	ViolationSessionDateNotFuture        = "SESSION_DATE_NOT_FUTURE"
	ViolationSessionTypeRequired         = "SESSION_TYPE_REQUIRED"
	ViolationLineItemsRequired           = "LINE_ITEMS_REQUIRED"
	ViolationTotalNotPositive            = "TOTAL_NOT_POSITIVE"
	ViolationDepositNotPaid              = "DEPOSIT_NOT_PAID"
	ViolationPaymentDeadlinePassed       = "PAYMENT_DEADLINE_PASSED"
	ViolationChangesDeadlineNotPassed    = "CHANGES_DEADLINE_NOT_PASSED"
	ViolationPhotographerRequired        = "PHOTOGRAPHER_REQUIRED"
	ViolationRoomRequired                = "ROOM_REQUIRED"
	ViolationSessionDateNotReached       = "SESSION_DATE_NOT_REACHED"
	ViolationActorNotSessionPhotographer = "ACTOR_NOT_SESSION_PHOTOGRAPHER"
	ViolationEditorAlreadyAssigned       = "EDITOR_ALREADY_ASSIGNED"
	ViolationActorNotEditor              = "ACTOR_NOT_EDITOR"
	ViolationActorNotAssignedEditor      = "ACTOR_NOT_ASSIGNED_EDITOR"
	ViolationBalanceOutstanding          = "BALANCE_OUTSTANDING"
	ViolationSessionClosed               = "SESSION_CLOSED"
	ViolationCancellationReasonRequired  = "CANCELLATION_REASON_REQUIRED"
	ViolationPermissionRequired          = "PERMISSION_REQUIRED"
)

// AttemptInput carries a transition request into the state machine.
type AttemptInput struct {
	To     Status
	Actor  Actor
	Reason string
	Notes  string
	// Photographers and RoomID carry resource assignments applied on the
	// CONFIRMED -> ASSIGNED edge before guards run.
	Photographers []PhotographerAssignment
	RoomID        string
}

// Guard is one named precondition for a specific transition.
type Guard struct {
	Code  string
	Check func(s Session, in AttemptInput, now time.Time) *Violation
}

// edge keys the guard table by a (from, to) status pair.
type edge struct {
	from Status
	to   Status
}

// Evaluate runs every guard registered for the pair and returns all
// violations. Guards never fail fast and perform no I/O.
func Evaluate(guards []Guard, s Session, in AttemptInput, now time.Time) []Violation {
	var violations []Violation
	for _, guard := range guards {
		if v := guard.Check(s, in, now); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

func permissionGuard(permission string) Guard {
	return Guard{
		Code: ViolationPermissionRequired,
		Check: func(_ Session, in AttemptInput, _ time.Time) *Violation {
			if in.Actor.Has(permission) {
				return nil
			}
			return &Violation{
				Code:    ViolationPermissionRequired,
				Message: fmt.Sprintf("actor lacks permission %s", permission),
			}
		},
	}
}

var requestIntakeGuards = []Guard{
	{
		Code: ViolationClientRequired,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if strings.TrimSpace(s.ClientID) != "" {
				return nil
			}
			return &Violation{Code: ViolationClientRequired, Message: "session has no client"}
		},
	},
	{
		Code: ViolationSessionDateNotFuture,
		Check: func(s Session, _ AttemptInput, now time.Time) *Violation {
			if s.SessionDate.After(now) {
				return nil
			}
			return &Violation{Code: ViolationSessionDateNotFuture, Message: "session date must be in the future"}
		},
	},
	{
		Code: ViolationSessionTypeRequired,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if s.Type != TypeUnspecified {
				return nil
			}
			return &Violation{Code: ViolationSessionTypeRequired, Message: "session has no type"}
		},
	},
	permissionGuard(PermissionEditPreAssigned),
}

var pricingGuards = []Guard{
	{
		Code: ViolationLineItemsRequired,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if len(s.LineItems) > 0 {
				return nil
			}
			return &Violation{Code: ViolationLineItemsRequired, Message: "session has no line items"}
		},
	},
	{
		Code: ViolationTotalNotPositive,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if s.Total() > 0 {
				return nil
			}
			return &Violation{Code: ViolationTotalNotPositive, Message: "session total must be positive"}
		},
	},
	permissionGuard(PermissionEditPreAssigned),
}

var confirmGuards = []Guard{
	{
		Code: ViolationDepositNotPaid,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			var deposited int64
			recorded := false
			for _, payment := range s.Payments {
				if payment.Kind == PaymentDeposit {
					recorded = true
					deposited += payment.Amount
				}
			}
			if recorded && deposited >= s.DepositAmount {
				return nil
			}
			return &Violation{
				Code:    ViolationDepositNotPaid,
				Message: fmt.Sprintf("deposit of %d cents not covered by recorded deposit payments", s.DepositAmount),
			}
		},
	},
	{
		Code: ViolationPaymentDeadlinePassed,
		Check: func(s Session, _ AttemptInput, now time.Time) *Violation {
			if s.PaymentDeadline == nil || !now.After(*s.PaymentDeadline) {
				return nil
			}
			return &Violation{Code: ViolationPaymentDeadlinePassed, Message: "payment deadline has passed"}
		},
	},
	permissionGuard(PermissionEditPreAssigned),
}

var assignGuards = []Guard{
	{
		Code: ViolationChangesDeadlineNotPassed,
		Check: func(s Session, _ AttemptInput, now time.Time) *Violation {
			if s.ChangesDeadline != nil && now.After(*s.ChangesDeadline) {
				return nil
			}
			return &Violation{Code: ViolationChangesDeadlineNotPassed, Message: "changes deadline has not yet passed"}
		},
	},
	{
		Code: ViolationPhotographerRequired,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if len(s.Photographers) > 0 {
				return nil
			}
			return &Violation{Code: ViolationPhotographerRequired, Message: "at least one photographer must be assigned"}
		},
	},
	{
		Code: ViolationRoomRequired,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if s.Type != TypeStudio || strings.TrimSpace(s.RoomID) != "" {
				return nil
			}
			return &Violation{Code: ViolationRoomRequired, Message: "studio sessions require a room"}
		},
	},
	permissionGuard(PermissionAssignResources),
}

var attendGuards = []Guard{
	{
		Code: ViolationSessionDateNotReached,
		Check: func(s Session, _ AttemptInput, now time.Time) *Violation {
			sessionDay := s.SessionDate.In(s.SessionDate.Location())
			y, m, d := sessionDay.Date()
			startOfDay := time.Date(y, m, d, 0, 0, 0, 0, sessionDay.Location())
			if !now.Before(startOfDay) {
				return nil
			}
			return &Violation{Code: ViolationSessionDateNotReached, Message: "session date has not been reached"}
		},
	},
	{
		Code: ViolationActorNotSessionPhotographer,
		Check: func(s Session, in AttemptInput, _ time.Time) *Violation {
			if s.AssignedPhotographer(in.Actor.ID) || in.Actor.Has(PermissionEditAll) {
				return nil
			}
			return &Violation{
				Code:    ViolationActorNotSessionPhotographer,
				Message: "actor is neither an assigned photographer nor a session administrator",
			}
		},
	},
	permissionGuard(PermissionMarkAttended),
}

var editingGuards = []Guard{
	{
		Code: ViolationEditorAlreadyAssigned,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if strings.TrimSpace(s.AssignedEditorID) == "" {
				return nil
			}
			return &Violation{Code: ViolationEditorAlreadyAssigned, Message: "session already has an assigned editor"}
		},
	},
	{
		Code: ViolationActorNotEditor,
		Check: func(_ Session, in AttemptInput, _ time.Time) *Violation {
			if in.Actor.HasRole(RoleEditor) {
				return nil
			}
			return &Violation{Code: ViolationActorNotEditor, Message: "actor does not hold the editor role"}
		},
	},
	permissionGuard(PermissionViewOwn),
}

var readyGuards = []Guard{
	{
		Code: ViolationActorNotAssignedEditor,
		Check: func(s Session, in AttemptInput, _ time.Time) *Violation {
			if s.AssignedEditorID != "" && s.AssignedEditorID == in.Actor.ID {
				return nil
			}
			return &Violation{Code: ViolationActorNotAssignedEditor, Message: "only the assigned editor can mark the session ready"}
		},
	},
	permissionGuard(PermissionMarkReady),
}

var fullPaymentGuard = Guard{
	Code: ViolationBalanceOutstanding,
	Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
		if s.PaidAmount() >= s.Total() {
			return nil
		}
		return &Violation{
			Code:    ViolationBalanceOutstanding,
			Message: fmt.Sprintf("outstanding balance of %d cents", s.BalanceAmount()),
		}
	},
}

var cancelGuards = []Guard{
	{
		Code: ViolationSessionClosed,
		Check: func(s Session, _ AttemptInput, _ time.Time) *Violation {
			if !s.Status.IsTerminal() {
				return nil
			}
			return &Violation{Code: ViolationSessionClosed, Message: "session is already closed"}
		},
	},
	{
		Code: ViolationCancellationReasonRequired,
		Check: func(_ Session, in AttemptInput, _ time.Time) *Violation {
			if strings.TrimSpace(in.Reason) != "" {
				return nil
			}
			return &Violation{Code: ViolationCancellationReasonRequired, Message: "cancellation reason is required"}
		},
	},
	permissionGuard(PermissionCancel),
}

// buildGuardTable registers the ordered guard list for every explicit edge.
// The REQUEST -> PRE_SCHEDULED shortcut carries both the intake and pricing
// guard sets so the deposit derivation always sees a positive total.
func buildGuardTable(cfg Config) map[edge][]Guard {
	completionGuards := []Guard{permissionGuard(PermissionEditAll)}
	if cfg.RequireFullPaymentForCompletion {
		completionGuards = append([]Guard{fullPaymentGuard}, completionGuards...)
	}

	shortcutGuards := make([]Guard, 0, len(requestIntakeGuards)+len(pricingGuards)-1)
	shortcutGuards = append(shortcutGuards, requestIntakeGuards...)
	// pricingGuards repeats the pre-assigned permission guard; skip it.
	shortcutGuards = append(shortcutGuards, pricingGuards[:len(pricingGuards)-1]...)

	return map[edge][]Guard{
		{StatusRequest, StatusNegotiation}:        requestIntakeGuards,
		{StatusRequest, StatusPreScheduled}:       shortcutGuards,
		{StatusNegotiation, StatusPreScheduled}:   pricingGuards,
		{StatusPreScheduled, StatusConfirmed}:     confirmGuards,
		{StatusConfirmed, StatusAssigned}:         assignGuards,
		{StatusAssigned, StatusAttended}:          attendGuards,
		{StatusAttended, StatusInEditing}:         editingGuards,
		{StatusInEditing, StatusReadyForDelivery}: readyGuards,
		{StatusReadyForDelivery, StatusCompleted}: completionGuards,
	}
}
