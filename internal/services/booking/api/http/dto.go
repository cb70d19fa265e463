package http

import (
	"time"

	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// createSessionRequest is the POST /v1/sessions payload.
type createSessionRequest struct {
	ClientID             string                `json:"client_id"`
	Type                 string                `json:"type"`
	SessionDate          time.Time             `json:"session_date"`
	DepositPercentage    int                   `json:"deposit_percentage"`
	EstimatedEditingDays int                   `json:"estimated_editing_days"`
	RoomID               string                `json:"room_id"`
	LineItems            []lineItemPayload     `json:"line_items"`
	Photographers        []photographerPayload `json:"photographers"`
}

// transitionRequest is the POST /v1/sessions/:id/transitions payload.
type transitionRequest struct {
	To            string                `json:"to"`
	Reason        string                `json:"reason"`
	Notes         string                `json:"notes"`
	RoomID        string                `json:"room_id"`
	Photographers []photographerPayload `json:"photographers"`
}

// transitionResponse carries the committed session plus the notification
// intents the transition emitted.
type transitionResponse struct {
	Session              sessionPayload  `json:"session"`
	EmittedNotifications []intentPayload `json:"emitted_notifications"`
}

type intentPayload struct {
	Type        string            `json:"type"`
	SessionID   string            `json:"session_id"`
	RecipientID string            `json:"recipient_id"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func toIntentPayloads(intents []session.Intent) []intentPayload {
	payloads := make([]intentPayload, 0, len(intents))
	for _, intent := range intents {
		payloads = append(payloads, intentPayload{
			Type:        intent.Type,
			SessionID:   intent.SessionID,
			RecipientID: intent.RecipientID,
			Metadata:    intent.Metadata,
		})
	}
	return payloads
}

// recordPaymentRequest is the POST /v1/sessions/:id/payments payload.
type recordPaymentRequest struct {
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paid_at"`
	Reference string    `json:"reference"`
}

type lineItemPayload struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type photographerPayload struct {
	PhotographerID string     `json:"photographer_id"`
	Role           string     `json:"role"`
	Attended       bool       `json:"attended,omitempty"`
	AttendedAt     *time.Time `json:"attended_at,omitempty"`
}

type paymentPayload struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
	Reference string    `json:"reference,omitempty"`
}

type historyPayload struct {
	ID         string    `json:"id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	ActorID    string    `json:"actor_id"`
	ChangedAt  time.Time `json:"changed_at"`
}

// sessionPayload is the API projection of the aggregate: stored fields plus
// the derived totals.
type sessionPayload struct {
	ID                    string                `json:"id"`
	ClientID              string                `json:"client_id"`
	Type                  string                `json:"type"`
	SessionDate           time.Time             `json:"session_date"`
	Status                string                `json:"status"`
	LineItems             []lineItemPayload     `json:"line_items"`
	DepositPercentage     int                   `json:"deposit_percentage"`
	DepositAmount         int64                 `json:"deposit_amount"`
	TotalAmount           int64                 `json:"total_amount"`
	PaidAmount            int64                 `json:"paid_amount"`
	BalanceAmount         int64                 `json:"balance_amount"`
	PaymentDeadline       *time.Time            `json:"payment_deadline,omitempty"`
	ChangesDeadline       *time.Time            `json:"changes_deadline,omitempty"`
	EstimatedDeliveryDate *time.Time            `json:"estimated_delivery_date,omitempty"`
	RoomID                string                `json:"room_id,omitempty"`
	Photographers         []photographerPayload `json:"photographers,omitempty"`
	AssignedEditorID      string                `json:"assigned_editor_id,omitempty"`
	CancellationReason    string                `json:"cancellation_reason,omitempty"`
	CanceledAt            *time.Time            `json:"canceled_at,omitempty"`
	CanceledBy            string                `json:"canceled_by,omitempty"`
	Version               int64                 `json:"version"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

type sessionListPayload struct {
	Sessions      []sessionPayload `json:"sessions"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func toSessionPayload(s session.Session) sessionPayload {
	payload := sessionPayload{
		ID:                    s.ID,
		ClientID:              s.ClientID,
		Type:                  s.Type.String(),
		SessionDate:           s.SessionDate,
		Status:                s.Status.String(),
		DepositPercentage:     s.DepositPercentage,
		DepositAmount:         s.DepositAmount,
		TotalAmount:           s.Total(),
		PaidAmount:            s.PaidAmount(),
		BalanceAmount:         s.BalanceAmount(),
		PaymentDeadline:       s.PaymentDeadline,
		ChangesDeadline:       s.ChangesDeadline,
		EstimatedDeliveryDate: s.EstimatedDeliveryDate,
		RoomID:                s.RoomID,
		AssignedEditorID:      s.AssignedEditorID,
		CancellationReason:    s.CancellationReason,
		CanceledAt:            s.CanceledAt,
		CanceledBy:            s.CanceledBy,
		Version:               s.Version,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
	for _, item := range s.LineItems {
		payload.LineItems = append(payload.LineItems, lineItemPayload{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	for _, assignment := range s.Photographers {
		payload.Photographers = append(payload.Photographers, photographerPayload{
			PhotographerID: assignment.PhotographerID,
			Role:           assignment.Role,
			Attended:       assignment.Attended,
			AttendedAt:     assignment.AttendedAt,
		})
	}
	return payload
}

func toPaymentPayload(p session.Payment) paymentPayload {
	return paymentPayload{
		ID:        p.ID,
		Kind:      p.Kind.String(),
		Amount:    p.Amount,
		Method:    p.Method,
		PaidAt:    p.PaidAt,
		Reference: p.Reference,
	}
}

func toHistoryPayload(e session.HistoryEntry) historyPayload {
	return historyPayload{
		ID:         e.ID,
		FromStatus: e.FromStatus.String(),
		ToStatus:   e.ToStatus.String(),
		Reason:     e.Reason,
		Notes:      e.Notes,
		ActorID:    e.ActorID,
		ChangedAt:  e.ChangedAt,
	}
}

func toAssignments(payloads []photographerPayload) []session.PhotographerAssignment {
	assignments := make([]session.PhotographerAssignment, 0, len(payloads))
	for _, p := range payloads {
		assignments = append(assignments, session.PhotographerAssignment{
			PhotographerID: p.PhotographerID,
			Role:           p.Role,
		})
	}
	return assignments
}

func toLineItems(payloads []lineItemPayload) []session.LineItem {
	items := make([]session.LineItem, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, session.LineItem{
			Description: p.Description,
			Quantity:    p.Quantity,
			UnitPrice:   p.UnitPrice,
		})
	}
	return items
}
