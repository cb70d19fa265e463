package session

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/platform/id"
)

// PaymentKind classifies one ledger entry.
type PaymentKind int

const (
	// PaymentKindUnspecified represents an invalid payment kind value.
	PaymentKindUnspecified PaymentKind = iota
	// PaymentDeposit is the upfront payment required before confirmation.
	PaymentDeposit
	// PaymentBalance settles the remaining amount.
	PaymentBalance
	// PaymentPartial is any other partial payment.
	PaymentPartial
	// PaymentRefund returns money to the client; it reduces the paid amount.
	PaymentRefund
)

var paymentKindLabels = map[PaymentKind]string{
	PaymentDeposit: "DEPOSIT",
	PaymentBalance: "BALANCE",
	PaymentPartial: "PARTIAL",
	PaymentRefund:  "REFUND",
}

// String returns the stable wire/storage label for the payment kind.
func (k PaymentKind) String() string {
	if label, ok := paymentKindLabels[k]; ok {
		return label
	}
	return "UNSPECIFIED"
}

// ParsePaymentKind maps a stable label back to a PaymentKind.
func ParsePaymentKind(label string) (PaymentKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	for kind, l := range paymentKindLabels {
		if l == normalized {
			return kind, nil
		}
	}
	return PaymentKindUnspecified, apperrors.WithMetadata(
		apperrors.CodeValidation,
		fmt.Sprintf("unknown payment kind %q", label),
		map[string]string{"Kind": label},
	)
}

// Payment methods accepted by the ledger. Refunds may omit the method.
const (
	MethodCash     = "CASH"
	MethodCard     = "CARD"
	MethodTransfer = "TRANSFER"
)

// Payment is one immutable ledger entry. Payments are append-only and are
// never edited or deleted; paid and balance amounts are projections over the
// ordered list.
type Payment struct {
	ID        string
	Kind      PaymentKind
	Amount    int64 // cents, always positive; refunds subtract in projection
	Method    string
	PaidAt    time.Time
	Reference string
}

// Totals is the pure projection of the payment ledger.
type Totals struct {
	Paid    int64
	Balance int64
}

// ProjectTotals folds the ordered payment list into paid and balance amounts.
// It is pure and idempotent: replaying the same list always yields the same
// totals.
func ProjectTotals(total int64, payments []Payment) Totals {
	var paid int64
	for _, payment := range payments {
		if payment.Kind == PaymentRefund {
			paid -= payment.Amount
		} else {
			paid += payment.Amount
		}
	}
	return Totals{Paid: paid, Balance: total - paid}
}

// RecordPaymentInput describes one payment to append to the ledger.
type RecordPaymentInput struct {
	Kind      PaymentKind
	Amount    int64
	Method    string
	PaidAt    time.Time
	Reference string
}

// RecordPayment validates and appends a payment, returning the updated
// session. Terminal sessions accept no further ledger entries.
func RecordPayment(s Session, input RecordPaymentInput, now func() time.Time, idGenerator func() (string, error)) (Session, Payment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if s.Status.IsTerminal() {
		return Session{}, Payment{}, apperrors.WithMetadata(
			apperrors.CodeSessionTerminal,
			fmt.Sprintf("session %s is %s and accepts no payments", s.ID, s.Status),
			map[string]string{"Status": s.Status.String()},
		)
	}
	if input.Kind == PaymentKindUnspecified {
		return Session{}, Payment{}, apperrors.New(apperrors.CodePaymentInvalid, "payment kind is required")
	}
	if input.Amount <= 0 {
		return Session{}, Payment{}, apperrors.New(apperrors.CodePaymentInvalid, "payment amount must be positive")
	}
	method := strings.ToUpper(strings.TrimSpace(input.Method))
	switch method {
	case MethodCash, MethodCard, MethodTransfer:
	case "":
		if input.Kind != PaymentRefund {
			return Session{}, Payment{}, apperrors.New(apperrors.CodePaymentInvalid, "payment method is required")
		}
	default:
		return Session{}, Payment{}, apperrors.WithMetadata(
			apperrors.CodePaymentInvalid,
			fmt.Sprintf("unknown payment method %q", input.Method),
			map[string]string{"Method": input.Method},
		)
	}
	if input.Kind == PaymentRefund && input.Amount > s.PaidAmount() {
		return Session{}, Payment{}, apperrors.WithMetadata(
			apperrors.CodePaymentRefundExceedsPaid,
			fmt.Sprintf("refund of %d cents exceeds paid amount of %d cents", input.Amount, s.PaidAmount()),
			map[string]string{
				"Refund": fmt.Sprintf("%d", input.Amount),
				"Paid":   fmt.Sprintf("%d", s.PaidAmount()),
			},
		)
	}

	paymentID, err := idGenerator()
	if err != nil {
		return Session{}, Payment{}, fmt.Errorf("generate payment id: %w", err)
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = now().UTC()
	}

	payment := Payment{
		ID:        paymentID,
		Kind:      input.Kind,
		Amount:    input.Amount,
		Method:    method,
		PaidAt:    paidAt.UTC(),
		Reference: strings.TrimSpace(input.Reference),
	}

	updated := s
	updated.Payments = append(append([]Payment(nil), s.Payments...), payment)
	updated.UpdatedAt = now().UTC()
	return updated, payment, nil
}

// RefundPolicy computes how much of the paid amount is returned when a
// session is canceled. Implementations carry business configuration; the
// domain only clamps the result into [0, paid].
type RefundPolicy interface {
	RefundAmount(s Session, now time.Time) int64
}

// ComputeRefund applies the policy at cancellation time, clamped to the
// amount actually paid.
func ComputeRefund(s Session, policy RefundPolicy, now time.Time) int64 {
	if policy == nil {
		return 0
	}
	refund := policy.RefundAmount(s, now)
	if refund < 0 {
		return 0
	}
	if paid := s.PaidAmount(); refund > paid {
		return paid
	}
	return refund
}
