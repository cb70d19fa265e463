package session

import "time"

// Config holds the business offsets and flags driving derived fields.
type Config struct {
	// PaymentDeadlineDays is how long a pre-scheduled session waits for its deposit.
	PaymentDeadlineDays int
	// ChangesDeadlineDays is how many days before the session date client
	// changes are still accepted.
	ChangesDeadlineDays int
	// DefaultEditingDays applies when the booked package carries no estimate.
	DefaultEditingDays int
	// RequireFullPaymentForCompletion gates READY_FOR_DELIVERY -> COMPLETED
	// on a cleared balance.
	RequireFullPaymentForCompletion bool
}

// DefaultConfig returns the studio defaults used when no configuration is provided.
func DefaultConfig() Config {
	return Config{
		PaymentDeadlineDays:             7,
		ChangesDeadlineDays:             3,
		DefaultEditingDays:              14,
		RequireFullPaymentForCompletion: true,
	}
}

// PaymentDeadlineAt derives the deposit deadline for a session pre-scheduled at now.
func PaymentDeadlineAt(now time.Time, cfg Config) time.Time {
	return now.UTC().AddDate(0, 0, cfg.PaymentDeadlineDays)
}

// DepositFor derives the deposit amount in cents, rounding half up.
func DepositFor(total int64, depositPercentage int) int64 {
	if total <= 0 || depositPercentage <= 0 {
		return 0
	}
	return (total*int64(depositPercentage) + 50) / 100
}

// ChangesDeadlineFor pins the last moment client changes are accepted:
// end of day, ChangesDeadlineDays before the session date, in the session's zone.
func ChangesDeadlineFor(sessionDate time.Time, cfg Config) time.Time {
	day := sessionDate.AddDate(0, 0, -cfg.ChangesDeadlineDays)
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, sessionDate.Location())
}

// EstimatedDeliveryFor derives the delivery estimate from the session date and
// the booked package's editing days, falling back to the studio default.
func EstimatedDeliveryFor(sessionDate time.Time, editingDays int, cfg Config) time.Time {
	days := editingDays
	if days <= 0 {
		days = cfg.DefaultEditingDays
	}
	return sessionDate.AddDate(0, 0, days)
}
