// Package refund provides the cancellation refund schedule. The schedule is
// business configuration loaded from YAML, kept apart from the lifecycle
// rules so studios can tune it without a code change.
package refund

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// Tier grants a percentage of the paid amount back when the cancellation
// happens at least MinDaysBefore days before the session date.
type Tier struct {
	MinDaysBefore int `yaml:"min_days_before"`
	Percentage    int `yaml:"percentage"`
}

// Schedule is an ordered set of refund tiers. It implements
// session.RefundPolicy.
type Schedule struct {
	tiers []Tier
}

type scheduleFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// DefaultSchedule returns the studio default: full refund two weeks out,
// half refund one week out, nothing after that.
func DefaultSchedule() Schedule {
	schedule, err := NewSchedule([]Tier{
		{MinDaysBefore: 14, Percentage: 100},
		{MinDaysBefore: 7, Percentage: 50},
		{MinDaysBefore: 0, Percentage: 0},
	})
	if err != nil {
		panic(err)
	}
	return schedule
}

// NewSchedule validates the tiers and returns a normalized schedule ordered
// from the most to the least generous cancellation window.
func NewSchedule(tiers []Tier) (Schedule, error) {
	if len(tiers) == 0 {
		return Schedule{}, apperrors.New(apperrors.CodeRefundScheduleInvalid, "refund schedule needs at least one tier")
	}

	normalized := append([]Tier(nil), tiers...)
	seen := make(map[int]bool, len(normalized))
	for _, tier := range normalized {
		if tier.MinDaysBefore < 0 {
			return Schedule{}, apperrors.WithMetadata(
				apperrors.CodeRefundScheduleInvalid,
				fmt.Sprintf("tier window %d days must not be negative", tier.MinDaysBefore),
				map[string]string{"MinDaysBefore": fmt.Sprintf("%d", tier.MinDaysBefore)},
			)
		}
		if tier.Percentage < 0 || tier.Percentage > 100 {
			return Schedule{}, apperrors.WithMetadata(
				apperrors.CodeRefundScheduleInvalid,
				fmt.Sprintf("tier percentage %d out of range", tier.Percentage),
				map[string]string{"Percentage": fmt.Sprintf("%d", tier.Percentage)},
			)
		}
		if seen[tier.MinDaysBefore] {
			return Schedule{}, apperrors.WithMetadata(
				apperrors.CodeRefundScheduleInvalid,
				fmt.Sprintf("duplicate tier window of %d days", tier.MinDaysBefore),
				map[string]string{"MinDaysBefore": fmt.Sprintf("%d", tier.MinDaysBefore)},
			)
		}
		seen[tier.MinDaysBefore] = true
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].MinDaysBefore > normalized[j].MinDaysBefore
	})
	return Schedule{tiers: normalized}, nil
}

// ParseSchedule loads a schedule from YAML.
func ParseSchedule(data []byte) (Schedule, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Schedule{}, apperrors.Wrap(apperrors.CodeRefundScheduleInvalid, "parse refund schedule", err)
	}
	return NewSchedule(file.Tiers)
}

// LoadSchedule reads and parses a schedule file. An empty path returns the
// default schedule.
func LoadSchedule(path string) (Schedule, error) {
	if path == "" {
		return DefaultSchedule(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, apperrors.Wrap(apperrors.CodeRefundScheduleInvalid, fmt.Sprintf("read refund schedule %s", path), err)
	}
	return ParseSchedule(data)
}

// Tiers returns the normalized tier list, most generous window first.
func (s Schedule) Tiers() []Tier {
	return append([]Tier(nil), s.tiers...)
}

// RefundAmount returns the refundable share of the paid amount for a
// cancellation at now, rounding half up. Cancellations after the session
// date match only a zero-day tier, if one exists.
func (s Schedule) RefundAmount(sess session.Session, now time.Time) int64 {
	paid := sess.PaidAmount()
	if paid <= 0 {
		return 0
	}

	daysBefore := int(sess.SessionDate.Sub(now).Hours() / 24)
	if daysBefore < 0 {
		daysBefore = 0
	}
	for _, tier := range s.tiers {
		if daysBefore >= tier.MinDaysBefore {
			return (paid*int64(tier.Percentage) + 50) / 100
		}
	}
	return 0
}
