// Package entitlement decides whether an identity may generate another course.
package entitlement

import (
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
)

// Limits are the monthly course allowances per user type.
type Limits struct {
	Free    int
	Premium int
}

// For returns the limit for a raw user type. Unknown types get the free limit.
func (l Limits) For(userType domain.UserType) int {
	if domain.ParseUserType(string(userType)) == domain.UserTypePremium {
		return l.Premium
	}
	return l.Free
}

// Decision is the allow/deny verdict for one usage record.
type Decision struct {
	Allowed   bool            `json:"allowed"`
	Count     int             `json:"coursesGenerated"`
	Limit     int             `json:"limit"`
	Remaining int             `json:"remaining"`
	UserType  domain.UserType `json:"userType"`
}

// Decide is pure: it neither reads the clock nor touches storage.
// The record is expected to be rolled over already, see DecideAt.
func Decide(record domain.UsageRecord, limits Limits) Decision {
	userType := domain.ParseUserType(string(record.UserType))
	limit := limits.For(userType)
	remaining := limit - record.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   record.Count < limit,
		Count:     record.Count,
		Limit:     limit,
		Remaining: remaining,
		UserType:  userType,
	}
}

// DecideAt applies the monthly rollover to a copy of record before deciding.
func DecideAt(record domain.UsageRecord, limits Limits, now time.Time) Decision {
	rec := record.Clone()
	rec.Rollover(now)
	return Decide(*rec, limits)
}

// ResetDate is the first instant of the month after now, in UTC.
func ResetDate(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Deny builds the LimitExceeded error a client renders as an upgrade prompt.
func (d Decision) Deny(now time.Time) *domain.AppError {
	return domain.ErrLimitExceeded("Course generation limit exceeded").
		WithDetail("message", denyMessage(d)).
		WithDetail("coursesGenerated", d.Count).
		WithDetail("limit", d.Limit).
		WithDetail("remaining", d.Remaining).
		WithDetail("userType", d.UserType).
		WithDetail("resetDate", ResetDate(now))
}

func denyMessage(d Decision) string {
	if d.UserType == domain.UserTypePremium {
		return "You have reached your monthly course limit. Your allowance resets at the start of next month."
	}
	return "You have used all free courses for this month. Upgrade to premium for more courses."
}
