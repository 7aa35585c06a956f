package domain

import (
	"strings"
	"time"
)

// UserType is the entitlement tier a usage record is billed against.
type UserType string

const (
	UserTypeAnonymous UserType = "anonymous"
	UserTypePremium   UserType = "premium"
)

// ParseUserType maps any unrecognized value to UserTypeAnonymous.
func ParseUserType(s string) UserType {
	switch UserType(strings.ToLower(strings.TrimSpace(s))) {
	case UserTypePremium:
		return UserTypePremium
	default:
		return UserTypeAnonymous
	}
}

// StoreVersion is written into the counter document metadata.
const StoreVersion = "1.0.0"

// UsageRecord tracks courses generated by one identity in the current month.
// UserType holds the raw stored value; use ParseUserType before deciding on it.
type UsageRecord struct {
	Count       int        `json:"count"`
	UserType    UserType   `json:"userType"`
	FirstCourse *time.Time `json:"firstCourse"`
	LastCourse  *time.Time `json:"lastCourse"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// PeriodAnchor is the timestamp whose calendar month defines the current period.
func (u *UsageRecord) PeriodAnchor() time.Time {
	if u.LastCourse != nil {
		return *u.LastCourse
	}
	return u.CreatedAt
}

// InPeriod reports whether the period anchor shares now's calendar month (UTC).
func (u *UsageRecord) InPeriod(now time.Time) bool {
	anchor := u.PeriodAnchor().UTC()
	now = now.UTC()
	return anchor.Year() == now.Year() && anchor.Month() == now.Month()
}

// Rollover zeroes Count and clears FirstCourse when the period anchor falls in
// another month than now. It reports whether the record changed.
func (u *UsageRecord) Rollover(now time.Time) bool {
	if u.Count == 0 || u.InPeriod(now) {
		return false
	}
	u.Count = 0
	u.FirstCourse = nil
	return true
}

// Clone returns a deep copy so callers can mutate without touching the store.
func (u *UsageRecord) Clone() *UsageRecord {
	c := *u
	if u.FirstCourse != nil {
		t := *u.FirstCourse
		c.FirstCourse = &t
	}
	if u.LastCourse != nil {
		t := *u.LastCourse
		c.LastCourse = &t
	}
	return &c
}

// UsageMetadata holds store-wide counters. They are bumped independently of
// per-record rollovers and can drift from the sum of live counts.
type UsageMetadata struct {
	TotalUsers   int    `json:"totalUsers"`
	TotalCourses int    `json:"totalCourses"`
	Version      string `json:"version"`
}

// UsageSnapshot is the full persisted counter document.
type UsageSnapshot struct {
	Users       map[string]*UsageRecord `json:"users"`
	LastUpdated *time.Time              `json:"lastUpdated"`
	Metadata    UsageMetadata           `json:"metadata"`
}

// NewUsageSnapshot returns an empty document.
func NewUsageSnapshot() *UsageSnapshot {
	return &UsageSnapshot{
		Users:    make(map[string]*UsageRecord),
		Metadata: UsageMetadata{Version: StoreVersion},
	}
}

// UsageStatistics summarizes the counter store for operators.
type UsageStatistics struct {
	TotalUsers   int        `json:"totalUsers"`
	ActiveUsers  int        `json:"activeUsers"`
	TotalCourses int        `json:"totalCourses"`
	LastUpdated  *time.Time `json:"lastUpdated"`
}

// DeviceRequest identifies a device by its stable hash.
type DeviceRequest struct {
	DeviceHash string `json:"deviceHash" validate:"required,max=128"`
}

// RegisterAnonymousRequest carries courses generated before the device was registered.
type RegisterAnonymousRequest struct {
	DeviceHash         string `json:"deviceHash" validate:"required,max=128"`
	InitialCourseCount int    `json:"initialCourseCount" validate:"min=0,max=1000"`
}

// DeviceStatus is returned by the device registration endpoints.
type DeviceStatus struct {
	Success     bool      `json:"success"`
	DeviceHash  string    `json:"deviceHash"`
	IsNew       bool      `json:"isNew"`
	CourseCount int       `json:"courseCount"`
	UserType    UserType  `json:"userType"`
	CreatedAt   time.Time `json:"createdAt"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
}
