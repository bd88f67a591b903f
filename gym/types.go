// Package gym holds the domain model shared by the attendance engine, the
// billing collaborator and the storage layer: fighters and their session
// balance, coaches with weekly schedules, attendance records and payments.
package gym

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	FighterID    int64
	CoachID      int64
	ScheduleID   int64
	AttendanceID int64
	PaymentID    int64
)

// UnassignedCoachName is the coach snapshot written for fighters without a coach.
const UnassignedCoachName = "Unassigned"

// DefaultSessionType is used when a mark request leaves the session type empty.
const DefaultSessionType = "group"

// =============================================================================
// ATTENDANCE STATUS
// =============================================================================

// Status is the attendance outcome for one fighter on one day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"

	// StatusNone stands for "no record". It is never persisted; the transition
	// table uses it for the create and delete edges.
	StatusNone Status = ""
)

// Statuses lists every accepted status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

// ParseStatus validates a raw status value. Matching is exact: the UI sends
// lower-case values and anything else is rejected before any write happens.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPresent, StatusAbsent, StatusLate:
		return s, nil
	}
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return StatusNone, &ValidationError{
		Field:   "status",
		Message: fmt.Sprintf("Invalid status %q. Must be one of: %s", raw, strings.Join(names, ", ")),
	}
}

// ConsumesSession reports whether a record with this status is paid for
// with one session from the fighter's balance.
func (s Status) ConsumesSession() bool {
	return s == StatusPresent || s == StatusLate
}

func (s Status) String() string { return string(s) }

// =============================================================================
// ENTITIES
// =============================================================================

// Fighter is a gym member. SessionsLeft is the ledger: it only moves by the
// deltas the attendance engine and the billing top-up apply.
type Fighter struct {
	ID                FighterID
	Name              string
	Email             string
	Phone             string
	SessionsLeft      int
	TotalSessionCount int
	CoachID           *CoachID
	CoachName         string // joined from the live coach relation, empty when unassigned
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CoachSnapshot returns the coach attribution to denormalize onto a new
// attendance row.
func (f Fighter) CoachSnapshot() (CoachID, string) {
	if f.CoachID == nil || f.CoachName == "" {
		return 0, UnassignedCoachName
	}
	return *f.CoachID, f.CoachName
}

// HasCoach reports whether the fighter is assigned to the given coach.
func (f Fighter) HasCoach(id CoachID) bool {
	return f.CoachID != nil && *f.CoachID == id
}

// Coach runs classes on the weekly schedule slots listed in Schedules.
type Coach struct {
	ID        CoachID
	Name      string
	Specialty string
	Schedules []Schedule
	CreatedAt time.Time
}

// Schedule is one weekly slot, e.g. {Day: "Monday", Time: "18:00"}.
type Schedule struct {
	ID      ScheduleID
	CoachID CoachID
	Day     string
	Time    string
}

// OnWeekday reports whether the slot falls on the given weekday.
func (s Schedule) OnWeekday(wd time.Weekday) bool {
	return strings.EqualFold(strings.TrimSpace(s.Day), wd.String())
}

// ParseWeekday accepts an English weekday name in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(strings.TrimSpace(name), wd.String()) {
			return wd, true
		}
	}
	return time.Sunday, false
}

// Attendance is one fighter's record for one day bucket.
//
// CoachID/CoachName are a snapshot taken when the record was created and are
// not refreshed when the fighter later changes coach.
type Attendance struct {
	ID          AttendanceID
	FighterID   FighterID
	CoachID     CoachID // 0 when the fighter was unassigned
	CoachName   string
	Day         Day
	Status      Status
	SessionType string
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionAdjustment describes a change applied to a fighter's balance.
type SessionAdjustment struct {
	Delta           int
	NewSessionsLeft int
}

// Payment is a package purchase that tops up the session balance.
type Payment struct {
	ID        PaymentID
	Reference string
	FighterID FighterID
	Sessions  int
	Amount    decimal.Decimal
	Method    string
	CreatedBy string
	CreatedAt time.Time
}
