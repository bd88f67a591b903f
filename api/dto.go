/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names are camelCase
  and match what the admin frontend already sends and reads.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags for shape checks
  (required fields, lengths, formats). Business rules such as the status
  enum and the balance gate stay in the attendance engine, so their
  messages are the same whichever endpoint triggers them.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Validator setup and error translation
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/attendance"
	"github.com/warp/gym-ledger/billing"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// FIGHTERS & COACHES
// =============================================================================

// FighterDTO represents a fighter in API responses.
type FighterDTO struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	SessionsLeft      int    `json:"sessionsLeft"`
	TotalSessionCount int    `json:"totalSessionCount"`
	CoachID           *int64 `json:"coachId"`
	CoachName         string `json:"coachName,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

// CreateFighterRequest is the request to register a fighter. The balance
// starts at the package size.
type CreateFighterRequest struct {
	Name              string `json:"name" validate:"required,max=100"`
	Email             string `json:"email" validate:"omitempty,email"`
	Phone             string `json:"phone" validate:"omitempty,max=30"`
	TotalSessionCount int    `json:"totalSessionCount" validate:"gte=0"`
	CoachID           *int64 `json:"coachId" validate:"omitempty,gt=0"`
}

// ScheduleDTO is one weekly slot.
type ScheduleDTO struct {
	ID      int64  `json:"id,omitempty"`
	CoachID int64  `json:"coachId,omitempty"`
	Day     string `json:"day" validate:"required,weekday"`
	Time    string `json:"time" validate:"required,datetime=15:04"`
}

// CoachDTO represents a coach in API responses.
type CoachDTO struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Specialty string        `json:"specialty,omitempty"`
	Schedules []ScheduleDTO `json:"schedules"`
	CreatedAt string        `json:"createdAt,omitempty"`
}

// CreateCoachRequest is the request to create a coach with a weekly schedule.
type CreateCoachRequest struct {
	Name      string        `json:"name" validate:"required,max=100"`
	Specialty string        `json:"specialty" validate:"max=100"`
	Schedules []ScheduleDTO `json:"schedules" validate:"dive"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// AttendanceDTO represents an attendance record. Fighter and Coach are only
// embedded by the per-day listing.
type AttendanceDTO struct {
	ID          int64       `json:"id"`
	FighterID   int64       `json:"fighterId"`
	CoachID     *int64      `json:"coachId"`
	CoachName   string      `json:"coachName"`
	Date        string      `json:"date"`
	Status      string      `json:"status"`
	SessionType string      `json:"sessionType"`
	Notes       string      `json:"notes"`
	CreatedBy   string      `json:"createdBy"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
	Fighter     *FighterDTO `json:"fighter,omitempty"`
	Coach       *CoachDTO   `json:"coach,omitempty"`
}

// SessionAdjustmentDTO is a change applied to a fighter's balance.
type SessionAdjustmentDTO struct {
	Delta           int `json:"delta"`
	NewSessionsLeft int `json:"newSessionsLeft"`
}

// MarkAttendanceRequest is the body of POST /api/attendance.
// Status defaults to "present" when omitted.
type MarkAttendanceRequest struct {
	FighterID     int64  `json:"fighterId" validate:"required,gt=0"`
	CoachID       int64  `json:"coachId" validate:"omitempty,gt=0"`
	Status        string `json:"status"`
	SessionType   string `json:"sessionType" validate:"max=50"`
	Notes         string `json:"notes" validate:"max=1000"`
	Date          string `json:"date"`
	CreatedBy     string `json:"createdBy" validate:"required,max=100"`
	AdminOverride bool   `json:"adminOverride"`
}

// MarkAttendanceResponse is returned by POST /api/attendance.
type MarkAttendanceResponse struct {
	Attendance        AttendanceDTO         `json:"attendance"`
	SessionAdjustment *SessionAdjustmentDTO `json:"sessionAdjustment"`
}

// BulkAttendanceRecord is one entry of a bulk submission. It is not
// validated up front: a bad entry fails on its own.
type BulkAttendanceRecord struct {
	FighterID   int64  `json:"fighterId"`
	Status      string `json:"status"`
	SessionType string `json:"sessionType"`
	Notes       string `json:"notes"`
	CreatedBy   string `json:"createdBy"`
}

// BulkAttendanceRequest is the body of POST /api/attendance/bulk.
type BulkAttendanceRequest struct {
	AttendanceRecords []BulkAttendanceRecord `json:"attendanceRecords" validate:"required,min=1,max=500"`
	Date              string                 `json:"date"`
	AdminOverride     bool                   `json:"adminOverride"`
}

// BulkResultDTO is one per-record outcome of a bulk submission.
type BulkResultDTO struct {
	FighterID         int64                 `json:"fighterId"`
	Attendance        *AttendanceDTO        `json:"attendance,omitempty"`
	SessionAdjustment *SessionAdjustmentDTO `json:"sessionAdjustment"`
	Success           bool                  `json:"success"`
	Error             string                `json:"error,omitempty"`
	Code              string                `json:"code,omitempty"`
}

// DeleteAttendanceResponse is returned by DELETE /api/attendance/{id}.
type DeleteAttendanceResponse struct {
	Message           string                `json:"message"`
	SessionAdjustment *SessionAdjustmentDTO `json:"sessionAdjustment"`
}

// SummaryDTO counts history records by status.
type SummaryDTO struct {
	TotalRecords int `json:"totalRecords"`
	Present      int `json:"present"`
	Late         int `json:"late"`
	Absent       int `json:"absent"`
}

// HistoryResponse is a fighter's attendance over a date range.
type HistoryResponse struct {
	Fighter    FighterDTO      `json:"fighter"`
	Attendance []AttendanceDTO `json:"attendance"`
	Summary    SummaryDTO      `json:"summary"`
}

// CoachOverviewDTO is one coach entry of the daily overview.
type CoachOverviewDTO struct {
	Coach     CoachDTO             `json:"coach"`
	Schedules []ScheduleDTO        `json:"schedules"`
	Fighters  []FighterOverviewDTO `json:"fighters"`
}

// FighterOverviewDTO pairs a fighter with their record for the day.
type FighterOverviewDTO struct {
	Fighter     FighterDTO      `json:"fighter"`
	Attendances []AttendanceDTO `json:"attendances"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// TopUpRequest is the body of POST /api/fighters/{id}/payments.
type TopUpRequest struct {
	Sessions  int             `json:"sessions" validate:"required,gt=0,lte=1000"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"omitempty,max=30"`
	CreatedBy string          `json:"createdBy" validate:"required,max=100"`
}

// PaymentDTO represents a payment in API responses. Amount is a decimal
// string so no precision is lost in JSON.
type PaymentDTO struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	FighterID int64  `json:"fighterId"`
	Sessions  int    `json:"sessions"`
	Amount    string `json:"amount"`
	Method    string `json:"method,omitempty"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

// TopUpResponse is returned by a successful top-up.
type TopUpResponse struct {
	Payment           PaymentDTO           `json:"payment"`
	SessionAdjustment SessionAdjustmentDTO `json:"sessionAdjustment"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toFighterDTO(f gym.Fighter) FighterDTO {
	dto := FighterDTO{
		ID:                int64(f.ID),
		Name:              f.Name,
		Email:             f.Email,
		Phone:             f.Phone,
		SessionsLeft:      f.SessionsLeft,
		TotalSessionCount: f.TotalSessionCount,
		CoachName:         f.CoachName,
		CreatedAt:         formatTime(f.CreatedAt),
		UpdatedAt:         formatTime(f.UpdatedAt),
	}
	if f.CoachID != nil {
		id := int64(*f.CoachID)
		dto.CoachID = &id
	}
	return dto
}

func toScheduleDTOs(schedules []gym.Schedule) []ScheduleDTO {
	out := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		out[i] = ScheduleDTO{ID: int64(s.ID), CoachID: int64(s.CoachID), Day: s.Day, Time: s.Time}
	}
	return out
}

func toCoachDTO(c gym.Coach) CoachDTO {
	return CoachDTO{
		ID:        int64(c.ID),
		Name:      c.Name,
		Specialty: c.Specialty,
		Schedules: toScheduleDTOs(c.Schedules),
		CreatedAt: formatTime(c.CreatedAt),
	}
}

// toAttendanceDTO renders Date as the start of the day bucket.
func toAttendanceDTO(a gym.Attendance) AttendanceDTO {
	dto := AttendanceDTO{
		ID:          int64(a.ID),
		FighterID:   int64(a.FighterID),
		CoachName:   a.CoachName,
		Date:        formatTime(a.Day.Start()),
		Status:      string(a.Status),
		SessionType: a.SessionType,
		Notes:       a.Notes,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   formatTime(a.CreatedAt),
		UpdatedAt:   formatTime(a.UpdatedAt),
	}
	if a.CoachID != 0 {
		id := int64(a.CoachID)
		dto.CoachID = &id
	}
	return dto
}

func toAttendanceDTOs(records []gym.Attendance) []AttendanceDTO {
	out := make([]AttendanceDTO, len(records))
	for i, r := range records {
		out[i] = toAttendanceDTO(r)
	}
	return out
}

func toAdjustmentDTO(adj *gym.SessionAdjustment) *SessionAdjustmentDTO {
	if adj == nil {
		return nil
	}
	return &SessionAdjustmentDTO{Delta: adj.Delta, NewSessionsLeft: adj.NewSessionsLeft}
}

func toSummaryDTO(s attendance.Summary) SummaryDTO {
	return SummaryDTO{TotalRecords: s.TotalRecords, Present: s.Present, Late: s.Late, Absent: s.Absent}
}

func toBulkResultDTO(r attendance.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{FighterID: int64(r.FighterID), Success: r.Success()}
	if r.Err != nil {
		dto.Error = clientMessage(r.Err)
		dto.Code = gym.Kind(r.Err)
		return dto
	}
	a := toAttendanceDTO(r.Result.Attendance)
	dto.Attendance = &a
	dto.SessionAdjustment = toAdjustmentDTO(r.Result.SessionAdjustment)
	return dto
}

func toOverviewDTOs(overview []attendance.CoachOverview) []CoachOverviewDTO {
	out := make([]CoachOverviewDTO, len(overview))
	for i, co := range overview {
		fighters := make([]FighterOverviewDTO, len(co.Fighters))
		for j, fo := range co.Fighters {
			fighters[j] = FighterOverviewDTO{
				Fighter:     toFighterDTO(fo.Fighter),
				Attendances: toAttendanceDTOs(fo.Attendances),
			}
		}
		out[i] = CoachOverviewDTO{
			Coach:     toCoachDTO(co.Coach),
			Schedules: toScheduleDTOs(co.Schedules),
			Fighters:  fighters,
		}
	}
	return out
}

func toPaymentDTO(p gym.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        int64(p.ID),
		Reference: p.Reference,
		FighterID: int64(p.FighterID),
		Sessions:  p.Sessions,
		Amount:    p.Amount.StringFixed(2),
		Method:    p.Method,
		CreatedBy: p.CreatedBy,
		CreatedAt: formatTime(p.CreatedAt),
	}
}

func toTopUpResponse(r *billing.TopUpResult) TopUpResponse {
	return TopUpResponse{
		Payment: toPaymentDTO(r.Payment),
		SessionAdjustment: SessionAdjustmentDTO{
			Delta:           r.SessionAdjustment.Delta,
			NewSessionsLeft: r.SessionAdjustment.NewSessionsLeft,
		},
	}
}
