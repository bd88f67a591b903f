/*
handlers.go - HTTP API handlers for the gym session ledger

PURPOSE:
  Exposes the attendance engine, the fighter/coach registry and package
  top-ups via REST. Handles HTTP request/response and JSON, and delegates
  every rule to the attendance and billing packages.

ENDPOINTS:
  Attendance:
    GET    /api/attendance?date=                 Records of one day, newest first
    GET    /api/attendance/daily-overview?date=  Coaches scheduled that weekday
    POST   /api/attendance                       Mark one fighter (create only)
    POST   /api/attendance/bulk                  Mark many; per-record results
    DELETE /api/attendance/{id}                  Delete record, restore session
    GET    /api/attendance/{id}                  History of FIGHTER {id}

  Fighters / coaches:
    GET    /api/fighters, POST /api/fighters, GET /api/fighters/{id}
    GET    /api/coaches,  POST /api/coaches

  Payments:
    GET    /api/fighters/{id}/payments
    POST   /api/fighters/{id}/payments          Top up the balance

ERROR HANDLING:
  Errors are returned as {error, code, details?}:
  - 400: Validation errors, invalid input
  - 404: Fighter, coach or attendance record not found
  - 409: Fighter already has a record for the day
  - 422: No sessions left and no admin override
  - 500: Anything else; the message is generic and the cause is logged
  Bulk marking always answers 200; failures are per-record data.

IDENTITY:
  createdBy comes from the body. When it is empty the X-Admin-User header
  set by the auth proxy is used instead.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/warp/gym-ledger/attendance"
	"github.com/warp/gym-ledger/billing"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/metrics"
	"github.com/warp/gym-ledger/store/sqlite"
)

// AdminUserHeader carries the authenticated admin's name.
const AdminUserHeader = "X-Admin-User"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Engine  *attendance.Engine
	Billing *billing.Service
	Metrics *metrics.Metrics

	validator   *validator.Validate
	corsOrigins []string

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	Location    *time.Location   // day-bucket calendar, default time.Local
	Clock       func() time.Time // resolves "today", default time.Now
	Metrics     *metrics.Metrics
	CORSOrigins []string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	engineOpts := []attendance.Option{attendance.WithLocation(opts.Location)}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, attendance.WithClock(opts.Clock))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		Store:       store,
		Engine:      attendance.NewEngine(store, engineOpts...),
		Billing:     billing.NewService(store),
		Metrics:     m,
		validator:   newValidator(),
		corsOrigins: opts.CORSOrigins,
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ListAttendance returns one day's records with fighter and coach embedded.
// GET /api/attendance?date=YYYY-MM-DD
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	day, err := h.Engine.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	records, err := h.Engine.ListForDay(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec.Attendance)
		if rec.Fighter != nil {
			f := toFighterDTO(*rec.Fighter)
			dtos[i].Fighter = &f
		}
		if rec.Coach != nil {
			c := toCoachDTO(*rec.Coach)
			dtos[i].Coach = &c
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDailyOverview returns the coaches scheduled on the day's weekday with
// their fighters and each fighter's record for the day.
// GET /api/attendance/daily-overview?date=YYYY-MM-DD
func (h *Handler) GetDailyOverview(w http.ResponseWriter, r *http.Request) {
	day, err := h.Engine.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	overview, err := h.Engine.GetDailyOverview(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTOs(overview))
}

// MarkAttendance creates a single record.
// POST /api/attendance
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req MarkAttendanceRequest
	if err := readJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if req.Status == "" {
		req.Status = string(gym.StatusPresent)
	}
	req.CreatedBy = createdBy(r, req.CreatedBy)
	if err := h.validateStruct(&req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	day, err := h.Engine.ParseDay(req.Date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.Engine.MarkSingle(r.Context(), attendance.MarkRequest{
		FighterID:     gym.FighterID(req.FighterID),
		CoachID:       gym.CoachID(req.CoachID),
		Status:        req.Status,
		SessionType:   req.SessionType,
		Notes:         req.Notes,
		Day:           day,
		CreatedBy:     req.CreatedBy,
		AdminOverride: req.AdminOverride,
	})
	h.Metrics.ObserveMark("single", req.Status, err)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.ObserveAdjustment(result.SessionAdjustment)

	writeJSON(w, http.StatusCreated, MarkAttendanceResponse{
		Attendance:        toAttendanceDTO(result.Attendance),
		SessionAdjustment: toAdjustmentDTO(result.SessionAdjustment),
	})
}

// MarkBulk creates or updates one record per entry. The response is always
// 200 with one result per entry, in input order.
// POST /api/attendance/bulk
func (h *Handler) MarkBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkAttendanceRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	day, err := h.Engine.ParseDay(req.Date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	records := make([]attendance.BulkRecord, len(req.AttendanceRecords))
	for i, rec := range req.AttendanceRecords {
		records[i] = attendance.BulkRecord{
			FighterID:   gym.FighterID(rec.FighterID),
			Status:      rec.Status,
			SessionType: rec.SessionType,
			Notes:       rec.Notes,
			CreatedBy:   createdBy(r, rec.CreatedBy),
		}
	}

	results := h.Engine.MarkBulk(r.Context(), attendance.BulkRequest{
		Records:       records,
		Day:           day,
		AdminOverride: req.AdminOverride,
	})

	dtos := make([]BulkResultDTO, len(results))
	for i, res := range results {
		h.Metrics.ObserveMark("bulk", records[i].Status, res.Err)
		if res.Err != nil && !gym.IsClientError(res.Err) {
			logError(r, res.Err)
		}
		if res.Result != nil {
			h.Metrics.ObserveAdjustment(res.Result.SessionAdjustment)
		}
		dtos[i] = toBulkResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteAttendance removes a record and restores the session it consumed.
// DELETE /api/attendance/{id}
func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	adj, err := h.Engine.DeleteAttendance(r.Context(), gym.AttendanceID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.ObserveAdjustment(adj)

	writeJSON(w, http.StatusOK, DeleteAttendanceResponse{
		Message:           "Attendance record deleted successfully",
		SessionAdjustment: toAdjustmentDTO(adj),
	})
}

// GetFighterAttendance returns a fighter's history. The path id is a
// fighter id.
// GET /api/attendance/{id}?startDate=&endDate=
func (h *Handler) GetFighterAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	rng, err := h.parseRange(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	history, err := h.Engine.GetHistory(r.Context(), gym.FighterID(id), rng)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Fighter:    toFighterDTO(history.Fighter),
		Attendance: toAttendanceDTOs(history.Records),
		Summary:    toSummaryDTO(history.Summary),
	})
}

func (h *Handler) parseRange(r *http.Request) (gym.DayRange, error) {
	var rng gym.DayRange
	q := r.URL.Query()
	if raw := q.Get("startDate"); raw != "" {
		from, err := gym.ParseDay(raw, h.Engine.Location())
		if err != nil {
			return rng, &gym.ValidationError{Field: "startDate", Message: err.Error()}
		}
		rng.From = from
	}
	if raw := q.Get("endDate"); raw != "" {
		to, err := gym.ParseDay(raw, h.Engine.Location())
		if err != nil {
			return rng, &gym.ValidationError{Field: "endDate", Message: err.Error()}
		}
		rng.To = to
	}
	return rng, nil
}

// =============================================================================
// FIGHTER & COACH HANDLERS
// =============================================================================

// ListFighters returns all fighters.
func (h *Handler) ListFighters(w http.ResponseWriter, r *http.Request) {
	fighters, err := h.Store.ListFighters(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]FighterDTO, len(fighters))
	for i, f := range fighters {
		dtos[i] = toFighterDTO(f)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetFighter returns one fighter.
func (h *Handler) GetFighter(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	fighter, err := h.Store.GetFighter(r.Context(), gym.FighterID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if fighter == nil {
		h.writeDomainError(w, r, &gym.NotFoundError{Resource: "Fighter", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, toFighterDTO(*fighter))
}

// CreateFighter registers a fighter with a full package.
func (h *Handler) CreateFighter(w http.ResponseWriter, r *http.Request) {
	var req CreateFighterRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ctx := r.Context()

	fighter := gym.Fighter{
		Name:              strings.TrimSpace(req.Name),
		Email:             req.Email,
		Phone:             req.Phone,
		SessionsLeft:      req.TotalSessionCount,
		TotalSessionCount: req.TotalSessionCount,
	}
	if req.CoachID != nil {
		coach, err := h.Store.GetCoach(ctx, gym.CoachID(*req.CoachID))
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		if coach == nil {
			h.writeDomainError(w, r, &gym.NotFoundError{Resource: "Coach", ID: *req.CoachID})
			return
		}
		fighter.CoachID = &coach.ID
		fighter.CoachName = coach.Name
	}

	if err := h.Store.CreateFighter(ctx, &fighter); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFighterDTO(fighter))
}

// ListCoaches returns all coaches with their weekly schedules.
func (h *Handler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	coaches, err := h.Store.ListCoaches(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]CoachDTO, len(coaches))
	for i, c := range coaches {
		dtos[i] = toCoachDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCoach creates a coach and its schedule.
func (h *Handler) CreateCoach(w http.ResponseWriter, r *http.Request) {
	var req CreateCoachRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	coach := gym.Coach{
		Name:      strings.TrimSpace(req.Name),
		Specialty: req.Specialty,
		Schedules: make([]gym.Schedule, len(req.Schedules)),
	}
	for i, s := range req.Schedules {
		wd, _ := gym.ParseWeekday(s.Day)
		coach.Schedules[i] = gym.Schedule{Day: wd.String(), Time: s.Time}
	}

	if err := h.Store.CreateCoach(r.Context(), &coach); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCoachDTO(coach))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// CreatePayment tops up a fighter's balance.
// POST /api/fighters/{id}/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var req TopUpRequest
	if err := readJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	req.CreatedBy = createdBy(r, req.CreatedBy)
	if err := h.validateStruct(&req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	result, err := h.Billing.TopUp(r.Context(), billing.TopUpRequest{
		FighterID: gym.FighterID(id),
		Sessions:  req.Sessions,
		Amount:    req.Amount,
		Method:    req.Method,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Metrics.ObserveAdjustment(&result.SessionAdjustment)
	writeJSON(w, http.StatusCreated, toTopUpResponse(result))
}

// ListPayments returns a fighter's payments, newest first.
// GET /api/fighters/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	payments, err := h.Billing.History(r.Context(), gym.FighterID(id))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		logError(r, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps an error to its status code. Server-side failures
// are logged and answered with a generic message.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logError(r, err)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   clientMessage(err),
		Code:    gym.Kind(err),
		Details: errorDetails(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gym.ErrValidation):
		return http.StatusBadRequest
	case gym.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, gym.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, gym.ErrInsufficientSessions):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func clientMessage(err error) string {
	if gym.IsClientError(err) {
		return err.Error()
	}
	return "Internal server error"
}

func errorDetails(err error) any {
	var (
		verr *gym.ValidationError
		ierr *gym.InsufficientSessionsError
		cerr *gym.ConflictError
	)
	switch {
	case errors.As(err, &verr) && verr.Field != "":
		return map[string]string{"field": verr.Field}
	case errors.As(err, &ierr):
		return map[string]any{
			"fighterId":    ierr.FighterID,
			"fighterName":  ierr.FighterName,
			"sessionsLeft": ierr.SessionsLeft,
		}
	case errors.As(err, &cerr) && cerr.ExistingID != 0:
		return map[string]any{"existingId": cerr.ExistingID}
	}
	return nil
}

func logError(r *http.Request, err error) {
	log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &gym.ValidationError{Field: "id", Message: "Invalid id " + strconv.Quote(raw)}
	}
	return id, nil
}

// createdBy falls back to the admin identity header.
func createdBy(r *http.Request, fromBody string) string {
	if s := strings.TrimSpace(fromBody); s != "" {
		return s
	}
	return strings.TrimSpace(r.Header.Get(AdminUserHeader))
}
