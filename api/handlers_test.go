/*
handlers_test.go - HTTP tests for the API handlers

Tests drive the full router (middleware included) over an in-memory store.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/api"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	t       *testing.T
	handler *api.Handler
	store   *sqlite.Store
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	store, err := sqlite.New(":memory:", sqlite.WithLocation(time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := api.NewHandler(store, api.Options{
		Location: time.UTC,
		Clock:    func() time.Time { return time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC) },
	})
	return &testServer{t: t, handler: h, store: store, router: api.NewRouter(h)}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) fighter(name string, sessionsLeft, total int) gym.FighterID {
	f := &gym.Fighter{Name: name, SessionsLeft: sessionsLeft, TotalSessionCount: total}
	require.NoError(s.t, s.store.CreateFighter(context.Background(), f))
	return f.ID
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestMarkThenDelete_RestoresBalance(t *testing.T) {
	// GIVEN: Fighter F with sessionsLeft=3, totalSessionCount=10
	// WHEN: POST present for 2024-03-01, then DELETE it
	// THEN: 2 after the mark, {delta:1, newSessionsLeft:3} after the delete
	s := newTestServer(t)
	id := s.fighter("Lena", 3, 10)

	rec := s.do("POST", "/api/attendance", map[string]any{
		"fighterId": id, "status": "present", "date": "2024-03-01", "createdBy": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.MarkAttendanceResponse](t, rec)
	require.NotNil(t, created.SessionAdjustment)
	assert.Equal(t, 2, created.SessionAdjustment.NewSessionsLeft)
	assert.Equal(t, -1, created.SessionAdjustment.Delta)
	assert.Equal(t, "2024-03-01T00:00:00Z", created.Attendance.Date)
	assert.Equal(t, "Unassigned", created.Attendance.CoachName)
	assert.Nil(t, created.Attendance.CoachID)

	rec = s.do("DELETE", fmt.Sprintf("/api/attendance/%d", created.Attendance.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decode[api.DeleteAttendanceResponse](t, rec)
	assert.NotEmpty(t, deleted.Message)
	require.NotNil(t, deleted.SessionAdjustment)
	assert.Equal(t, api.SessionAdjustmentDTO{Delta: 1, NewSessionsLeft: 3}, *deleted.SessionAdjustment)
}

func TestMarkAttendance_Defaults(t *testing.T) {
	// No status, no date, createdBy from the admin header
	s := newTestServer(t)
	id := s.fighter("Lena", 3, 10)

	rec := s.do("POST", "/api/attendance", map[string]any{"fighterId": id}, api.AdminUserHeader, "desk")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[api.MarkAttendanceResponse](t, rec)
	assert.Equal(t, "present", created.Attendance.Status)
	assert.Equal(t, "desk", created.Attendance.CreatedBy)
	assert.Equal(t, "2024-03-01T00:00:00Z", created.Attendance.Date)
	assert.Equal(t, "group", created.Attendance.SessionType)
}

func TestMarkAttendance_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	lena := s.fighter("Lena", 3, 10)
	broke := s.fighter("Clara Duval", 0, 10)

	_ = s.do("POST", "/api/attendance", map[string]any{"fighterId": lena, "date": "2024-03-01", "createdBy": "admin"})

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
		text   string
	}{
		{"bad status", map[string]any{"fighterId": lena, "status": "excused", "createdBy": "admin"},
			http.StatusBadRequest, "validation_error", "Must be one of: present, absent, late"},
		{"missing createdBy", map[string]any{"fighterId": lena},
			http.StatusBadRequest, "validation_error", "createdBy is required"},
		{"bad date", map[string]any{"fighterId": lena, "date": "March 1", "createdBy": "admin"},
			http.StatusBadRequest, "validation_error", "Invalid date"},
		{"unknown fighter", map[string]any{"fighterId": 999, "createdBy": "admin"},
			http.StatusNotFound, "not_found", "Fighter not found"},
		{"same day", map[string]any{"fighterId": lena, "date": "2024-03-01", "createdBy": "admin"},
			http.StatusConflict, "conflict", "already has an attendance record for this date"},
		{"no sessions", map[string]any{"fighterId": broke, "createdBy": "admin"},
			http.StatusUnprocessableEntity, "insufficient_sessions", "Clara Duval has no sessions left (current balance: 0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do("POST", "/api/attendance", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[api.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.Contains(t, resp.Error, tt.text)
		})
	}
}

func TestMarkAttendance_ErrorDetails(t *testing.T) {
	s := newTestServer(t)
	lena := s.fighter("Lena", 3, 10)
	broke := s.fighter("Clara Duval", 0, 10)

	first := s.do("POST", "/api/attendance", map[string]any{"fighterId": lena, "date": "2024-03-01", "createdBy": "admin"})
	require.Equal(t, http.StatusCreated, first.Code)
	existing := decode[api.MarkAttendanceResponse](t, first).Attendance.ID

	rec := s.do("POST", "/api/attendance", map[string]any{"fighterId": broke, "createdBy": "admin"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]any{
		"fighterId": float64(broke), "fighterName": "Clara Duval", "sessionsLeft": float64(0),
	}, decode[api.ErrorResponse](t, rec).Details)

	rec = s.do("POST", "/api/attendance", map[string]any{"fighterId": lena, "date": "2024-03-01", "createdBy": "admin"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, map[string]any{"existingId": float64(existing)}, decode[api.ErrorResponse](t, rec).Details)

	rec = s.do("POST", "/api/attendance", map[string]any{"fighterId": lena, "status": "excused", "createdBy": "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"field": "status"}, decode[api.ErrorResponse](t, rec).Details)

	rec = s.do("POST", "/api/attendance", map[string]any{"fighterId": 999, "createdBy": "admin"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, decode[api.ErrorResponse](t, rec).Details)
}

func TestMarkAttendance_OverrideAllowsNegative(t *testing.T) {
	s := newTestServer(t)
	id := s.fighter("Jonas", 0, 10)

	rec := s.do("POST", "/api/attendance", map[string]any{
		"fighterId": id, "status": "late", "createdBy": "admin", "adminOverride": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, -1, decode[api.MarkAttendanceResponse](t, rec).SessionAdjustment.NewSessionsLeft)
}

func TestMarkBulk_PerRecordResults(t *testing.T) {
	s := newTestServer(t)
	a := s.fighter("Lena", 3, 10)
	b := s.fighter("Marcus", 3, 10)

	rec := s.do("POST", "/api/attendance/bulk", map[string]any{
		"date": "2024-03-01",
		"attendanceRecords": []map[string]any{
			{"fighterId": a, "status": "present", "createdBy": "admin"},
			{"fighterId": 999, "status": "present", "createdBy": "admin"},
			{"fighterId": b, "status": "absent"},
		},
	}, api.AdminUserHeader, "coach-ana")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	results := decode[[]api.BulkResultDTO](t, rec)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	require.NotNil(t, results[0].SessionAdjustment)
	assert.Equal(t, 2, results[0].SessionAdjustment.NewSessionsLeft)

	assert.False(t, results[1].Success)
	assert.Equal(t, int64(999), results[1].FighterID)
	assert.Equal(t, "Fighter not found", results[1].Error)
	assert.Equal(t, "not_found", results[1].Code)

	assert.True(t, results[2].Success)
	assert.Nil(t, results[2].SessionAdjustment)
	assert.Equal(t, "coach-ana", results[2].Attendance.CreatedBy)

	// Same payload flipped: update path
	rec = s.do("POST", "/api/attendance/bulk", map[string]any{
		"date":              "2024-03-01",
		"attendanceRecords": []map[string]any{{"fighterId": b, "status": "present", "createdBy": "admin"}},
	})
	results = decode[[]api.BulkResultDTO](t, rec)
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)
	assert.Equal(t, -1, results[0].SessionAdjustment.Delta)
}

func TestMarkBulk_EmptyIsRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("POST", "/api/attendance/bulk", map[string]any{"attendanceRecords": []any{}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "attendanceRecords", decode[api.ErrorResponse](t, rec).Details.(map[string]any)["field"])
}

func TestListAttendance_EmbedsFighterAndCoach(t *testing.T) {
	s := newTestServer(t)
	rec := s.do("POST", "/api/coaches", map[string]any{
		"name": "Sakda", "schedules": []map[string]any{{"day": "friday", "time": "18:00"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	coach := decode[api.CoachDTO](t, rec)
	assert.Equal(t, "Friday", coach.Schedules[0].Day)

	rec = s.do("POST", "/api/fighters", map[string]any{"name": "Lena", "totalSessionCount": 10, "coachId": coach.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fighter := decode[api.FighterDTO](t, rec)
	assert.Equal(t, 10, fighter.SessionsLeft)

	rec = s.do("POST", "/api/attendance", map[string]any{"fighterId": fighter.ID, "createdBy": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do("GET", "/api/attendance?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.AttendanceDTO](t, rec)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Fighter)
	require.NotNil(t, list[0].Coach)
	assert.Equal(t, "Lena", list[0].Fighter.Name)
	assert.Equal(t, 9, list[0].Fighter.SessionsLeft)
	assert.Equal(t, "Sakda", list[0].Coach.Name)

	// Without a date: today (the fixed clock is 2024-03-01)
	rec = s.do("GET", "/api/attendance", nil)
	assert.Len(t, decode[[]api.AttendanceDTO](t, rec), 1)

	rec = s.do("GET", "/api/attendance/daily-overview?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[[]api.CoachOverviewDTO](t, rec)
	require.Len(t, overview, 1)
	require.Len(t, overview[0].Fighters, 1)
	assert.Len(t, overview[0].Fighters[0].Attendances, 1)

	rec = s.do("GET", "/api/attendance/daily-overview?date=2024-03-02", nil)
	assert.Empty(t, decode[[]api.CoachOverviewDTO](t, rec), "nobody coaches on Saturday")
}

func TestFighterHistory_DateFilter(t *testing.T) {
	s := newTestServer(t)
	id := s.fighter("Lena", 10, 10)

	for _, d := range []string{"2023-12-31", "2024-01-01", "2024-01-20", "2024-01-31", "2024-02-01"} {
		rec := s.do("POST", "/api/attendance", map[string]any{"fighterId": id, "date": d, "createdBy": "admin"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do("GET", fmt.Sprintf("/api/attendance/%d?startDate=2024-01-01&endDate=2024-01-31", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := decode[api.HistoryResponse](t, rec)

	require.Len(t, history.Attendance, 3)
	for _, a := range history.Attendance {
		assert.True(t, strings.HasPrefix(a.Date, "2024-01-"), a.Date)
	}
	assert.Equal(t, 3, history.Summary.TotalRecords)
	assert.Equal(t, history.Summary.TotalRecords, history.Summary.Present+history.Summary.Late+history.Summary.Absent)

	rec = s.do("GET", "/api/attendance/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("GET", fmt.Sprintf("/api/attendance/%d?startDate=yesterday", id), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAttendance_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("DELETE", "/api/attendance/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Attendance record not found", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do("DELETE", "/api/attendance/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REGISTRY, PAYMENTS, OPERATIONS
// =============================================================================

func TestCreateFighter_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("POST", "/api/fighters", map[string]any{"name": "", "totalSessionCount": 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do("POST", "/api/fighters", map[string]any{"name": "Lena", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/fighters", map[string]any{"name": "Lena", "coachId": 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do("POST", "/api/coaches", map[string]any{"name": "Ana", "schedules": []map[string]any{{"day": "Someday", "time": "18:00"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do("POST", "/api/coaches", map[string]any{"name": "Ana", "schedules": []map[string]any{{"day": "Monday", "time": "6pm"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPayments_TopUp(t *testing.T) {
	s := newTestServer(t)
	id := s.fighter("Jonas", -1, 10)

	rec := s.do("POST", fmt.Sprintf("/api/fighters/%d/payments", id),
		map[string]any{"sessions": 10, "amount": "150.5", "method": "card"}, api.AdminUserHeader, "desk")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[api.TopUpResponse](t, rec)
	assert.Equal(t, api.SessionAdjustmentDTO{Delta: 10, NewSessionsLeft: 9}, resp.SessionAdjustment)
	assert.Equal(t, "150.50", resp.Payment.Amount)
	assert.Equal(t, "desk", resp.Payment.CreatedBy)

	rec = s.do("GET", fmt.Sprintf("/api/fighters/%d/payments", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.PaymentDTO](t, rec), 1)

	rec = s.do("GET", fmt.Sprintf("/api/fighters/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fighter := decode[api.FighterDTO](t, rec)
	assert.Equal(t, 9, fighter.SessionsLeft)
	assert.Equal(t, 10, fighter.TotalSessionCount)

	rec = s.do("POST", fmt.Sprintf("/api/fighters/%d/payments", id), map[string]any{"sessions": 0, "createdBy": "desk"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	id := s.fighter("Lena", 3, 10)
	s.do("POST", "/api/attendance", map[string]any{"fighterId": id, "createdBy": "admin"})

	rec = s.do("GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gym_attendance_marks_total{operation="single",outcome="success",status="present"} 1`)
	assert.Contains(t, body, `gym_session_adjustments_total{direction="deduct"} 1`)
	assert.Contains(t, body, `route="/api/attendance`)
}
