/*
engine.go - Attendance engine: attendance records coupled to the session ledger

PURPOSE:
  Turns an attendance-marking intent into a durable record plus a consistent
  fighter balance, as one atomic unit. The record and the balance are never
  left out of sync.

INVARIANTS:
  1. At most one record per (fighter, day bucket).
  2. Every session-consuming record in existence corresponds to exactly one
     applied decrement; deleting it or flipping it to absent applies exactly
     one restore. Deltas come from SessionDelta only.
  3. A decrement needs sessionsLeft > 0 unless adminOverride is set. With
     the override the balance may go negative; the raw signed value is
     stored and returned.

ATOMICITY:
  Each operation runs its fighter read, uniqueness check, balance update and
  attendance write inside one store transaction. Validation that needs no
  data (status enum, required fields) happens before the transaction opens.

BULK:
  MarkBulk processes records one after another, each in its own transaction.
  A failure is reported in that record's result and never undoes an earlier
  success.

RETRIES:
  When the store reports gym.ErrConcurrentModification the whole
  transaction is re-run from its first read, up to maxAttempts times.
*/
package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/warp/gym-ledger/gym"
)

const defaultMaxAttempts = 3

// Store is what the engine needs from persistence.
type Store interface {
	gym.TxStore
	gym.Registry
	gym.AttendanceReader
}

// Engine implements the attendance operations.
type Engine struct {
	store       Store
	loc         *time.Location
	now         func() time.Time
	maxAttempts int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the calendar used for day buckets. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxAttempts bounds retries on concurrent modification.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewEngine creates an attendance engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		loc:         time.Local,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the calendar used for day buckets.
func (e *Engine) Location() *time.Location { return e.loc }

// Today is the current day bucket.
func (e *Engine) Today() gym.Day { return gym.DayOf(e.now(), e.loc) }

// ParseDay parses a request date in the engine's calendar. Empty means today.
func (e *Engine) ParseDay(raw string) (gym.Day, error) {
	if strings.TrimSpace(raw) == "" {
		return e.Today(), nil
	}
	return gym.ParseDay(raw, e.loc)
}

// =============================================================================
// REQUEST / RESULT TYPES
// =============================================================================

// MarkRequest is a single attendance intent.
type MarkRequest struct {
	FighterID gym.FighterID
	// CoachID is only used as the snapshot when the fighter has no coach.
	CoachID       gym.CoachID
	Status        string
	SessionType   string
	Notes         string
	Day           gym.Day // zero means today
	CreatedBy     string
	AdminOverride bool
}

// MarkResult is the outcome of a successful mark. SessionAdjustment is nil
// when the balance did not move.
type MarkResult struct {
	Attendance        gym.Attendance
	SessionAdjustment *gym.SessionAdjustment
	Updated           bool // an existing same-day record was changed in place
}

// BulkRecord is one entry of a bulk submission.
type BulkRecord struct {
	FighterID   gym.FighterID
	Status      string
	SessionType string
	Notes       string
	CreatedBy   string
}

// BulkRequest marks many fighters for one day.
type BulkRequest struct {
	Records       []BulkRecord
	Day           gym.Day // zero means today
	AdminOverride bool
}

// BulkResult is the per-record outcome. Exactly one of Result / Err is set.
type BulkResult struct {
	FighterID gym.FighterID
	Result    *MarkResult
	Err       error
}

// Success reports whether the record was applied.
func (r BulkResult) Success() bool { return r.Err == nil }

// =============================================================================
// MARK SINGLE
// =============================================================================

// MarkSingle creates one record. A second record for the same fighter and
// day fails with *gym.ConflictError; the caller must use MarkBulk to update.
func (e *Engine) MarkSingle(ctx context.Context, req MarkRequest) (*MarkResult, error) {
	status, err := e.validate(req.FighterID, req.Status, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	day := req.Day
	if day.IsZero() {
		day = e.Today()
	}

	var result *MarkResult
	err = e.inTx(ctx, func(tx gym.Tx) error {
		fighter, err := loadFighter(ctx, tx, req.FighterID)
		if err != nil {
			return err
		}

		existing, err := tx.AttendanceOnDay(ctx, fighter.ID, day)
		if err != nil {
			return err
		}
		if existing != nil {
			return &gym.ConflictError{FighterID: fighter.ID, Day: day, ExistingID: existing.ID}
		}

		result, err = e.create(ctx, tx, fighter, createParams{
			status:        status,
			day:           day,
			sessionType:   req.SessionType,
			notes:         req.Notes,
			createdBy:     req.CreatedBy,
			fallbackCoach: req.CoachID,
			adminOverride: req.AdminOverride,
		})
		if errors.Is(err, gym.ErrDuplicateDay) {
			return &gym.ConflictError{FighterID: fighter.ID, Day: day}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// MARK BULK
// =============================================================================

// MarkBulk applies each record independently and returns one result per
// input record, in input order. An existing same-day record is updated in
// place; otherwise a new one is created.
func (e *Engine) MarkBulk(ctx context.Context, req BulkRequest) []BulkResult {
	day := req.Day
	if day.IsZero() {
		day = e.Today()
	}

	results := make([]BulkResult, len(req.Records))
	for i, rec := range req.Records {
		results[i].FighterID = rec.FighterID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Result, results[i].Err = e.markOne(ctx, rec, day, req.AdminOverride)
	}
	return results
}

func (e *Engine) markOne(ctx context.Context, rec BulkRecord, day gym.Day, adminOverride bool) (*MarkResult, error) {
	status, err := e.validate(rec.FighterID, rec.Status, rec.CreatedBy)
	if err != nil {
		return nil, err
	}

	var result *MarkResult
	err = e.inTx(ctx, func(tx gym.Tx) error {
		fighter, err := loadFighter(ctx, tx, rec.FighterID)
		if err != nil {
			return err
		}

		existing, err := tx.AttendanceOnDay(ctx, fighter.ID, day)
		if err != nil {
			return err
		}
		if existing == nil {
			result, err = e.create(ctx, tx, fighter, createParams{
				status:        status,
				day:           day,
				sessionType:   rec.SessionType,
				notes:         rec.Notes,
				createdBy:     rec.CreatedBy,
				adminOverride: adminOverride,
			})
			if errors.Is(err, gym.ErrDuplicateDay) {
				// Lost a race with another create: re-run and take the update path.
				return gym.ErrConcurrentModification
			}
			return err
		}

		adj, err := e.settle(ctx, tx, fighter, existing.Status, status, adminOverride)
		if err != nil {
			return err
		}
		existing.Status = status
		existing.SessionType = sessionTypeOrDefault(rec.SessionType)
		existing.Notes = rec.Notes
		existing.CreatedBy = rec.CreatedBy
		if err := tx.UpdateAttendance(ctx, existing); err != nil {
			return err
		}
		result = &MarkResult{Attendance: *existing, SessionAdjustment: adj, Updated: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteAttendance removes a record and restores the session it consumed,
// if any.
func (e *Engine) DeleteAttendance(ctx context.Context, id gym.AttendanceID) (*gym.SessionAdjustment, error) {
	var adj *gym.SessionAdjustment
	err := e.inTx(ctx, func(tx gym.Tx) error {
		record, err := tx.Attendance(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return &gym.NotFoundError{Resource: "Attendance record", ID: int64(id)}
		}

		fighter, err := loadFighter(ctx, tx, record.FighterID)
		if err != nil {
			return err
		}
		adj, err = e.settle(ctx, tx, fighter, record.Status, gym.StatusNone, false)
		if err != nil {
			return err
		}
		return tx.DeleteAttendance(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

type createParams struct {
	status        gym.Status
	day           gym.Day
	sessionType   string
	notes         string
	createdBy     string
	fallbackCoach gym.CoachID
	adminOverride bool
}

// create inserts the record with the coach snapshot and then applies the
// delta. Runs inside the caller's transaction, so a refused deduction rolls
// the insert back with it.
func (e *Engine) create(ctx context.Context, tx gym.Tx, fighter *gym.Fighter, p createParams) (*MarkResult, error) {
	coachID, coachName := fighter.CoachSnapshot()
	if coachID == 0 && p.fallbackCoach != 0 {
		coach, err := tx.Coach(ctx, p.fallbackCoach)
		if err != nil {
			return nil, err
		}
		if coach == nil {
			return nil, &gym.NotFoundError{Resource: "Coach", ID: int64(p.fallbackCoach)}
		}
		coachID, coachName = coach.ID, coach.Name
	}

	record := &gym.Attendance{
		FighterID:   fighter.ID,
		CoachID:     coachID,
		CoachName:   coachName,
		Day:         p.day,
		Status:      p.status,
		SessionType: sessionTypeOrDefault(p.sessionType),
		Notes:       p.notes,
		CreatedBy:   p.createdBy,
	}
	if err := tx.InsertAttendance(ctx, record); err != nil {
		return nil, err
	}

	adj, err := e.settle(ctx, tx, fighter, gym.StatusNone, p.status, p.adminOverride)
	if err != nil {
		return nil, err
	}
	return &MarkResult{Attendance: *record, SessionAdjustment: adj}, nil
}

// settle applies the transition delta to the fighter's balance, behind the
// deduction gate. Returns nil when the balance does not move.
func (e *Engine) settle(ctx context.Context, tx gym.Tx, fighter *gym.Fighter, from, to gym.Status, adminOverride bool) (*gym.SessionAdjustment, error) {
	delta := SessionDelta(from, to)
	if delta == 0 {
		return nil, nil
	}
	if err := checkBalance(fighter, delta, adminOverride); err != nil {
		return nil, err
	}
	left, err := tx.AdjustSessions(ctx, fighter.ID, delta)
	if err != nil {
		return nil, err
	}
	fighter.SessionsLeft = left
	return &gym.SessionAdjustment{Delta: delta, NewSessionsLeft: left}, nil
}

// validate checks everything that needs no data, before a transaction opens.
func (e *Engine) validate(fighterID gym.FighterID, rawStatus, createdBy string) (gym.Status, error) {
	if fighterID <= 0 {
		return gym.StatusNone, &gym.ValidationError{Field: "fighterId", Message: "fighterId is required"}
	}
	status, err := gym.ParseStatus(rawStatus)
	if err != nil {
		return gym.StatusNone, err
	}
	if strings.TrimSpace(createdBy) == "" {
		return gym.StatusNone, &gym.ValidationError{Field: "createdBy", Message: "createdBy is required"}
	}
	return status, nil
}

// inTx runs fn in a fresh transaction, retrying on concurrent modification.
func (e *Engine) inTx(ctx context.Context, fn func(gym.Tx) error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.store.WithTx(ctx, fn)
		if !gym.IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func loadFighter(ctx context.Context, tx gym.Tx, id gym.FighterID) (*gym.Fighter, error) {
	fighter, err := tx.Fighter(ctx, id)
	if err != nil {
		return nil, err
	}
	if fighter == nil {
		return nil, &gym.NotFoundError{Resource: "Fighter", ID: int64(id)}
	}
	return fighter, nil
}

func sessionTypeOrDefault(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return gym.DefaultSessionType
	}
	return s
}
