/*
Package sqlite provides a SQLite-backed implementation of the gym storage
interfaces.

INTERFACES IMPLEMENTED:
  gym.TxStore:          WithTx, the atomic read-modify-write unit
  gym.Registry:         fighters, coaches, schedules
  gym.AttendanceReader: day and history queries
  gym.PaymentReader:    package purchases

KEY TABLES:
  fighters:        member records; sessions_left is the session ledger
  coaches:         coach records
  coach_schedules: weekly slots (day name + time) per coach
  attendance:      one row per fighter per day bucket
  payments:        package top-ups

DAY UNIQUENESS:
  attendance.day holds the normalized bucket key (YYYY-MM-DD in the
  engine's calendar). idx_attendance_fighter_day makes (fighter_id, day)
  unique, so two racing creates cannot both commit even though the engine
  also checks inside the transaction. Reads rebuild the bucket from day in
  the store's location (WithLocation); date is the bucket start, kept for
  readers of the raw table.

CONCURRENCY:
  The pool is capped at one connection and transactions open with
  BEGIN IMMEDIATE (_txlock=immediate), so a transaction holds the write lock
  from its first read. Balance read-then-write therefore cannot interleave
  with another writer. SQLITE_BUSY / SQLITE_LOCKED surface as
  gym.ErrConcurrentModification for the caller to retry.

TIMESTAMPS:
  Stored as fixed-width UTC text (timeLayout) so lexical order is
  chronological order.

USAGE:
  store, err := sqlite.New("./data/gym.db", sqlite.WithLocation(loc))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := attendance.NewEngine(store, attendance.WithLocation(loc))
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/gym-ledger/gym"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements the gym storage interfaces using SQLite.
type Store struct {
	db  *sqlx.DB
	loc *time.Location
}

var _ gym.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the calendar that stored day keys are read back in.
// It must match the engine's calendar. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, loc: time.Local}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS coaches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		specialty TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS coach_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		coach_id INTEGER NOT NULL REFERENCES coaches(id) ON DELETE CASCADE,
		day TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_coach_schedules_coach
		ON coach_schedules(coach_id, position);

	CREATE TABLE IF NOT EXISTS fighters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		sessions_left INTEGER NOT NULL DEFAULT 0,
		total_session_count INTEGER NOT NULL DEFAULT 0,
		coach_id INTEGER REFERENCES coaches(id) ON DELETE SET NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fighters_coach ON fighters(coach_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fighter_id INTEGER NOT NULL REFERENCES fighters(id) ON DELETE CASCADE,
		coach_id INTEGER REFERENCES coaches(id) ON DELETE SET NULL,
		coach_name TEXT NOT NULL,
		day TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late')),
		session_type TEXT NOT NULL DEFAULT 'group',
		notes TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One record per fighter per day bucket
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_fighter_day
		ON attendance(fighter_id, day);

	CREATE INDEX IF NOT EXISTS idx_attendance_day
		ON attendance(day, created_at DESC);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL UNIQUE,
		fighter_id INTEGER NOT NULL REFERENCES fighters(id) ON DELETE CASCADE,
		sessions INTEGER NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_fighter
		ON payments(fighter_id, created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Reset deletes all data. Used by demo scenarios and tests.
func (s *Store) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"attendance", "payments", "fighters", "coach_schedules", "coaches"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		// Restart AUTOINCREMENT counters so scenario ids are stable.
		_, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence")
		return err
	})
}

// =============================================================================
// TRANSACTIONAL STORE (gym.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
// If fn returns an error the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(gym.Tx) error) error {
	return s.withTx(ctx, func(sqlTx *sqlx.Tx) error {
		return fn(&txStore{tx: sqlTx, loc: s.loc})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if mapped := mapError(err); gym.IsRetryable(mapped) {
			return mapped
		}
		return &gym.TransactionError{Op: "commit", Err: err}
	}
	return nil
}

type txStore struct {
	tx  *sqlx.Tx
	loc *time.Location
}

func (ts *txStore) Fighter(ctx context.Context, id gym.FighterID) (*gym.Fighter, error) {
	return getFighter(ctx, ts.tx, id)
}

func (ts *txStore) Coach(ctx context.Context, id gym.CoachID) (*gym.Coach, error) {
	return getCoach(ctx, ts.tx, id)
}

func (ts *txStore) Attendance(ctx context.Context, id gym.AttendanceID) (*gym.Attendance, error) {
	return getAttendance(ctx, ts.tx, ts.loc, "WHERE id = ?", id)
}

func (ts *txStore) AttendanceOnDay(ctx context.Context, fighterID gym.FighterID, day gym.Day) (*gym.Attendance, error) {
	return getAttendance(ctx, ts.tx, ts.loc, "WHERE fighter_id = ? AND day = ?", fighterID, day.Key())
}

func (ts *txStore) InsertAttendance(ctx context.Context, a *gym.Attendance) error {
	now := time.Now().UTC()
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO attendance
		(fighter_id, coach_id, coach_name, day, date, status, session_type, notes, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.FighterID,
		nullID(int64(a.CoachID)),
		a.CoachName,
		a.Day.Key(),
		a.Day.Start().Format(time.RFC3339),
		a.Status,
		a.SessionType,
		a.Notes,
		a.CreatedBy,
		now.Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert attendance: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = gym.AttendanceID(id)
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (ts *txStore) UpdateAttendance(ctx context.Context, a *gym.Attendance) error {
	now := time.Now().UTC()
	res, err := ts.tx.ExecContext(ctx, `
		UPDATE attendance
		SET status = ?, session_type = ?, notes = ?, created_by = ?, updated_at = ?
		WHERE id = ?
	`, a.Status, a.SessionType, a.Notes, a.CreatedBy, now.Format(timeLayout), a.ID)
	if err != nil {
		return mapError(fmt.Errorf("failed to update attendance: %w", err))
	}
	if err := expectOneRow(res, "Attendance record", int64(a.ID)); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

func (ts *txStore) DeleteAttendance(ctx context.Context, id gym.AttendanceID) error {
	res, err := ts.tx.ExecContext(ctx, "DELETE FROM attendance WHERE id = ?", id)
	if err != nil {
		return mapError(fmt.Errorf("failed to delete attendance: %w", err))
	}
	return expectOneRow(res, "Attendance record", int64(id))
}

func (ts *txStore) AdjustSessions(ctx context.Context, fighterID gym.FighterID, delta int) (int, error) {
	var left int
	err := ts.tx.GetContext(ctx, &left, `
		UPDATE fighters
		SET sessions_left = sessions_left + ?, updated_at = ?
		WHERE id = ?
		RETURNING sessions_left
	`, delta, time.Now().UTC().Format(timeLayout), fighterID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &gym.NotFoundError{Resource: "Fighter", ID: int64(fighterID)}
	}
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to adjust sessions: %w", err))
	}
	return left, nil
}

func (ts *txStore) SetPackageSize(ctx context.Context, fighterID gym.FighterID, total int) error {
	res, err := ts.tx.ExecContext(ctx,
		"UPDATE fighters SET total_session_count = ?, updated_at = ? WHERE id = ?",
		total, time.Now().UTC().Format(timeLayout), fighterID)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(res, "Fighter", int64(fighterID))
}

func (ts *txStore) InsertPayment(ctx context.Context, p *gym.Payment) error {
	now := time.Now().UTC()
	res, err := ts.tx.ExecContext(ctx, `
		INSERT INTO payments (reference, fighter_id, sessions, amount, method, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Reference, p.FighterID, p.Sessions, p.Amount.String(), p.Method, p.CreatedBy, now.Format(timeLayout))
	if err != nil {
		return mapError(fmt.Errorf("failed to insert payment: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = gym.PaymentID(id)
	p.CreatedAt = now
	return nil
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// mapError translates driver errors into gym sentinels. Anything it does not
// recognize is returned unchanged.
func mapError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(se.Error(), "attendance.fighter_id"):
		return fmt.Errorf("%w: %v", gym.ErrDuplicateDay, err)
	case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", gym.ErrConcurrentModification, err)
	}
	return err
}

func expectOneRow(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &gym.NotFoundError{Resource: resource, ID: id}
	}
	return nil
}

// Helper functions

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
