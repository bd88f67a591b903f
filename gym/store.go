/*
store.go - Persistence interfaces

The attendance engine and the billing top-up need a read-modify-write unit
with the store's isolation guarantee. Tx is the handle valid inside that
unit; TxStore opens it. Everything outside WithTx is read-only or plain
registry CRUD with no balance effect.

BALANCE WRITES:
  Tx.AdjustSessions is the only way to move sessions_left and it takes a
  delta, never an absolute value. It returns the balance after the update
  so callers report what was actually written.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via sqlx
*/
package gym

import "context"

// Tx is a transactional view of the store. All reads see the same snapshot
// the writes will commit against.
type Tx interface {
	// Fighter returns nil, nil when the fighter does not exist.
	Fighter(ctx context.Context, id FighterID) (*Fighter, error)
	Coach(ctx context.Context, id CoachID) (*Coach, error)

	Attendance(ctx context.Context, id AttendanceID) (*Attendance, error)
	// AttendanceOnDay returns the fighter's record in the bucket, or nil.
	AttendanceOnDay(ctx context.Context, fighterID FighterID, day Day) (*Attendance, error)

	// InsertAttendance assigns ID and timestamps. Returns ErrDuplicateDay
	// when the (fighter, day) key is taken.
	InsertAttendance(ctx context.Context, a *Attendance) error
	// UpdateAttendance rewrites status, session type, notes and createdBy.
	// Fighter, day and coach snapshot are immutable.
	UpdateAttendance(ctx context.Context, a *Attendance) error
	DeleteAttendance(ctx context.Context, id AttendanceID) error

	// AdjustSessions adds delta to the fighter's balance and returns the new value.
	AdjustSessions(ctx context.Context, fighterID FighterID, delta int) (int, error)
	SetPackageSize(ctx context.Context, fighterID FighterID, total int) error
	InsertPayment(ctx context.Context, p *Payment) error
}

// TxStore executes fn within a transaction. If fn returns an error the
// transaction is rolled back, otherwise it is committed.
type TxStore interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Registry is the fighter/coach CRUD collaborator.
type Registry interface {
	GetFighter(ctx context.Context, id FighterID) (*Fighter, error)
	ListFighters(ctx context.Context) ([]Fighter, error)
	CreateFighter(ctx context.Context, f *Fighter) error

	GetCoach(ctx context.Context, id CoachID) (*Coach, error)
	// ListCoaches returns coaches with their schedules, ordered by name.
	ListCoaches(ctx context.Context) ([]Coach, error)
	CreateCoach(ctx context.Context, c *Coach) error
}

// AttendanceReader serves the read-only attendance queries.
type AttendanceReader interface {
	// ListAttendanceForDay returns the bucket's records, newest first.
	ListAttendanceForDay(ctx context.Context, day Day) ([]Attendance, error)
	// ListAttendanceForFighter returns records in the range, latest day first.
	ListAttendanceForFighter(ctx context.Context, fighterID FighterID, r DayRange) ([]Attendance, error)
}

// PaymentReader lists a fighter's package purchases.
type PaymentReader interface {
	ListPayments(ctx context.Context, fighterID FighterID) ([]Payment, error)
}

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	TxStore
	Registry
	AttendanceReader
	PaymentReader
}
