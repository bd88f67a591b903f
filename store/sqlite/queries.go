package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// ROW TYPES
// =============================================================================

type fighterRow struct {
	ID                int64         `db:"id"`
	Name              string        `db:"name"`
	Email             string        `db:"email"`
	Phone             string        `db:"phone"`
	SessionsLeft      int           `db:"sessions_left"`
	TotalSessionCount int           `db:"total_session_count"`
	CoachID           sql.NullInt64 `db:"coach_id"`
	CoachName         string        `db:"coach_name"`
	CreatedAt         string        `db:"created_at"`
	UpdatedAt         string        `db:"updated_at"`
}

func (r fighterRow) toDomain() gym.Fighter {
	f := gym.Fighter{
		ID:                gym.FighterID(r.ID),
		Name:              r.Name,
		Email:             r.Email,
		Phone:             r.Phone,
		SessionsLeft:      r.SessionsLeft,
		TotalSessionCount: r.TotalSessionCount,
		CoachName:         r.CoachName,
		CreatedAt:         parseTime(r.CreatedAt),
		UpdatedAt:         parseTime(r.UpdatedAt),
	}
	if r.CoachID.Valid {
		id := gym.CoachID(r.CoachID.Int64)
		f.CoachID = &id
	}
	return f
}

type coachRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Specialty string `db:"specialty"`
	CreatedAt string `db:"created_at"`
}

type scheduleRow struct {
	ID      int64  `db:"id"`
	CoachID int64  `db:"coach_id"`
	Day     string `db:"day"`
	Time    string `db:"time"`
}

type attendanceRow struct {
	ID          int64         `db:"id"`
	FighterID   int64         `db:"fighter_id"`
	CoachID     sql.NullInt64 `db:"coach_id"`
	CoachName   string        `db:"coach_name"`
	Day         string        `db:"day"`
	Date        string        `db:"date"`
	Status      string        `db:"status"`
	SessionType string        `db:"session_type"`
	Notes       string        `db:"notes"`
	CreatedBy   string        `db:"created_by"`
	CreatedAt   string        `db:"created_at"`
	UpdatedAt   string        `db:"updated_at"`
}

// toDomain rebuilds the bucket from the day key; date is informational.
func (r attendanceRow) toDomain(loc *time.Location) gym.Attendance {
	day, _ := gym.ParseDay(r.Day, loc)
	return gym.Attendance{
		ID:          gym.AttendanceID(r.ID),
		FighterID:   gym.FighterID(r.FighterID),
		CoachID:     gym.CoachID(r.CoachID.Int64),
		CoachName:   r.CoachName,
		Day:         day,
		Status:      gym.Status(r.Status),
		SessionType: r.SessionType,
		Notes:       r.Notes,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

type paymentRow struct {
	ID        int64  `db:"id"`
	Reference string `db:"reference"`
	FighterID int64  `db:"fighter_id"`
	Sessions  int    `db:"sessions"`
	Amount    string `db:"amount"`
	Method    string `db:"method"`
	CreatedBy string `db:"created_by"`
	CreatedAt string `db:"created_at"`
}

func (r paymentRow) toDomain() (gym.Payment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return gym.Payment{}, fmt.Errorf("payment %d: bad amount %q: %w", r.ID, r.Amount, err)
	}
	return gym.Payment{
		ID:        gym.PaymentID(r.ID),
		Reference: r.Reference,
		FighterID: gym.FighterID(r.FighterID),
		Sessions:  r.Sessions,
		Amount:    amount,
		Method:    r.Method,
		CreatedBy: r.CreatedBy,
		CreatedAt: parseTime(r.CreatedAt),
	}, nil
}

// =============================================================================
// SHARED QUERIES (usable with *sqlx.DB and *sqlx.Tx)
// =============================================================================

const fighterSelect = `
	SELECT f.id, f.name, f.email, f.phone, f.sessions_left, f.total_session_count,
	       f.coach_id, COALESCE(c.name, '') AS coach_name, f.created_at, f.updated_at
	FROM fighters f
	LEFT JOIN coaches c ON c.id = f.coach_id
`

const attendanceSelect = `
	SELECT id, fighter_id, coach_id, coach_name, day, date, status, session_type,
	       notes, created_by, created_at, updated_at
	FROM attendance
`

func getFighter(ctx context.Context, q sqlx.QueryerContext, id gym.FighterID) (*gym.Fighter, error) {
	var row fighterRow
	err := sqlx.GetContext(ctx, q, &row, fighterSelect+" WHERE f.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get fighter: %w", err))
	}
	f := row.toDomain()
	return &f, nil
}

func getCoach(ctx context.Context, q sqlx.QueryerContext, id gym.CoachID) (*gym.Coach, error) {
	var row coachRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT id, name, specialty, created_at FROM coaches WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get coach: %w", err))
	}

	var schedules []scheduleRow
	err = sqlx.SelectContext(ctx, q, &schedules,
		"SELECT id, coach_id, day, time FROM coach_schedules WHERE coach_id = ? ORDER BY position, id", id)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to load schedules: %w", err))
	}
	c := toCoach(row, schedules)
	return &c, nil
}

func getAttendance(ctx context.Context, q sqlx.QueryerContext, loc *time.Location, where string, args ...any) (*gym.Attendance, error) {
	var row attendanceRow
	err := sqlx.GetContext(ctx, q, &row, attendanceSelect+where, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to get attendance: %w", err))
	}
	a := row.toDomain(loc)
	return &a, nil
}

func selectAttendance(ctx context.Context, q sqlx.QueryerContext, loc *time.Location, query string, args ...any) ([]gym.Attendance, error) {
	var rows []attendanceRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapError(fmt.Errorf("failed to query attendance: %w", err))
	}
	records := make([]gym.Attendance, len(rows))
	for i, r := range rows {
		records[i] = r.toDomain(loc)
	}
	return records, nil
}

func toCoach(row coachRow, schedules []scheduleRow) gym.Coach {
	c := gym.Coach{
		ID:        gym.CoachID(row.ID),
		Name:      row.Name,
		Specialty: row.Specialty,
		CreatedAt: parseTime(row.CreatedAt),
		Schedules: make([]gym.Schedule, 0, len(schedules)),
	}
	for _, s := range schedules {
		c.Schedules = append(c.Schedules, gym.Schedule{
			ID:      gym.ScheduleID(s.ID),
			CoachID: gym.CoachID(s.CoachID),
			Day:     s.Day,
			Time:    s.Time,
		})
	}
	return c
}

// =============================================================================
// REGISTRY (gym.Registry)
// =============================================================================

// GetFighter retrieves a fighter by ID. Returns nil, nil if missing.
func (s *Store) GetFighter(ctx context.Context, id gym.FighterID) (*gym.Fighter, error) {
	return getFighter(ctx, s.db, id)
}

// ListFighters returns all fighters ordered by name.
func (s *Store) ListFighters(ctx context.Context) ([]gym.Fighter, error) {
	var rows []fighterRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, fighterSelect+" ORDER BY f.name, f.id"); err != nil {
		return nil, mapError(fmt.Errorf("failed to list fighters: %w", err))
	}
	fighters := make([]gym.Fighter, len(rows))
	for i, r := range rows {
		fighters[i] = r.toDomain()
	}
	return fighters, nil
}

// CreateFighter inserts a fighter and fills in its ID and timestamps.
func (s *Store) CreateFighter(ctx context.Context, f *gym.Fighter) error {
	now := time.Now().UTC()
	var coachID sql.NullInt64
	if f.CoachID != nil {
		coachID = sql.NullInt64{Int64: int64(*f.CoachID), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO fighters (name, email, phone, sessions_left, total_session_count, coach_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.Name, f.Email, f.Phone, f.SessionsLeft, f.TotalSessionCount, coachID,
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return mapError(fmt.Errorf("failed to create fighter: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = gym.FighterID(id)
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// GetCoach retrieves a coach with its schedules. Returns nil, nil if missing.
func (s *Store) GetCoach(ctx context.Context, id gym.CoachID) (*gym.Coach, error) {
	return getCoach(ctx, s.db, id)
}

// ListCoaches returns all coaches with their schedules, ordered by name.
func (s *Store) ListCoaches(ctx context.Context) ([]gym.Coach, error) {
	var rows []coachRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		"SELECT id, name, specialty, created_at FROM coaches ORDER BY name, id"); err != nil {
		return nil, mapError(fmt.Errorf("failed to list coaches: %w", err))
	}

	var schedules []scheduleRow
	if err := sqlx.SelectContext(ctx, s.db, &schedules,
		"SELECT id, coach_id, day, time FROM coach_schedules ORDER BY coach_id, position, id"); err != nil {
		return nil, mapError(fmt.Errorf("failed to list schedules: %w", err))
	}
	byCoach := make(map[int64][]scheduleRow)
	for _, sc := range schedules {
		byCoach[sc.CoachID] = append(byCoach[sc.CoachID], sc)
	}

	coaches := make([]gym.Coach, len(rows))
	for i, r := range rows {
		coaches[i] = toCoach(r, byCoach[r.ID])
	}
	return coaches, nil
}

// CreateCoach inserts a coach and its schedule slots atomically.
func (s *Store) CreateCoach(ctx context.Context, c *gym.Coach) error {
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO coaches (name, specialty, created_at) VALUES (?, ?, ?)",
			c.Name, c.Specialty, now.Format(timeLayout))
		if err != nil {
			return mapError(fmt.Errorf("failed to create coach: %w", err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		c.ID = gym.CoachID(id)
		c.CreatedAt = now

		for i := range c.Schedules {
			sc := &c.Schedules[i]
			res, err := tx.ExecContext(ctx,
				"INSERT INTO coach_schedules (coach_id, day, time, position) VALUES (?, ?, ?, ?)",
				c.ID, sc.Day, sc.Time, i)
			if err != nil {
				return mapError(fmt.Errorf("failed to create schedule: %w", err))
			}
			sid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			sc.ID = gym.ScheduleID(sid)
			sc.CoachID = c.ID
		}
		return nil
	})
}

// =============================================================================
// ATTENDANCE READS (gym.AttendanceReader)
// =============================================================================

// ListAttendanceForDay returns the records of one day bucket, newest first.
func (s *Store) ListAttendanceForDay(ctx context.Context, day gym.Day) ([]gym.Attendance, error) {
	return selectAttendance(ctx, s.db, s.loc,
		attendanceSelect+" WHERE day = ? ORDER BY created_at DESC, id DESC", day.Key())
}

// ListAttendanceForFighter returns a fighter's records within r, latest day first.
func (s *Store) ListAttendanceForFighter(ctx context.Context, fighterID gym.FighterID, r gym.DayRange) ([]gym.Attendance, error) {
	query := attendanceSelect + " WHERE fighter_id = ?"
	args := []any{fighterID}
	if !r.From.IsZero() {
		query += " AND day >= ?"
		args = append(args, r.From.Key())
	}
	if !r.To.IsZero() {
		query += " AND day <= ?"
		args = append(args, r.To.Key())
	}
	query += " ORDER BY day DESC, created_at DESC"
	return selectAttendance(ctx, s.db, s.loc, query, args...)
}

// =============================================================================
// PAYMENTS (gym.PaymentReader)
// =============================================================================

// ListPayments returns a fighter's payments, newest first.
func (s *Store) ListPayments(ctx context.Context, fighterID gym.FighterID) ([]gym.Payment, error) {
	var rows []paymentRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT id, reference, fighter_id, sessions, amount, method, created_by, created_at
		FROM payments
		WHERE fighter_id = ?
		ORDER BY created_at DESC, id DESC
	`, fighterID); err != nil {
		return nil, mapError(fmt.Errorf("failed to list payments: %w", err))
	}
	payments := make([]gym.Payment, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}
