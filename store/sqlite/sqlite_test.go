package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/store/sqlite"
)

func newTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	if len(opts) == 0 {
		opts = []sqlite.Option{sqlite.WithLocation(time.UTC)}
	}
	store, err := sqlite.New(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedFighter(t *testing.T, store *sqlite.Store, sessions int) *gym.Fighter {
	f := &gym.Fighter{Name: "Lena Fischer", Email: "lena@example.com", SessionsLeft: sessions, TotalSessionCount: sessions}
	require.NoError(t, store.CreateFighter(context.Background(), f))
	return f
}

func TestStore_FighterWithCoachName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	coach := &gym.Coach{Name: "Ana", Specialty: "BJJ", Schedules: []gym.Schedule{
		{Day: "Tuesday", Time: "19:30"}, {Day: "Thursday", Time: "19:30"},
	}}
	require.NoError(t, store.CreateCoach(ctx, coach))
	require.NotZero(t, coach.ID)
	require.NotZero(t, coach.Schedules[1].ID)

	f := &gym.Fighter{Name: "Omar", CoachID: &coach.ID, SessionsLeft: 4, TotalSessionCount: 10}
	require.NoError(t, store.CreateFighter(ctx, f))

	got, err := store.GetFighter(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.CoachName)
	assert.Equal(t, 4, got.SessionsLeft)
	assert.True(t, got.HasCoach(coach.ID))

	coaches, err := store.ListCoaches(ctx)
	require.NoError(t, err)
	require.Len(t, coaches, 1)
	assert.Equal(t, []string{"Tuesday", "Thursday"}, []string{coaches[0].Schedules[0].Day, coaches[0].Schedules[1].Day})
}

func TestStore_MissingRowsReturnNil(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f, err := store.GetFighter(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, f)

	c, err := store.GetCoach(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts a record and moves the balance
	// WHEN: It fails afterwards
	// THEN: Neither write is visible
	store := newTestStore(t)
	ctx := context.Background()
	f := seedFighter(t, store, 3)
	day := gym.NewDay(2024, time.March, 1, time.UTC)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx gym.Tx) error {
		a := &gym.Attendance{FighterID: f.ID, CoachName: gym.UnassignedCoachName, Day: day,
			Status: gym.StatusPresent, SessionType: "group", CreatedBy: "admin"}
		if err := tx.InsertAttendance(ctx, a); err != nil {
			return err
		}
		if _, err := tx.AdjustSessions(ctx, f.ID, -1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetFighter(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SessionsLeft)

	records, err := store.ListAttendanceForDay(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_UniqueFighterDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seedFighter(t, store, 3)
	day := gym.NewDay(2024, time.March, 1, time.UTC)

	insert := func() error {
		return store.WithTx(ctx, func(tx gym.Tx) error {
			return tx.InsertAttendance(ctx, &gym.Attendance{
				FighterID: f.ID, CoachName: gym.UnassignedCoachName, Day: day,
				Status: gym.StatusAbsent, SessionType: "group", CreatedBy: "admin",
			})
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), gym.ErrDuplicateDay)
}

func TestStore_AttendanceRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	store := newTestStore(t, sqlite.WithLocation(loc))
	ctx := context.Background()
	f := seedFighter(t, store, 3)
	day := gym.NewDay(2024, time.March, 1, loc)

	var id gym.AttendanceID
	require.NoError(t, store.WithTx(ctx, func(tx gym.Tx) error {
		a := &gym.Attendance{FighterID: f.ID, CoachName: gym.UnassignedCoachName, Day: day,
			Status: gym.StatusLate, SessionType: "private", Notes: "traffic", CreatedBy: "admin"}
		if err := tx.InsertAttendance(ctx, a); err != nil {
			return err
		}
		id = a.ID

		found, err := tx.AttendanceOnDay(ctx, f.ID, day)
		if err != nil {
			return err
		}
		require.NotNil(t, found)
		assert.Equal(t, id, found.ID)
		return nil
	}))

	history, err := store.ListAttendanceForFighter(ctx, f.ID, gym.DayRange{From: day, To: day})
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, "2024-03-01", got.Day.Key())
	assert.True(t, got.Day.Start().Equal(day.Start()))
	assert.Equal(t, gym.StatusLate, got.Status)
	assert.Equal(t, "traffic", got.Notes)
	assert.Equal(t, gym.CoachID(0), got.CoachID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_AdjustSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seedFighter(t, store, 0)

	var left int
	require.NoError(t, store.WithTx(ctx, func(tx gym.Tx) error {
		var err error
		left, err = tx.AdjustSessions(ctx, f.ID, -1)
		return err
	}))
	assert.Equal(t, -1, left, "raw signed balance is stored")

	err := store.WithTx(ctx, func(tx gym.Tx) error {
		_, err := tx.AdjustSessions(ctx, 999, 1)
		return err
	})
	assert.ErrorIs(t, err, gym.ErrNotFound)
}

func TestStore_Payments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	f := seedFighter(t, store, 0)

	require.NoError(t, store.WithTx(ctx, func(tx gym.Tx) error {
		for i, ref := range []string{"ref-1", "ref-2"} {
			p := &gym.Payment{Reference: ref, FighterID: f.ID, Sessions: 10 * (i + 1),
				Amount: decimal.RequireFromString("149.90"), CreatedBy: "admin"}
			if err := tx.InsertPayment(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	payments, err := store.ListPayments(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "ref-2", payments[0].Reference)
	assert.True(t, payments[0].Amount.Equal(decimal.RequireFromString("149.9")))
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedFighter(t, store, 3)

	require.NoError(t, store.Reset(ctx))

	fighters, err := store.ListFighters(ctx)
	require.NoError(t, err)
	assert.Empty(t, fighters)

	// ids restart after a reset
	f := seedFighter(t, store, 1)
	assert.Equal(t, gym.FighterID(1), f.ID)
}
