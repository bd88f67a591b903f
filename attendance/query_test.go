package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-ledger/attendance"
	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// HISTORY
// =============================================================================

func TestGetHistory_RangeIsInclusiveAndSummarized(t *testing.T) {
	// GIVEN: Records on Dec 31, Jan 1, Jan 15, Jan 31 and Feb 1
	// WHEN: Asking for January
	// THEN: Only the three January records, latest first
	engine, store := newTestEngine(t)
	ctx := context.Background()
	f := createFighter(t, store, "Lena", 20, nil)

	marks := []struct {
		d      gym.Day
		status gym.Status
	}{
		{gym.NewDay(2023, time.December, 31, time.UTC), gym.StatusPresent},
		{day(time.January, 1), gym.StatusPresent},
		{day(time.January, 15), gym.StatusAbsent},
		{day(time.January, 31), gym.StatusLate},
		{day(time.February, 1), gym.StatusPresent},
	}
	for _, m := range marks {
		_, err := engine.MarkSingle(ctx, mark(f.ID, m.status, m.d))
		require.NoError(t, err)
	}

	history, err := engine.GetHistory(ctx, f.ID, gym.DayRange{From: day(time.January, 1), To: day(time.January, 31)})
	require.NoError(t, err)

	require.Len(t, history.Records, 3)
	assert.Equal(t, "2024-01-31", history.Records[0].Day.Key())
	assert.Equal(t, "2024-01-15", history.Records[1].Day.Key())
	assert.Equal(t, "2024-01-01", history.Records[2].Day.Key())

	s := history.Summary
	assert.Equal(t, 3, s.TotalRecords)
	assert.Equal(t, 1, s.Present)
	assert.Equal(t, 1, s.Late)
	assert.Equal(t, 1, s.Absent)
	assert.Equal(t, s.TotalRecords, s.Present+s.Late+s.Absent)
	assert.Equal(t, "Lena", history.Fighter.Name)
}

func TestGetHistory_NoBoundsReturnsEverything(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	f := createFighter(t, store, "Omar", 5, nil)

	for i := 1; i <= 3; i++ {
		_, err := engine.MarkSingle(ctx, mark(f.ID, gym.StatusAbsent, day(time.February, i)))
		require.NoError(t, err)
	}

	history, err := engine.GetHistory(ctx, f.ID, gym.DayRange{})
	require.NoError(t, err)
	require.Len(t, history.Records, 3)
	assert.Equal(t, "2024-02-03", history.Records[0].Day.Key())
}

func TestGetHistory_Errors(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.GetHistory(ctx, 77, gym.DayRange{})
	assert.ErrorIs(t, err, gym.ErrNotFound)

	f := createFighter(t, store, "Omar", 5, nil)
	_, err = engine.GetHistory(ctx, f.ID, gym.DayRange{From: day(time.March, 2), To: day(time.March, 1)})
	assert.ErrorIs(t, err, gym.ErrValidation)
}

// =============================================================================
// DAY LISTING
// =============================================================================

func TestListForDay_EmbedsRelationsNewestFirst(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	coach := createCoach(t, store, "Sakda", "Friday")
	a := createFighter(t, store, "Lena", 5, coach)
	b := createFighter(t, store, "Tom", 5, nil)

	_, err := engine.MarkSingle(ctx, mark(a.ID, gym.StatusPresent, day(time.March, 1)))
	require.NoError(t, err)
	_, err = engine.MarkSingle(ctx, mark(b.ID, gym.StatusAbsent, day(time.March, 1)))
	require.NoError(t, err)
	_, err = engine.MarkSingle(ctx, mark(b.ID, gym.StatusAbsent, day(time.March, 2)))
	require.NoError(t, err)

	records, err := engine.ListForDay(ctx, day(time.March, 1))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, b.ID, records[0].Attendance.FighterID)
	require.NotNil(t, records[0].Fighter)
	assert.Equal(t, "Tom", records[0].Fighter.Name)
	assert.Nil(t, records[0].Coach)

	assert.Equal(t, a.ID, records[1].Attendance.FighterID)
	require.NotNil(t, records[1].Coach)
	assert.Equal(t, "Sakda", records[1].Coach.Name)
}

func TestListForDay_Empty(t *testing.T) {
	engine, _ := newTestEngine(t)

	records, err := engine.ListForDay(context.Background(), day(time.March, 1))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

// =============================================================================
// DAILY OVERVIEW
// =============================================================================

func TestGetDailyOverview(t *testing.T) {
	// GIVEN: Sakda coaches Mon/Fri, Ana coaches Tue/Thu
	// WHEN: Overview for Friday March 1
	// THEN: Only Sakda, with his fighters and their record for the day
	engine, store := newTestEngine(t)
	ctx := context.Background()
	sakda := createCoach(t, store, "Sakda", "Monday", "Friday")
	ana := createCoach(t, store, "Ana", "Tuesday", "Thursday")
	lena := createFighter(t, store, "Lena", 5, sakda)
	marcus := createFighter(t, store, "Marcus", 5, sakda)
	createFighter(t, store, "Omar", 5, ana)

	_, err := engine.MarkSingle(ctx, mark(lena.ID, gym.StatusPresent, day(time.March, 1)))
	require.NoError(t, err)
	_, err = engine.MarkSingle(ctx, mark(marcus.ID, gym.StatusPresent, day(time.February, 29)))
	require.NoError(t, err)

	overview, err := engine.GetDailyOverview(ctx, day(time.March, 1))
	require.NoError(t, err)

	require.Len(t, overview, 1)
	co := overview[0]
	assert.Equal(t, "Sakda", co.Coach.Name)
	require.Len(t, co.Schedules, 1)
	assert.Equal(t, "Friday", co.Schedules[0].Day)

	require.Len(t, co.Fighters, 2)
	byName := map[string]attendance.FighterOverview{}
	for _, fo := range co.Fighters {
		byName[fo.Fighter.Name] = fo
	}
	assert.Len(t, byName["Lena"].Attendances, 1)
	assert.Empty(t, byName["Marcus"].Attendances, "yesterday's record is not today's")
}

func TestBuildOverview_SortsSlotsAndSkipsUnscheduled(t *testing.T) {
	d := day(time.March, 4) // Monday
	coachID := gym.CoachID(1)
	coaches := []gym.Coach{
		{ID: 1, Name: "Sakda", Schedules: []gym.Schedule{
			{Day: "Monday", Time: "19:00"},
			{Day: "Monday", Time: "07:00"},
			{Day: "Wednesday", Time: "18:00"},
		}},
		{ID: 2, Name: "Ana", Schedules: []gym.Schedule{{Day: "Sunday", Time: "10:00"}}},
		{ID: 3, Name: "Nobody"},
	}
	fighters := []gym.Fighter{
		{ID: 10, Name: "Lena", CoachID: &coachID},
		{ID: 11, Name: "Tom"},
	}
	records := []gym.Attendance{
		{ID: 100, FighterID: 10, Day: d, Status: gym.StatusLate},
		{ID: 101, FighterID: 11, Day: d, Status: gym.StatusPresent},
	}

	overview := attendance.BuildOverview(d, coaches, fighters, records)

	require.Len(t, overview, 1)
	assert.Equal(t, []string{"07:00", "19:00"}, []string{overview[0].Schedules[0].Time, overview[0].Schedules[1].Time})
	require.Len(t, overview[0].Fighters, 1, "unassigned fighters are not listed under a coach")
	assert.Equal(t, gym.AttendanceID(100), overview[0].Fighters[0].Attendances[0].ID)
}

func TestSummarize(t *testing.T) {
	s := attendance.Summarize([]gym.Attendance{
		{Status: gym.StatusPresent}, {Status: gym.StatusPresent}, {Status: gym.StatusAbsent},
	})
	assert.Equal(t, attendance.Summary{TotalRecords: 3, Present: 2, Absent: 1}, s)
}
