package attendance

import (
	"context"
	"sort"

	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// HISTORY
// =============================================================================

// Summary counts records by status.
type Summary struct {
	TotalRecords int
	Present      int
	Late         int
	Absent       int
}

// Summarize counts the given records.
func Summarize(records []gym.Attendance) Summary {
	s := Summary{TotalRecords: len(records)}
	for _, r := range records {
		switch r.Status {
		case gym.StatusPresent:
			s.Present++
		case gym.StatusLate:
			s.Late++
		case gym.StatusAbsent:
			s.Absent++
		}
	}
	return s
}

// History is a fighter's attendance over a date range.
type History struct {
	Fighter gym.Fighter
	Records []gym.Attendance
	Summary Summary
}

// GetHistory returns a fighter's records, latest first. Both bounds are
// inclusive day buckets; a zero bound is open. Summary covers the returned
// records only.
func (e *Engine) GetHistory(ctx context.Context, fighterID gym.FighterID, r gym.DayRange) (*History, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	fighter, err := e.store.GetFighter(ctx, fighterID)
	if err != nil {
		return nil, err
	}
	if fighter == nil {
		return nil, &gym.NotFoundError{Resource: "Fighter", ID: int64(fighterID)}
	}

	records, err := e.store.ListAttendanceForFighter(ctx, fighterID, r)
	if err != nil {
		return nil, err
	}
	return &History{
		Fighter: *fighter,
		Records: records,
		Summary: Summarize(records),
	}, nil
}

// =============================================================================
// DAY LISTING
// =============================================================================

// DayRecord is an attendance record with its fighter and snapshot coach.
// Coach is nil when the record was taken for an unassigned fighter or the
// coach has since been removed.
type DayRecord struct {
	Attendance gym.Attendance
	Fighter    *gym.Fighter
	Coach      *gym.Coach
}

// ListForDay returns the day's records, newest first.
func (e *Engine) ListForDay(ctx context.Context, day gym.Day) ([]DayRecord, error) {
	records, err := e.store.ListAttendanceForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []DayRecord{}, nil
	}

	fighters, err := e.store.ListFighters(ctx)
	if err != nil {
		return nil, err
	}
	coaches, err := e.store.ListCoaches(ctx)
	if err != nil {
		return nil, err
	}
	fighterByID := make(map[gym.FighterID]*gym.Fighter, len(fighters))
	for i := range fighters {
		fighterByID[fighters[i].ID] = &fighters[i]
	}
	coachByID := make(map[gym.CoachID]*gym.Coach, len(coaches))
	for i := range coaches {
		coachByID[coaches[i].ID] = &coaches[i]
	}

	out := make([]DayRecord, len(records))
	for i, r := range records {
		out[i] = DayRecord{
			Attendance: r,
			Fighter:    fighterByID[r.FighterID],
			Coach:      coachByID[r.CoachID],
		}
	}
	return out, nil
}

// =============================================================================
// DAILY OVERVIEW
// =============================================================================

// CoachOverview is one coach scheduled on the day, with only that weekday's
// slots and every fighter assigned to the coach.
type CoachOverview struct {
	Coach     gym.Coach
	Schedules []gym.Schedule
	Fighters  []FighterOverview
}

// FighterOverview pairs a fighter with their record for the day (0 or 1).
type FighterOverview struct {
	Fighter     gym.Fighter
	Attendances []gym.Attendance
}

// GetDailyOverview lists the coaches whose weekly schedule includes the
// day's weekday, each with their fighters' attendance for the day. Read-only.
func (e *Engine) GetDailyOverview(ctx context.Context, day gym.Day) ([]CoachOverview, error) {
	coaches, err := e.store.ListCoaches(ctx)
	if err != nil {
		return nil, err
	}
	fighters, err := e.store.ListFighters(ctx)
	if err != nil {
		return nil, err
	}
	records, err := e.store.ListAttendanceForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	return BuildOverview(day, coaches, fighters, records), nil
}

// BuildOverview composes the daily overview from already loaded relations.
// Records outside the day bucket are ignored.
func BuildOverview(day gym.Day, coaches []gym.Coach, fighters []gym.Fighter, records []gym.Attendance) []CoachOverview {
	byFighter := make(map[gym.FighterID]gym.Attendance, len(records))
	for _, r := range records {
		if r.Day.Key() != day.Key() {
			continue
		}
		byFighter[r.FighterID] = r
	}

	weekday := day.Weekday()
	overview := make([]CoachOverview, 0, len(coaches))
	for _, coach := range coaches {
		var slots []gym.Schedule
		for _, s := range coach.Schedules {
			if s.OnWeekday(weekday) {
				slots = append(slots, s)
			}
		}
		if len(slots) == 0 {
			continue
		}
		sort.SliceStable(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })

		entry := CoachOverview{Coach: coach, Schedules: slots, Fighters: []FighterOverview{}}
		for _, f := range fighters {
			if !f.HasCoach(coach.ID) {
				continue
			}
			fo := FighterOverview{Fighter: f, Attendances: []gym.Attendance{}}
			if r, ok := byFighter[f.ID]; ok {
				fo.Attendances = append(fo.Attendances, r)
			}
			entry.Fighters = append(entry.Fighters, fo)
		}
		overview = append(overview, entry)
	}
	return overview
}
