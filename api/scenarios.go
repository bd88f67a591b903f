/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates coaches with weekly schedules,
	fighters with packages, and attendance marked through the engine, so
	every balance is the product of real ledger operations.

AVAILABLE SCENARIOS:

	small-gym:           Two coaches, six fighters, a few days of attendance
	exhausted-balances:  Fighters at zero and one pushed negative by override

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create coaches and their schedules
 3. Create fighters, top up packages via billing
 4. Mark attendance via the engine, relative to today

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "small-gym"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/attendance"
	"github.com/warp/gym-ledger/billing"
	"github.com/warp/gym-ledger/gym"
)

const scenarioAdmin = "scenario-loader"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-gym",
		Name:        "Small Gym",
		Description: "Two coaches on a weekly schedule, six fighters and the last three days of attendance",
	},
	{
		ID:          "exhausted-balances",
		Name:        "Exhausted Balances",
		Description: "Fighters with no sessions left; one already negative through an admin override",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"small-gym":          (*Handler).loadSmallGymScenario,
	"exhausted-balances": (*Handler).loadExhaustedBalancesScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Load(r.Context(), req.ScenarioID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Load resets the database and loads the named scenario.
func (h *Handler) Load(ctx context.Context, scenarioID string) error {
	loader, ok := scenarioLoaders[scenarioID]
	if !ok {
		return &gym.ValidationError{Field: "scenarioId", Message: fmt.Sprintf("Unknown scenario %q", scenarioID)}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	h.setCurrentScenario("")

	if err := loader(h, ctx); err != nil {
		return fmt.Errorf("load scenario %s: %w", scenarioID, err)
	}
	h.setCurrentScenario(scenarioID)
	return nil
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallGymScenario(ctx context.Context) error {
	muayThai, err := h.seedCoach(ctx, "Sakda Petchyindee", "Muay Thai",
		[]gym.Schedule{{Day: "Monday", Time: "18:00"}, {Day: "Wednesday", Time: "18:00"}, {Day: "Friday", Time: "18:00"}})
	if err != nil {
		return err
	}
	bjj, err := h.seedCoach(ctx, "Ana Ribeiro", "Brazilian Jiu-Jitsu",
		[]gym.Schedule{{Day: "Tuesday", Time: "19:30"}, {Day: "Thursday", Time: "19:30"}, {Day: "Saturday", Time: "10:00"}})
	if err != nil {
		return err
	}

	roster := []struct {
		name     string
		coach    *gym.Coach
		sessions int
	}{
		{"Lena Fischer", muayThai, 10},
		{"Marcus Hale", muayThai, 20},
		{"Yuki Tanaka", muayThai, 5},
		{"Omar Haddad", bjj, 10},
		{"Sofia Marin", bjj, 10},
		{"Tom Becker", nil, 5},
	}
	fighters := make([]*gym.Fighter, len(roster))
	for i, f := range roster {
		fighters[i], err = h.seedFighter(ctx, f.name, f.coach, f.sessions)
		if err != nil {
			return err
		}
	}

	// Three days of history, marked the way the admin UI marks them.
	statuses := []gym.Status{gym.StatusPresent, gym.StatusLate, gym.StatusAbsent}
	today := h.Engine.Today()
	for back := 3; back >= 1; back-- {
		day := today.AddDays(-back)
		records := make([]attendance.BulkRecord, 0, len(fighters))
		for i, f := range fighters {
			records = append(records, attendance.BulkRecord{
				FighterID: f.ID,
				Status:    string(statuses[(i+back)%len(statuses)]),
				CreatedBy: scenarioAdmin,
			})
		}
		for _, res := range h.Engine.MarkBulk(ctx, attendance.BulkRequest{Records: records, Day: day}) {
			if res.Err != nil {
				return res.Err
			}
		}
	}
	return nil
}

func (h *Handler) loadExhaustedBalancesScenario(ctx context.Context) error {
	coach, err := h.seedCoach(ctx, "Dmitri Volkov", "Boxing",
		[]gym.Schedule{{Day: "Monday", Time: "07:00"}, {Day: "Tuesday", Time: "07:00"}, {Day: "Wednesday", Time: "07:00"},
			{Day: "Thursday", Time: "07:00"}, {Day: "Friday", Time: "07:00"}, {Day: "Saturday", Time: "09:00"}, {Day: "Sunday", Time: "09:00"}})
	if err != nil {
		return err
	}

	// One session, used yesterday.
	spent, err := h.seedFighter(ctx, "Priya Nair", coach, 1)
	if err != nil {
		return err
	}
	yesterday := h.Engine.Today().AddDays(-1)
	if _, err := h.Engine.MarkSingle(ctx, attendance.MarkRequest{
		FighterID: spent.ID, Status: string(gym.StatusPresent), Day: yesterday, CreatedBy: scenarioAdmin,
	}); err != nil {
		return err
	}

	// Never bought a package, trained anyway on an override.
	overdrawn, err := h.seedFighter(ctx, "Jonas Berg", coach, 0)
	if err != nil {
		return err
	}
	if _, err := h.Engine.MarkSingle(ctx, attendance.MarkRequest{
		FighterID: overdrawn.ID, Status: string(gym.StatusPresent), Day: yesterday,
		CreatedBy: scenarioAdmin, AdminOverride: true,
	}); err != nil {
		return err
	}

	_, err = h.seedFighter(ctx, "Clara Duval", coach, 0)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) seedCoach(ctx context.Context, name, specialty string, schedules []gym.Schedule) (*gym.Coach, error) {
	c := &gym.Coach{Name: name, Specialty: specialty, Schedules: schedules}
	if err := h.Store.CreateCoach(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// seedFighter creates a fighter with an empty balance and buys the package
// through billing so a payment row backs it.
func (h *Handler) seedFighter(ctx context.Context, name string, coach *gym.Coach, sessions int) (*gym.Fighter, error) {
	f := &gym.Fighter{Name: name}
	if coach != nil {
		f.CoachID = &coach.ID
		f.CoachName = coach.Name
	}
	if err := h.Store.CreateFighter(ctx, f); err != nil {
		return nil, err
	}
	if sessions == 0 {
		return f, nil
	}

	res, err := h.Billing.TopUp(ctx, billing.TopUpRequest{
		FighterID: f.ID,
		Sessions:  sessions,
		Amount:    decimal.NewFromInt(int64(sessions) * 15),
		Method:    "cash",
		CreatedBy: scenarioAdmin,
	})
	if err != nil {
		return nil, err
	}
	f.SessionsLeft = res.SessionAdjustment.NewSessionsLeft
	f.TotalSessionCount = sessions
	return f, nil
}
