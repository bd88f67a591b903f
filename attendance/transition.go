package attendance

import "github.com/warp/gym-ledger/gym"

// =============================================================================
// TRANSITION TABLE - single source of truth for balance deltas
// =============================================================================

// SessionDelta returns the change to a fighter's balance when their record
// for a day moves from one status to another. gym.StatusNone stands for "no
// record", so create is None→s and delete is s→None.
//
//	from \ to     none  present  late  absent
//	none           0      -1      -1     0
//	present       +1       0       0    +1
//	late          +1       0       0    +1
//	absent         0      -1      -1     0
func SessionDelta(from, to gym.Status) int {
	return sessionUnits(from) - sessionUnits(to)
}

func sessionUnits(s gym.Status) int {
	if s.ConsumesSession() {
		return 1
	}
	return 0
}

// checkBalance is the deduction gate: a negative delta needs a positive
// balance unless an admin overrides. Restores always pass.
func checkBalance(f *gym.Fighter, delta int, adminOverride bool) error {
	if delta >= 0 || f.SessionsLeft > 0 || adminOverride {
		return nil
	}
	return &gym.InsufficientSessionsError{
		FighterID:    f.ID,
		FighterName:  f.Name,
		SessionsLeft: f.SessionsLeft,
	}
}
