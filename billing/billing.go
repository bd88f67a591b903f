// Package billing records package purchases and tops up the fighter's
// session balance in the same transaction. It only ever increments the
// balance; a negative balance left by an admin override is simply added to.
package billing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/gym"
)

// Store is what billing needs from persistence.
type Store interface {
	gym.TxStore
	gym.PaymentReader
	GetFighter(ctx context.Context, id gym.FighterID) (*gym.Fighter, error)
}

// Service handles top-ups.
type Service struct {
	store Store
	newID func() string
}

// NewService creates a billing service.
func NewService(store Store) *Service {
	return &Service{store: store, newID: uuid.NewString}
}

// TopUpRequest buys a package of sessions.
type TopUpRequest struct {
	FighterID gym.FighterID
	Sessions  int
	Amount    decimal.Decimal
	Method    string
	CreatedBy string
}

// TopUpResult is the stored payment and the balance change it caused.
type TopUpResult struct {
	Payment           gym.Payment
	SessionAdjustment gym.SessionAdjustment
}

// TopUp records the payment, sets the package size to Sessions and adds
// Sessions to the balance.
func (s *Service) TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var result *TopUpResult
	err := s.store.WithTx(ctx, func(tx gym.Tx) error {
		fighter, err := tx.Fighter(ctx, req.FighterID)
		if err != nil {
			return err
		}
		if fighter == nil {
			return &gym.NotFoundError{Resource: "Fighter", ID: int64(req.FighterID)}
		}

		payment := gym.Payment{
			Reference: s.newID(),
			FighterID: fighter.ID,
			Sessions:  req.Sessions,
			Amount:    req.Amount.Round(2),
			Method:    strings.TrimSpace(req.Method),
			CreatedBy: req.CreatedBy,
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		if err := tx.SetPackageSize(ctx, fighter.ID, req.Sessions); err != nil {
			return err
		}
		left, err := tx.AdjustSessions(ctx, fighter.ID, req.Sessions)
		if err != nil {
			return err
		}

		result = &TopUpResult{
			Payment:           payment,
			SessionAdjustment: gym.SessionAdjustment{Delta: req.Sessions, NewSessionsLeft: left},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// History returns a fighter's payments, newest first.
func (s *Service) History(ctx context.Context, fighterID gym.FighterID) ([]gym.Payment, error) {
	fighter, err := s.store.GetFighter(ctx, fighterID)
	if err != nil {
		return nil, err
	}
	if fighter == nil {
		return nil, &gym.NotFoundError{Resource: "Fighter", ID: int64(fighterID)}
	}
	return s.store.ListPayments(ctx, fighterID)
}

func validate(req TopUpRequest) error {
	switch {
	case req.FighterID <= 0:
		return &gym.ValidationError{Field: "fighterId", Message: "fighterId is required"}
	case req.Sessions <= 0:
		return &gym.ValidationError{Field: "sessions", Message: "sessions must be greater than 0"}
	case req.Amount.IsNegative():
		return &gym.ValidationError{Field: "amount", Message: "amount must not be negative"}
	case strings.TrimSpace(req.CreatedBy) == "":
		return &gym.ValidationError{Field: "createdBy", Message: "createdBy is required"}
	}
	return nil
}
