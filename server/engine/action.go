package engine

import (
	"cmp"
	"fmt"
)

// Action is one player command. Perform either applies the whole mutation
// and returns nil, or returns an error and leaves s exactly as it was.
// Implementations must not keep s after returning.
type Action interface {
	Kind() ActionKind
	Perform(s *GameState) error
}

// ExchangeCarrots adds Amount carrots to the acting player; a negative
// Amount spends them.
type ExchangeCarrots struct {
	Amount int `json:"amount"`
}

func NewExchangeCarrots(amount int) ExchangeCarrots { return ExchangeCarrots{Amount: amount} }

func (ExchangeCarrots) Kind() ActionKind { return KindExchangeCarrots }

func (a ExchangeCarrots) Perform(s *GameState) error {
	idx, err := s.CurrentActor()
	if err != nil {
		return err
	}
	return s.ExchangeCarrots(idx, a.Amount)
}

func (a ExchangeCarrots) Compare(b ExchangeCarrots) int { return cmp.Compare(a.Amount, b.Amount) }

func (a ExchangeCarrots) String() string { return fmt.Sprintf("ExchangeCarrots(%d)", a.Amount) }

type EatSalad struct{}

func NewEatSalad() EatSalad { return EatSalad{} }

func (EatSalad) Kind() ActionKind { return KindEatSalad }

func (EatSalad) Perform(s *GameState) error {
	idx, err := s.CurrentActor()
	if err != nil {
		return err
	}
	return s.EatSalad(idx)
}

func (EatSalad) String() string { return "EatSalad" }

// Legal lists the action kinds the current actor could perform right now.
// Exchange is listed when any amount the rules accept would pass.
func Legal(s *GameState) []ActionKind {
	idx, err := s.CurrentActor()
	if err != nil {
		return nil
	}
	var out []ActionKind
	canExchange := len(ExchangeOptions(s)) > 0
	if s.Rules.ExchangeStep == 0 {
		canExchange = s.ValidateExchange(idx, 0) == nil
	}
	if canExchange {
		out = append(out, KindExchangeCarrots)
	}
	if s.ValidateEatSalad(idx) == nil {
		out = append(out, KindEatSalad)
	}
	return out
}

// ExchangeOptions returns the accepted amounts under a stepped rule set,
// nil when the rules accept any delta.
func ExchangeOptions(s *GameState) []int {
	step := s.Rules.ExchangeStep
	if step == 0 {
		return nil
	}
	idx, err := s.CurrentActor()
	if err != nil {
		return nil
	}
	var out []int
	for _, amt := range []int{step, -step} {
		if s.ValidateExchange(idx, amt) == nil {
			out = append(out, amt)
		}
	}
	return out
}
