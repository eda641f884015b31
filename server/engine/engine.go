package engine

import (
	"fmt"
	"math"
)

// GameState is the authoritative game container. Players is the ledger:
// every balance change goes through a method that addresses a record by its
// index and mutates it in place.
type GameState struct {
	Board   []FieldKind `json:"board"`
	Players []Player    `json:"players"`
	Current Team        `json:"current"`
	Turn    int         `json:"turn"`
	Phase   Phase       `json:"phase"`
	Rules   Rules       `json:"rules"`
}

func NewGame(board []FieldKind, players []Player, rules Rules) *GameState {
	s := &GameState{
		Board:   append([]FieldKind(nil), board...),
		Players: append([]Player(nil), players...),
		Phase:   PhaseMove,
		Rules:   rules,
	}
	if len(s.Players) > 0 {
		s.Current = s.Players[0].Team // team ONE starts
	}
	return s
}

// DefaultBoard is a short course with every field kind on it.
func DefaultBoard() []FieldKind {
	return []FieldKind{
		Start, Hare, Carrots, Hare, Salad, Carrots, Hedgehog, Position1,
		Market, Carrots, Hare, Position2, Hedgehog, Salad, Carrots, Goal,
	}
}

// Validate checks a host supplied state before the first action runs.
func (s *GameState) Validate() error {
	if len(s.Players) == 0 {
		return fmt.Errorf("game needs at least one player")
	}
	seen := map[Team]bool{}
	for _, p := range s.Players {
		if p.Team == "" {
			return fmt.Errorf("player without team")
		}
		if seen[p.Team] {
			return fmt.Errorf("duplicate team %s", p.Team)
		}
		seen[p.Team] = true
		if p.Carrots < 0 || p.Salads < 0 {
			return fmt.Errorf("team %s: negative balance", p.Team)
		}
		if p.Position < 0 || (len(s.Board) > 0 && p.Position >= len(s.Board)) {
			return fmt.Errorf("team %s: position %d off board", p.Team, p.Position)
		}
	}
	return s.Rules.Validate()
}

func (s *GameState) SetCurrent(t Team) { s.Current = t }

func (s *GameState) indexOf(t Team) int {
	for i := range s.Players {
		if s.Players[i].Team == t {
			return i
		}
	}
	return -1
}

// Player returns a copy of the record for reading.
func (s *GameState) Player(t Team) (Player, bool) {
	i := s.indexOf(t)
	if i < 0 {
		return Player{}, false
	}
	return s.Players[i], true
}

// CurrentActor resolves the acting player to its ledger index.
func (s *GameState) CurrentActor() (int, error) {
	if s.Current == "" {
		return -1, newError(CodeActorNotFound, "no current player")
	}
	i := s.indexOf(s.Current)
	if i < 0 {
		return -1, newError(CodeActorNotFound, "team %s has no player record", s.Current)
	}
	return i, nil
}

func (s *GameState) record(idx int) (*Player, error) {
	if idx < 0 || idx >= len(s.Players) {
		return nil, newError(CodeActorNotFound, "player index %d out of range", idx)
	}
	return &s.Players[idx], nil
}

func (s *GameState) field(pos int) FieldKind {
	if pos < 0 || pos >= len(s.Board) {
		return ""
	}
	return s.Board[pos]
}

// leads reports whether the player at idx is strictly ahead of everyone else.
func (s *GameState) leads(idx int) bool {
	for i := range s.Players {
		if i != idx && s.Players[i].Position >= s.Players[idx].Position {
			return false
		}
	}
	return true
}

// ValidateExchange runs every check of ExchangeCarrots without mutating.
func (s *GameState) ValidateExchange(idx, amount int) error {
	p, err := s.record(idx)
	if err != nil {
		return err
	}
	if s.Phase != PhaseMove {
		return newError(CodeExchangeDisallowed, "game phase is %s", s.Phase)
	}
	if step := s.Rules.ExchangeStep; step > 0 && amount != step && amount != -step {
		return newError(CodeInvalidAmount, "can only exchange %d carrots, got %d", step, amount)
	}
	if s.Rules.RequireCarrotField && s.field(p.Position) != Carrots {
		return newError(CodeExchangeDisallowed, "field %d is not a carrots field", p.Position)
	}
	if amount > 0 && p.Carrots > math.MaxInt-amount {
		return newError(CodeInvalidAmount, "amount %d overflows balance", amount)
	}
	if p.Carrots+amount < 0 {
		return newError(CodeInsufficientBalance, "have %d carrots, exchange %d", p.Carrots, amount)
	}
	return nil
}

// ExchangeCarrots adds amount (signed) to the carrots of the player at idx.
// Nothing is written unless every check passes.
func (s *GameState) ExchangeCarrots(idx, amount int) error {
	if err := s.ValidateExchange(idx, amount); err != nil {
		return err
	}
	s.Players[idx].Carrots += amount
	return nil
}

func (s *GameState) saladGain(idx int) (int, error) {
	p, err := s.record(idx)
	if err != nil {
		return 0, err
	}
	if s.Phase != PhaseMove {
		return 0, newError(CodeExchangeDisallowed, "game phase is %s", s.Phase)
	}
	if p.Salads <= 0 {
		return 0, newError(CodeNoSalad, "team %s has no salads left", p.Team)
	}
	if s.Rules.RequireSaladField && s.field(p.Position) != Salad {
		return 0, newError(CodeExchangeDisallowed, "field %d is not a salad field", p.Position)
	}
	gain := s.Rules.SaladBonusTrail
	if s.leads(idx) {
		gain = s.Rules.SaladBonusLead
	}
	if p.Carrots > math.MaxInt-gain {
		return 0, newError(CodeInvalidAmount, "salad bonus %d overflows balance", gain)
	}
	return gain, nil
}

// ValidateEatSalad runs every check of EatSalad without mutating.
func (s *GameState) ValidateEatSalad(idx int) error {
	_, err := s.saladGain(idx)
	return err
}

// EatSalad trades one salad for carrots. Salads and carrots change together
// or not at all.
func (s *GameState) EatSalad(idx int) error {
	gain, err := s.saladGain(idx)
	if err != nil {
		return err
	}
	p := &s.Players[idx]
	p.Salads--
	p.Carrots += gain
	return nil
}

// Clone returns a deep copy for readers. Mutating the copy never reaches s.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.Board = append([]FieldKind(nil), s.Board...)
	cp.Players = append([]Player(nil), s.Players...)
	return &cp
}
