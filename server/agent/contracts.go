package agent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"carrot-arena/server/engine"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed action.schema.json
var actionSchemaJSON string

const actionSchemaURL = "https://carrot-arena.local/schemas/action.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func actionSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(actionSchemaURL, strings.NewReader(actionSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load action schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(actionSchemaURL)
	})
	return schema, schemaErr
}

type PlayerView struct {
	Team     string `json:"team"`
	Position int    `json:"position"`
	Field    string `json:"field"`
	Carrots  int    `json:"carrots"`
	Salads   int    `json:"salads"`
}

type Observation struct {
	GameID          string       `json:"game_id,omitempty"`
	Turn            int          `json:"turn"`
	Phase           string       `json:"phase"`
	Current         string       `json:"current"`         // "" when no one is to act
	Players         []PlayerView `json:"players"`
	Legal           []string     `json:"legal_actions"`    // subset of exchange_carrots|eat_salad
	ExchangeOptions []int        `json:"exchange_options"` // empty = any amount
	Rules           engine.Rules `json:"rules"`
}

// ActionIn is the wire form of a single action.
type ActionIn struct {
	Action string `json:"action"` // exchange_carrots|eat_salad
	Amount *int   `json:"amount,omitempty"`
}

// BuildObservation converts engine state into the JSON we send to clients.
func BuildObservation(gameID string, s *engine.GameState) Observation {
	players := make([]PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		field := ""
		if p.Position >= 0 && p.Position < len(s.Board) {
			field = string(s.Board[p.Position])
		}
		players = append(players, PlayerView{
			Team:     string(p.Team),
			Position: p.Position,
			Field:    field,
			Carrots:  p.Carrots,
			Salads:   p.Salads,
		})
	}

	legal := []string{}
	for _, k := range engine.Legal(s) {
		legal = append(legal, string(k))
	}
	opts := engine.ExchangeOptions(s)
	if opts == nil {
		opts = []int{}
	}

	return Observation{
		GameID:          gameID,
		Turn:            s.Turn,
		Phase:           string(s.Phase),
		Current:         string(s.Current),
		Players:         players,
		Legal:           legal,
		ExchangeOptions: opts,
		Rules:           s.Rules,
	}
}

// Decode validates raw against the action schema and builds the engine action.
func Decode(raw []byte) (engine.Action, error) {
	sch, err := actionSchema()
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("bad action JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("action rejected by schema: %w", err)
	}
	var in ActionIn
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("bad action JSON: %w", err)
	}
	return in.ToEngine()
}

func (in ActionIn) ToEngine() (engine.Action, error) {
	switch engine.ActionKind(in.Action) {
	case engine.KindExchangeCarrots:
		if in.Amount == nil {
			return nil, fmt.Errorf("exchange_carrots requires amount")
		}
		return engine.NewExchangeCarrots(*in.Amount), nil
	case engine.KindEatSalad:
		return engine.NewEatSalad(), nil
	}
	return nil, fmt.Errorf("unknown action %q", in.Action)
}

// Encode is the inverse of ToEngine, used when logging actions.
func Encode(a engine.Action) ActionIn {
	out := ActionIn{Action: string(a.Kind())}
	if ex, ok := a.(engine.ExchangeCarrots); ok {
		amt := ex.Amount
		out.Amount = &amt
	}
	return out
}

// Validate checks an action against the options advertised in o, so a
// client can be told about an illegal choice before it is queued.
func Validate(o Observation, in ActionIn) error {
	ok := false
	for _, la := range o.Legal {
		if la == in.Action {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("illegal action %q (legals: %v)", in.Action, o.Legal)
	}
	if in.Action == string(engine.KindExchangeCarrots) && len(o.ExchangeOptions) > 0 {
		if in.Amount == nil {
			return fmt.Errorf("exchange_carrots requires amount")
		}
		for _, v := range o.ExchangeOptions {
			if v == *in.Amount {
				return nil
			}
		}
		return fmt.Errorf("amount %d not in %v", *in.Amount, o.ExchangeOptions)
	}
	return nil
}
