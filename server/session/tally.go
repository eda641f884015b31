package session

import (
	"context"
	"sort"

	"carrot-arena/server/engine"
)

// Tally counts one team's actions over a session.
type Tally struct {
	Exchanges   int    `json:"exchanges"`
	Salads      int    `json:"salads"`
	Rejected    int    `json:"rejected"`
	CarrotsIn   int    `json:"carrots_in"`
	CarrotsOut  int    `json:"carrots_out"`
	LastErrCode string `json:"last_error,omitempty"`
}

func (t *Tally) Total() int { return t.Exchanges + t.Salads + t.Rejected }

// RejectRate is the share of rejected actions, 0 when nothing was tried.
func (t *Tally) RejectRate() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Rejected) / float64(t.Total())
}

func (ss *Session) count(e Entry) {
	t := ss.tally[e.Actor]
	if t == nil {
		t = &Tally{}
		ss.tally[e.Actor] = t
	}
	if e.Code != "" {
		t.Rejected++
		t.LastErrCode = string(e.Code)
		return
	}
	switch e.Action.Kind() {
	case engine.KindExchangeCarrots:
		t.Exchanges++
	case engine.KindEatSalad:
		t.Salads++
	}
	if d := e.CarrotsAfter - e.CarrotsBefore; d > 0 {
		t.CarrotsIn += d
	} else {
		t.CarrotsOut -= d
	}
}

type TeamTally struct {
	Team engine.Team `json:"team"`
	Tally
}

// Tallies returns a copy of the per-team counters, ordered by team.
func (ss *Session) Tallies(ctx context.Context) ([]TeamTally, error) {
	var out []TeamTally
	err := ss.do(ctx, func(*engine.GameState) {
		for team, t := range ss.tally {
			out = append(out, TeamTally{Team: team, Tally: *t})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out, err
}
