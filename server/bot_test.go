package main

import (
	"context"
	"errors"
	"testing"

	"carrot-arena/server/agent"
	"carrot-arena/server/engine"
	"carrot-arena/server/session"
)

func botGame(t *testing.T) *session.Session {
	t.Helper()
	g := engine.NewGame(engine.DefaultBoard(), []engine.Player{
		{Team: engine.One, Position: 2, Carrots: 20, Salads: 1},
		{Team: engine.Two, Position: 9, Carrots: 5, Salads: 0},
	}, engine.HaseRules())
	ss := session.New("bot", g, nil)
	t.Cleanup(ss.Close)
	return ss
}

func TestRunBotTurnsAlternatesTeams(t *testing.T) {
	ss := botGame(t)
	var seen []string
	choose := func(_ context.Context, model string, obs agent.Observation) (engine.Action, string, error) {
		seen = append(seen, obs.Current+":"+model)
		// TWO holds 5, so -10 is not offered and +10 is
		return engine.NewExchangeCarrots(obs.ExchangeOptions[0]), "", nil
	}
	models := map[engine.Team]string{engine.One: "m1", engine.Two: "m2"}
	if err := runBotTurns(context.Background(), ss, 3, models, choose); err != nil {
		t.Fatalf("runBotTurns: %v", err)
	}
	want := []string{"ONE:m1", "TWO:m2", "ONE:m1"}
	if len(seen) != len(want) {
		t.Fatalf("unexpected calls %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("call %d: want %s, got %s", i, want[i], seen[i])
		}
	}
	s, err := ss.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s.Players[0].Carrots != 40 || s.Players[1].Carrots != 15 {
		t.Fatalf("unexpected ledger %+v", s.Players)
	}
}

func TestRunBotTurnsForfeitsAfterRetries(t *testing.T) {
	ss := botGame(t)
	calls := 0
	choose := func(context.Context, string, agent.Observation) (engine.Action, string, error) {
		calls++
		return nil, "garbage", errors.New("no valid action in response")
	}
	if err := runBotTurns(context.Background(), ss, 1, nil, choose); err != nil {
		t.Fatalf("runBotTurns: %v", err)
	}
	if calls != botRetries+1 {
		t.Fatalf("expected %d attempts, got %d", botRetries+1, calls)
	}
	tallies, err := ss.Tallies(context.Background())
	if err != nil || len(tallies) != 0 {
		t.Fatalf("forfeit must not reach the ledger: %v %v", tallies, err)
	}
}

func TestRunBotTurnsStopsOnClosedSession(t *testing.T) {
	ss := botGame(t)
	ss.Close()
	choose := func(context.Context, string, agent.Observation) (engine.Action, string, error) {
		t.Fatalf("chooser called on closed session")
		return nil, "", nil
	}
	if err := runBotTurns(context.Background(), ss, 2, nil, choose); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
