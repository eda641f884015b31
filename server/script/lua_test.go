package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"carrot-arena/server/engine"
	"carrot-arena/server/session"
)

func newState() *engine.GameState {
	return engine.NewGame(engine.DefaultBoard(), []engine.Player{
		{Team: engine.One, Position: 2, Carrots: 10, Salads: 1},
		{Team: engine.Two, Position: 4, Carrots: 2, Salads: 1},
	}, engine.DefaultRules())
}

func TestScriptPerformsActions(t *testing.T) {
	s := newState()
	r := NewRunner(StateHost{S: s})
	err := r.RunString(`
		local ok = game:perform(ExchangeCarrots.new(3))
		assert(ok == true, "gain should succeed")
		assert(game:carrots() == 13)

		game:set_current("TWO")
		local ok2, code, msg = game:perform(ExchangeCarrots.new(-5))
		assert(ok2 == false)
		assert(code == "insufficient_balance", code)
		assert(type(msg) == "string")
		assert(game:carrots() == 2)
		assert(game:carrots("ONE") == 13)
		assert(game:current() == "TWO")
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if s.Players[0].Carrots != 13 || s.Players[1].Carrots != 2 {
		t.Fatalf("unexpected balances %+v", s.Players)
	}
	res := r.Results()
	if len(res) != 2 || res[0].Err != nil || !errors.Is(res[1].Err, engine.ErrInsufficientBalance) {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestScriptValueSemantics(t *testing.T) {
	r := NewRunner(StateHost{S: newState()})
	err := r.RunString(`
		local a, b, c = ExchangeCarrots.new(5), ExchangeCarrots.new(5), ExchangeCarrots.new(-5)
		assert(a == b, "equal amounts")
		assert(a ~= c, "different amounts")
		assert(c < a)
		assert(a:amount() == 5)
		assert(a:kind() == "exchange_carrots")
		assert(EatSalad.new() == EatSalad.new())
		assert(tostring(c) == "ExchangeCarrots(-5)")
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if len(r.Results()) != 0 {
		t.Fatalf("constructing actions must not perform them")
	}
}

func TestScriptActorNotFound(t *testing.T) {
	s := newState()
	r := NewRunner(StateHost{S: s})
	err := r.RunString(`
		game:set_current("")
		assert(game:current() == nil)
		local ok, code = game:perform(ExchangeCarrots.new(1))
		assert(not ok and code == "actor_not_found", code)
		assert(game:carrots() == nil)
	`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if s.Players[0].Carrots != 10 {
		t.Fatalf("ledger mutated: %+v", s.Players)
	}
}

func TestScriptBadArguments(t *testing.T) {
	r := NewRunner(StateHost{S: newState()})
	if err := r.RunString(`game:perform(42)`); err == nil {
		t.Fatalf("expected error for non-action argument")
	}
	if err := r.RunString(`ExchangeCarrots.new("many")`); err == nil {
		t.Fatalf("expected error for non-integer amount")
	}
	for _, src := range []string{
		`game:perform(ExchangeCarrots.new(2.7))`,
		`game:perform(ExchangeCarrots.new(-0.5))`,
		`game:perform(ExchangeCarrots.new(1e300))`,
		`game:perform(ExchangeCarrots.new(0/0))`,
	} {
		if err := r.RunString(src); err == nil {
			t.Fatalf("%s: expected error for fractional amount", src)
		}
	}
	if got := r.Results(); len(got) != 0 {
		t.Fatalf("rejected constructor still performed: %+v", got)
	}
	if err := r.RunString(`assert(game:carrots() == 10); assert(ExchangeCarrots.new(3.0):amount() == 3)`); err != nil {
		t.Fatalf("whole float amount: %v", err)
	}
	if err := r.RunString(`error("boom")`); err == nil {
		t.Fatalf("expected script error to surface")
	}
}

func TestScriptThroughSession(t *testing.T) {
	ss := session.New("g1", newState(), nil)
	defer ss.Close()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bot.lua")
	src := `
		for _, k in ipairs(game:legal()) do
			if k == "eat_salad" then game:perform(EatSalad.new()) end
		end
		game:perform(ExchangeCarrots.new(-4))
	`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRunner(SessionHost(ctx, ss))
	if err := r.RunFile(path); err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	snap, err := ss.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// ONE trails TWO, so the salad is worth 30.
	if p := snap.Players[0]; p.Salads != 0 || p.Carrots != 36 {
		t.Fatalf("unexpected player %+v", p)
	}
	if len(r.Results()) != 2 {
		t.Fatalf("expected two performs, got %d", len(r.Results()))
	}
}
