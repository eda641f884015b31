// Package script lets Lua scripts build actions and run them against a game,
// the way bots and scenario files drive the engine without a network client.
//
//	local a = ExchangeCarrots.new(10)
//	local ok, code, msg = game:perform(a)
//	print(game:carrots(), a:amount(), a == ExchangeCarrots.new(10))
package script

import (
	"context"
	"fmt"
	"math"

	"carrot-arena/server/engine"
	"carrot-arena/server/session"

	"github.com/Shopify/go-lua"
)

const (
	exchangeTypeName = "exchange_carrots"
	saladTypeName    = "eat_salad"
	gameTypeName     = "game"
)

// Host is what a script runs against.
type Host interface {
	Perform(a engine.Action) error
	State() *engine.GameState // read only, may be nil
	SetCurrent(t engine.Team) error
}

// StateHost runs actions directly on a state owned by the caller.
type StateHost struct{ S *engine.GameState }

func (h StateHost) Perform(a engine.Action) error { return a.Perform(h.S) }
func (h StateHost) State() *engine.GameState      { return h.S }

func (h StateHost) SetCurrent(t engine.Team) error {
	h.S.SetCurrent(t)
	return nil
}

// SessionHost routes every call through the session queue.
func SessionHost(ctx context.Context, ss *session.Session) Host {
	return sessionHost{ctx: ctx, ss: ss}
}

type sessionHost struct {
	ctx context.Context
	ss  *session.Session
}

func (h sessionHost) Perform(a engine.Action) error {
	_, err := h.ss.Perform(h.ctx, a)
	return err
}

func (h sessionHost) State() *engine.GameState {
	s, err := h.ss.Snapshot(h.ctx)
	if err != nil {
		return nil
	}
	return s
}

func (h sessionHost) SetCurrent(t engine.Team) error { return h.ss.SetCurrent(h.ctx, t) }

// Result is one game:perform call seen from the script.
type Result struct {
	Action engine.Action
	Err    error
}

type Runner struct {
	host    Host
	state   *lua.State
	results []Result
}

func NewRunner(h Host) *Runner {
	r := &Runner{host: h, state: lua.NewState()}
	lua.OpenLibraries(r.state)
	registerActionTypes(r.state)
	registerGame(r.state, r)
	return r
}

func (r *Runner) RunString(src string) error {
	if err := lua.DoString(r.state, src); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	return nil
}

func (r *Runner) RunFile(path string) error {
	if err := lua.DoFile(r.state, path); err != nil {
		return fmt.Errorf("run lua %s: %w", path, err)
	}
	return nil
}

// Results returns every perform call made so far, in order.
func (r *Runner) Results() []Result { return append([]Result(nil), r.results...) }

func registerActionTypes(l *lua.State) {
	lua.NewMetaTable(l, exchangeTypeName)
	l.NewTable()
	lua.SetFunctions(l, exchangeMethods, 0)
	l.SetField(-2, "__index")
	l.PushGoFunction(exchangeEq)
	l.SetField(-2, "__eq")
	l.PushGoFunction(exchangeLt)
	l.SetField(-2, "__lt")
	l.PushGoFunction(actionToString)
	l.SetField(-2, "__tostring")
	l.Pop(1)

	lua.NewMetaTable(l, saladTypeName)
	l.NewTable()
	lua.SetFunctions(l, saladMethods, 0)
	l.SetField(-2, "__index")
	l.PushGoFunction(func(l *lua.State) int {
		l.PushBoolean(true) // EatSalad has no fields
		return 1
	})
	l.SetField(-2, "__eq")
	l.PushGoFunction(actionToString)
	l.SetField(-2, "__tostring")
	l.Pop(1)

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "new", Function: exchangeNew}}, 0)
	l.SetGlobal("ExchangeCarrots")

	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "new", Function: saladNew}}, 0)
	l.SetGlobal("EatSalad")
}

var exchangeMethods = []lua.RegistryFunction{
	{Name: "amount", Function: func(l *lua.State) int {
		l.PushInteger(checkExchange(l, 1).Amount)
		return 1
	}},
	{Name: "kind", Function: func(l *lua.State) int {
		l.PushString(string(engine.KindExchangeCarrots))
		return 1
	}},
}

var saladMethods = []lua.RegistryFunction{
	{Name: "kind", Function: func(l *lua.State) int {
		l.PushString(string(engine.KindEatSalad))
		return 1
	}},
}

func exchangeNew(l *lua.State) int {
	n := lua.CheckNumber(l, 1)
	if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
		lua.ArgumentError(l, 1, "integer expected")
	}
	l.PushUserData(engine.NewExchangeCarrots(int(n)))
	lua.SetMetaTableNamed(l, exchangeTypeName)
	return 1
}

func saladNew(l *lua.State) int {
	l.PushUserData(engine.NewEatSalad())
	lua.SetMetaTableNamed(l, saladTypeName)
	return 1
}

func checkExchange(l *lua.State, index int) engine.ExchangeCarrots {
	ud := lua.CheckUserData(l, index, exchangeTypeName)
	if a, ok := ud.(engine.ExchangeCarrots); ok {
		return a
	}
	lua.ArgumentError(l, index, "ExchangeCarrots expected")
	return engine.ExchangeCarrots{}
}

func exchangeEq(l *lua.State) int {
	l.PushBoolean(checkExchange(l, 1) == checkExchange(l, 2))
	return 1
}

func exchangeLt(l *lua.State) int {
	l.PushBoolean(checkExchange(l, 1).Compare(checkExchange(l, 2)) < 0)
	return 1
}

func actionToString(l *lua.State) int {
	if a := toAction(l, 1); a != nil {
		l.PushString(fmt.Sprint(a))
		return 1
	}
	l.PushString("action")
	return 1
}

// toAction returns the engine action stored at index, or nil.
func toAction(l *lua.State, index int) engine.Action {
	if ud := lua.TestUserData(l, index, exchangeTypeName); ud != nil {
		if a, ok := ud.(engine.ExchangeCarrots); ok {
			return a
		}
	}
	if ud := lua.TestUserData(l, index, saladTypeName); ud != nil {
		if a, ok := ud.(engine.EatSalad); ok {
			return a
		}
	}
	return nil
}
