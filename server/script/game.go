package script

import (
	"carrot-arena/server/engine"

	"github.com/Shopify/go-lua"
)

var gameMethods = []lua.RegistryFunction{
	{Name: "perform", Function: gamePerform},
	{Name: "carrots", Function: gameCarrots},
	{Name: "salads", Function: gameSalads},
	{Name: "current", Function: gameCurrent},
	{Name: "set_current", Function: gameSetCurrent},
	{Name: "legal", Function: gameLegal},
}

func registerGame(l *lua.State, r *Runner) {
	lua.NewMetaTable(l, gameTypeName)
	l.NewTable()
	lua.SetFunctions(l, gameMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.PushUserData(r)
	lua.SetMetaTableNamed(l, gameTypeName)
	l.SetGlobal("game")
}

func checkRunner(l *lua.State) *Runner {
	ud := lua.CheckUserData(l, 1, gameTypeName)
	if r, ok := ud.(*Runner); ok && r != nil {
		return r
	}
	lua.ArgumentError(l, 1, "game expected")
	return nil
}

// game:perform(action) -> true | false, code, message
func gamePerform(l *lua.State) int {
	r := checkRunner(l)
	a := toAction(l, 2)
	if a == nil {
		lua.ArgumentError(l, 2, "action expected")
		return 0
	}
	err := r.host.Perform(a)
	r.results = append(r.results, Result{Action: a, Err: err})
	if err == nil {
		l.PushBoolean(true)
		return 1
	}
	l.PushBoolean(false)
	if code := engine.CodeOf(err); code != "" {
		l.PushString(string(code))
	} else {
		l.PushString("error")
	}
	l.PushString(err.Error())
	return 3
}

// player resolves the optional team argument at index 2, defaulting to the
// current actor.
func player(l *lua.State) (engine.Player, bool) {
	r := checkRunner(l)
	s := r.host.State()
	if s == nil {
		return engine.Player{}, false
	}
	team := engine.Team(lua.OptString(l, 2, string(s.Current)))
	return s.Player(team)
}

func gameCarrots(l *lua.State) int {
	p, ok := player(l)
	if !ok {
		l.PushNil()
		return 1
	}
	l.PushInteger(p.Carrots)
	return 1
}

func gameSalads(l *lua.State) int {
	p, ok := player(l)
	if !ok {
		l.PushNil()
		return 1
	}
	l.PushInteger(p.Salads)
	return 1
}

func gameCurrent(l *lua.State) int {
	s := checkRunner(l).host.State()
	if s == nil || s.Current == "" {
		l.PushNil()
		return 1
	}
	l.PushString(string(s.Current))
	return 1
}

func gameSetCurrent(l *lua.State) int {
	r := checkRunner(l)
	team := lua.OptString(l, 2, "")
	if err := r.host.SetCurrent(engine.Team(team)); err != nil {
		lua.Errorf(l, "set_current: %s", err.Error())
	}
	return 0
}

// game:legal() -> array of action kind strings
func gameLegal(l *lua.State) int {
	s := checkRunner(l).host.State()
	l.NewTable()
	if s == nil {
		return 1
	}
	for i, k := range engine.Legal(s) {
		l.PushString(string(k))
		l.RawSetInt(-2, i+1)
	}
	return 1
}
