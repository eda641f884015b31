package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"carrot-arena/server/agent"
	"carrot-arena/server/engine"
	"carrot-arena/server/llm"
	"carrot-arena/server/session"
)

// chooser picks the next action for the team to act. llm.ChooseAction in
// production, a stub in tests.
type chooser func(ctx context.Context, model string, obs agent.Observation) (engine.Action, string, error)

func llmChooser(opts llm.PingOptions) chooser {
	return func(ctx context.Context, model string, obs agent.Observation) (engine.Action, string, error) {
		return llm.ChooseAction(ctx, model, obs, opts)
	}
}

const botRetries = 2

// runBotTurns lets two models take turns on ss. Every turn the current team
// gets one action; a model that keeps answering with illegal moves forfeits
// the turn.
func runBotTurns(ctx context.Context, ss *session.Session, turns int, models map[engine.Team]string, choose chooser) error {
	order := []engine.Team{engine.One, engine.Two}
	for turn := 0; turn < turns; turn++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		team := order[turn%len(order)]
		err := ss.Update(ctx, func(s *engine.GameState) {
			s.SetCurrent(team)
			s.Turn = turn
		})
		if err != nil {
			return err
		}
		s, err := ss.Snapshot(ctx)
		if err != nil {
			return err
		}
		obs := agent.BuildObservation(ss.ID, s)
		if len(obs.Legal) == 0 {
			fmt.Printf("  %3d %s %s\n", turn+1, teamTag(team), dim("no legal action"))
			continue
		}

		var a engine.Action
		for attempt := 0; attempt <= botRetries; attempt++ {
			t0 := time.Now()
			act, raw, err := choose(ctx, models[team], obs)
			if err == nil {
				a = act
				if debugState {
					log.Printf("bot %s turn=%d dt=%s raw=%s", team, turn, time.Since(t0).Round(time.Millisecond), raw)
				}
				break
			}
			log.Printf("bot %s turn=%d attempt=%d: %v", team, turn, attempt+1, err)
		}
		if a == nil {
			fmt.Printf("  %3d %s %s\n", turn+1, teamTag(team), bad("forfeit"))
			continue
		}

		e, err := ss.PerformAs(ctx, team, a)
		switch {
		case err == nil:
			fmt.Printf("  %3d %s %s %s\n", turn+1, teamTag(team), good("ok "), a)
		case e.Seq == 0:
			return err
		default:
			fmt.Printf("  %3d %s %s %s %s\n", turn+1, teamTag(team), warn("rej"), a, dim(err.Error()))
		}
	}
	return nil
}
