package main

import (
	"context"

	"carrot-arena/server/agent"
	"carrot-arena/server/session"
	"carrot-arena/server/store"
)

// dbRecorder persists session entries into action_logs.
type dbRecorder struct{ db *store.DB }

func (r dbRecorder) RecordAction(ctx context.Context, e session.Entry) error {
	_, err := r.db.InsertActionLog(ctx, toActionLog(e))
	return err
}

func toActionLog(e session.Entry) store.ActionLog {
	in := agent.Encode(e.Action)
	l := store.ActionLog{
		GameID:        e.GameID,
		Seq:           e.Seq,
		Actor:         string(e.Actor),
		Action:        in.Action,
		Amount:        in.Amount,
		OK:            e.Code == "",
		CarrotsBefore: e.CarrotsBefore,
		CarrotsAfter:  e.CarrotsAfter,
		SaladsAfter:   e.SaladsAfter,
		CreatedAt:     e.At,
	}
	if !l.OK {
		code, msg := string(e.Code), e.Message
		l.ErrorCode, l.ErrorMessage = &code, &msg
	}
	return l
}
