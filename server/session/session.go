package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"carrot-arena/server/engine"

	"github.com/google/uuid"
)

var (
	ErrClosed   = errors.New("session closed")
	ErrNotFound = errors.New("session not found")
)

// Entry describes one performed (or rejected) action.
type Entry struct {
	GameID        string
	Seq           int
	Actor         engine.Team
	Action        engine.Action
	Code          engine.Code // "" when accepted
	Message       string
	CarrotsBefore int
	CarrotsAfter  int
	SaladsAfter   int
	At            time.Time
}

// Recorder receives every entry, in queue order.
type Recorder interface {
	RecordAction(ctx context.Context, e Entry) error
}

type request struct {
	fn   func(s *engine.GameState)
	done chan struct{}
}

// Session owns one GameState and applies every mutation from a single
// goroutine, so performs on the same game never overlap.
type Session struct {
	ID string

	state *engine.GameState
	rec   Recorder
	reqs  chan request
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	seq   int
	tally map[engine.Team]*Tally
}

func New(id string, s *engine.GameState, rec Recorder) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	ss := &Session{
		ID:    id,
		state: s,
		rec:   rec,
		reqs:  make(chan request),
		quit:  make(chan struct{}),
		tally: map[engine.Team]*Tally{},
	}
	ss.wg.Add(1)
	go ss.loop()
	return ss
}

func (ss *Session) loop() {
	defer ss.wg.Done()
	for {
		select {
		case r := <-ss.reqs:
			r.fn(ss.state)
			close(r.done)
		case <-ss.quit:
			return
		}
	}
}

// do runs fn on the queue goroutine and waits for it. A cancelled ctx stops
// the wait for a free slot; once fn is accepted it always runs to completion.
func (ss *Session) do(ctx context.Context, fn func(s *engine.GameState)) error {
	r := request{fn: fn, done: make(chan struct{})}
	select {
	case ss.reqs <- r:
	case <-ss.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-r.done
	return nil
}

// Perform applies a on the session state. The returned error is the
// engine error unchanged, or a queue error (ErrClosed, ctx.Err()).
func (ss *Session) Perform(ctx context.Context, a engine.Action) (Entry, error) {
	if a == nil {
		return Entry{}, errors.New("nil action")
	}
	var (
		e      Entry
		actErr error
	)
	err := ss.do(ctx, func(s *engine.GameState) {
		e, actErr = ss.performLocked(ctx, s, a)
	})
	if err != nil {
		return Entry{}, err
	}
	return e, actErr
}

// PerformAs hands the turn to t and applies a in the same queue step, so no
// other request can move the turn between the two.
func (ss *Session) PerformAs(ctx context.Context, t engine.Team, a engine.Action) (Entry, error) {
	if a == nil {
		return Entry{}, errors.New("nil action")
	}
	var (
		e      Entry
		actErr error
	)
	err := ss.do(ctx, func(s *engine.GameState) {
		s.SetCurrent(t)
		e, actErr = ss.performLocked(ctx, s, a)
	})
	if err != nil {
		return Entry{}, err
	}
	return e, actErr
}

func (ss *Session) performLocked(ctx context.Context, s *engine.GameState, a engine.Action) (Entry, error) {
	ss.seq++
	e := Entry{GameID: ss.ID, Seq: ss.seq, Actor: s.Current, Action: a, At: time.Now()}
	if p, ok := s.Player(s.Current); ok {
		e.CarrotsBefore = p.Carrots
	}

	err := a.Perform(s)

	if p, ok := s.Player(s.Current); ok {
		e.CarrotsAfter = p.Carrots
		e.SaladsAfter = p.Salads
	}
	if err != nil {
		e.Code = engine.CodeOf(err)
		if e.Code == "" {
			// foreign errors are still rejections
			e.Code = "error"
		}
		var ae *engine.ActionError
		if errors.As(err, &ae) {
			e.Message = ae.Msg
		} else {
			e.Message = err.Error()
		}
	}
	ss.count(e)

	if ss.rec != nil {
		if rerr := ss.rec.RecordAction(context.WithoutCancel(ctx), e); rerr != nil {
			log.Printf("record action %s #%d: %v", ss.ID, e.Seq, rerr)
		}
	}
	return e, err
}

// Snapshot returns a deep copy of the state taken between two performs.
func (ss *Session) Snapshot(ctx context.Context) (*engine.GameState, error) {
	var cp *engine.GameState
	if err := ss.do(ctx, func(s *engine.GameState) { cp = s.Clone() }); err != nil {
		return nil, err
	}
	return cp, nil
}

// Update runs a host-side edit (turn hand-over, phase change) on the queue.
func (ss *Session) Update(ctx context.Context, fn func(s *engine.GameState)) error {
	return ss.do(ctx, fn)
}

func (ss *Session) SetCurrent(ctx context.Context, t engine.Team) error {
	return ss.do(ctx, func(s *engine.GameState) { s.SetCurrent(t) })
}

// Close stops the queue. Pending Perform calls return ErrClosed.
func (ss *Session) Close() {
	ss.once.Do(func() { close(ss.quit) })
	ss.wg.Wait()
}
