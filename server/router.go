// server/router.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"carrot-arena/server/agent"
	"carrot-arena/server/engine"
	"carrot-arena/server/session"
	"carrot-arena/server/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBody = 64 << 10

// newGameReq is the body of POST /api/games. Every field is optional.
type newGameReq struct {
	RulesPreset string             `json:"rules_preset"`
	Rules       json.RawMessage    `json:"rules"`
	Board       []engine.FieldKind `json:"board"`
	Players     []engine.Player    `json:"players"`
	Current     *engine.Team       `json:"current"`
}

func defaultPlayers() []engine.Player {
	return []engine.Player{
		{Team: engine.One, Carrots: 68, Salads: 5},
		{Team: engine.Two, Carrots: 68, Salads: 5},
	}
}

// Router wires the game API. db may be nil, in which case nothing is
// persisted and the log endpoint answers 503.
func Router(db *store.DB, mgr *session.Manager, rules engine.Rules) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		dbOK := false
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			dbOK = db.Ping(ctx) == nil
			cancel()
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": dbOK, "games": len(mgr.IDs())})
	})

	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			out := map[string]any{"ids": mgr.IDs()}
			if db != nil {
				recent, err := db.RecentGames(r.Context(), 50)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				out["recent"] = recent
			}
			writeJSON(w, http.StatusOK, out)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req newGameReq
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			g, err := req.build(rules)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			ss := mgr.Start(g)
			if db != nil {
				if err := db.CreateGame(r.Context(), ss.ID, g.Rules, g.Players); err != nil {
					log.Printf("create game %s: %v", ss.ID, err)
				}
			}
			writeJSON(w, http.StatusCreated, agent.BuildObservation(ss.ID, g))
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				ss, ok := lookup(w, r, mgr)
				if !ok {
					return
				}
				s, err := ss.Snapshot(r.Context())
				if err != nil {
					writeError(w, http.StatusGone, err.Error())
					return
				}
				tallies, err := ss.Tallies(r.Context())
				if err != nil {
					writeError(w, http.StatusGone, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"observation": agent.BuildObservation(ss.ID, s),
					"tallies":     tallies,
				})
			})

			r.Post("/actions", func(w http.ResponseWriter, r *http.Request) {
				ss, ok := lookup(w, r, mgr)
				if !ok {
					return
				}
				raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
				if err != nil {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				a, err := agent.Decode(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, err.Error())
					return
				}
				var e session.Entry
				// ?team= hands the turn over before acting
				if t := strings.TrimSpace(r.URL.Query().Get("team")); t != "" {
					e, err = ss.PerformAs(r.Context(), engine.Team(strings.ToUpper(t)), a)
				} else {
					e, err = ss.Perform(r.Context(), a)
				}
				if err != nil && e.Seq == 0 {
					// queue error, the action never reached the engine
					writeError(w, http.StatusGone, err.Error())
					return
				}
				status := http.StatusOK
				if err != nil {
					status = statusFor(err)
				}
				s, serr := ss.Snapshot(r.Context())
				if serr != nil {
					writeError(w, http.StatusGone, serr.Error())
					return
				}
				writeJSON(w, status, map[string]any{
					"ok":          err == nil,
					"entry":       toActionLog(e),
					"observation": agent.BuildObservation(ss.ID, s),
				})
			})

			r.Get("/log", func(w http.ResponseWriter, r *http.Request) {
				if db == nil {
					writeError(w, http.StatusServiceUnavailable, "no database configured")
					return
				}
				id := chi.URLParam(r, "id")
				if _, err := db.GetGame(r.Context(), id); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						writeError(w, http.StatusNotFound, "unknown game")
						return
					}
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				rows, err := db.ActionLogs(r.Context(), id)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				tallies, err := db.ActionTallies(r.Context(), id)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "tallies": tallies})
			})

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				if err := mgr.Stop(id); err != nil {
					writeError(w, http.StatusNotFound, "unknown game")
					return
				}
				if db != nil {
					if err := db.CompleteGame(r.Context(), id); err != nil {
						log.Printf("complete game %s: %v", id, err)
					}
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	return r
}

func (req newGameReq) build(base engine.Rules) (*engine.GameState, error) {
	rules := base
	if req.RulesPreset != "" {
		p, err := engine.RulesPreset(req.RulesPreset)
		if err != nil {
			return nil, err
		}
		rules = p
	}
	if len(req.Rules) > 0 {
		// keys left out keep the preset's value
		dec := json.NewDecoder(bytes.NewReader(req.Rules))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rules); err != nil {
			return nil, fmt.Errorf("bad rules: %w", err)
		}
		if err := rules.Validate(); err != nil {
			return nil, err
		}
	}
	board := req.Board
	if len(board) == 0 {
		board = engine.DefaultBoard()
	}
	players := req.Players
	if len(players) == 0 {
		players = defaultPlayers()
	}
	g := engine.NewGame(board, players, rules)
	if req.Current != nil {
		g.SetCurrent(*req.Current)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid game: %w", err)
	}
	return g, nil
}

func lookup(w http.ResponseWriter, r *http.Request, mgr *session.Manager) (*session.Session, bool) {
	ss, err := mgr.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown game")
		return nil, false
	}
	return ss, true
}

// statusFor maps engine errors: consistency problems are the host's fault
// (409), everything else is a rejected move (422).
func statusFor(err error) int {
	if engine.IsConsistency(err) {
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("bad request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
