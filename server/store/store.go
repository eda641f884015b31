package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema embed.FS

var ErrNotFound = errors.New("not found")

type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

/* -----------------------------
   Games
------------------------------*/

type Game struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	EndedAt   *time.Time      `json:"ended_at"`
	Rules     json.RawMessage `json:"rules"`
	Players   json.RawMessage `json:"players"`
}

// CreateGame stores the starting setup of a game. rules and players are
// marshalled to JSONB as-is.
func (db *DB) CreateGame(ctx context.Context, id string, rules, players any) error {
	r, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	p, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `
		INSERT INTO games(id, rules, players)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, id, r, p)
	return err
}

func (db *DB) CompleteGame(ctx context.Context, id string) error {
	_, err := db.Exec(ctx, `UPDATE games SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`, id)
	return err
}

func (db *DB) GetGame(ctx context.Context, id string) (Game, error) {
	var g Game
	err := db.QueryRow(ctx, `
		SELECT id, created_at, ended_at, rules, players
		  FROM games WHERE id = $1
	`, id).Scan(&g.ID, &g.CreatedAt, &g.EndedAt, &g.Rules, &g.Players)
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	return g, err
}

// RecentGames lists the latest games, newest first.
func (db *DB) RecentGames(ctx context.Context, limit int) ([]Game, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	rows, err := db.Query(ctx, `
		SELECT id, created_at, ended_at, rules, players
		  FROM games
		 ORDER BY created_at DESC
		 LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Game{}
	for rows.Next() {
		var g Game
		if err := rows.Scan(&g.ID, &g.CreatedAt, &g.EndedAt, &g.Rules, &g.Players); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

/* -----------------------------
   Action log
------------------------------*/

type ActionLog struct {
	ID            int64     `json:"id"`
	GameID        string    `json:"game_id"`
	Seq           int       `json:"seq"`
	Actor         string    `json:"actor"`
	Action        string    `json:"action"`
	Amount        *int      `json:"amount"`
	OK            bool      `json:"ok"`
	ErrorCode     *string   `json:"error_code"`
	ErrorMessage  *string   `json:"error_message"`
	CarrotsBefore int       `json:"carrots_before"`
	CarrotsAfter  int       `json:"carrots_after"`
	SaladsAfter   int       `json:"salads_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// InsertActionLog records one action step for viewers and auditing.
func (db *DB) InsertActionLog(ctx context.Context, l ActionLog) (int64, error) {
	var amt, code, msg any
	if l.Amount != nil {
		amt = *l.Amount
	}
	if l.ErrorCode != nil {
		if v := strings.TrimSpace(*l.ErrorCode); v != "" {
			code = v
		}
	}
	if l.ErrorMessage != nil {
		if v := strings.TrimSpace(*l.ErrorMessage); v != "" {
			msg = v
		}
	}
	var id int64
	err := db.QueryRow(ctx, `
        INSERT INTO action_logs(
            game_id, seq, actor, action, amount,
            ok, error_code, error_message,
            carrots_before, carrots_after, salads_after
        ) VALUES (
            $1,$2,$3,$4,$5,
            $6,$7,$8,
            $9,$10,$11
        )
        ON CONFLICT (game_id, seq) DO NOTHING
        RETURNING id
    `,
		l.GameID, l.Seq, l.Actor, l.Action, amt,
		l.OK, code, msg,
		l.CarrotsBefore, l.CarrotsAfter, l.SaladsAfter,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// already recorded
		return 0, nil
	}
	return id, err
}

func (db *DB) ActionLogs(ctx context.Context, gameID string) ([]ActionLog, error) {
	rows, err := db.Query(ctx, `
		SELECT id, game_id, seq, actor, action, amount, ok, error_code, error_message,
		       carrots_before, carrots_after, salads_after, created_at
		  FROM action_logs
		 WHERE game_id = $1
		 ORDER BY seq
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ActionLog{}
	for rows.Next() {
		var l ActionLog
		if err := rows.Scan(&l.ID, &l.GameID, &l.Seq, &l.Actor, &l.Action, &l.Amount, &l.OK,
			&l.ErrorCode, &l.ErrorMessage, &l.CarrotsBefore, &l.CarrotsAfter, &l.SaladsAfter, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type Tally struct {
	Actor      string `json:"actor"`
	Exchanges  int    `json:"exchanges"`
	Salads     int    `json:"salads"`
	Rejected   int    `json:"rejected"`
	CarrotsIn  int    `json:"carrots_in"`
	CarrotsOut int    `json:"carrots_out"`
}

// ActionTallies aggregates the stored log per actor via the view.
func (db *DB) ActionTallies(ctx context.Context, gameID string) ([]Tally, error) {
	rows, err := db.Query(ctx, `
		SELECT actor, exchanges, salads, rejected, carrots_in, carrots_out
		  FROM v_action_tallies
		 WHERE game_id = $1
		 ORDER BY actor
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Tally{}
	for rows.Next() {
		var x Tally
		if err := rows.Scan(&x.Actor, &x.Exchanges, &x.Salads, &x.Rejected, &x.CarrotsIn, &x.CarrotsOut); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
