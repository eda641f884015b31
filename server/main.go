package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"carrot-arena/server/config"
	"carrot-arena/server/engine"
	"carrot-arena/server/llm"
	"carrot-arena/server/script"
	"carrot-arena/server/session"
	"carrot-arena/server/store"
)

//
// ===== pretty printing =====
//

var useColor bool
var debugState bool

const (
	colReset  = "\033[0m"
	colBold   = "\033[1m"
	colDim    = "\033[2m"
	colGreen  = "\033[32m"
	colRed    = "\033[31m"
	colYellow = "\033[33m"
	colCyan   = "\033[36m"
)

func c(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + colReset
}
func bold(s string) string { return c(colBold, s) }
func dim(s string) string  { return c(colDim, s) }
func good(s string) string { return c(colGreen, s) }
func warn(s string) string { return c(colYellow, s) }
func bad(s string) string  { return c(colRed, s) }
func cyan(s string) string { return c(colCyan, s) }
func teamTag(t engine.Team) string {
	if t == engine.One {
		return cyan(string(t))
	}
	return warn(string(t))
}
func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }

//
// ===== bootstrap =====
//

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	useColor = cfg.Color()
	debugState = cfg.Debug

	var migrate bool
	var scriptFile string
	var botTurns int
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--migrate":
			migrate = true
		case "--script":
			if i+1 >= len(args) {
				log.Fatal("--script needs a file")
			}
			i++
			scriptFile = args[i]
		case "--bot":
			if i+1 >= len(args) {
				log.Fatal("--bot needs a turn count")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				log.Fatalf("--bot: bad turn count %q", args[i])
			}
			botTurns = n
		}
	}

	rules, err := cfg.Rules()
	if err != nil {
		log.Fatalf("rules: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	var db *store.DB
	if cfg.DatabaseURL != "" {
		p, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			if migrate {
				log.Fatal(err)
			}
			log.Printf("DB disabled (open failed): %v", err)
		} else {
			db = p
			defer db.Close(context.Background())
			if migrate || cfg.AutoMigrate {
				if err := store.Migrate(ctx, db); err != nil {
					if migrate {
						log.Fatal(err)
					}
					log.Printf("migrate failed (continuing without DB): %v", err)
					db = nil
				} else {
					log.Println("migrated")
				}
			}
		}
	} else if migrate {
		log.Fatal("Missing required env var DATABASE_URL. Put it in .env (dev) or set it on the host (prod).")
	}
	if migrate {
		return
	}

	var rec session.Recorder
	if db != nil {
		rec = dbRecorder{db: db}
	}
	mgr := session.NewManager(rec)
	defer mgr.Close()

	if scriptFile != "" {
		if err := runScript(ctx, scriptFile, rules, mgr, db); err != nil {
			log.Fatal(err)
		}
		return
	}
	if botTurns > 0 {
		models := map[engine.Team]string{engine.One: cfg.BotModelOne, engine.Two: cfg.BotModelTwo}
		if err := runBot(ctx, botTurns, models, rules, mgr, db); err != nil {
			log.Fatal(err)
		}
		return
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      Router(db, mgr, rules),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("listening on http://localhost:%s (Ctrl+C to stop)", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}

//
// ===== script & bot modes =====
//

// startGame opens a fresh two-player game and, with a DB, records it. The
// returned func marks the game ended.
func startGame(ctx context.Context, rules engine.Rules, mgr *session.Manager, db *store.DB) (*session.Session, func()) {
	g := engine.NewGame(engine.DefaultBoard(), defaultPlayers(), rules)
	ss := mgr.Start(g)
	if db == nil {
		return ss, func() {}
	}
	if err := db.CreateGame(ctx, ss.ID, g.Rules, g.Players); err != nil {
		log.Printf("create game %s: %v", ss.ID, err)
	}
	return ss, func() {
		if err := db.CompleteGame(context.WithoutCancel(ctx), ss.ID); err != nil {
			log.Printf("complete game %s: %v", ss.ID, err)
		}
	}
}

// runScript plays a Lua file against a fresh two-player game and prints what
// happened.
func runScript(ctx context.Context, path string, rules engine.Rules, mgr *session.Manager, db *store.DB) error {
	ss, done := startGame(ctx, rules, mgr, db)
	defer done()

	section("Script " + path)
	fmt.Printf("%s game=%s rules=%+v\n", dim("•"), ss.ID, rules)

	r := script.NewRunner(script.SessionHost(ctx, ss))
	runErr := r.RunFile(path)

	for i, res := range r.Results() {
		if res.Err == nil {
			fmt.Printf("  %3d %s %s\n", i+1, good("ok "), res.Action)
			continue
		}
		tag := warn("rej")
		if engine.IsConsistency(res.Err) {
			tag = bad("ERR")
		}
		fmt.Printf("  %3d %s %s %s\n", i+1, tag, res.Action, dim(res.Err.Error()))
	}
	printSummary(ctx, ss)
	return runErr
}

func runBot(ctx context.Context, turns int, models map[engine.Team]string, rules engine.Rules, mgr *session.Manager, db *store.DB) error {
	ss, done := startGame(ctx, rules, mgr, db)
	defer done()

	section("Bots")
	fmt.Printf("%s game=%s ONE=%s TWO=%s\n", dim("•"), ss.ID, models[engine.One], models[engine.Two])
	err := runBotTurns(ctx, ss, turns, models, llmChooser(llm.EnvOptions()))
	printSummary(ctx, ss)
	return err
}

func printSummary(ctx context.Context, ss *session.Session) {
	if s, err := ss.Snapshot(ctx); err == nil {
		section("Ledger")
		for _, p := range s.Players {
			fmt.Printf("  %s pos=%d carrots=%d salads=%d\n", teamTag(p.Team), p.Position, p.Carrots, p.Salads)
		}
		if debugState {
			log.Printf("state: %+v", s)
		}
	}
	if tallies, err := ss.Tallies(ctx); err == nil {
		printTallies(tallies)
	}
}

func printTallies(ts []session.TeamTally) {
	if len(ts) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(bold("Action mix by team:"))
	for _, t := range ts {
		fmt.Printf("  %s → exchange:%d  salad:%d  rejected:%d(%.0f%%)  in:%d  out:%d  | total:%d\n",
			teamTag(t.Team),
			t.Exchanges, t.Salads,
			t.Rejected, 100*t.RejectRate(),
			t.CarrotsIn, t.CarrotsOut,
			t.Total(),
		)
	}
}
