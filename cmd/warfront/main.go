// Command warfront runs a combat campaign: site squads, roaming forces and
// the player's group fighting over capturable sites.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/warfront/internal/api"
	"github.com/talgya/warfront/internal/config"
	"github.com/talgya/warfront/internal/engine"
	"github.com/talgya/warfront/internal/gamedata"
	"github.com/talgya/warfront/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./warfront.yaml if present)")
	headless := flag.Float64("headless", 0, "simulate this many seconds as fast as possible, print a summary and exit")
	fresh := flag.Bool("fresh", false, "ignore saved state and start a new campaign")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	setupLogging(cfg.SlogLevel())

	if err := run(cfg, *headless, *fresh); err != nil {
		slog.Error("warfront stopped", "error", err)
		os.Exit(1)
	}
}

// setupLogging picks a text handler on a terminal and JSON otherwise.
func setupLogging(level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func loadTables(path string) (*gamedata.Tables, error) {
	if path == "" {
		return gamedata.Default()
	}
	return gamedata.Load(path)
}

func run(cfg *config.Config, headless float64, fresh bool) error {
	tables, err := loadTables(cfg.Gamedata.Path)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Generate Campaign ─────────────────────────────────────
	sim, err := loadOrGenerate(db, tables, cfg, fresh)
	if err != nil {
		return err
	}

	eng := cfg.Engine()
	eng.Tick = sim.Tick
	save := func() {
		if err := db.Save(sim.Snapshot()); err != nil {
			slog.Error("save failed", "error", err)
		}
	}
	eng.OnStep = func(_ uint64, dt float64) { sim.Step(dt) }
	eng.OnIdle = sim.DrainCommands
	eng.OnReport = func(uint64) { sim.Report() }
	eng.OnAutosave = func(uint64) { save() }

	if headless > 0 {
		return runHeadless(sim, eng, headless, save)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("api.adminKey not set; admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:         sim,
		Eng:         eng,
		DB:          db,
		Port:        cfg.API.Port,
		AdminKey:    cfg.API.AdminKey,
		CommandRate: cfg.API.CommandRate,
	}
	srv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nCampaign %s: %d units across %d sites.\n", sim.CampaignID, len(sim.Units), len(sim.Sites))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if sim.Tick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.Tick, engine.SimTime(sim.Elapsed))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	slog.Info("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	save()
	fmt.Println("Simulation stopped. Campaign saved.")
	return nil
}

func loadOrGenerate(db *persistence.DB, tables *gamedata.Tables, cfg *config.Config, fresh bool) (*engine.Simulation, error) {
	if !fresh {
		snap, err := db.Load()
		switch {
		case err == nil:
			sim, err := engine.Restore(snap, tables, cfg.Options())
			if err != nil {
				return nil, fmt.Errorf("restore campaign: %w", err)
			}
			slog.Info("campaign restored",
				"campaign", sim.CampaignID,
				"units", len(sim.Units),
				"sites", len(sim.Sites),
				"tick", sim.Tick,
				"sim_time", engine.SimTime(sim.Elapsed),
			)
			return sim, nil
		case !errors.Is(err, persistence.ErrNoState):
			return nil, fmt.Errorf("load campaign: %w", err)
		}
	}

	slog.Info("no saved state found, generating new campaign...", "seed", cfg.Sim.Seed)
	sim, err := engine.NewCampaign(tables, cfg.CampaignConfig(), cfg.Options())
	if err != nil {
		return nil, fmt.Errorf("generate campaign: %w", err)
	}
	if err := db.Save(sim.Snapshot()); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	return sim, nil
}

// runHeadless advances the campaign without real-time pacing.
func runHeadless(sim *engine.Simulation, eng *engine.Engine, seconds float64, save func()) error {
	slog.Info("headless run", "seconds", seconds)
	start := time.Now()
	steps := eng.Advance(seconds)
	save()

	fmt.Print(sim.Summary())
	fmt.Printf("  %d steps in %s\n", steps, time.Since(start).Round(time.Millisecond))
	return nil
}
