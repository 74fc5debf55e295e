package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talgya/pursuit/internal/api"
	"github.com/talgya/pursuit/internal/config"
	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/persistence"
	"github.com/talgya/pursuit/internal/persistence/trajectory"
	"github.com/talgya/pursuit/internal/render"
)

type runOptions struct {
	configPath string
	episodes   int
	render     bool
	seed       int64
	dbPath     string
	trajDir    string
	port       int
	interval   time.Duration
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run pursuit episodes from a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEpisodes(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "scenario YAML file (default: built-in 10x10 scenario)")
	f.IntVar(&opts.episodes, "episodes", 0, "number of episodes (overrides the scenario)")
	f.BoolVar(&opts.render, "render", false, "draw the board after every tick")
	f.Int64Var(&opts.seed, "seed", 0, "random seed; 0 seeds from crypto/rand")
	f.StringVar(&opts.dbPath, "db", "", "SQLite file for episode storage")
	f.StringVar(&opts.trajDir, "traj", "", "directory for zstd trajectory logs")
	f.IntVar(&opts.port, "serve", 0, "serve the HTTP API on this port and keep running until interrupted")
	f.DurationVar(&opts.interval, "interval", 0, "pause between ticks")
	return cmd
}

// loadScenario reads the scenario file, then applies environment and flag overrides.
func loadScenario(cmd *cobra.Command, opts runOptions) (config.Scenario, error) {
	sc := config.Default()
	if opts.configPath != "" {
		var err error
		if sc, err = config.Load(opts.configPath); err != nil {
			return sc, err
		}
	}
	if err := sc.ApplyEnv(); err != nil {
		return sc, err
	}

	flags := cmd.Flags()
	if flags.Changed("episodes") {
		sc.Run.Episodes = opts.episodes
	}
	if flags.Changed("render") {
		sc.Run.Render = opts.render
	}
	if flags.Changed("seed") {
		sc.Env.Seed = opts.seed
	}
	if flags.Changed("db") {
		sc.Storage.DBPath = opts.dbPath
	}
	if flags.Changed("traj") {
		sc.Storage.TrajectoryDir = opts.trajDir
	}
	if flags.Changed("serve") {
		sc.API.Port = opts.port
	}
	if flags.Changed("interval") {
		sc.Run.IntervalMs = int(opts.interval.Milliseconds())
	}
	if sc.Run.Episodes <= 0 {
		sc.Run.Episodes = 1
	}
	return sc, nil
}

func runEpisodes(cmd *cobra.Command, opts runOptions) error {
	sc, err := loadScenario(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, roster, err := sc.Build(slog.Default())
	if err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}
	slog.Info("scenario loaded",
		"name", sc.Name,
		"board", env.Board().String(),
		"agents", len(roster),
		"reward", sc.Env.RewardType,
		"episodes", sc.Run.Episodes,
	)

	// ── Storage ──────────────────────────────────────────────────────
	var db *persistence.DB
	if sc.Storage.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(sc.Storage.DBPath), 0o755); err != nil {
			return err
		}
		if db, err = persistence.Open(sc.Storage.DBPath); err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", sc.Storage.DBPath)
		if err := db.SaveMeta("last_scenario", sc.Name); err != nil {
			slog.Warn("save run metadata", "error", err)
		}
		if err := db.SaveMeta("last_seed", strconv.FormatInt(sc.Env.Seed, 10)); err != nil {
			slog.Warn("save run metadata", "error", err)
		}
	}

	var traj *trajectory.Writer
	if sc.Storage.TrajectoryDir != "" {
		traj = trajectory.NewWriter(sc.Storage.TrajectoryDir)
		defer func() {
			if err := traj.Close(); err != nil {
				slog.Error("close trajectory log", "error", err)
			}
		}()
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	var server *api.Server
	if sc.API.Port > 0 {
		server = &api.Server{
			DB:       db,
			Port:     sc.API.Port,
			AdminKey: sc.API.AdminKey,
			Scenario: sc.Name,
		}
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP shutdown", "error", err)
			}
		}()
	}

	// ── Runner ───────────────────────────────────────────────────────
	runner := &engine.Runner{
		Env:            env,
		Interval:       time.Duration(sc.Run.IntervalMs) * time.Millisecond,
		MaxSteps:       sc.Run.MaxSteps,
		DiscardResults: true, // OnEpisode persists them
	}
	if sc.Run.Render {
		runner.Canvas = render.NewASCII(os.Stdout)
	}
	runner.OnStep = func(episode uuid.UUID, res engine.StepResult) {
		if traj != nil {
			if err := traj.Write(trajectory.FromStep(episode.String(), env, res)); err != nil {
				slog.Error("trajectory write", "episode", episode, "tick", res.Tick, "error", err)
			}
		}
		if server != nil {
			server.Publish(api.NewFrame(episode, env, res))
		}
	}
	runner.OnEpisode = func(sum engine.EpisodeSummary) {
		if db == nil {
			return
		}
		if err := db.SaveEpisode(sc.Name, sum); err != nil {
			slog.Error("save episode", "id", sum.ID, "error", err)
		}
	}

	start := time.Now()
	sums, err := runner.Run(ctx, sc.Run.Episodes)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	printSummary(sums, time.Since(start))

	if server != nil && ctx.Err() == nil {
		slog.Info("runs finished, serving until interrupted", "port", sc.API.Port)
		<-ctx.Done()
	}
	return nil
}

func printSummary(sums []engine.EpisodeSummary, took time.Duration) {
	var steps int64
	captured := 0
	for _, s := range sums {
		steps += int64(s.Steps)
		if s.Captured {
			captured++
		}
	}
	rate := 0.0
	if len(sums) > 0 {
		rate = 100 * float64(captured) / float64(len(sums))
	}
	fmt.Printf("%s episodes, %s ticks, %d captured (%s%%) in %s\n",
		humanize.Comma(int64(len(sums))),
		humanize.Comma(steps),
		captured,
		humanize.FtoaWithDigits(rate, 1),
		took.Round(time.Millisecond),
	)
}
