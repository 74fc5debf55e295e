package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/pursuit/internal/render"
	"github.com/talgya/pursuit/internal/world"
)

// DefaultMaxSteps caps an episode when the environment has no length limit.
const DefaultMaxSteps = 10000

// EpisodeSummary describes one finished episode.
type EpisodeSummary struct {
	ID           uuid.UUID        `json:"id"`
	Index        int              `json:"index"`
	Steps        int              `json:"steps"`
	Terminal     bool             `json:"terminal"` // False when cut by MaxSteps
	Captured     bool             `json:"captured"`
	Spawn        []world.Position `json:"spawn"`
	TotalRewards []float64        `json:"total_rewards"`
	Started      time.Time        `json:"started"`
	Duration     time.Duration    `json:"duration"`

	Results []StepResult `json:"-"`
}

// Runner drives episodes: reset, then step until a terminal result.
type Runner struct {
	Env      *Env
	Interval time.Duration // Pause between ticks; 0 runs flat out
	MaxSteps int           // Safety cap per episode; 0 = DefaultMaxSteps
	Canvas   render.Canvas // Drawn after every tick when set

	// DiscardResults drops each episode's step results once OnEpisode has
	// seen them, so Run holds only the summaries.
	DiscardResults bool

	// Callbacks, populated during setup.
	OnStep    func(episode uuid.UUID, res StepResult)
	OnEpisode func(sum EpisodeSummary)
}

// Run plays n episodes and returns their summaries. It stops early if ctx
// is cancelled, returning the episodes completed so far.
func (r *Runner) Run(ctx context.Context, n int) ([]EpisodeSummary, error) {
	slog.Info("runner started", "episodes", n, "board", r.Env.Board().String())

	out := make([]EpisodeSummary, 0, n)
	for i := 0; i < n; i++ {
		sum, err := r.RunEpisode(ctx)
		if err != nil {
			return out, err
		}
		sum.Index = i
		if r.OnEpisode != nil {
			r.OnEpisode(sum)
		}
		if r.DiscardResults {
			sum.Results = nil
		}
		out = append(out, sum)
	}

	slog.Info("runner stopped", "episodes", len(out))
	return out, nil
}

// RunEpisode resets the environment and steps until it reports terminal.
// The summary returned alongside a cancellation or step error covers the
// ticks played so far, Duration included.
func (r *Runner) RunEpisode(ctx context.Context) (sum EpisodeSummary, err error) {
	spawn, err := r.Env.Reset()
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("reset: %w", err)
	}

	sum = EpisodeSummary{
		ID:           uuid.New(),
		Spawn:        spawn,
		TotalRewards: make([]float64, len(spawn)),
		Started:      time.Now(),
	}
	defer func() { sum.Duration = time.Since(sum.Started) }()
	if err := r.draw(); err != nil {
		return sum, err
	}

	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	for sum.Steps < maxSteps {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		start := time.Now()

		res, err := r.Env.Step()
		if err != nil {
			return sum, fmt.Errorf("step %d: %w", sum.Steps+1, err)
		}
		sum.Steps++
		sum.Results = append(sum.Results, res)
		sum.Captured = sum.Captured || res.Captured
		for i, v := range res.Rewards {
			if i < len(sum.TotalRewards) {
				sum.TotalRewards[i] += v
			}
		}
		if r.OnStep != nil {
			r.OnStep(sum.ID, res)
		}
		if err := r.draw(); err != nil {
			return sum, err
		}
		if res.Terminal {
			sum.Terminal = true
			break
		}

		if r.Interval > 0 {
			if elapsed := time.Since(start); elapsed < r.Interval {
				select {
				case <-ctx.Done():
					return sum, ctx.Err()
				case <-time.After(r.Interval - elapsed):
				}
			}
		}
	}

	slog.Info("episode finished",
		"id", sum.ID,
		"steps", sum.Steps,
		"captured", sum.Captured,
		"terminal", sum.Terminal,
	)
	return sum, nil
}

func (r *Runner) draw() error {
	if r.Canvas == nil {
		return nil
	}
	return r.Env.DrawBoard(r.Canvas)
}
