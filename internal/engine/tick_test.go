package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/policy"
	"github.com/talgya/pursuit/internal/rewards"
	"github.com/talgya/pursuit/internal/world"
)

func TestRunnerStopsOnReportedTerminal(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxEpisodeLength = 4
	env := newEnv(t, rewards.ModeSparse, cfg)
	env.AddAgent(agents.NewPursuer(agents.RoleOfficer, policy.Static{}), at(0, 0))
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), at(9, 9))

	var steps int
	var ended []EpisodeSummary
	canvas := &countingCanvas{}
	r := &Runner{
		Env:       env,
		Canvas:    canvas,
		OnStep:    func(uuid.UUID, StepResult) { steps++ },
		OnEpisode: func(s EpisodeSummary) { ended = append(ended, s) },
	}

	sums, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	for i, s := range sums {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, 5, s.Steps)
		assert.True(t, s.Terminal)
		assert.False(t, s.Captured)
		assert.Len(t, s.Results, 5)
		assert.Equal(t, []world.Position{{X: 0, Y: 0}, {X: 9, Y: 9}}, s.Spawn)
	}
	assert.NotEqual(t, sums[0].ID, sums[1].ID)
	assert.Equal(t, 10, steps)
	assert.Len(t, ended, 2)
	// One frame after reset plus one per tick.
	assert.Equal(t, 12, canvas.flushes)
}

func TestRunnerCapture(t *testing.T) {
	env := newEnv(t, rewards.ModeSparse, quietConfig())
	env.AddAgent(agents.NewPursuer(agents.RoleOfficer, policy.Chase{}), at(2, 5))
	env.AddAgent(agents.NewPursuer(agents.RoleOfficer, policy.Chase{}), at(8, 5))
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), at(5, 5))

	sum, err := (&Runner{Env: env}).RunEpisode(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Captured)
	assert.True(t, sum.Terminal)
	assert.Less(t, sum.Steps, 10)
	assert.Greater(t, sum.TotalRewards[0], 0.0)
	assert.Less(t, sum.TotalRewards[2], 0.0)
}

func TestRunnerMaxStepsCap(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxEpisodeLength = 0
	env := newEnv(t, rewards.ModeFull, cfg)
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), nil)

	sum, err := (&Runner{Env: env, MaxSteps: 7}).RunEpisode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Steps)
	assert.False(t, sum.Terminal)
}

func TestRunnerHonoursContext(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxEpisodeLength = 0
	env := newEnv(t, rewards.ModeFull, cfg)
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{Env: env, Interval: time.Millisecond}
	r.OnStep = func(_ uuid.UUID, res StepResult) {
		if res.Tick == 3 {
			cancel()
		}
	}
	sums, err := r.Run(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sums)
}

func TestRunnerSetsDurationWhenCancelled(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxEpisodeLength = 0
	env := newEnv(t, rewards.ModeFull, cfg)
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{Env: env, Interval: time.Millisecond}
	r.OnStep = func(_ uuid.UUID, res StepResult) {
		if res.Tick == 3 {
			cancel()
		}
	}
	sum, err := r.RunEpisode(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, sum.Steps)
	assert.Len(t, sum.Results, 3)
	assert.Positive(t, sum.Duration)
	assert.False(t, sum.Terminal)
}

func TestRunnerDiscardsResultsAfterOnEpisode(t *testing.T) {
	cfg := quietConfig()
	cfg.MaxEpisodeLength = 2
	env := newEnv(t, rewards.ModeSparse, cfg)
	env.AddAgent(agents.NewPursuer(agents.RoleOfficer, policy.Static{}), at(0, 0))
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, policy.Static{}), at(9, 9))

	var seen []int
	r := &Runner{
		Env:            env,
		DiscardResults: true,
		OnEpisode:      func(s EpisodeSummary) { seen = append(seen, len(s.Results)) },
	}
	sums, err := r.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3}, seen)
	require.Len(t, sums, 3)
	for _, s := range sums {
		assert.Nil(t, s.Results)
		assert.Equal(t, 3, s.Steps)
	}
}

func TestRunnerPropagatesResetError(t *testing.T) {
	env := newEnv(t, rewards.ModeFull, quietConfig())
	_, err := (&Runner{Env: env}).RunEpisode(context.Background())
	assert.ErrorIs(t, err, ErrNoAgents)
}
