// Package rewards computes the per-tick reward vector handed to every agent.
// Reward functions are pure: they read agent state and return one value per
// agent in roster order.
package rewards

import (
	"errors"
	"fmt"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/world"
)

// Mode selects the reward function.
type Mode string

const (
	ModeFull   Mode = "full"   // Distance-shaped every tick, plus capture outcome
	ModeSparse Mode = "sparse" // Capture outcome only
)

// ErrUnknownMode is returned for a mode other than full or sparse.
var ErrUnknownMode = errors.New("unknown reward type")

// Capture outcome values.
const (
	CaptureReward  = 1.0
	CapturePenalty = -1.0
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeFull, ModeSparse:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Params are the environment constants a reward function needs.
type Params struct {
	CaptureDistance float64
	CaptureCount    int
	Board           world.Board
}

// Func maps the roster and current tick to one reward per agent, index-aligned.
type Func func(roster []agents.Agent, tick int) []float64

// New returns the reward function for mode.
func New(mode Mode, p Params) (Func, error) {
	switch mode {
	case ModeFull:
		return func(roster []agents.Agent, tick int) []float64 { return Full(roster, tick, p) }, nil
	case ModeSparse:
		return func(roster []agents.Agent, tick int) []float64 { return Sparse(roster, tick, p) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

// Captured reports whether any target has at least CaptureCount officers
// within CaptureDistance.
func Captured(obs []agents.Observation, p Params) bool {
	officers := agents.Positions(obs, agents.RoleOfficer)
	for _, o := range obs {
		if o.Role != agents.RoleTarget {
			continue
		}
		if len(world.WithinDistance(o.Position, officers, p.CaptureDistance)) >= p.CaptureCount {
			return true
		}
	}
	return false
}

// Sparse pays only on capture: officers +1, targets -1. Otherwise all zero.
func Sparse(roster []agents.Agent, _ int, p Params) []float64 {
	obs := agents.Snapshot(roster)
	out := make([]float64, len(roster))
	if Captured(obs, p) {
		fillCapture(out, obs)
	}
	return out
}

// Full pays the capture outcome when it happens and otherwise shapes by
// distance: officers lose the normalised distance to their nearest target,
// targets gain the normalised distance to their nearest officer.
// An agent with no opponent on the board gets 0.
func Full(roster []agents.Agent, _ int, p Params) []float64 {
	obs := agents.Snapshot(roster)
	out := make([]float64, len(roster))
	if Captured(obs, p) {
		fillCapture(out, obs)
		return out
	}

	diag := p.Board.Diagonal()
	for i, o := range obs {
		opponents := agents.Positions(obs, o.Role.Opponent())
		j, d := world.Nearest(o.Position, opponents)
		if j < 0 {
			continue
		}
		switch o.Role {
		case agents.RoleOfficer:
			out[i] = -d / diag
		case agents.RoleTarget:
			out[i] = d / diag
		}
	}
	return out
}

func fillCapture(out []float64, obs []agents.Observation) {
	for i, o := range obs {
		switch o.Role {
		case agents.RoleOfficer:
			out[i] = CaptureReward
		case agents.RoleTarget:
			out[i] = CapturePenalty
		}
	}
}
