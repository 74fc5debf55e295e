// Step resolution for one tick of the pursuit.
package engine

import (
	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/entropy"
	"github.com/talgya/pursuit/internal/rewards"
	"github.com/talgya/pursuit/internal/world"
)

// StepResult is what one tick produced, every slice in roster order.
type StepResult struct {
	Tick       int               `json:"tick"`
	Positions  []world.Position  `json:"positions"`  // After the move
	Actions    []world.Direction `json:"actions"`    // Applied, after any noise override
	Chosen     []world.Direction `json:"chosen"`     // As drawn by each agent
	Overridden []bool            `json:"overridden"` // Noise replaced the chosen action
	Rewards    []float64         `json:"rewards"`
	Terminal   bool              `json:"terminal"` // Terminal condition of the previous tick
	Detected   bool              `json:"detected"` // Terminal condition of this tick
	Captured   bool              `json:"captured"` // Capture seen in this tick's snapshot
}

// Step advances the episode by one tick.
//
// Every agent decides against the same pre-tick snapshot, so roster order
// never lets one agent see another's move from the same tick. Capture is
// checked on that snapshot too.
//
// The terminal flag returned is the one computed on the previous tick: the
// transition that triggers the end is still rewarded and reported as a
// normal tick, and the next call reports terminal.
func (e *Env) Step() (StepResult, error) {
	if len(e.roster) == 0 {
		return StepResult{}, ErrNoAgents
	}
	if !e.started {
		return StepResult{}, ErrNotReset
	}

	e.tick++
	terminal := e.cfg.MaxEpisodeLength > 0 && e.tick >= e.cfg.MaxEpisodeLength

	roster := e.Agents()
	obs := agents.Snapshot(roster)

	captured := rewards.Captured(obs, rewards.Params{
		CaptureDistance: e.cfg.CaptureDistance,
		CaptureCount:    e.cfg.CaptureCount,
	})
	if captured {
		terminal = true
	}

	n := len(roster)
	res := StepResult{
		Tick:       e.tick,
		Captured:   captured,
		Positions:  make([]world.Position, n),
		Actions:    make([]world.Direction, n),
		Chosen:     make([]world.Direction, n),
		Overridden: make([]bool, n),
	}

	for i, a := range roster {
		from := obs[i].Position
		action := a.DrawAction(obs)
		res.Chosen[i] = action

		// Exploration noise, drawn independently per agent.
		if e.rng.Float64() < e.cfg.Noise {
			if d, ok := entropy.Choice(e.rng, world.PossibleDirections(a.LimitBoard(), from)); ok {
				action = d
				res.Overridden[i] = true
			}
		}

		next := world.PositionFromDirection(from, action)
		if !e.board.InBounds(next) {
			switch e.cfg.Bounds {
			case BoundsTerminal:
				next = from
				terminal = true
			default:
				next = e.board.Rect().Clamp(next)
			}
		}

		a.SetPosition(next)
		a.AddToHistory(action, obs)
		res.Positions[i] = next
		res.Actions[i] = action
	}

	res.Terminal, e.hasFinished = e.hasFinished, terminal
	res.Detected = terminal
	res.Rewards = e.GiveRewards()

	e.log.Debug("step",
		"tick", e.tick,
		"captured", captured,
		"detected", terminal,
		"terminal", res.Terminal,
	)
	if terminal && !res.Terminal {
		e.log.Info("terminal condition reached", "tick", e.tick, "captured", captured)
	}
	return res, nil
}
