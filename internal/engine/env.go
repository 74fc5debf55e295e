// Package engine provides the pursuit environment and the episode loop.
// Env owns the board, the agent roster, the episode clock and the terminal
// flag; agents, rewards and rendering are reached through interfaces.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/entropy"
	"github.com/talgya/pursuit/internal/render"
	"github.com/talgya/pursuit/internal/rewards"
	"github.com/talgya/pursuit/internal/world"
)

var (
	// ErrNoAgents is returned by Reset and Step when the roster is empty.
	ErrNoAgents = errors.New("no agents registered")
	// ErrNotReset is returned by Step before the first Reset.
	ErrNotReset = errors.New("step called before reset")
	// ErrAgentNotFound is returned by SetPosition for an unregistered agent.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrOffBoard is returned when a fixed spawn lies outside the board.
	ErrOffBoard = errors.New("position off board")
)

// BoundsPolicy decides what happens to a move that leaves the board.
type BoundsPolicy uint8

const (
	BoundsClamp    BoundsPolicy = iota // Snap the position back onto the board
	BoundsTerminal                     // Stay in place and end the episode
)

// Config holds the environment constants.
type Config struct {
	Noise            float64 // Probability of replacing an agent's action by a random legal one
	MaxEpisodeLength int     // Ticks before the episode ends; 0 disables the limit
	CaptureDistance  float64 // Officers within this distance of a target count toward capture
	CaptureCount     int     // Officers needed around one target to capture it
	AgentRadius      int     // Render radius of an agent
	World3D          bool    // Enables Forward/Backward moves
	Depth            int     // Z layers when World3D
	Seed             int64   // 0 = crypto-seeded
	Bounds           BoundsPolicy

	// Source overrides the random source built from Seed.
	Source entropy.Source
	Logger *slog.Logger
}

// DefaultConfig returns the reference constants.
func DefaultConfig() Config {
	return Config{
		Noise:            0.01,
		MaxEpisodeLength: 50,
		CaptureDistance:  1,
		CaptureCount:     2,
		AgentRadius:      1,
		Depth:            1,
	}
}

// rosterEntry pairs an agent with its optional fixed spawn.
type rosterEntry struct {
	agent agents.Agent
	spawn *world.Position
}

// Env is the pursuit environment. Not safe for concurrent use: one Step
// fully resolves before the next may begin.
//
// Agents may be registered more than once; each registration is an
// independent roster slot pointing at the same agent. Callers that do this
// get the agent moved, rewarded and recorded once per slot.
type Env struct {
	cfg    Config
	board  world.Board
	reward rewards.Func
	rng    entropy.Source
	log    *slog.Logger

	roster []rosterEntry

	tick        int
	hasFinished bool // Terminal condition computed on the previous tick
	started     bool
}

// NewEnv creates an environment on a width×height board with the given reward mode.
func NewEnv(width, height int, mode rewards.Mode, cfg Config) (*Env, error) {
	board := world.Board{Width: width, Height: height, Depth: 1}
	if cfg.World3D {
		board.Depth = max(cfg.Depth, 1)
	}
	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("new env: %w", err)
	}
	if cfg.Noise < 0 || cfg.Noise > 1 {
		return nil, fmt.Errorf("new env: noise %v outside [0,1]", cfg.Noise)
	}
	if cfg.MaxEpisodeLength < 0 {
		return nil, fmt.Errorf("new env: negative max episode length %d", cfg.MaxEpisodeLength)
	}
	if cfg.CaptureCount <= 0 {
		cfg.CaptureCount = DefaultConfig().CaptureCount
	}

	reward, err := rewards.New(mode, rewards.Params{
		CaptureDistance: cfg.CaptureDistance,
		CaptureCount:    cfg.CaptureCount,
		Board:           board,
	})
	if err != nil {
		return nil, fmt.Errorf("new env: %w", err)
	}

	rng := cfg.Source
	if rng == nil {
		rng = entropy.NewSeeded(cfg.Seed)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Env{
		cfg:    cfg,
		board:  board,
		reward: reward,
		rng:    rng,
		log:    logger,
	}, nil
}

// Board returns the board bounds.
func (e *Env) Board() world.Board { return e.board }

// Config returns the constants the environment was built with.
func (e *Env) Config() Config { return e.cfg }

// Tick returns the episode clock.
func (e *Env) Tick() int { return e.tick }

// Finished reports the internal terminal flag, which Step surfaces one tick later.
func (e *Env) Finished() bool { return e.hasFinished }

// Agents returns the roster in registration order.
func (e *Env) Agents() []agents.Agent {
	out := make([]agents.Agent, len(e.roster))
	for i, r := range e.roster {
		out[i] = r.agent
	}
	return out
}

// AddAgent appends an agent to the roster and tells it the board size.
// A nil position means the agent spawns at a random cell on every reset.
// An off-board position is kept but makes Reset fail with ErrOffBoard.
func (e *Env) AddAgent(a agents.Agent, position *world.Position) {
	e.roster = append(e.roster, rosterEntry{agent: a, spawn: copyPos(position)})
	a.SetSizeBoard(e.board)
	e.log.Debug("agent registered", "id", a.ID(), "role", a.Role(), "slot", len(e.roster)-1)
}

// SetPosition overrides the fixed spawn of the first roster slot holding a.
// A nil position switches that slot back to random spawning.
// Unlike a silent no-op, a miss is reported as ErrAgentNotFound.
func (e *Env) SetPosition(a agents.Agent, position *world.Position) error {
	if position != nil && !e.board.InBounds(*position) {
		return fmt.Errorf("set position %s to %v: %w", a.ID(), *position, ErrOffBoard)
	}
	for i := range e.roster {
		if e.roster[i].agent == a {
			e.roster[i].spawn = copyPos(position)
			return nil
		}
	}
	return fmt.Errorf("set position %s: %w", a.ID(), ErrAgentNotFound)
}

// Reset starts a new episode and returns the spawn positions in roster order.
func (e *Env) Reset() ([]world.Position, error) {
	if len(e.roster) == 0 {
		return nil, ErrNoAgents
	}
	for i, r := range e.roster {
		if r.spawn != nil && !e.board.InBounds(*r.spawn) {
			return nil, fmt.Errorf("reset slot %d (%s) at %v: %w", i, r.agent.ID(), *r.spawn, ErrOffBoard)
		}
	}
	e.tick = 0
	e.hasFinished = false
	e.started = true

	positions := make([]world.Position, len(e.roster))
	for i, r := range e.roster {
		r.agent.Reset()
		pos := e.randomPosition()
		if r.spawn != nil {
			pos = *r.spawn
		}
		positions[i] = pos
		r.agent.SetPosition(pos)
	}
	e.log.Debug("episode reset", "agents", len(e.roster), "board", e.board.String())
	return positions, nil
}

// randomPosition draws x, then y (then z on 3D boards) uniformly.
func (e *Env) randomPosition() world.Position {
	p := world.Position{X: e.rng.IntN(e.board.Width), Y: e.rng.IntN(e.board.Height)}
	if e.board.Is3D() {
		p.Z = e.rng.IntN(e.board.Depth)
	}
	return p
}

// GiveRewards computes the reward vector for the current state and pushes
// each value into its agent, in roster order.
func (e *Env) GiveRewards() []float64 {
	roster := e.Agents()
	rs := e.reward(roster, e.tick)
	for i, r := range rs {
		if i < len(roster) {
			roster[i].SetReward(r)
		}
	}
	return rs
}

// DrawBoard renders the current state. It is never called from Step.
func (e *Env) DrawBoard(c render.Canvas) error {
	c.Begin(e.board, e.tick)
	for _, r := range e.roster {
		r.agent.Plot(c, e.cfg.AgentRadius)
	}
	return c.Flush()
}

func copyPos(p *world.Position) *world.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
