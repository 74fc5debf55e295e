// Package agents provides the agent capability the environment drives,
// the pre-tick observation snapshot, and a concrete pursuit agent.
package agents

import (
	"fmt"

	"github.com/talgya/pursuit/internal/render"
	"github.com/talgya/pursuit/internal/world"
)

// Role is the side an agent plays in a pursuit.
type Role uint8

const (
	RoleTarget  Role = iota // Pursued; captured when surrounded
	RoleOfficer             // Pursuing
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleTarget:
		return "target"
	case RoleOfficer:
		return "officer"
	default:
		return "unknown"
	}
}

// Opponent returns the role this role plays against.
func (r Role) Opponent() Role {
	switch r {
	case RoleTarget:
		return RoleOfficer
	default:
		return RoleTarget
	}
}

// ParseRole maps a role name back to a Role.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "target", "prey":
		return RoleTarget, true
	case "officer", "predator":
		return RoleOfficer, true
	default:
		return 0, false
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts any name ParseRole does.
func (r *Role) UnmarshalText(b []byte) error {
	v, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("unknown role %q", b)
	}
	*r = v
	return nil
}

// Observation is an agent's state frozen at the start of a tick.
// Every decision and capture check within a tick reads observations,
// never the live agents.
type Observation struct {
	Index    int            `json:"index"` // Roster slot
	ID       string         `json:"id"`
	Role     Role           `json:"role"`
	Position world.Position `json:"position"`
}

// Agent is the capability the environment orchestrates. The environment never
// owns identity or decision logic; it only calls through this interface.
type Agent interface {
	ID() string
	Role() Role
	Position() world.Position
	// LimitBoard is the box used to enumerate legal directions.
	LimitBoard() world.Rect

	SetSizeBoard(board world.Board)
	SetPosition(pos world.Position)
	// Reset clears per-episode state before a spawn.
	Reset()

	// DrawAction picks a move given every agent's pre-tick state, itself included.
	DrawAction(obs []Observation) world.Direction
	SetReward(r float64)
	AddToHistory(action world.Direction, obs []Observation)

	Plot(c render.Canvas, radius int)
}

// Policy decides which direction an agent takes.
type Policy interface {
	Decide(self Observation, obs []Observation, legal []world.Direction) world.Direction
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(self Observation, obs []Observation, legal []world.Direction) world.Direction

// Decide calls f.
func (f PolicyFunc) Decide(self Observation, obs []Observation, legal []world.Direction) world.Direction {
	return f(self, obs, legal)
}

// Resetter is implemented by policies that keep per-episode state.
type Resetter interface {
	Reset()
}

// Snapshot freezes the roster into observations.
func Snapshot(roster []Agent) []Observation {
	obs := make([]Observation, len(roster))
	for i, a := range roster {
		obs[i] = Observation{Index: i, ID: a.ID(), Role: a.Role(), Position: a.Position()}
	}
	return obs
}

// Positions extracts the positions of observations with the given role.
func Positions(obs []Observation, role Role) []world.Position {
	var out []world.Position
	for _, o := range obs {
		if o.Role == role {
			out = append(out, o.Position)
		}
	}
	return out
}
