// Package policy provides rule-based decision policies for pursuit agents.
// Learned policies live outside this module; these cover demos, baselines and tests.
package policy

import (
	"fmt"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/entropy"
	"github.com/talgya/pursuit/internal/world"
)

// Names of the built-in policies, as used in scenario files.
const (
	NameStatic = "static"
	NameRandom = "random"
	NameChase  = "chase"
	NameFlee   = "flee"
	NameGreedy = "greedy" // chase for officers, flee for targets
	NameWander = "wander"
)

// Static never moves.
type Static struct{}

func (Static) Decide(agents.Observation, []agents.Observation, []world.Direction) world.Direction {
	return world.Stay
}

// Random picks a uniformly random legal direction.
type Random struct {
	Src entropy.Source
}

func (r Random) Decide(_ agents.Observation, _ []agents.Observation, legal []world.Direction) world.Direction {
	d, ok := entropy.Choice(r.Src, legal)
	if !ok {
		return world.Stay
	}
	return d
}

// Chase steps toward the nearest opponent.
type Chase struct{}

func (Chase) Decide(self agents.Observation, obs []agents.Observation, legal []world.Direction) world.Direction {
	opponents := agents.Positions(obs, self.Role.Opponent())
	return best(self.Position, opponents, legal, func(d, cur float64) bool { return d < cur })
}

// Flee steps away from the nearest opponent.
type Flee struct{}

func (Flee) Decide(self agents.Observation, obs []agents.Observation, legal []world.Direction) world.Direction {
	opponents := agents.Positions(obs, self.Role.Opponent())
	return best(self.Position, opponents, legal, func(d, cur float64) bool { return d > cur })
}

// best returns the first legal direction whose resulting distance to the
// nearest opponent beats every other by better. Ties keep the earlier one.
func best(from world.Position, opponents []world.Position, legal []world.Direction, better func(d, cur float64) bool) world.Direction {
	if len(opponents) == 0 || len(legal) == 0 {
		return world.Stay
	}
	choice := legal[0]
	_, cur := world.Nearest(world.PositionFromDirection(from, choice), opponents)
	for _, dir := range legal[1:] {
		_, d := world.Nearest(world.PositionFromDirection(from, dir), opponents)
		if better(d, cur) {
			choice, cur = dir, d
		}
	}
	return choice
}

// Scripted replays a fixed direction sequence, then stays put.
// Directions that are not legal at replay time are replaced by Stay.
type Scripted struct {
	Moves []world.Direction
	next  int
}

func (s *Scripted) Decide(_ agents.Observation, _ []agents.Observation, legal []world.Direction) world.Direction {
	if s.next >= len(s.Moves) {
		return world.Stay
	}
	d := s.Moves[s.next]
	s.next++
	for _, l := range legal {
		if l == d {
			return d
		}
	}
	return world.Stay
}

// Reset rewinds the script.
func (s *Scripted) Reset() {
	s.next = 0
}

// Greedy returns Chase for officers and Flee for targets.
func Greedy(role agents.Role) agents.Policy {
	if role == agents.RoleOfficer {
		return Chase{}
	}
	return Flee{}
}

// ByName builds a named policy for the n-th agent of role.
func ByName(name string, role agents.Role, n int, src entropy.Source, seed int64) (agents.Policy, error) {
	switch name {
	case NameStatic, "":
		return Static{}, nil
	case NameRandom:
		return Random{Src: src}, nil
	case NameChase:
		return Chase{}, nil
	case NameFlee:
		return Flee{}, nil
	case NameGreedy:
		return Greedy(role), nil
	case NameWander:
		return NewWander(seed + int64(role)*1000 + int64(n)), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
