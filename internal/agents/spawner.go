// Agent spawning. Builds a roster of officers and targets with sequential names.
package agents

import "fmt"

// PolicyFactory returns the policy for the n-th (0-based) agent of a role.
type PolicyFactory func(role Role, n int) Policy

// Spawner creates named agents for a scenario.
type Spawner struct {
	policies PolicyFactory
	opts     []Option
	counts   map[Role]int
}

// NewSpawner creates a spawner. opts are applied to every agent it creates.
func NewSpawner(policies PolicyFactory, opts ...Option) *Spawner {
	return &Spawner{
		policies: policies,
		opts:     opts,
		counts:   make(map[Role]int),
	}
}

// Spawn creates one agent of role, named "<role>-<n>" with n starting at 1.
func (s *Spawner) Spawn(role Role, extra ...Option) *Pursuer {
	n := s.counts[role]
	s.counts[role]++

	var policy Policy
	if s.policies != nil {
		policy = s.policies(role, n)
	}
	opts := append([]Option{WithName(fmt.Sprintf("%s-%d", role, n+1))}, s.opts...)
	opts = append(opts, extra...)
	return NewPursuer(role, policy, opts...)
}

// SpawnPopulation creates officers first, then targets.
func (s *Spawner) SpawnPopulation(officers, targets int) []*Pursuer {
	out := make([]*Pursuer, 0, officers+targets)
	for i := 0; i < officers; i++ {
		out = append(out, s.Spawn(RoleOfficer))
	}
	for i := 0; i < targets; i++ {
		out = append(out, s.Spawn(RoleTarget))
	}
	return out
}
