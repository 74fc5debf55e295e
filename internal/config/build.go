package config

import (
	"fmt"
	"log/slog"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/entropy"
	"github.com/talgya/pursuit/internal/policy"
	"github.com/talgya/pursuit/internal/rewards"
	"github.com/talgya/pursuit/internal/world"
)

// EngineConfig converts the env section to engine constants.
func (s Scenario) EngineConfig() (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.Noise = s.Env.Noise
	cfg.MaxEpisodeLength = s.Env.MaxEpisodeLength
	cfg.CaptureDistance = s.Env.CaptureDistance
	cfg.CaptureCount = s.Env.CaptureCount
	cfg.AgentRadius = s.Env.AgentRadius
	cfg.World3D = s.Board.World3D
	cfg.Depth = s.Board.Depth
	cfg.Seed = s.Env.Seed

	switch s.Env.Bounds {
	case "", "clamp":
		cfg.Bounds = engine.BoundsClamp
	case "terminal":
		cfg.Bounds = engine.BoundsTerminal
	default:
		return cfg, fmt.Errorf("unknown bounds policy %q", s.Env.Bounds)
	}
	return cfg, nil
}

// Build creates the environment and registers the scenario's agents,
// officers first. The returned agents are in roster order.
func (s Scenario) Build(logger *slog.Logger) (*engine.Env, []*agents.Pursuer, error) {
	mode, err := rewards.ParseMode(s.Env.RewardType)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := s.EngineConfig()
	if err != nil {
		return nil, nil, err
	}
	src := entropy.NewSeeded(s.Env.Seed)
	cfg.Source = src
	cfg.Logger = logger

	env, err := engine.NewEnv(s.Board.Width, s.Board.Height, mode, cfg)
	if err != nil {
		return nil, nil, err
	}

	var specs []AgentSpec
	var roles []agents.Role
	for _, a := range s.Agents.Officers {
		specs = append(specs, a)
		roles = append(roles, agents.RoleOfficer)
	}
	for _, a := range s.Agents.Targets {
		specs = append(specs, a)
		roles = append(roles, agents.RoleTarget)
	}

	var buildErr error
	spawner := agents.NewSpawner(func(role agents.Role, n int) agents.Policy {
		idx := n
		if role == agents.RoleTarget {
			idx += len(s.Agents.Officers)
		}
		p, err := policy.ByName(specs[idx].Policy, role, n, src, s.Env.Seed)
		if err != nil && buildErr == nil {
			buildErr = err
		}
		return p
	})

	roster := make([]*agents.Pursuer, 0, len(specs))
	for i, spec := range specs {
		var opts []agents.Option
		if spec.Name != "" {
			opts = append(opts, agents.WithName(spec.Name))
		}
		if spec.Zone != nil {
			zone, err := zoneRect(*spec.Zone)
			if err != nil {
				return nil, nil, fmt.Errorf("agent %d: %w", i, err)
			}
			opts = append(opts, agents.WithZone(zone))
		}
		a := spawner.Spawn(roles[i], opts...)
		if buildErr != nil {
			return nil, nil, fmt.Errorf("agent %d: %w", i, buildErr)
		}

		var spawn *world.Position
		if spec.Position != nil {
			p, err := cell(spec.Position)
			if err != nil {
				return nil, nil, fmt.Errorf("agent %d: %w", i, err)
			}
			if !env.Board().InBounds(p) {
				return nil, nil, fmt.Errorf("agent %d: position %v outside %s", i, spec.Position, env.Board())
			}
			spawn = &p
		}
		env.AddAgent(a, spawn)
		roster = append(roster, a)
	}
	return env, roster, nil
}

func cell(v []int) (world.Position, error) {
	switch len(v) {
	case 2:
		return world.Position{X: v[0], Y: v[1]}, nil
	case 3:
		return world.Position{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return world.Position{}, fmt.Errorf("cell needs 2 or 3 coordinates, got %d", len(v))
	}
}

// zoneRect reads an inclusive min/max pair into a half-open box.
func zoneRect(z ZoneSpec) (world.Rect, error) {
	lo, err := cell(z.Min)
	if err != nil {
		return world.Rect{}, err
	}
	hi, err := cell(z.Max)
	if err != nil {
		return world.Rect{}, err
	}
	return world.Rect{Min: lo, Max: world.Position{X: hi.X + 1, Y: hi.Y + 1, Z: hi.Z + 1}}, nil
}
