// Package config loads pursuit scenarios from YAML.
// Documents are checked against an embedded JSON schema before decoding,
// and PURSUIT_* environment variables override storage, API and seed settings.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed scenario.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Scenario is one pursuit setup: board, environment constants, agents and run options.
type Scenario struct {
	Name    string        `yaml:"name"`
	Board   BoardConfig   `yaml:"board"`
	Env     EnvConfig     `yaml:"env"`
	Agents  AgentsConfig  `yaml:"agents"`
	Run     RunConfig     `yaml:"run"`
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
}

type BoardConfig struct {
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
	Depth   int  `yaml:"depth"`
	World3D bool `yaml:"world_3d"`
}

type EnvConfig struct {
	RewardType       string  `yaml:"reward_type"`
	Noise            float64 `yaml:"noise"`
	MaxEpisodeLength int     `yaml:"max_length_episode"`
	CaptureDistance  float64 `yaml:"capture_distance"`
	CaptureCount     int     `yaml:"capture_count"`
	AgentRadius      int     `yaml:"agent_radius"`
	Seed             int64   `yaml:"seed"`
	Bounds           string  `yaml:"bounds"`
}

type AgentsConfig struct {
	Officers []AgentSpec `yaml:"officers"`
	Targets  []AgentSpec `yaml:"targets"`
}

// AgentSpec describes one agent. Position fixes its spawn cell; without it
// the agent spawns at random each episode.
type AgentSpec struct {
	Name     string    `yaml:"name"`
	Policy   string    `yaml:"policy"`
	Position []int     `yaml:"position"`
	Zone     *ZoneSpec `yaml:"zone"`
}

type ZoneSpec struct {
	Min []int `yaml:"min"`
	Max []int `yaml:"max"`
}

type RunConfig struct {
	Episodes   int  `yaml:"episodes"`
	IntervalMs int  `yaml:"interval_ms"`
	MaxSteps   int  `yaml:"max_steps"`
	Render     bool `yaml:"render"`
}

type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	TrajectoryDir string `yaml:"trajectory_dir"`
}

type APIConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key"`
}

// Default returns the reference scenario: a 10×10 board, two greedy
// officers hunting one fleeing target.
func Default() Scenario {
	return Scenario{
		Name:  "default",
		Board: BoardConfig{Width: 10, Height: 10, Depth: 1},
		Env: EnvConfig{
			RewardType:       "full",
			Noise:            0.01,
			MaxEpisodeLength: 50,
			CaptureDistance:  1,
			CaptureCount:     2,
			AgentRadius:      1,
			Bounds:           "clamp",
		},
		Agents: AgentsConfig{
			Officers: []AgentSpec{{Policy: "greedy"}, {Policy: "greedy"}},
			Targets:  []AgentSpec{{Policy: "greedy"}},
		},
		Run: RunConfig{Episodes: 1},
	}
}

// Load reads and validates a scenario file. Keys absent from the file keep
// their Default values.
func Load(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	s, err := Parse(raw)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse validates and decodes a scenario document.
func Parse(raw []byte) (Scenario, error) {
	if err := Validate(raw); err != nil {
		return Scenario{}, err
	}
	s := Default()
	// A document listing agents replaces the default roster entirely.
	var probe struct {
		Agents *AgentsConfig `yaml:"agents"`
	}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	if probe.Agents != nil {
		s.Agents = AgentsConfig{}
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}
	return s, nil
}

// Validate checks a YAML document against the scenario schema.
func Validate(raw []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("scenario.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile schema: %w", schemaErr)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode scenario: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees plain JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalise scenario: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("normalise scenario: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}

// LoadEnvFiles loads the first .env file found among paths. Missing files are skipped.
func LoadEnvFiles(paths ...string) string {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// ApplyEnv overrides settings from PURSUIT_* environment variables.
func (s *Scenario) ApplyEnv() error {
	if v := os.Getenv("PURSUIT_DB"); v != "" {
		s.Storage.DBPath = v
	}
	if v := os.Getenv("PURSUIT_TRAJECTORY_DIR"); v != "" {
		s.Storage.TrajectoryDir = v
	}
	if v := os.Getenv("PURSUIT_ADMIN_KEY"); v != "" {
		s.API.AdminKey = v
	}
	if v := os.Getenv("PURSUIT_PORT"); v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PURSUIT_PORT: %w", err)
		}
		s.API.Port = port
	}
	if v := os.Getenv("PURSUIT_SEED"); v != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("PURSUIT_SEED: %w", err)
		}
		s.Env.Seed = seed
	}
	return nil
}
