package policy

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/world"
)

// Wander drifts across the board along a smooth simplex-noise path.
// Consecutive ticks sample nearby noise, so the agent tends to keep heading
// the same way instead of jittering like Random.
type Wander struct {
	noise     opensimplex.Noise
	frequency float64
	tick      int
}

// NewWander creates a wander policy. The same seed replays the same path.
func NewWander(seed int64) *Wander {
	return &Wander{
		noise:     opensimplex.NewNormalized(seed),
		frequency: 0.15,
	}
}

func (w *Wander) Decide(self agents.Observation, _ []agents.Observation, legal []world.Direction) world.Direction {
	if len(legal) == 0 {
		return world.Stay
	}
	t := float64(w.tick) * w.frequency
	w.tick++

	// Normalized noise is in [0, 1]; map it onto the legal set.
	v := octaveNoise(w.noise, t, float64(self.Index), 2, 0.5)
	i := int(v * float64(len(legal)))
	if i >= len(legal) {
		i = len(legal) - 1
	}
	return legal[i]
}

// Reset restarts the path from its first sample.
func (w *Wander) Reset() {
	w.tick = 0
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	frequency := 1.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
