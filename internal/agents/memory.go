// Transition history: what an agent did each tick and what it saw when deciding.
package agents

import "github.com/talgya/pursuit/internal/world"

// DefaultHistoryCapacity keeps a whole default-length episode with room to spare.
const DefaultHistoryCapacity = 512

// Transition records one tick from an agent's point of view.
type Transition struct {
	Step         int             `json:"step"` // 1-based within the episode
	Action       world.Direction `json:"action"`
	Observations []Observation   `json:"observations"`
	Reward       float64         `json:"reward"`
	Rewarded     bool            `json:"rewarded"`
}

// History is a bounded transition log. When full, the oldest entry is dropped.
type History struct {
	capacity int
	steps    int
	entries  []Transition
}

// NewHistory creates a history holding at most capacity transitions.
// A non-positive capacity means unbounded.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Add appends a transition.
func (h *History) Add(action world.Direction, obs []Observation) {
	h.steps++
	t := Transition{Step: h.steps, Action: action, Observations: obs}
	if h.capacity > 0 && len(h.entries) >= h.capacity {
		// Shift in place so the backing array never grows past capacity.
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = t
		return
	}
	h.entries = append(h.entries, t)
}

// SetLastReward attaches a reward to the most recent transition, if it has none yet.
func (h *History) SetLastReward(r float64) {
	if len(h.entries) == 0 {
		return
	}
	last := &h.entries[len(h.entries)-1]
	if last.Rewarded {
		return
	}
	last.Reward = r
	last.Rewarded = true
}

// Len returns the number of stored transitions.
func (h *History) Len() int {
	return len(h.entries)
}

// Clear empties the history.
func (h *History) Clear() {
	clear(h.entries)
	h.entries = h.entries[:0]
	h.steps = 0
}

// Recent returns up to count transitions, most recent first.
func (h *History) Recent(count int) []Transition {
	if count > len(h.entries) {
		count = len(h.entries)
	}
	out := make([]Transition, 0, count)
	for i := len(h.entries) - 1; i >= len(h.entries)-count; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

// Last returns the most recent transition.
func (h *History) Last() (Transition, bool) {
	if len(h.entries) == 0 {
		return Transition{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// All returns a copy of every stored transition, oldest first.
func (h *History) All() []Transition {
	out := make([]Transition, len(h.entries))
	copy(out, h.entries)
	return out
}
