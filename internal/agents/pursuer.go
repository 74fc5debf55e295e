package agents

import (
	"github.com/google/uuid"

	"github.com/talgya/pursuit/internal/render"
	"github.com/talgya/pursuit/internal/world"
)

// Pursuer is the concrete agent used by the CLI and tests. It delegates
// decisions to a Policy and keeps its own reward log and transition history.
type Pursuer struct {
	id     string
	name   string
	role   Role
	policy Policy

	zone  *world.Rect // Optional restriction inside the board
	board world.Board
	limit world.Rect
	pos   world.Position

	rewards []float64
	history *History
}

// Option configures a Pursuer.
type Option func(*Pursuer)

// WithName sets a display name. Defaults to the role name.
func WithName(name string) Option {
	return func(p *Pursuer) { p.name = name }
}

// WithID overrides the generated id.
func WithID(id string) Option {
	return func(p *Pursuer) { p.id = id }
}

// WithZone restricts the agent's legal moves to a box inside the board.
func WithZone(zone world.Rect) Option {
	return func(p *Pursuer) { p.zone = &zone }
}

// WithHistoryCapacity bounds the number of stored transitions.
func WithHistoryCapacity(n int) Option {
	return func(p *Pursuer) { p.history = NewHistory(n) }
}

// NewPursuer creates an agent playing role with the given policy.
func NewPursuer(role Role, policy Policy, opts ...Option) *Pursuer {
	p := &Pursuer{
		id:      uuid.NewString(),
		name:    role.String(),
		role:    role,
		policy:  policy,
		history: NewHistory(DefaultHistoryCapacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pursuer) ID() string               { return p.id }
func (p *Pursuer) Name() string             { return p.name }
func (p *Pursuer) Role() Role               { return p.role }
func (p *Pursuer) Position() world.Position { return p.pos }
func (p *Pursuer) LimitBoard() world.Rect   { return p.limit }
func (p *Pursuer) History() *History        { return p.history }

// SetSizeBoard records the board and derives the movement limit.
func (p *Pursuer) SetSizeBoard(board world.Board) {
	p.board = board
	p.limit = board.Rect()
	if p.zone != nil {
		if z := p.limit.Intersect(*p.zone); !z.Empty() {
			p.limit = z
		}
	}
}

func (p *Pursuer) SetPosition(pos world.Position) {
	p.pos = pos
}

// Reset clears rewards and history and resets a stateful policy.
func (p *Pursuer) Reset() {
	p.rewards = p.rewards[:0]
	p.history.Clear()
	if r, ok := p.policy.(Resetter); ok {
		r.Reset()
	}
}

// DrawAction asks the policy for a direction among the legal ones.
func (p *Pursuer) DrawAction(obs []Observation) world.Direction {
	self := Observation{Index: -1, ID: p.id, Role: p.role, Position: p.pos}
	for _, o := range obs {
		if o.ID == p.id {
			self = o
			break
		}
	}
	legal := world.PossibleDirections(p.limit, self.Position)
	if p.policy == nil {
		return world.Stay
	}
	return p.policy.Decide(self, obs, legal)
}

func (p *Pursuer) SetReward(r float64) {
	p.rewards = append(p.rewards, r)
	p.history.SetLastReward(r)
}

func (p *Pursuer) AddToHistory(action world.Direction, obs []Observation) {
	p.history.Add(action, obs)
}

// Rewards returns the rewards received since the last reset.
func (p *Pursuer) Rewards() []float64 {
	out := make([]float64, len(p.rewards))
	copy(out, p.rewards)
	return out
}

// TotalReward sums the rewards received since the last reset.
func (p *Pursuer) TotalReward() float64 {
	total := 0.0
	for _, r := range p.rewards {
		total += r
	}
	return total
}

// Plot draws the agent with its role glyph.
func (p *Pursuer) Plot(c render.Canvas, radius int) {
	c.Plot(p.pos, radius, GlyphFor(p.role))
}

// GlyphFor returns the glyph of a role: officers as blue O, targets as red T.
func GlyphFor(r Role) render.Glyph {
	if r == RoleOfficer {
		return render.Glyph{Rune: 'O', Color: render.ColorBlue}
	}
	return render.Glyph{Rune: 'T', Color: render.ColorRed}
}
