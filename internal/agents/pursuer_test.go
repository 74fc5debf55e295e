package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/render"
	"github.com/talgya/pursuit/internal/world"
)

type recordingPolicy struct {
	self   Observation
	legal  []world.Direction
	resets int
}

func (p *recordingPolicy) Decide(self Observation, obs []Observation, legal []world.Direction) world.Direction {
	p.self = self
	p.legal = legal
	return legal[len(legal)-1]
}

func (p *recordingPolicy) Reset() { p.resets++ }

type fakeCanvas struct {
	pos    world.Position
	radius int
	glyph  render.Glyph
}

func (c *fakeCanvas) Begin(world.Board, int) {}
func (c *fakeCanvas) Plot(pos world.Position, radius int, g render.Glyph) {
	c.pos, c.radius, c.glyph = pos, radius, g
}
func (c *fakeCanvas) Flush() error { return nil }

func TestRoleStrings(t *testing.T) {
	assert.Equal(t, "target", RoleTarget.String())
	assert.Equal(t, "officer", RoleOfficer.String())
	assert.Equal(t, RoleOfficer, RoleTarget.Opponent())
	assert.Equal(t, RoleTarget, RoleOfficer.Opponent())

	r, ok := ParseRole("predator")
	require.True(t, ok)
	assert.Equal(t, RoleOfficer, r)
	_, ok = ParseRole("bystander")
	assert.False(t, ok)

	b, err := RoleOfficer.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "officer", string(b))
	var back Role
	require.NoError(t, back.UnmarshalText([]byte("prey")))
	assert.Equal(t, RoleTarget, back)
	assert.Error(t, back.UnmarshalText([]byte("bystander")))
}

func TestPursuerDrawActionUsesSnapshot(t *testing.T) {
	pol := &recordingPolicy{}
	p := NewPursuer(RoleOfficer, pol, WithID("o1"))
	p.SetSizeBoard(world.Board{Width: 5, Height: 5})
	p.SetPosition(world.Position{X: 4, Y: 4})

	obs := []Observation{
		{Index: 0, ID: "o1", Role: RoleOfficer, Position: world.Position{X: 0, Y: 0}},
	}
	p.DrawAction(obs)

	// The snapshot position wins over the live one.
	assert.Equal(t, world.Position{X: 0, Y: 0}, pol.self.Position)
	assert.ElementsMatch(t, []world.Direction{world.Stay, world.Up, world.Right}, pol.legal)
}

func TestPursuerZoneLimitsMoves(t *testing.T) {
	zone := world.Rect{Min: world.Position{X: 2, Y: 2}, Max: world.Position{X: 4, Y: 4, Z: 1}}
	p := NewPursuer(RoleTarget, &recordingPolicy{}, WithZone(zone))
	p.SetSizeBoard(world.Board{Width: 10, Height: 10})
	assert.Equal(t, zone, p.LimitBoard())

	// A zone that misses the board falls back to the whole board.
	q := NewPursuer(RoleTarget, nil, WithZone(world.Rect{Min: world.Position{X: 50, Y: 50}, Max: world.Position{X: 60, Y: 60, Z: 1}}))
	q.SetSizeBoard(world.Board{Width: 10, Height: 10})
	assert.Equal(t, world.Board{Width: 10, Height: 10}.Rect(), q.LimitBoard())
	assert.Equal(t, world.Stay, q.DrawAction(nil))
}

func TestPursuerRewardsAndReset(t *testing.T) {
	pol := &recordingPolicy{}
	p := NewPursuer(RoleOfficer, pol)
	p.SetSizeBoard(world.Board{Width: 3, Height: 3})

	p.AddToHistory(world.Up, nil)
	p.SetReward(0.5)
	p.AddToHistory(world.Down, nil)
	p.SetReward(-1)

	assert.Equal(t, []float64{0.5, -1}, p.Rewards())
	assert.InDelta(t, -0.5, p.TotalReward(), 1e-9)
	last, ok := p.History().Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Step)
	assert.Equal(t, -1.0, last.Reward)

	p.Reset()
	assert.Empty(t, p.Rewards())
	assert.Equal(t, 0, p.History().Len())
	assert.Equal(t, 1, pol.resets)
}

func TestPursuerPlot(t *testing.T) {
	c := &fakeCanvas{}
	p := NewPursuer(RoleOfficer, nil)
	p.SetPosition(world.Position{X: 1, Y: 2})
	p.Plot(c, 1)
	assert.Equal(t, 'O', c.glyph.Rune)
	assert.Equal(t, world.Position{X: 1, Y: 2}, c.pos)
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(2)
	h.Add(world.Up, nil)
	h.Add(world.Down, nil)
	h.Add(world.Left, nil)
	require.Equal(t, 2, h.Len())

	recent := h.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, world.Left, recent[0].Action)
	assert.Equal(t, 3, recent[0].Step)
	assert.Equal(t, world.Down, recent[1].Action)

	h.SetLastReward(1)
	h.SetLastReward(2)
	last, _ := h.Last()
	assert.Equal(t, 1.0, last.Reward)
}

func TestHistoryStorageStaysBounded(t *testing.T) {
	h := NewHistory(8)
	for i := 0; i < 8; i++ {
		h.Add(world.Up, nil)
	}
	base := &h.entries[0]
	dirs := []world.Direction{world.Up, world.Down, world.Left, world.Right}
	for i := 0; i < 1000; i++ {
		h.Add(dirs[i%len(dirs)], nil)
		require.LessOrEqual(t, cap(h.entries), 16)
	}
	// The full history is shifted in place, not reallocated.
	assert.Same(t, base, &h.entries[0])
	require.Equal(t, 8, h.Len())

	all := h.All()
	for i, tr := range all {
		assert.Equal(t, 1001+i, tr.Step)
		assert.Equal(t, dirs[(tr.Step-9)%len(dirs)], tr.Action)
	}
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, 1008, last.Step)
	assert.Equal(t, all[len(all)-1], h.Recent(1)[0])

	h.Clear()
	h.Add(world.Left, nil)
	assert.Same(t, base, &h.entries[0])
	last, _ = h.Last()
	assert.Equal(t, 1, last.Step)
}

func TestSpawnerNamesAndOrder(t *testing.T) {
	var calls []string
	s := NewSpawner(func(role Role, n int) Policy {
		calls = append(calls, role.String())
		return nil
	})
	roster := s.SpawnPopulation(2, 1)
	require.Len(t, roster, 3)
	assert.Equal(t, "officer-1", roster[0].Name())
	assert.Equal(t, "officer-2", roster[1].Name())
	assert.Equal(t, "target-1", roster[2].Name())
	assert.Equal(t, RoleTarget, roster[2].Role())
	assert.NotEqual(t, roster[0].ID(), roster[1].ID())
	assert.Equal(t, []string{"officer", "officer", "target"}, calls)
}

func TestSnapshotIsDetached(t *testing.T) {
	p := NewPursuer(RoleTarget, nil)
	p.SetPosition(world.Position{X: 1, Y: 1})
	obs := Snapshot([]Agent{p})
	p.SetPosition(world.Position{X: 2, Y: 2})
	assert.Equal(t, world.Position{X: 1, Y: 1}, obs[0].Position)
	assert.Equal(t, []world.Position{{X: 1, Y: 1}}, Positions(obs, RoleTarget))
	assert.Empty(t, Positions(obs, RoleOfficer))
}
