package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/entropy"
	"github.com/talgya/pursuit/internal/world"
)

var allLegal = []world.Direction{world.Stay, world.Up, world.Down, world.Left, world.Right}

func TestChaseMovesTowardTarget(t *testing.T) {
	self := agents.Observation{ID: "o", Role: agents.RoleOfficer, Position: world.Position{X: 2, Y: 2}}
	obs := []agents.Observation{self, {ID: "t", Role: agents.RoleTarget, Position: world.Position{X: 5, Y: 2}}}
	assert.Equal(t, world.Right, Chase{}.Decide(self, obs, allLegal))
}

func TestFleeMovesAwayFromOfficer(t *testing.T) {
	self := agents.Observation{ID: "t", Role: agents.RoleTarget, Position: world.Position{X: 2, Y: 2}}
	obs := []agents.Observation{self, {ID: "o", Role: agents.RoleOfficer, Position: world.Position{X: 2, Y: 0}}}
	assert.Equal(t, world.Up, Flee{}.Decide(self, obs, allLegal))
}

func TestChaseWithoutOpponentsStays(t *testing.T) {
	self := agents.Observation{Role: agents.RoleOfficer}
	assert.Equal(t, world.Stay, Chase{}.Decide(self, []agents.Observation{self}, allLegal))
}

func TestScriptedReplaysAndResets(t *testing.T) {
	s := &Scripted{Moves: []world.Direction{world.Up, world.Left}}
	self := agents.Observation{}
	assert.Equal(t, world.Up, s.Decide(self, nil, allLegal))
	// Left is not legal here.
	assert.Equal(t, world.Stay, s.Decide(self, nil, []world.Direction{world.Stay, world.Up}))
	assert.Equal(t, world.Stay, s.Decide(self, nil, allLegal))

	s.Reset()
	assert.Equal(t, world.Up, s.Decide(self, nil, allLegal))
}

func TestRandomStaysLegal(t *testing.T) {
	r := Random{Src: entropy.NewSeeded(9)}
	legal := []world.Direction{world.Stay, world.Down}
	for i := 0; i < 50; i++ {
		assert.Contains(t, legal, r.Decide(agents.Observation{}, nil, legal))
	}
}

func TestWanderIsReproducible(t *testing.T) {
	a, b := NewWander(5), NewWander(5)
	self := agents.Observation{Index: 1}
	var first []world.Direction
	for i := 0; i < 20; i++ {
		da := a.Decide(self, nil, allLegal)
		require.Equal(t, da, b.Decide(self, nil, allLegal))
		require.Contains(t, allLegal, da)
		first = append(first, da)
	}

	a.Reset()
	for i := 0; i < 20; i++ {
		require.Equal(t, first[i], a.Decide(self, nil, allLegal))
	}
}

func TestByName(t *testing.T) {
	src := entropy.NewSeeded(1)
	p, err := ByName(NameGreedy, agents.RoleOfficer, 0, src, 1)
	require.NoError(t, err)
	assert.IsType(t, Chase{}, p)

	p, err = ByName(NameGreedy, agents.RoleTarget, 0, src, 1)
	require.NoError(t, err)
	assert.IsType(t, Flee{}, p)

	p, err = ByName("", agents.RoleTarget, 0, src, 1)
	require.NoError(t, err)
	assert.IsType(t, Static{}, p)

	_, err = ByName("telepathy", agents.RoleTarget, 0, src, 1)
	assert.Error(t, err)
}
