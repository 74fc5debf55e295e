package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pursuit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func summary(started time.Time, captured bool) engine.EpisodeSummary {
	return engine.EpisodeSummary{
		ID:           uuid.New(),
		Steps:        2,
		Terminal:     true,
		Captured:     captured,
		TotalRewards: []float64{1.5, -0.5},
		Started:      started,
		Duration:     1500 * time.Millisecond,
		Results: []engine.StepResult{
			{Tick: 1, Positions: []world.Position{{X: 1, Y: 1}, {X: 2, Y: 2}}, Rewards: []float64{0.5, -0.5}},
			{Tick: 2, Positions: []world.Position{{X: 1, Y: 2}, {X: 2, Y: 2}}, Rewards: []float64{1, 0}, Terminal: true, Captured: captured},
		},
	}
}

func TestSaveAndLoadEpisode(t *testing.T) {
	db := openTestDB(t)
	sum := summary(time.Now(), true)
	require.NoError(t, db.SaveEpisode("default", sum))

	ep, err := db.GetEpisode(sum.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "default", ep.Scenario)
	assert.Equal(t, 2, ep.Steps)
	assert.True(t, ep.Terminal)
	assert.True(t, ep.Captured)
	assert.Equal(t, int64(1500), ep.DurationMs)
	totals, err := ep.Rewards()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -0.5}, totals)

	steps, err := db.LoadSteps(sum.ID.String())
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].Tick)
	assert.True(t, steps[1].Terminal)
	res, err := steps[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, world.Position{X: 1, Y: 2}, res.Positions[0])
}

func TestSaveEpisodeIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	sum := summary(time.Now(), false)
	require.NoError(t, db.SaveEpisode("default", sum))
	require.NoError(t, db.SaveEpisode("default", sum))

	steps, err := db.LoadSteps(sum.ID.String())
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestListEpisodesNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := summary(base, false)
	recent := summary(base.Add(time.Hour), true)
	require.NoError(t, db.SaveEpisode("a", old))
	require.NoError(t, db.SaveEpisode("b", recent))

	eps, err := db.ListEpisodes(10)
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, recent.ID.String(), eps[0].ID)
	assert.Equal(t, old.ID.String(), eps[1].ID)

	eps, err = db.ListEpisodes(1)
	require.NoError(t, err)
	assert.Len(t, eps, 1)

	rate, total, err := db.CaptureRate()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestGetEpisodeMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetEpisode("nope")
	assert.ErrorIs(t, err, ErrEpisodeNotFound)

	rate, total, err := db.CaptureRate()
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, rate)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMeta("seed", "42"))
	require.NoError(t, db.SaveMeta("seed", "43"))
	v, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "43", v)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}
