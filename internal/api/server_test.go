package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/persistence"
	"github.com/talgya/pursuit/internal/rewards"
	"github.com/talgya/pursuit/internal/world"
)

func newTestEnv(t *testing.T) *engine.Env {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Noise = 0
	cfg.Seed = 3
	env, err := engine.NewEnv(6, 6, rewards.ModeFull, cfg)
	require.NoError(t, err)
	env.AddAgent(agents.NewPursuer(agents.RoleOfficer, nil), &world.Position{X: 1, Y: 1})
	env.AddAgent(agents.NewPursuer(agents.RoleTarget, nil), &world.Position{X: 4, Y: 4})
	_, err = env.Reset()
	require.NoError(t, err)
	return env
}

func stepFrame(t *testing.T, env *engine.Env, episode uuid.UUID) Frame {
	t.Helper()
	res, err := env.Step()
	require.NoError(t, err)
	return NewFrame(episode, env, res)
}

func openDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusAndBoard(t *testing.T) {
	s := &Server{Scenario: "default"}
	h := s.Handler()

	rec := get(t, h, "/api/v1/board")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env := newTestEnv(t)
	ep := uuid.New()
	s.Publish(stepFrame(t, env, ep))

	rec = get(t, h, "/api/v1/board")
	require.Equal(t, http.StatusOK, rec.Code)
	var f Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, ep.String(), f.Episode)
	assert.Equal(t, 1, f.Tick)
	require.Len(t, f.Agents, 2)
	assert.Equal(t, agents.RoleOfficer, f.Agents[0].Role)
	assert.Equal(t, world.Position{X: 1, Y: 1}, f.Agents[0].Position)
	assert.Equal(t, []world.Direction{world.Stay, world.Stay}, f.Actions)

	rec = get(t, h, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "default", status["scenario"])
	assert.EqualValues(t, 1, status["frames_published"])
	assert.EqualValues(t, 1, status["tick"])
	assert.NotContains(t, status, "episodes_stored")
}

func TestEpisodeEndpoints(t *testing.T) {
	db := openDB(t)
	env := newTestEnv(t)
	runner := &engine.Runner{Env: env}
	sum, err := runner.RunEpisode(t.Context())
	require.NoError(t, err)
	require.NoError(t, db.SaveEpisode("default", sum))

	s := &Server{DB: db}
	h := s.Handler()

	rec := get(t, h, "/api/v1/episodes?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, sum.ID.String(), list[0]["id"])
	assert.Len(t, list[0]["total_rewards"], 2)

	rec = get(t, h, "/api/v1/episodes?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, h, "/api/v1/episode/"+sum.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Steps []engine.StepResult `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Steps, sum.Steps)

	rec = get(t, h, "/api/v1/episode/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/v1/status")
	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.EqualValues(t, 1, status["episodes_stored"])
}

func TestEpisodesWithoutDB(t *testing.T) {
	h := (&Server{}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/episodes").Code)
}

func TestMetaRequiresAdminKey(t *testing.T) {
	db := openDB(t)
	post := func(h http.Handler, key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/meta/note", strings.NewReader(`{"value":"hi"}`))
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, post((&Server{DB: db}).Handler(), "secret"))

	h := (&Server{DB: db, AdminKey: "secret"}).Handler()
	assert.Equal(t, http.StatusUnauthorized, post(h, "wrong"))
	assert.Equal(t, http.StatusOK, post(h, "secret"))

	rec := get(t, h, "/api/v1/meta/note")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hi"`)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/meta/other").Code)
}

func TestCORS(t *testing.T) {
	h := (&Server{}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamDeliversFrames(t *testing.T) {
	s := &Server{}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	defer s.Shutdown(t.Context())

	env := newTestEnv(t)
	ep := uuid.New()
	s.Publish(stepFrame(t, env, ep))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Frame {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		var f Frame
		require.NoError(t, json.Unmarshal(b, &f))
		return f
	}

	// The latest frame arrives on connect, then every new one.
	assert.Equal(t, 1, read().Tick)
	s.Publish(stepFrame(t, env, ep))
	assert.Equal(t, 2, read().Tick)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}
