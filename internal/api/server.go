// Package api provides the HTTP API for watching pursuit runs.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/persistence"
)

const (
	defaultEpisodeLimit = 20
	maxEpisodeLimit     = 500
)

// Server serves run state over HTTP and streams frames over a websocket.
// The zero value is ready to use; set the exported fields before Start.
type Server struct {
	DB       *persistence.DB // Episode store; nil disables the episode endpoints
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	Scenario string // Reported by /status

	started time.Time

	// Latest published frame and stream subscribers.
	mu         sync.Mutex
	latest     *Frame
	latestJSON []byte
	subs       map[int]chan []byte
	nextSub    int
	closed     bool

	published atomic.Uint64
	dropped   atomic.Uint64
	streams   atomic.Int32

	httpSrv *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler builds the route table wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	episodeLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/board", s.handleBoard)
	mux.HandleFunc("GET /api/v1/episodes", RateLimitMiddleware(episodeLimiter, s.handleEpisodes))
	mux.HandleFunc("GET /api/v1/episode/{id}", RateLimitMiddleware(episodeLimiter, s.handleEpisode))
	mux.HandleFunc("GET /api/v1/meta/{key}", s.handleGetMeta)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/meta/{key}", s.adminOnly(s.handlePutMeta))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "db", s.DB != nil)

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown closes every stream and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// PURSUIT_CORS_ORIGINS adds a comma-separated list to the localhost defaults.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("PURSUIT_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no PURSUIT_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":             "pursuit",
		"scenario":         s.Scenario,
		"uptime_seconds":   int(time.Since(s.started).Seconds()),
		"frames_published": s.published.Load(),
		"frames_dropped":   s.dropped.Load(),
		"stream_clients":   s.streams.Load(),
	}
	if f := s.Latest(); f != nil {
		status["episode"] = f.Episode
		status["tick"] = f.Tick
	}
	if s.DB != nil {
		rate, total, err := s.DB.CaptureRate()
		if err != nil {
			slog.Warn("capture rate query failed", "error", err)
		} else {
			status["episodes_stored"] = total
			status["capture_rate"] = rate
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	f := s.Latest()
	if f == nil {
		http.Error(w, "no frame published yet", http.StatusNotFound)
		return
	}
	writeJSON(w, f)
}

type episodeEntry struct {
	persistence.Episode
	Rewards []float64 `json:"total_rewards"`
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "episode store not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultEpisodeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEpisodeLimit)
	}

	eps, err := s.DB.ListEpisodes(limit)
	if err != nil {
		slog.Error("list episodes", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]episodeEntry, 0, len(eps))
	for _, ep := range eps {
		rewards, err := ep.Rewards()
		if err != nil {
			slog.Warn("bad reward totals", "episode", ep.ID, "error", err)
		}
		out = append(out, episodeEntry{Episode: ep, Rewards: rewards})
	}
	writeJSON(w, out)
}

func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "episode store not configured", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	ep, err := s.DB.GetEpisode(id)
	if errors.Is(err, persistence.ErrEpisodeNotFound) {
		http.Error(w, "episode not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get episode", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	records, err := s.DB.LoadSteps(id)
	if err != nil {
		slog.Error("load steps", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	steps := make([]engine.StepResult, 0, len(records))
	for _, rec := range records {
		res, err := rec.Decode()
		if err != nil {
			slog.Warn("bad step record", "id", id, "tick", rec.Tick, "error", err)
			continue
		}
		steps = append(steps, res)
	}

	rewards, _ := ep.Rewards()
	writeJSON(w, map[string]any{
		"episode": episodeEntry{Episode: ep, Rewards: rewards},
		"steps":   steps,
	})
}

func (s *Server) handleGetMeta(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "episode store not configured", http.StatusServiceUnavailable)
		return
	}
	key := r.PathValue("key")
	value, err := s.DB.GetMeta(key)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"key": key, "value": value})
}

func (s *Server) handlePutMeta(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "episode store not configured", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	key := r.PathValue("key")
	if err := s.DB.SaveMeta(key, body.Value); err != nil {
		slog.Error("save meta", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("run metadata updated", "key", key)
	writeJSON(w, map[string]string{"key": key, "value": body.Value})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
