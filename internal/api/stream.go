package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/world"
)

const (
	maxStreamConns    = 16
	streamBuffer      = 64
	streamWriteWait   = 5 * time.Second
	streamPingPeriod  = 15 * time.Second
	streamReadTimeout = 60 * time.Second
)

// Frame is the board state after one tick, as sent to stream clients.
type Frame struct {
	Episode  string               `json:"episode"`
	Tick     int                  `json:"tick"`
	Board    world.Board          `json:"board"`
	Agents   []agents.Observation `json:"agents"`
	Actions  []world.Direction    `json:"actions,omitempty"`
	Rewards  []float64            `json:"rewards,omitempty"`
	Terminal bool                 `json:"terminal"`
	Captured bool                 `json:"captured"`
}

// NewFrame captures the environment right after res was produced.
func NewFrame(episode uuid.UUID, env *engine.Env, res engine.StepResult) Frame {
	return Frame{
		Episode:  episode.String(),
		Tick:     res.Tick,
		Board:    env.Board(),
		Agents:   agents.Snapshot(env.Agents()),
		Actions:  res.Actions,
		Rewards:  res.Rewards,
		Terminal: res.Terminal,
		Captured: res.Captured,
	}
}

// Publish records f as the latest frame and fans it out to stream clients.
// Slow clients miss frames rather than stall the caller.
func (s *Server) Publish(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		slog.Error("encode frame", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &f
	s.latestJSON = b
	s.published.Add(1)
	for _, ch := range s.subs {
		select {
		case ch <- b:
		default:
			s.dropped.Add(1)
		}
	}
}

// Latest returns the most recently published frame, or nil.
func (s *Server) Latest() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	f := *s.latest
	return &f
}

// subscribe registers a stream channel primed with the latest frame.
func (s *Server) subscribe() (int, chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, false
	}
	if s.subs == nil {
		s.subs = make(map[int]chan []byte)
	}
	s.nextSub++
	ch := make(chan []byte, streamBuffer)
	if s.latestJSON != nil {
		ch <- s.latestJSON
	}
	s.subs[s.nextSub] = ch
	return s.nextSub, ch, true
}

func (s *Server) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Server) closeStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// handleStream upgrades to a websocket and pushes every published frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streams.Add(1) > maxStreamConns {
		s.streams.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Add(-1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch, ok := s.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		return
	}
	defer s.unsubscribe(id)
	slog.Info("stream client connected", "sub_id", id, "remote", clientIP(r))

	// Reader: the client only sends control frames; a read error means it left.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case b, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", id)
			return
		}
	}
}
