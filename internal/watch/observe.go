// Package watch implements a read-only monitor for a running pursuit API.
// It observes status and recent episodes over HTTP, triages run health,
// and keeps a short memory of recent cycles.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status   Status        `json:"status"`
	Episodes []EpisodeInfo `json:"episodes"`
	Board    *BoardInfo    `json:"board,omitempty"`
	Taken    time.Time     `json:"taken"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name            string  `json:"name"`
	Scenario        string  `json:"scenario"`
	UptimeSeconds   int     `json:"uptime_seconds"`
	FramesPublished uint64  `json:"frames_published"`
	FramesDropped   uint64  `json:"frames_dropped"`
	StreamClients   int     `json:"stream_clients"`
	Episode         string  `json:"episode"`
	Tick            int     `json:"tick"`
	EpisodesStored  int     `json:"episodes_stored"`
	CaptureRate     float64 `json:"capture_rate"`
}

// EpisodeInfo mirrors items from GET /api/v1/episodes.
type EpisodeInfo struct {
	ID           string    `json:"id"`
	Scenario     string    `json:"scenario"`
	Steps        int       `json:"steps"`
	Terminal     bool      `json:"terminal"`
	Captured     bool      `json:"captured"`
	TotalRewards []float64 `json:"total_rewards"`
	StartedAt    time.Time `json:"started_at"`
}

// BoardInfo is the part of GET /api/v1/board the monitor reads.
type BoardInfo struct {
	Episode string `json:"episode"`
	Tick    int    `json:"tick"`
	Agents  []struct {
		Role string `json:"role"`
	} `json:"agents"`
}

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
	Episodes   int // Recent episodes to fetch per cycle
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Episodes: 20,
	}
}

// Observe fetches status, recent episodes and the latest board.
// Episodes are skipped when the server has no store; the board is skipped
// before the first frame.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{Taken: time.Now()}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}

	path := fmt.Sprintf("/api/v1/episodes?limit=%d", max(o.Episodes, 1))
	if err := o.fetchJSON(path, &snap.Episodes); err != nil && !isStatus(err, http.StatusServiceUnavailable) {
		return nil, fmt.Errorf("fetch episodes: %w", err)
	}

	var board BoardInfo
	switch err := o.fetchJSON("/api/v1/board", &board); {
	case err == nil:
		snap.Board = &board
	case isStatus(err, http.StatusNotFound):
	default:
		return nil, fmt.Errorf("fetch board: %w", err)
	}

	return snap, nil
}

// StatusError is a non-200 API response.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.Path, e.Code, e.Body)
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WaitReady polls /api/v1/status with backoff until it answers 200,
// ctx is done, or timeout passes.
func (o *Observer) WaitReady(ctx context.Context, timeout time.Duration) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	deadline := time.Now().Add(timeout)

	for {
		var status Status
		err := o.fetchJSON("/api/v1/status", &status)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API not ready after %s: %w", timeout, err)
		}
		slog.Info("API not ready, retrying", "url", o.BaseURL, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
