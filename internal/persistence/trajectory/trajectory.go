// Package trajectory writes per-tick transitions as zstd-compressed JSON
// lines, one file per hour, and reads them back for replay.
package trajectory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/pursuit/internal/agents"
	"github.com/talgya/pursuit/internal/engine"
	"github.com/talgya/pursuit/internal/world"
)

// Prefix names the rotated files: traj-YYYY-MM-DD-HH.jsonl.zst.
const Prefix = "traj"

// Transition is one logged tick.
type Transition struct {
	Episode  string            `json:"episode"`
	Tick     int               `json:"tick"`
	Board    world.Board       `json:"board"`
	Agents   []string          `json:"agents,omitempty"`
	Roles    []agents.Role     `json:"roles,omitempty"`
	Position []world.Position  `json:"positions"`
	Actions  []world.Direction `json:"actions"`
	Chosen   []world.Direction `json:"chosen,omitempty"`
	Rewards  []float64         `json:"rewards"`
	Terminal bool              `json:"terminal"`
	Captured bool              `json:"captured"`
}

// FromStep builds a Transition from the result env just produced.
func FromStep(episode string, env *engine.Env, res engine.StepResult) Transition {
	roster := env.Agents()
	ids := make([]string, len(roster))
	roles := make([]agents.Role, len(roster))
	for i, a := range roster {
		ids[i] = a.ID()
		roles[i] = a.Role()
	}
	return Transition{
		Episode:  episode,
		Tick:     res.Tick,
		Board:    env.Board(),
		Agents:   ids,
		Roles:    roles,
		Position: res.Positions,
		Actions:  res.Actions,
		Chosen:   res.Chosen,
		Rewards:  res.Rewards,
		Terminal: res.Terminal,
		Captured: res.Captured,
	}
}

// Writer appends JSON lines to an hourly-rotated zstd file under dir.
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter returns a writer rooted at dir. Files are created lazily.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, prefix: Prefix, now: time.Now}
}

// Write appends one transition.
func (w *Writer) Write(t Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
	}

	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes and closes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file the writer is currently appending to, or "".
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.curHour == "" {
		return ""
	}
	return w.pathForHour(w.curHour)
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadFile decodes every transition in a trajectory file.
func ReadFile(path string) ([]Transition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []Transition
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var t Transition
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// Files lists the trajectory files in dir, oldest first.
func Files(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, Prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
