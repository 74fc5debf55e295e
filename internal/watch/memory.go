package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 10

// CycleRecord captures what one watch cycle saw.
type CycleRecord struct {
	Tick        int     `json:"tick"`
	Episode     string  `json:"episode"`
	Frames      uint64  `json:"frames"`
	CaptureRate float64 `json:"capture_rate"`
	Level       string  `json:"level"`
}

// CycleMemory keeps the most recent cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads a memory file. Returns empty memory if it is missing or unreadable.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("watch memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to path.
func (m *CycleMemory) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Format summarises the recorded cycles, oldest first.
func (m *CycleMemory) Format() string {
	var b strings.Builder
	for _, r := range m.Records {
		fmt.Fprintf(&b, "tick %d episode=%s frames=%d capture=%.2f level=%s\n",
			r.Tick, shortID(r.Episode), r.Frames, r.CaptureRate, r.Level)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
