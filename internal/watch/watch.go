package watch

import (
	"context"
	"log/slog"
	"time"
)

// Watcher runs observe → triage → record cycles on an interval.
type Watcher struct {
	Observer   *Observer
	Interval   time.Duration
	Memory     *CycleMemory
	MemoryPath string // Saved after every cycle when set

	// OnCycle is called with every triaged cycle.
	OnCycle func(snap *Snapshot, h *Health)

	prev *Snapshot
}

// Cycle performs one observation and returns its health.
func (w *Watcher) Cycle() (*Snapshot, *Health, error) {
	snap, err := w.Observer.Observe()
	if err != nil {
		return nil, nil, err
	}
	h := Triage(snap, w.prev)
	w.prev = snap

	if w.Memory == nil {
		w.Memory = &CycleMemory{}
	}
	w.Memory.Record(CycleRecord{
		Tick:        snap.Status.Tick,
		Episode:     snap.Status.Episode,
		Frames:      snap.Status.FramesPublished,
		CaptureRate: snap.Status.CaptureRate,
		Level:       h.Level,
	})
	if w.MemoryPath != "" {
		if err := w.Memory.Save(w.MemoryPath); err != nil {
			slog.Warn("save watch memory", "path", w.MemoryPath, "error", err)
		}
	}

	slog.Info("watch cycle",
		"level", h.Level,
		"tick", snap.Status.Tick,
		"frames", snap.Status.FramesPublished,
		"capture_rate", h.CaptureRate,
		"avg_steps", h.AvgSteps,
	)
	if w.OnCycle != nil {
		w.OnCycle(snap, h)
	}
	return snap, h, nil
}

// Run cycles until ctx is cancelled. Failed observations are logged and retried.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := w.Cycle(); err != nil {
			slog.Warn("watch cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
