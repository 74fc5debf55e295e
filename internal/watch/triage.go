package watch

// Health levels, worst first.
const (
	LevelStalled = "STALLED" // Frames stopped between two cycles
	LevelLagging = "LAGGING" // Stream clients are missing frames
	LevelIdle    = "IDLE"    // Nothing published yet
	LevelHealthy = "HEALTHY"
)

// Health holds diagnostic signals derived from a Snapshot.
type Health struct {
	CaptureRate    float64 // Over the fetched episodes
	AvgSteps       float64
	Unfinished     int    // Episodes cut by the step cap rather than a terminal tick
	FramesDelta    uint64 // Since the previous cycle
	DroppedDelta   uint64
	EpisodeChanged bool
	Level          string
}

// Triage computes Health from snap, comparing against prev when given.
func Triage(snap, prev *Snapshot) *Health {
	h := &Health{}

	if n := len(snap.Episodes); n > 0 {
		captured, steps := 0, 0
		for _, ep := range snap.Episodes {
			steps += ep.Steps
			if ep.Captured {
				captured++
			}
			if !ep.Terminal {
				h.Unfinished++
			}
		}
		h.CaptureRate = float64(captured) / float64(n)
		h.AvgSteps = float64(steps) / float64(n)
	}

	// Counters reset when the server restarts; treat a drop as a fresh start.
	if prev != nil {
		if snap.Status.FramesPublished >= prev.Status.FramesPublished {
			h.FramesDelta = snap.Status.FramesPublished - prev.Status.FramesPublished
		} else {
			h.FramesDelta = snap.Status.FramesPublished
		}
		if snap.Status.FramesDropped >= prev.Status.FramesDropped {
			h.DroppedDelta = snap.Status.FramesDropped - prev.Status.FramesDropped
		}
		h.EpisodeChanged = snap.Status.Episode != prev.Status.Episode
	}

	switch {
	case snap.Status.FramesPublished == 0:
		h.Level = LevelIdle
	case prev != nil && h.FramesDelta == 0:
		h.Level = LevelStalled
	case h.DroppedDelta > 0:
		h.Level = LevelLagging
	default:
		h.Level = LevelHealthy
	}
	return h
}
