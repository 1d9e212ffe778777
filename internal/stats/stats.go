// Package stats converts the raw inbound frame cadence into a smoothed
// frames-per-second figure plus the remote-reported per-frame latency.
package stats

import (
	"math"
	"sync"
	"time"
)

// reportInterval is the accumulation window used to compute throughput
const reportInterval = time.Second

// ProcessingStats is the snapshot exposed to the display layer. It is
// replaced, never merged, on each report.
type ProcessingStats struct {
	FPS              float64 `json:"fps"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	FrameCount       uint64  `json:"frame_count"`
}

// Aggregator maintains a rolling counter of frames and elapsed time.
// The window resets every time it reaches one second of wall time; between
// reports the last computed snapshot persists.
type Aggregator struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	snapshot    ProcessingStats

	now func() time.Time
}

// NewAggregator creates an aggregator with its window starting now
func NewAggregator() *Aggregator {
	return newAggregatorWithClock(time.Now)
}

func newAggregatorWithClock(now func() time.Time) *Aggregator {
	return &Aggregator{
		windowStart: now(),
		now:         now,
	}
}

// Record counts one inbound enhanced frame. When the accumulated window
// reaches the report interval, a new snapshot is published with
// fps = count/elapsed rounded to one decimal place, the processing time from
// the just-received message, and the server-reported cumulative frame count.
// It returns the current snapshot and whether a new report was published.
func (a *Aggregator) Record(processingTimeMs float64, frameCount uint64) (ProcessingStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++

	now := a.now()
	elapsed := now.Sub(a.windowStart)
	if elapsed < reportInterval {
		return a.snapshot, false
	}

	fps := float64(a.count) / elapsed.Seconds()
	a.snapshot = ProcessingStats{
		FPS:              math.Round(fps*10) / 10,
		ProcessingTimeMs: processingTimeMs,
		FrameCount:       frameCount,
	}
	a.count = 0
	a.windowStart = now

	return a.snapshot, true
}

// Snapshot returns the last published stats
func (a *Aggregator) Snapshot() ProcessingStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Reset restarts the accumulation window, keeping the last snapshot
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.windowStart = a.now()
}
