package capture

import "time"

// Scheduler paces the capture loop: each iteration waits for the next frame
// opportunity rather than running on a fixed-rate timer of its own. Tests
// inject manual schedulers to drive steps deterministically.
type Scheduler interface {
	// Next delivers a signal per frame opportunity
	Next() <-chan time.Time

	// Stop releases the scheduler
	Stop()
}

type tickScheduler struct {
	ticker *time.Ticker
}

// NewTickScheduler schedules frame opportunities at the display refresh
// cadence.
func NewTickScheduler(refreshHz int) Scheduler {
	return &tickScheduler{
		ticker: time.NewTicker(time.Second / time.Duration(refreshHz)),
	}
}

func (s *tickScheduler) Next() <-chan time.Time {
	return s.ticker.C
}

func (s *tickScheduler) Stop() {
	s.ticker.Stop()
}
