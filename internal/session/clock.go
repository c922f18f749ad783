package session

import "time"

// Clock supplies monotonic readings. time.Now carries a monotonic component,
// so durations computed with Sub are immune to wall-clock jumps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// stopwatch accumulates running time across pause/resume segments.
type stopwatch struct {
	clock   Clock
	total   time.Duration
	since   time.Time
	running bool
}

func (w *stopwatch) reset() {
	w.total = 0
	w.running = false
}

func (w *stopwatch) start() {
	if w.running {
		return
	}
	w.since = w.clock.Now()
	w.running = true
}

func (w *stopwatch) stop() {
	if !w.running {
		return
	}
	w.total += w.clock.Now().Sub(w.since)
	w.running = false
}

// seconds returns elapsed running time at one-second resolution.
func (w *stopwatch) seconds() int64 {
	total := w.total
	if w.running {
		total += w.clock.Now().Sub(w.since)
	}
	if total < 0 {
		return 0
	}
	return int64(total / time.Second)
}
