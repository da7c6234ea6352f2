package uow

import (
	"sync"
	"time"
)

// Timer measures the elapsed time of a unit of work. It starts at
// construction and records elapsed time when stopped or when its
// record closes. Stop is idempotent: repeated calls return the
// duration captured by the first.
//
// Timers close as duration values; without a `unit=` tag they render
// in milliseconds.
type Timer struct {
	mu      sync.Mutex
	start   time.Time
	stopped bool
	elapsed time.Duration
}

// StartTimer returns a running Timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop freezes the timer and returns the elapsed duration. Idempotent.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.elapsed = time.Since(t.start)
		t.stopped = true
	}
	return t.elapsed
}

// CloseValue snapshots the timer, stopping it if still running.
func (t *Timer) CloseValue() Value {
	return Duration(t.Stop())
}

// Stopwatch is the explicit-start variant of Timer: the zero value is
// idle, Start begins (or restarts) timing, Stop freezes it. A
// stopwatch that never ran closes to a zero duration.
type Stopwatch struct {
	mu      sync.Mutex
	start   time.Time
	running bool
	elapsed time.Duration
}

// Start begins timing. Calling Start on a running stopwatch restarts
// the measurement.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = time.Now()
	s.running = true
}

// Stop freezes the stopwatch and returns the elapsed duration.
// Idempotent; Stop on a stopwatch that never started returns 0.
func (s *Stopwatch) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.elapsed = time.Since(s.start)
		s.running = false
	}
	return s.elapsed
}

// CloseValue snapshots the stopwatch, stopping it if running.
func (s *Stopwatch) CloseValue() Value {
	return Duration(s.Stop())
}
