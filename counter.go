package uow

import "sync/atomic"

// Counter is an atomic unsigned counter mutable through a shared
// reference (typically a record field reached via Handle from several
// goroutines). Updates are relaxed-order; the close-time snapshot is
// an acquire load, so every Add that happened before the owner chain
// terminated is visible in the emitted value.
//
// The zero Counter is ready to use. Counters close with the Count
// unit; a `unit=` tag overrides it.
type Counter struct {
	n atomic.Uint64
}

// Add increments the counter by n.
func (c *Counter) Add(n uint64) { c.n.Add(n) }

// Load returns the current count.
func (c *Counter) Load() uint64 { return c.n.Load() }

// CloseValue snapshots the counter.
func (c *Counter) CloseValue() Value {
	return Uint(c.n.Load()).WithUnit(UnitCount)
}
