package uow

import (
	"sync"
	"sync/atomic"
)

// cell is the shared state behind a guarded record: the record itself,
// the sink it will be appended to, and the reference counts that decide
// when the snapshot happens. The state machine is {armed, forced,
// emitted}: any force-flush guard close moves armed to forced and
// emits; the last owner close with no outstanding flush guards moves
// armed to emitted. Emission happens exactly once.
type cell struct {
	rec  any
	sink EntrySink

	// strong counts the guard plus all live handles.
	strong atomic.Int64

	// flush counts outstanding non-force flush guards.
	flush atomic.Int64

	forced  atomic.Bool
	emitted atomic.Bool
	once    sync.Once

	recordType string
}

// Guard is the append-on-drop owner of a record bound to a sink. Go has
// no destructors, so the drop is an explicit Close; Close is idempotent
// and safe to defer at the top of the unit of work.
//
// The record is closed (snapshotted), validated, and appended exactly
// once: when the last strong owner (guard plus handles) has closed and
// no non-force flush guards remain, or immediately when any force-flush
// guard closes.
type Guard[T any] struct {
	rec    *T
	cell   *cell
	closed atomic.Bool
}

// AppendOnDrop binds a record to a sink and returns its guard. The
// record is mutated through Metric (or through shared handles, slots,
// and counters) until the guard closes. A nil sink is a setup-order
// bug and panics.
func AppendOnDrop[T any](rec *T, sink EntrySink) *Guard[T] {
	if sink == nil {
		panic("uow: AppendOnDrop called with nil sink; attach a sink first")
	}
	c := &cell{rec: rec, sink: sink, recordType: typeNameOf(rec)}
	c.strong.Store(1)
	return &Guard[T]{rec: rec, cell: c}
}

// Metric returns the record for mutation. After emission the record is
// still addressable; writes are accepted and discarded because the
// snapshot has already been taken.
func (g *Guard[T]) Metric() *T { return g.rec }

// Close drops the guard's strong ownership. Idempotent.
func (g *Guard[T]) Close() {
	if g.closed.Swap(true) {
		return
	}
	g.cell.releaseStrong()
}

// Handle returns a shared-ownership view of the record. Each handle
// keeps the record open until closed; handles may cross goroutines
// (mutation under shared ownership must go through atomic, slot, or
// mutex-guarded fields).
func (g *Guard[T]) Handle() *Handle[T] {
	g.cell.strong.Add(1)
	return &Handle[T]{rec: g.rec, cell: g.cell}
}

// FlushGuard returns a type-erased handle that delays emission while
// alive. It does not keep the record mutable and does not count as an
// owner.
func (g *Guard[T]) FlushGuard() *FlushGuard {
	g.cell.flush.Add(1)
	return &FlushGuard{cell: g.cell}
}

// ForceFlushGuard returns a handle whose first Close forces immediate
// emission regardless of other owners and flush guards.
func (g *Guard[T]) ForceFlushGuard() *ForceFlushGuard {
	return &ForceFlushGuard{cell: g.cell}
}

// Handle is a shared owner of a guarded record.
type Handle[T any] struct {
	rec    *T
	cell   *cell
	closed atomic.Bool
}

// Metric returns the shared record.
func (h *Handle[T]) Metric() *T { return h.rec }

// Close drops this handle's ownership. Idempotent.
func (h *Handle[T]) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.cell.releaseStrong()
}

// FlushGuard delays emission of its record while alive. Type-erased so
// that lifecycle helpers (slots, sub-tasks) can hold guards over
// records of any type.
type FlushGuard struct {
	cell   *cell
	closed atomic.Bool
}

// Close releases the flush guard. Idempotent.
func (f *FlushGuard) Close() {
	if f == nil || f.closed.Swap(true) {
		return
	}
	f.cell.releaseFlush()
}

// ForceFlushGuard forces emission on Close, even while other handles
// and flush guards remain alive. Survivors observe a closed record:
// later writes are accepted and discarded, later closes emit nothing.
type ForceFlushGuard struct {
	cell   *cell
	closed atomic.Bool
}

// Close fires the force flush. Idempotent.
func (f *ForceFlushGuard) Close() {
	if f == nil || f.closed.Swap(true) {
		return
	}
	f.cell.forced.Store(true)
	f.cell.emit()
}

func (c *cell) releaseStrong() {
	if c.strong.Add(-1) == 0 {
		c.maybeEmit()
	}
}

func (c *cell) releaseFlush() {
	if c.flush.Add(-1) == 0 {
		c.maybeEmit()
	}
}

// maybeEmit emits when the owner chain has fully terminated: no strong
// owners and no flush guards. A forced cell has already emitted.
func (c *cell) maybeEmit() {
	if c.strong.Load() == 0 && c.flush.Load() == 0 {
		c.emit()
	}
}

// emit snapshots, validates, and appends the record exactly once.
// Validation failures are reported through the diagnostic channel and
// drop the entry; the producer is long gone by now.
func (c *cell) emit() {
	c.once.Do(func() {
		c.emitted.Store(true)
		entry, err := CloseRecord(c.rec)
		if err != nil {
			var verr *ValidationError
			if ve, ok := err.(*ValidationError); ok {
				verr = ve
			} else {
				verr = &ValidationError{Kind: DiagBadDeclaration}
			}
			emitDiagnostic(Diagnostic{
				Kind:      verr.Kind,
				EntryType: c.recordType,
				Key:       verr.Key,
				Err:       err,
			})
			return
		}
		c.sink.Append(entry)
	})
}

func typeNameOf(rec any) string {
	type namer interface{ typeName() string }
	if n, ok := rec.(namer); ok {
		return n.typeName()
	}
	return shortTypeName(rec)
}
