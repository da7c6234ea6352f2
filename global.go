package uow

import (
	"io"
	"sync/atomic"
)

// globalSink is the process-wide rendezvous slot. Producers that call
// Sink() read it; setup code populates it exactly once via one of the
// Attach functions. Replacing an attached sink is possible (tests do
// it) but in-flight producers holding the previous sink are not
// redirected.
var globalSink atomic.Value

type sinkBox struct{ s EntrySink }

// Sink returns the process-wide sink. Calling it before any Attach is
// a setup-order bug and panics loudly: it is a programming error, not
// a runtime condition.
func Sink() EntrySink {
	v := globalSink.Load()
	if v == nil {
		panic("uow: no sink attached; call Attach, AttachToStream, or SetTestSink during setup")
	}
	return v.(sinkBox).s
}

// Attach installs an already-constructed sink as the process-wide
// sink. The returned handle is inert unless the sink exposes its own
// drain (use AttachToStream for the managed pipeline).
func Attach(s EntrySink) *AttachHandle {
	globalSink.Store(sinkBox{s: s})
	if q, ok := s.(*BackgroundQueue); ok {
		return &AttachHandle{stop: q.stop}
	}
	return &AttachHandle{stop: func() {}}
}

// AttachToStream builds the standard pipeline — background queue,
// format, output stream — installs it process-wide, and returns the
// handle whose Close drains and joins the consumer.
func AttachToStream(format Format, w io.Writer, opts *QueueOptions) *AttachHandle {
	q, handle := NewBackgroundQueue(format, w, opts)
	globalSink.Store(sinkBox{s: q})
	return handle
}

// SetTestSink installs an in-memory sink, for tests that exercise code
// emitting through the global rendezvous.
func SetTestSink(s *TestSink) *AttachHandle {
	globalSink.Store(sinkBox{s: s})
	return &AttachHandle{stop: func() {}}
}
