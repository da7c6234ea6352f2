package uow

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// BackgroundQueue is the non-blocking sink: a bounded in-memory queue
// feeding a single consumer goroutine that serializes entries and
// writes framed records to the output stream. Append never waits on
// I/O; when the queue is full the oldest entry is displaced, keeping
// the most recent entries, which matter most for incident forensics.
//
// The consumer goroutine exclusively owns the format and the output
// writer, so neither needs to be thread-safe.
type BackgroundQueue struct {
	opts   *QueueOptions
	format Format
	out    io.Writer

	mu      sync.Mutex
	entries []Entry

	dropped atomic.Uint64

	// gate is a per-iteration pause point; tests hold it to stall the
	// consumer between dequeues.
	gate sync.Mutex

	notify   chan struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// AttachHandle owns a running sink's consumer. Close signals shutdown,
// drains every accepted entry, and joins the consumer goroutine; it is
// the only blocking operation in the sink API. Idempotent.
type AttachHandle struct {
	once sync.Once
	stop func()
}

// Close drains and joins the sink's consumer.
func (h *AttachHandle) Close() {
	if h == nil {
		return
	}
	h.once.Do(h.stop)
}

// NewBackgroundQueue starts a queue sink writing format-framed records
// to w, and returns it with the handle that drains and joins it on
// Close.
func NewBackgroundQueue(format Format, w io.Writer, opts *QueueOptions) (*BackgroundQueue, *AttachHandle) {
	if opts == nil {
		opts = DefaultQueueOptions()
	} else {
		opts.resolve()
	}

	q := &BackgroundQueue{
		opts:     opts,
		format:   format,
		out:      w,
		entries:  make([]Entry, 0, opts.Capacity),
		notify:   make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()

	return q, &AttachHandle{stop: q.stop}
}

// Append implements EntrySink. It never blocks beyond the queue's
// critical section: a full queue displaces its oldest entry (counted
// and reported) before accepting the new one.
func (q *BackgroundQueue) Append(e Entry) {
	q.mu.Lock()
	if len(q.entries) == q.opts.Capacity {
		evicted := q.entries[0]
		q.entries[0] = nil
		q.entries = q.entries[1:]
		q.dropped.Add(1)
		q.mu.Unlock()
		emitDiagnostic(Diagnostic{
			Kind:      DiagQueueFull,
			EntryType: entryTypeName(evicted),
		})
		q.mu.Lock()
	}
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	// non-blocking wake-up for the consumer
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DroppedCount returns the number of entries displaced by queue
// pressure since construction.
func (q *BackgroundQueue) DroppedCount() uint64 { return q.dropped.Load() }

// Len returns the number of entries waiting for the consumer.
func (q *BackgroundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *BackgroundQueue) pop() Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	e := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	return e
}

// run is the consumer loop: dequeue, serialize, write, repeat. On
// shutdown it drains the remaining entries before returning, so every
// accepted entry is written unless displaced earlier.
func (q *BackgroundQueue) run() {
	defer q.wg.Done()

	buf := bytes.NewBuffer(make([]byte, 0, q.opts.BufferCap))

	for {
		q.gate.Lock()
		q.gate.Unlock() //nolint:staticcheck // pause point, not a critical section

		e := q.pop()
		if e == nil {
			select {
			case <-q.notify:
				continue
			case <-q.shutdown:
				for e := q.pop(); e != nil; e = q.pop() {
					q.write(e, buf)
				}
				return
			}
		}
		q.write(e, buf)
	}
}

// write serializes one entry and writes the framed record in a single
// call. Serialization and I/O failures become diagnostics; the loop
// continues either way.
func (q *BackgroundQueue) write(e Entry, buf *bytes.Buffer) {
	buf.Reset()
	if err := q.format.Serialize(e, buf); err != nil {
		kind := DiagSerializeError
		var verr *ValidationError
		if errors.As(err, &verr) {
			kind = verr.Kind
		}
		emitDiagnostic(Diagnostic{
			Kind:      kind,
			EntryType: entryTypeName(e),
			Err:       err,
		})
		return
	}
	if buf.Len() == 0 {
		// sampled out
		return
	}
	if n, err := q.out.Write(buf.Bytes()); err != nil || n < buf.Len() {
		if err == nil {
			err = io.ErrShortWrite
		}
		emitDiagnostic(Diagnostic{
			Kind:      DiagIoError,
			EntryType: entryTypeName(e),
			Err:       err,
		})
	}
}

// stop signals the consumer and waits for the drain to finish.
func (q *BackgroundQueue) stop() {
	close(q.shutdown)
	q.wg.Wait()
}
