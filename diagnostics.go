package uow

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// DiagnosticKind classifies the failures the library reports through
// the diagnostic channel. Producers never see these as errors: by the
// time a record closes, its owner has already let go.
type DiagnosticKind string

const (
	// DiagDuplicateKey: two fields composed to the same emitted name.
	DiagDuplicateKey DiagnosticKind = "duplicate_key"

	// DiagDuplicateTimestamp: more than one field carries `timestamp`.
	DiagDuplicateTimestamp DiagnosticKind = "duplicate_timestamp"

	// DiagBadPrefix: a prefix violated the composition rules (an
	// inflectable prefix containing the path delimiter, or a root-level
	// inflectable prefix without a trailing delimiter, whatever the
	// container's style).
	DiagBadPrefix DiagnosticKind = "forbidden_prefix"

	// DiagBadDeclaration: a record declaration the walker cannot use
	// (scalar flattened, sub-entry not flattened, unknown formatter
	// name). Unrecognized tag options are ignored, not reported.
	DiagBadDeclaration DiagnosticKind = "bad_declaration"

	// DiagQueueFull: the background queue displaced its oldest entry.
	DiagQueueFull DiagnosticKind = "queue_full"

	// DiagSerializeError: a format rejected an entry at serialize time.
	DiagSerializeError DiagnosticKind = "serialize_error"

	// DiagIoError: the consumer's write to the output stream failed.
	DiagIoError DiagnosticKind = "io_error"

	// DiagNoTimestampSlot: the record declared a timestamp but the
	// active format has no canonical timestamp slot; the field was
	// emitted as an ordinary epoch-millis property.
	DiagNoTimestampSlot DiagnosticKind = "no_timestamp_slot"
)

// Diagnostic is one structured failure event. Delivery must never
// block; the default handler writes a slog record.
type Diagnostic struct {
	Kind      DiagnosticKind
	EntryType string
	Key       string
	Err       error
}

// ValidationError reports a close-time invariant violation. It is
// distinguished from I/O errors so sink consumers can tell a rejected
// entry from a broken stream.
type ValidationError struct {
	Kind DiagnosticKind
	Key  string
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("invalid entry: %s: %q", e.Kind, e.Key)
	}
	return fmt.Sprintf("invalid entry: %s", e.Kind)
}

// DiagnosticHandler receives diagnostic events. Implementations must
// not block.
type DiagnosticHandler func(Diagnostic)

var diagnosticHandler atomic.Value

func init() {
	diagnosticHandler.Store(DiagnosticHandler(logDiagnostic))
}

// SetDiagnosticHandler replaces the process-wide diagnostic handler and
// returns the previous one. Tests use this to capture validation
// events.
func SetDiagnosticHandler(h DiagnosticHandler) DiagnosticHandler {
	prev := diagnosticHandler.Load().(DiagnosticHandler)
	if h == nil {
		h = logDiagnostic
	}
	diagnosticHandler.Store(h)
	return prev
}

// emitDiagnostic dispatches one event to the current handler.
func emitDiagnostic(d Diagnostic) {
	diagnosticHandler.Load().(DiagnosticHandler)(d)
}

// logDiagnostic is the default handler: a structured warning on the
// process slog logger.
func logDiagnostic(d Diagnostic) {
	attrs := []any{
		slog.String("kind", string(d.Kind)),
		slog.String("entry_type", d.EntryType),
	}
	if d.Key != "" {
		attrs = append(attrs, slog.String("key", d.Key))
	}
	if d.Err != nil {
		attrs = append(attrs, slog.Any("error", d.Err))
	}
	slog.Warn("metric entry diagnostic", attrs...)
}
