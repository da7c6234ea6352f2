package uow

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ImmediateSink serializes and writes each entry synchronously inside
// Append, under a mutex. There is no queue and nothing to drain, which
// suits fork-unsafe or short-lived environments (serverless handlers);
// it is not for latency-sensitive hot paths, since producers wait on
// the output stream.
type ImmediateSink struct {
	mu     sync.Mutex
	format Format
	out    io.Writer
	buf    bytes.Buffer
}

// NewImmediateSink returns a synchronous sink writing format-framed
// records to w.
func NewImmediateSink(format Format, w io.Writer) *ImmediateSink {
	return &ImmediateSink{format: format, out: w}
}

// Append implements EntrySink: lock, serialize, write, unlock.
func (s *ImmediateSink) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if err := s.format.Serialize(e, &s.buf); err != nil {
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
	if s.buf.Len() == 0 {
		// sampled out
		return
	}
	if n, err := s.out.Write(s.buf.Bytes()); err != nil || n < s.buf.Len() {
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
