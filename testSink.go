package uow

import (
	"sync"
	"time"
)

// CapturedEntry is the structured form a TestSink stores: properties,
// metrics (per-name value series, since a name can legally repeat only
// across entries), and the canonical timestamp.
type CapturedEntry struct {
	EntryType  string
	Timestamp  time.Time
	HasTime    bool
	Properties map[string]string
	Metrics    map[string][]CapturedMetric
	Groups     []SampleGroupElement
}

// CapturedMetric is one numeric observation with its unit and sampling
// multiplicity.
type CapturedMetric struct {
	Value        float64
	Unit         Unit
	Multiplicity float64
}

// TestSink collects closed entries in structured form for assertions.
// Entries failing validation are counted but not stored, matching the
// emission pipeline's drop semantics.
type TestSink struct {
	mu       sync.Mutex
	entries  []CapturedEntry
	rejected int
}

// NewTestSink returns an empty in-memory sink.
func NewTestSink() *TestSink { return &TestSink{} }

// Append implements EntrySink.
func (s *TestSink) Append(e Entry) {
	if err := validateEntry(e); err != nil {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		emitDiagnostic(Diagnostic{
			Kind:      err.(*ValidationError).Kind,
			EntryType: entryTypeName(e),
			Key:       err.(*ValidationError).Key,
			Err:       err,
		})
		return
	}

	cw := &captureWriter{
		entry: CapturedEntry{
			EntryType:  entryTypeName(e),
			Properties: make(map[string]string),
			Metrics:    make(map[string][]CapturedMetric),
		},
	}
	e.WriteFields(cw)
	cw.entry.Groups = e.SampleGroup()

	s.mu.Lock()
	s.entries = append(s.entries, cw.entry)
	s.mu.Unlock()
}

// Entries returns a copy of everything captured so far.
func (s *TestSink) Entries() []CapturedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of captured entries.
func (s *TestSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Rejected returns how many appended entries failed validation.
func (s *TestSink) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Reset discards captured entries and counts.
func (s *TestSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.rejected = 0
}

type captureWriter struct {
	entry CapturedEntry
}

func (c *captureWriter) Timestamp(t time.Time) {
	c.entry.Timestamp = t
	c.entry.HasTime = true
}

func (c *captureWriter) Value(name string, v Value) {
	if v.isNumeric() {
		c.entry.Metrics[name] = append(c.entry.Metrics[name], CapturedMetric{
			Value:        v.Float64(),
			Unit:         v.Unit(),
			Multiplicity: v.Multiplicity(),
		})
		return
	}
	c.entry.Properties[name] = v.StringValue()
}
