package uow

import (
	"time"
)

// EntryWriter is the abstract consumer of a closed entry's fields. A
// format (or a validating interposer) implements it to receive the
// entry's token stream: at most one canonical timestamp, then any
// number of named values in composed declaration order.
type EntryWriter interface {
	// Timestamp receives the entry's canonical timestamp. Called at
	// most once per entry on valid input.
	Timestamp(t time.Time)

	// Value receives one named observation. Numeric values are
	// metrics; string and time values are properties.
	Value(name string, v Value)
}

// SampleGroupElement is one component of a sampler's partitioning key.
type SampleGroupElement struct {
	Key   string
	Value string
}

// Entry is the closed, serializable form of a record: a replayable
// stream of named values plus the sample-group elements samplers key
// on. Entries are pure snapshots; all live references (counters, slots,
// timers) were resolved when the entry was created.
type Entry interface {
	// WriteFields replays the entry's fields into w.
	WriteFields(w EntryWriter)

	// SampleGroup returns the sample-group elements, in declaration
	// order. Nil when the record declares none.
	SampleGroup() []SampleGroupElement
}

// entryTypeName extracts a short diagnostic label for an entry.
func entryTypeName(e Entry) string {
	if n, ok := e.(interface{ typeName() string }); ok {
		return n.typeName()
	}
	return "entry"
}

// closedField is one materialized token of a closed record: a named
// value, or an embedded self-keyed entry replayed at its declaration
// position.
type closedField struct {
	name  string
	value Value
	sub   Entry
}

// closedEntry is the materialized snapshot the reflection walker
// produces (for structs and string-keyed maps): flattening and name
// composition already applied, so replay is a flat loop. It is the library's only Entry
// implementation for user records; hand-written Entry implementations
// plug in through the flattenentry path.
type closedEntry struct {
	recordType string
	timestamp  time.Time
	hasTime    bool
	fields     []closedField
	groups     []SampleGroupElement
}

func (e *closedEntry) typeName() string { return e.recordType }

// WriteFields implements Entry.
func (e *closedEntry) WriteFields(w EntryWriter) {
	if e.hasTime {
		w.Timestamp(e.timestamp)
	}
	for _, f := range e.fields {
		if f.sub != nil {
			f.sub.WriteFields(w)
			continue
		}
		if f.value.IsEmpty() {
			continue
		}
		w.Value(f.name, f.value)
	}
}

// SampleGroup implements Entry.
func (e *closedEntry) SampleGroup() []SampleGroupElement {
	groups := e.groups
	for _, f := range e.fields {
		if f.sub != nil {
			groups = append(groups[:len(groups):len(groups)], f.sub.SampleGroup()...)
		}
	}
	return groups
}

// validateEntry replays an entry against a visited set, checking the
// rooted-record invariants: emitted names are unique and at most one
// canonical timestamp is set. The first violation is returned.
func validateEntry(e Entry) error {
	v := &validatingWriter{seen: make(map[string]struct{})}
	e.WriteFields(v)
	return v.err
}

type validatingWriter struct {
	seen      map[string]struct{}
	timestamp bool
	err       error
}

func (v *validatingWriter) Timestamp(time.Time) {
	if v.timestamp && v.err == nil {
		v.err = &ValidationError{Kind: DiagDuplicateTimestamp}
	}
	v.timestamp = true
}

func (v *validatingWriter) Value(name string, _ Value) {
	if _, dup := v.seen[name]; dup && v.err == nil {
		v.err = &ValidationError{Kind: DiagDuplicateKey, Key: name}
	}
	v.seen[name] = struct{}{}
}
