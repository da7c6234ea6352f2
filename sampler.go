package uow

import (
	"bytes"
	"math/rand/v2"
	"time"
)

// FixedFractionSampler keeps a uniform fraction of entries. A kept
// entry carries multiplicity 1/fraction so that downstream aggregation
// still sees the full population; dropped entries serialize to nothing.
type FixedFractionSampler struct {
	fraction float64
	rng      func() float64
}

// NewFixedFractionSampler returns a sampler keeping the given fraction
// of entries. Fractions outside (0, 1] are coerced to 1 (keep
// everything).
func NewFixedFractionSampler(fraction float64) *FixedFractionSampler {
	if fraction <= 0 || fraction > 1 {
		fraction = 1
	}
	return &FixedFractionSampler{fraction: fraction, rng: rand.Float64}
}

// Wrap implements Sampler.
func (s *FixedFractionSampler) Wrap(f Format) Format {
	return &sampledFormat{
		inner: f,
		decide: func(Entry) (float64, bool) {
			if s.rng() < s.fraction {
				return 1 / s.fraction, true
			}
			return 0, false
		},
	}
}

// sampledFormat interposes a per-entry keep/drop decision between
// entry and format. Dropped entries append nothing; kept entries pass
// through with the decided multiplicity attached to every metric
// value.
type sampledFormat struct {
	inner  Format
	decide func(Entry) (multiplicity float64, keep bool)
}

func (s *sampledFormat) Serialize(e Entry, buf *bytes.Buffer) error {
	mult, keep := s.decide(e)
	if !keep {
		return nil
	}
	if mult <= 1 {
		return s.inner.Serialize(e, buf)
	}
	return s.inner.Serialize(&weightedEntry{inner: e, mult: mult}, buf)
}

// weightedEntry replays an entry with a sampling multiplicity applied
// to each metric value.
type weightedEntry struct {
	inner Entry
	mult  float64
}

func (w *weightedEntry) typeName() string { return entryTypeName(w.inner) }

func (w *weightedEntry) WriteFields(ew EntryWriter) {
	w.inner.WriteFields(&weightingWriter{next: ew, mult: w.mult})
}

func (w *weightedEntry) SampleGroup() []SampleGroupElement {
	return w.inner.SampleGroup()
}

type weightingWriter struct {
	next EntryWriter
	mult float64
}

func (w *weightingWriter) Timestamp(t time.Time) { w.next.Timestamp(t) }

func (w *weightingWriter) Value(name string, v Value) {
	if v.isNumeric() {
		v = v.WithMultiplicity(w.mult * v.Multiplicity())
	}
	w.next.Value(name, v)
}
