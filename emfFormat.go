package uow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EMFFormat serializes entries as Amazon EMF: one JSON object per
// line, with an "_aws" envelope declaring the namespace, dimension
// sets, and per-metric units, the canonical timestamp in epoch
// milliseconds, and the entry's properties and metric values as
// sibling top-level members.
type EMFFormat struct {
	opts *EMFOptions

	// clock for entries that declare no timestamp; injectable in tests
	clk func() time.Time
}

// NewEMFFormat returns an EMF serializer.
func NewEMFFormat(opts *EMFOptions) *EMFFormat {
	if opts == nil {
		opts = DefaultEMFOptions()
	} else {
		opts.resolve()
	}
	return &EMFFormat{opts: opts, clk: time.Now}
}

// emfMetadata is the "_aws" envelope.
type emfMetadata struct {
	Timestamp         int64          `json:"Timestamp"`
	CloudWatchMetrics []emfDirective `json:"CloudWatchMetrics"`
}

type emfDirective struct {
	Namespace  string         `json:"Namespace"`
	Dimensions [][]string     `json:"Dimensions"`
	Metrics    []emfMetricDef `json:"Metrics"`
}

type emfMetricDef struct {
	Name              string `json:"Name"`
	Unit              string `json:"Unit,omitempty"`
	StorageResolution int    `json:"StorageResolution,omitempty"`
}

// emfSampledValue is the multiplicity-bearing value encoding used when
// sampling is enabled.
type emfSampledValue struct {
	Values []float64 `json:"Values"`
	Counts []float64 `json:"Counts"`
}

// Serialize implements Format. Validation failures (duplicate keys,
// duplicate timestamps, dimension keys with no backing property) are
// returned as *ValidationError and nothing is appended to buf.
func (f *EMFFormat) Serialize(e Entry, buf *bytes.Buffer) error {
	col := &emfCollector{
		props: make(map[string]string),
		seen:  make(map[string]struct{}),
	}
	e.WriteFields(col)
	if col.err != nil {
		return col.err
	}

	for _, set := range f.opts.Dimensions {
		for _, key := range set {
			if _, ok := col.props[key]; !ok {
				return &ValidationError{Kind: DiagSerializeError, Key: key}
			}
		}
	}

	ts := col.timestamp
	if !col.hasTime {
		ts = f.clk()
	}

	dims := f.opts.Dimensions
	if dims == nil {
		dims = [][]string{}
	}

	defs := make([]emfMetricDef, 0, len(col.metrics))
	for _, m := range col.metrics {
		def := emfMetricDef{Name: m.name, StorageResolution: f.opts.StorageResolution}
		if m.unit != UnitNone {
			def.Unit = string(m.unit)
		}
		defs = append(defs, def)
	}

	root := make(map[string]any, len(col.props)+len(col.metrics)+1)
	root["_aws"] = emfMetadata{
		Timestamp: ts.UnixMilli(),
		CloudWatchMetrics: []emfDirective{{
			Namespace:  f.opts.Namespace,
			Dimensions: dims,
			Metrics:    defs,
		}},
	}
	for k, v := range col.props {
		root[k] = v
	}
	for _, m := range col.metrics {
		if f.opts.Sampling && m.multiplicity != 1 {
			root[m.name] = emfSampledValue{
				Values: []float64{m.value},
				Counts: []float64{m.multiplicity},
			}
			continue
		}
		root[m.name] = m.value
	}

	data, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal EMF record: %w", err)
	}
	buf.Write(data)
	buf.WriteByte('\n')
	return nil
}

type emfMetric struct {
	name         string
	value        float64
	unit         Unit
	multiplicity float64
}

// emfCollector receives the entry token stream and checks the rooted
// invariants while bucketing fields into properties and metrics.
type emfCollector struct {
	props     map[string]string
	metrics   []emfMetric
	seen      map[string]struct{}
	timestamp time.Time
	hasTime   bool
	err       error
}

func (c *emfCollector) Timestamp(t time.Time) {
	if c.hasTime && c.err == nil {
		c.err = &ValidationError{Kind: DiagDuplicateTimestamp}
	}
	c.timestamp = t
	c.hasTime = true
}

func (c *emfCollector) Value(name string, v Value) {
	if _, dup := c.seen[name]; dup && c.err == nil {
		c.err = &ValidationError{Kind: DiagDuplicateKey, Key: name}
	}
	c.seen[name] = struct{}{}

	if v.isNumeric() {
		c.metrics = append(c.metrics, emfMetric{
			name:         name,
			value:        v.Float64(),
			unit:         v.Unit(),
			multiplicity: v.Multiplicity(),
		})
		return
	}
	c.props[name] = v.StringValue()
}
