package uow

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackOptions customize the Fluent-forward msgpack serializer.
type MsgpackOptions struct {

	// Tag is the Fluent event tag prepended to every record. The
	// default is "uow".
	Tag string

	// CoarseTimestamps serializes the event time as whole Unix
	// seconds instead of the sub-second EventTime extension, for
	// legacy collectors.
	CoarseTimestamps bool
}

const defaultMsgpackTag = "uow"

// DefaultMsgpackOptions returns *MsgpackOptions with all default
// values.
func DefaultMsgpackOptions() *MsgpackOptions {
	return &MsgpackOptions{Tag: defaultMsgpackTag}
}

// resolve ensures that all options have valid values.
func (o *MsgpackOptions) resolve() {
	if o.Tag == "" {
		o.Tag = defaultMsgpackTag
	}
}

// MsgpackFormat serializes entries as Fluent-forward message-mode
// events: a msgpack array of [tag, event time, record map]. The
// canonical timestamp populates the event-time slot; properties and
// metrics land in the record map, metrics carrying a sampling
// multiplicity as a [value, count] pair.
type MsgpackFormat struct {
	opts *MsgpackOptions
	clk  func() time.Time
}

// NewMsgpackFormat returns a Fluent-forward serializer.
func NewMsgpackFormat(opts *MsgpackOptions) *MsgpackFormat {
	if opts == nil {
		opts = DefaultMsgpackOptions()
	} else {
		opts.resolve()
	}
	return &MsgpackFormat{opts: opts, clk: time.Now}
}

// Serialize implements Format.
func (f *MsgpackFormat) Serialize(e Entry, buf *bytes.Buffer) error {
	col := &tokenCollector{seen: make(map[string]struct{})}
	e.WriteFields(col)
	if col.err != nil {
		return col.err
	}

	ts := col.timestamp
	if !col.hasTime {
		ts = f.clk()
	}

	enc := msgpack.NewEncoder(buf)
	if err := enc.EncodeArrayLen(3); err != nil {
		return fmt.Errorf("failed to encode event prelude: %w", err)
	}
	if err := enc.EncodeString(f.opts.Tag); err != nil {
		return fmt.Errorf("failed to encode event tag: %w", err)
	}
	if f.opts.CoarseTimestamps {
		if err := enc.EncodeInt64(ts.Unix()); err != nil {
			return fmt.Errorf("failed to encode event time: %w", err)
		}
	} else {
		et := EventTime(ts)
		if err := enc.Encode(&et); err != nil {
			return fmt.Errorf("failed to encode event time: %w", err)
		}
	}

	if err := enc.EncodeMapLen(len(col.fields)); err != nil {
		return fmt.Errorf("failed to encode record header: %w", err)
	}
	for _, fld := range col.fields {
		if err := enc.EncodeString(fld.name); err != nil {
			return fmt.Errorf("failed to encode key %q: %w", fld.name, err)
		}
		if err := encodeMsgpackValue(enc, fld.value); err != nil {
			return fmt.Errorf("failed to encode value for %q: %w", fld.name, err)
		}
	}
	return nil
}

func encodeMsgpackValue(enc *msgpack.Encoder, v Value) error {
	if v.isNumeric() && v.Multiplicity() != 1 {
		if err := enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := enc.EncodeFloat64(v.Float64()); err != nil {
			return err
		}
		return enc.EncodeFloat64(v.Multiplicity())
	}
	switch v.kind {
	case kindInt:
		return enc.EncodeInt64(v.i)
	case kindUint:
		return enc.EncodeUint64(v.u)
	case kindFloat, kindDuration:
		return enc.EncodeFloat64(v.Float64())
	case kindTime:
		return enc.EncodeInt64(v.t.UnixMilli())
	default:
		return enc.EncodeString(v.StringValue())
	}
}

// tokenCollector materializes an entry's token stream in order while
// checking the rooted invariants. Shared by the binary formats.
type tokenCollector struct {
	fields    []closedField
	seen      map[string]struct{}
	timestamp time.Time
	hasTime   bool
	err       error
}

func (c *tokenCollector) Timestamp(t time.Time) {
	if c.hasTime && c.err == nil {
		c.err = &ValidationError{Kind: DiagDuplicateTimestamp}
	}
	c.timestamp = t
	c.hasTime = true
}

func (c *tokenCollector) Value(name string, v Value) {
	if _, dup := c.seen[name]; dup && c.err == nil {
		c.err = &ValidationError{Kind: DiagDuplicateKey, Key: name}
	}
	c.seen[name] = struct{}{}
	c.fields = append(c.fields, closedField{name: name, value: v})
}
