package uow

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items, so
// the same entry always produces identical bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("uow: CBOR encoder initialization failed: " + err.Error())
	}
}

// CBORFormat serializes entries as one deterministic CBOR map per
// record: properties as text, integer metrics as integers, other
// metrics as floats, metrics with a sampling multiplicity as a
// [value, count] pair.
//
// CBOR has no canonical timestamp slot: a record declaring a
// `timestamp` field serializes it as an ordinary epoch-millis member
// under "Timestamp", and a diagnostic notes the downgrade.
type CBORFormat struct{}

// NewCBORFormat returns a CBOR serializer.
func NewCBORFormat() *CBORFormat { return &CBORFormat{} }

// Serialize implements Format.
func (f *CBORFormat) Serialize(e Entry, buf *bytes.Buffer) error {
	col := &tokenCollector{seen: make(map[string]struct{})}
	e.WriteFields(col)
	if col.err != nil {
		return col.err
	}

	root := make(map[string]any, len(col.fields)+1)
	if col.hasTime {
		emitDiagnostic(Diagnostic{
			Kind:      DiagNoTimestampSlot,
			EntryType: entryTypeName(e),
			Key:       "Timestamp",
		})
		root["Timestamp"] = col.timestamp.UnixMilli()
	}
	for _, fld := range col.fields {
		v := fld.value
		switch {
		case v.isNumeric() && v.Multiplicity() != 1:
			root[fld.name] = []float64{v.Float64(), v.Multiplicity()}
		case v.kind == kindInt:
			root[fld.name] = v.i
		case v.kind == kindUint:
			root[fld.name] = v.u
		case v.isNumeric():
			root[fld.name] = v.Float64()
		default:
			root[fld.name] = v.StringValue()
		}
	}

	data, err := cborEncMode.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal CBOR record: %w", err)
	}
	buf.Write(data)
	return nil
}
