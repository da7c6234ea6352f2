package uow

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestCBORFormat_RecordShape(t *testing.T) {

	e := &closedEntry{
		recordType: "RequestMetrics",
		fields: []closedField{
			{name: "operation", value: String("CountDucks")},
			{name: "count", value: Uint(5)},
			{name: "elapsed", value: Duration(250 * time.Millisecond)},
		},
	}

	var buf bytes.Buffer
	if err := NewCBORFormat().Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	var record map[string]any
	if err := cbor.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse CBOR output: %v", err)
	}
	if record["operation"] != "CountDucks" {
		t.Errorf("expected operation property, got: %v", record)
	}
	if record["count"] != uint64(5) {
		t.Errorf("expected count 5, got: %v (%T)", record["count"], record["count"])
	}
	if record["elapsed"] != float64(250) {
		t.Errorf("expected elapsed in milliseconds, got: %v", record["elapsed"])
	}
}

// CBOR is deterministic: the same entry always produces the same bytes
func TestCBORFormat_Deterministic(t *testing.T) {

	e := &closedEntry{
		recordType: "det",
		fields: []closedField{
			{name: "b", value: Int(2)},
			{name: "a", value: Int(1)},
		},
	}

	var first, second bytes.Buffer
	if err := NewCBORFormat().Serialize(e, &first); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	if err := NewCBORFormat().Serialize(e, &second); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("expected deterministic encoding")
	}
}

// CBOR has no canonical timestamp slot: the field downgrades to an
// epoch-millis member and a diagnostic notes it
func TestCBORFormat_TimestampDowngradesWithWarning(t *testing.T) {

	diags := captureDiagnostics(t)

	e := &closedEntry{
		recordType: "timed",
		timestamp:  time.UnixMilli(123_456),
		hasTime:    true,
		fields:     []closedField{{name: "n", value: Int(1)}},
	}

	var buf bytes.Buffer
	if err := NewCBORFormat().Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	var record map[string]any
	if err := cbor.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse CBOR output: %v", err)
	}
	if record["Timestamp"] != uint64(123_456) {
		t.Errorf("expected epoch-millis Timestamp member, got: %v (%T)", record["Timestamp"], record["Timestamp"])
	}
	if len(diags.ofKind(DiagNoTimestampSlot)) != 1 {
		t.Errorf("expected a no-timestamp-slot diagnostic, got: %+v", diags.all())
	}
}
