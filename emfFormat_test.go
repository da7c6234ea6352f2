package uow

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func emfEntry() Entry {
	return &closedEntry{
		recordType: "RequestMetrics",
		timestamp:  time.UnixMilli(1_700_000_123_456),
		hasTime:    true,
		fields: []closedField{
			{name: "Operation", value: String("CountDucks")},
			{name: "NumberOfDucks", value: Uint(5).WithUnit(UnitCount)},
			{name: "OperationTime", value: Duration(1500 * time.Millisecond).WithUnit(UnitMilliseconds)},
		},
	}
}

func decodeEMF(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v", err)
	}
	return root
}

func TestEMFFormat_Shape(t *testing.T) {

	f := NewEMFFormat(&EMFOptions{
		Namespace:  "Ducks",
		Dimensions: [][]string{{"Operation"}},
	})

	var buf bytes.Buffer
	if err := f.Serialize(emfEntry(), &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one newline-framed JSON object, got: %q", out)
	}

	root := decodeEMF(t, buf.Bytes())

	aws, ok := root["_aws"].(map[string]any)
	if !ok {
		t.Fatalf("expected an _aws envelope, got: %v", root)
	}
	if ts := aws["Timestamp"].(float64); int64(ts) != 1_700_000_123_456 {
		t.Errorf("expected epoch-millis timestamp, got: %f", ts)
	}

	directives := aws["CloudWatchMetrics"].([]any)
	if len(directives) != 1 {
		t.Fatalf("expected one metric directive, got: %d", len(directives))
	}
	directive := directives[0].(map[string]any)
	if directive["Namespace"] != "Ducks" {
		t.Errorf("expected namespace Ducks, got: %v", directive["Namespace"])
	}

	metrics := directive["Metrics"].([]any)
	units := map[string]string{}
	for _, m := range metrics {
		def := m.(map[string]any)
		unit, _ := def["Unit"].(string)
		units[def["Name"].(string)] = unit
	}
	if units["NumberOfDucks"] != "Count" || units["OperationTime"] != "Milliseconds" {
		t.Errorf("unexpected per-metric units: %v", units)
	}

	if root["Operation"] != "CountDucks" {
		t.Errorf("expected property at top level, got: %v", root["Operation"])
	}
	if root["NumberOfDucks"].(float64) != 5 {
		t.Errorf("expected metric value at top level, got: %v", root["NumberOfDucks"])
	}
	if root["OperationTime"].(float64) != 1500 {
		t.Errorf("expected duration in milliseconds, got: %v", root["OperationTime"])
	}
}

func TestEMFFormat_MissingDimensionIsValidationError(t *testing.T) {

	f := NewEMFFormat(&EMFOptions{Dimensions: [][]string{{"Region"}}})

	var buf bytes.Buffer
	err := f.Serialize(emfEntry(), &buf)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected a *ValidationError, got: %v", err)
	}
	if verr.Key != "Region" {
		t.Errorf("expected the missing dimension key, got: %q", verr.Key)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing appended on validation failure")
	}
}

func TestEMFFormat_DuplicateKeyIsValidationError(t *testing.T) {

	dup := &closedEntry{
		recordType: "dup",
		fields: []closedField{
			{name: "X", value: Int(1)},
			{name: "X", value: Int(2)},
		},
	}

	var buf bytes.Buffer
	err := NewEMFFormat(nil).Serialize(dup, &buf)
	verr, ok := err.(*ValidationError)
	if !ok || verr.Kind != DiagDuplicateKey {
		t.Fatalf("expected a duplicate-key validation error, got: %v", err)
	}
}

func TestEMFFormat_SamplingEncodesCounts(t *testing.T) {

	e := &closedEntry{
		recordType: "sampled",
		fields:     []closedField{{name: "N", value: Int(3).WithMultiplicity(20)}},
	}

	f := NewEMFFormat(&EMFOptions{Sampling: true})
	var buf bytes.Buffer
	if err := f.Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}

	root := decodeEMF(t, buf.Bytes())
	n, ok := root["N"].(map[string]any)
	if !ok {
		t.Fatalf("expected a Values/Counts object, got: %v", root["N"])
	}
	values := n["Values"].([]any)
	counts := n["Counts"].([]any)
	if values[0].(float64) != 3 || counts[0].(float64) != 20 {
		t.Errorf("expected value 3 with count 20, got: %v %v", values, counts)
	}
}

func TestEMFFormat_SamplingDisabledDropsMultiplicityEncoding(t *testing.T) {

	e := &closedEntry{
		recordType: "sampled",
		fields:     []closedField{{name: "N", value: Int(3).WithMultiplicity(20)}},
	}

	var buf bytes.Buffer
	if err := NewEMFFormat(nil).Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	root := decodeEMF(t, buf.Bytes())
	if _, ok := root["N"].(float64); !ok {
		t.Fatalf("expected a plain number without sampling, got: %v", root["N"])
	}
}

func TestEMFFormat_MissingTimestampUsesClock(t *testing.T) {

	e := &closedEntry{
		recordType: "untimed",
		fields:     []closedField{{name: "N", value: Int(1)}},
	}

	f := NewEMFFormat(nil)
	fixed := time.UnixMilli(42_000)
	f.clk = func() time.Time { return fixed }

	var buf bytes.Buffer
	if err := f.Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	root := decodeEMF(t, buf.Bytes())
	aws := root["_aws"].(map[string]any)
	if int64(aws["Timestamp"].(float64)) != 42_000 {
		t.Errorf("expected the serialization clock, got: %v", aws["Timestamp"])
	}
}

func TestEMFFormat_UnicodePropertiesRoundTrip(t *testing.T) {

	e := &closedEntry{
		recordType: "unicode",
		fields:     []closedField{{name: "Who", value: String("ducks \"🦆\" & <friends>\n")}},
	}

	var buf bytes.Buffer
	if err := NewEMFFormat(nil).Serialize(e, &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	root := decodeEMF(t, buf.Bytes())
	if root["Who"] != "ducks \"🦆\" & <friends>\n" {
		t.Errorf("expected the property to round-trip through JSON escaping, got: %q", root["Who"])
	}
}

func TestEMFFormat_HighResolutionDirective(t *testing.T) {

	f := NewEMFFormat(&EMFOptions{StorageResolution: 1})
	var buf bytes.Buffer
	if err := f.Serialize(emfEntry(), &buf); err != nil {
		t.Fatalf("failed to serialize: %v", err)
	}
	root := decodeEMF(t, buf.Bytes())
	aws := root["_aws"].(map[string]any)
	directive := aws["CloudWatchMetrics"].([]any)[0].(map[string]any)
	def := directive["Metrics"].([]any)[0].(map[string]any)
	if def["StorageResolution"].(float64) != 1 {
		t.Errorf("expected high-resolution metrics, got: %v", def)
	}
}
