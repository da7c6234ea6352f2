package uow

import (
	"testing"
	"time"
)

// repeated Stop returns the duration captured by the first call
func TestTimer_StopIdempotent(t *testing.T) {

	tm := StartTimer()
	time.Sleep(5 * time.Millisecond)

	first := tm.Stop()
	if first <= 0 {
		t.Fatalf("expected a positive elapsed time, got: %v", first)
	}

	time.Sleep(5 * time.Millisecond)
	second := tm.Stop()
	if second != first {
		t.Fatalf("expected repeated Stop to return the same duration: %v != %v", first, second)
	}
}

func TestTimer_CloseValueStops(t *testing.T) {

	tm := StartTimer()
	v := tm.CloseValue()
	if v.IsEmpty() || !v.isNumeric() {
		t.Fatalf("expected a numeric duration value")
	}
	if tm.Stop() != tm.Stop() {
		t.Fatalf("expected the timer to be frozen after close")
	}
}

func TestStopwatch_NeverStartedIsZero(t *testing.T) {

	var sw Stopwatch
	if sw.Stop() != 0 {
		t.Fatalf("expected zero elapsed for a stopwatch that never ran")
	}
	if got := sw.CloseValue().Float64(); got != 0 {
		t.Fatalf("expected zero close value, got: %f", got)
	}
}

func TestStopwatch_MeasuresBetweenStartAndStop(t *testing.T) {

	var sw Stopwatch
	sw.Start()
	time.Sleep(2 * time.Millisecond)
	first := sw.Stop()
	if first <= 0 {
		t.Fatalf("expected positive elapsed time, got: %v", first)
	}
	if sw.Stop() != first {
		t.Fatalf("expected Stop to be idempotent")
	}
}

func TestCounter_AddAndSnapshot(t *testing.T) {

	var c Counter
	c.Add(2)
	c.Add(3)
	if c.Load() != 5 {
		t.Fatalf("expected 5, got: %d", c.Load())
	}

	v := c.CloseValue()
	if v.Float64() != 5 {
		t.Fatalf("expected snapshot of 5, got: %f", v.Float64())
	}
	if v.Unit() != UnitCount {
		t.Fatalf("expected Count unit, got: %s", v.Unit())
	}
}

func TestValue_BoolSerializesAsZeroOne(t *testing.T) {
	if Bool(true).Float64() != 1 || Bool(false).Float64() != 0 {
		t.Fatalf("expected bools to close to 1 and 0")
	}
}

func TestValue_DurationUnits(t *testing.T) {

	d := Duration(1500 * time.Millisecond)
	if got := d.Float64(); got != 1500 {
		t.Errorf("expected default milliseconds, got: %f", got)
	}
	if got := d.WithUnit(UnitSeconds).Float64(); got != 1.5 {
		t.Errorf("expected seconds conversion, got: %f", got)
	}
	if got := d.WithUnit(UnitMicroseconds).Float64(); got != 1_500_000 {
		t.Errorf("expected microseconds conversion, got: %f", got)
	}
}

func TestValue_MultiplicityDefaultsToOne(t *testing.T) {
	if Int(1).Multiplicity() != 1 {
		t.Fatalf("expected default multiplicity of 1")
	}
	if Int(1).WithMultiplicity(0.5).Multiplicity() != 1 {
		t.Fatalf("expected sub-unit multiplicities to coerce to 1")
	}
	if Int(1).WithMultiplicity(20).Multiplicity() != 20 {
		t.Fatalf("expected explicit multiplicity to stick")
	}
}
