package uow

import (
	"context"
	"testing"
	"time"
)

type slotMetrics struct {
	Result Slot[string] `metric:"result"`
	N      int          `metric:"n"`
}

func TestSlot_OpenIsSingleUse(t *testing.T) {

	var s Slot[int]
	if _, err := s.Open(DiscardOnClose()); err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}
	if _, err := s.Open(DiscardOnClose()); err != ErrSlotOpen {
		t.Fatalf("expected ErrSlotOpen on second open, got: %v", err)
	}
}

func TestSlot_FilledValueAppearsInSnapshot(t *testing.T) {

	sink := NewTestSink()
	m := &slotMetrics{N: 1}
	g := AppendOnDrop(m, sink)

	sg, err := m.Result.Open(DiscardOnClose())
	if err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}
	if !sg.Fill("ok") {
		t.Fatalf("expected first Fill to win")
	}
	if sg.Fill("again") {
		t.Fatalf("expected second Fill to be rejected")
	}

	g.Close()
	e := sink.Entries()[0]
	if e.Properties["result"] != "ok" {
		t.Errorf("expected filled slot value in snapshot, got: %+v", e.Properties)
	}
}

// under the discard policy an unfilled slot contributes nothing
func TestSlot_DiscardPolicyOmitsUnfilled(t *testing.T) {

	sink := NewTestSink()
	m := &slotMetrics{N: 1}
	g := AppendOnDrop(m, sink)

	sg, err := m.Result.Open(DiscardOnClose())
	if err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}

	g.Close()
	if sink.Len() != 1 {
		t.Fatalf("expected discard policy not to defer emission, got: %d entries", sink.Len())
	}
	e := sink.Entries()[0]
	if _, ok := e.Properties["result"]; ok {
		t.Errorf("expected unfilled slot to be omitted, got: %+v", e.Properties)
	}

	sg.Close()
}

// under the wait policy the parent's close does not append until the
// slot is finalized
func TestSlot_WaitPolicyDefersParent(t *testing.T) {

	sink := NewTestSink()
	m := &slotMetrics{N: 1}
	g := AppendOnDrop(m, sink)

	sg, err := m.Result.Open(WaitForSlot(g.FlushGuard()))
	if err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}

	g.Close()
	if sink.Len() != 0 {
		t.Fatalf("expected parent close to wait for the slot")
	}

	sg.Fill("late")
	if sink.Len() != 1 {
		t.Fatalf("expected emission once the slot filled, got: %d", sink.Len())
	}
	if got := sink.Entries()[0].Properties["result"]; got != "late" {
		t.Errorf("expected late fill in snapshot, got: %q", got)
	}
}

// dropping the writer without filling also releases a waiting parent
func TestSlot_WriterDropReleasesParent(t *testing.T) {

	sink := NewTestSink()
	m := &slotMetrics{N: 1}
	g := AppendOnDrop(m, sink)

	sg, err := m.Result.Open(WaitForSlot(g.FlushGuard()))
	if err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}

	g.Close()
	sg.Close()

	if sink.Len() != 1 {
		t.Fatalf("expected emission after the writer dropped, got: %d", sink.Len())
	}
	if _, ok := sink.Entries()[0].Properties["result"]; ok {
		t.Errorf("expected no slot output after writer drop")
	}
}

func TestSlot_WaitSuspendsUntilFill(t *testing.T) {

	var s Slot[int]
	sg, err := s.Open(DiscardOnClose())
	if err != nil {
		t.Fatalf("failed to open slot: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		v, ok := s.Wait(context.Background())
		if !ok {
			done <- -1
			return
		}
		done <- v
	}()

	sg.Fill(42)

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected Wait to observe 42, got: %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return after fill")
	}
}

func TestSlot_WaitHonorsContext(t *testing.T) {

	var s Slot[int]
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, ok := s.Wait(ctx); ok {
		t.Fatalf("expected Wait on an empty slot to report no value")
	}
}
