package uow

import "testing"

func TestGlobalSink_TestSinkRendezvous(t *testing.T) {

	sink := NewTestSink()
	handle := SetTestSink(sink)
	defer handle.Close()

	g := AppendOnDrop(newSimpleMetrics(), Sink())
	g.Metric().N.Add(1)
	g.Close()

	if sink.Len() != 1 {
		t.Fatalf("expected the record to reach the global test sink, got: %d", sink.Len())
	}
}

func TestGlobalSink_AttachQueue(t *testing.T) {

	out := &syncBuffer{}
	q, _ := NewBackgroundQueue(lineFormat{}, out, nil)
	handle := Attach(q)

	Sink().Append(taggedEntry(5))
	handle.Close()

	got := out.lines()
	if len(got) != 1 || got[0] != "5" {
		t.Fatalf("expected the appended entry written through the queue, got: %v", got)
	}
}
