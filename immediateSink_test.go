package uow

import (
	"errors"
	"testing"
)

func TestImmediateSink_WritesSynchronously(t *testing.T) {

	out := &syncBuffer{}
	s := NewImmediateSink(lineFormat{}, out)

	s.Append(taggedEntry(1))
	s.Append(taggedEntry(2))

	got := out.lines()
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("expected both records written in order, got: %v", got)
	}
}

func TestImmediateSink_ValidationErrorDropsEntry(t *testing.T) {

	diags := captureDiagnostics(t)
	out := &syncBuffer{}
	s := NewImmediateSink(lineFormat{}, out)

	s.Append(&closedEntry{
		recordType: "dup",
		fields: []closedField{
			{name: "x", value: Int(1)},
			{name: "x", value: Int(2)},
		},
	})

	if got := out.lines(); got != nil {
		t.Fatalf("expected invalid entry to be dropped, got: %v", got)
	}
	if len(diags.ofKind(DiagDuplicateKey)) != 1 {
		t.Fatalf("expected a duplicate-key diagnostic, got: %+v", diags.all())
	}
}

func TestImmediateSink_IoErrorSurfacesAsDiagnostic(t *testing.T) {

	diags := captureDiagnostics(t)
	wErr := errors.New("disk full")
	s := NewImmediateSink(lineFormat{}, failingWriter{err: wErr})

	s.Append(taggedEntry(1))

	ioDiags := diags.ofKind(DiagIoError)
	if len(ioDiags) != 1 || !errors.Is(ioDiags[0].Err, wErr) {
		t.Fatalf("expected the write error as a diagnostic, got: %+v", diags.all())
	}
}
