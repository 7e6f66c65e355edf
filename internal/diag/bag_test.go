package diag

import (
	"testing"

	"kiln/internal/source"
)

func TestBagCapAndErrors(t *testing.T) {
	b := NewBag(2)
	if !b.Add(NewError(DeclBadBase, source.Span{}, "first")) {
		t.Fatal("first add should succeed")
	}
	if !b.Add(New(SevWarning, DeclInfo, source.Span{}, "second")) {
		t.Fatal("second add should succeed")
	}
	if b.Add(NewError(DeclBadField, source.Span{}, "third")) {
		t.Fatal("third add should be dropped by the cap")
	}
	if !b.HasErrors() {
		t.Fatal("expected HasErrors")
	}
	if b.HasFatal() {
		t.Fatal("did not expect HasFatal")
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(8)
	spanA := source.Span{File: 1, Start: 10, End: 12}
	spanB := source.Span{File: 0, Start: 5, End: 6}
	b.Add(NewError(DeclBadBase, spanA, "dup"))
	b.Add(NewError(DeclBadBase, spanA, "dup"))
	b.Add(NewError(DeclBadField, spanB, "early"))
	b.Sort()
	b.Dedup()
	if b.Len() != 2 {
		t.Fatalf("expected 2 after dedup, got %d", b.Len())
	}
	if b.Items()[0].Code != DeclBadField {
		t.Fatalf("expected file-0 diagnostic first, got %v", b.Items()[0].Code)
	}
}

func TestBagReporterFatal(t *testing.T) {
	b := NewBag(4)
	r := BagReporter{Bag: b}
	ReportFatal(r, LowerUnimplemented, source.Span{}, "vararg thunks")
	if !b.HasFatal() {
		t.Fatal("expected fatal diagnostic")
	}
}
