package source

import (
	"testing"
)

func TestFileSetAddAndGet(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a/decl.toml", []byte("line one\nline two\n"), FileVirtual)
	f := fs.Get(id)
	if f == nil {
		t.Fatal("expected file for fresh id")
	}
	if f.Path != "a/decl.toml" {
		t.Fatalf("unexpected path %q", f.Path)
	}
	if f.Flags&FileVirtual == 0 {
		t.Fatal("expected FileVirtual flag")
	}
	if got, ok := fs.ByPath("./a/decl.toml"); !ok || got.ID != id {
		t.Fatalf("ByPath lookup failed: ok=%v", ok)
	}
}

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("x.toml", []byte("abc\ndef\n"), FileVirtual)

	cases := []struct {
		offset uint32
		line   uint32
		col    uint32
	}{
		{0, 1, 1},
		{2, 1, 3},
		{4, 2, 1},
		{6, 2, 3},
	}
	for _, tc := range cases {
		lc, ok := fs.Resolve(id, tc.offset)
		if !ok {
			t.Fatalf("offset %d: resolve failed", tc.offset)
		}
		if lc.Line != tc.line || lc.Col != tc.col {
			t.Fatalf("offset %d: got %d:%d want %d:%d", tc.offset, lc.Line, lc.Col, tc.line, tc.col)
		}
	}
	if _, ok := fs.Resolve(id, 999); ok {
		t.Fatal("expected out-of-range resolve to fail")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 15}
	c := a.Cover(b)
	if c.Start != 5 || c.End != 20 {
		t.Fatalf("got %v", c)
	}
	other := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(other); got != a {
		t.Fatalf("cross-file cover must be a no-op, got %v", got)
	}
}
