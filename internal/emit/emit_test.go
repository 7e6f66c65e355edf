package emit

import (
	"strings"
	"testing"
)

func TestFuncBuilderSequencing(t *testing.T) {
	f := NewFunc("_ZN1AC2Ev")
	this := f.Const(0)
	vt := f.VTableAddr("_ZTV1A", 2)
	f.Store(this, vt)
	f.Return()

	if len(f.Ops) != 4 {
		t.Fatalf("expected 4 ops, got %d", len(f.Ops))
	}
	if f.Ops[0].Dst == NoValue || f.Ops[1].Dst == NoValue {
		t.Fatal("const and vtable_addr must produce values")
	}
	if f.Ops[2].Kind != OpStore || f.Ops[2].Dst != NoValue {
		t.Fatalf("store must not produce a value: %+v", f.Ops[2])
	}
}

func TestPtrStrideIsByteBased(t *testing.T) {
	f := NewFunc("adjust")
	base := f.Const(0)
	raw := f.Bitcast(base)
	off := f.Const(16)
	adj := f.PtrStride(raw, off)
	back := f.Bitcast(adj)
	if back == NoValue {
		t.Fatal("bitcast chain lost the value")
	}
	var kinds []OpKind
	for _, op := range f.Ops {
		kinds = append(kinds, op.Kind)
	}
	want := []OpKind{OpConst, OpBitcast, OpConst, OpPtrStride, OpBitcast}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("op %d = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestDumpFormat(t *testing.T) {
	m := &Module{Name: "unit0"}
	m.AddGlobal(Global{
		Name: "_ZTV1A",
		Words: []Word{
			{Kind: WordInt, Val: 0},
			{Kind: WordGlobalRef, Sym: "_ZTI1A"},
			{Kind: WordFnRef, Sym: "_ZN1A1fEv"},
		},
		AddressPoints: map[string]int{"(type#5, +0)": 2},
	})
	f := NewFunc("sample")
	f.Trap("__cxa_pure_virtual")
	f.Return()
	m.Funcs = append(m.Funcs, f)

	var sb strings.Builder
	if err := Dump(&sb, m); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{
		"unit unit0",
		"global _ZTV1A {",
		"ref @_ZTI1A",
		"fn @_ZN1A1fEv",
		"addrpoint (type#5, +0) = 2",
		"func sample {",
		"trap @__cxa_pure_virtual",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("dump missing %q:\n%s", want, out)
		}
	}
}
