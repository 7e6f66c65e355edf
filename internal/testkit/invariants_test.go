package testkit

import (
	"strings"
	"testing"

	"kiln/internal/emit"
)

func TestCheckFuncInvariantsWellFormed(t *testing.T) {
	f := emit.NewFunc("sample")
	this := f.Param(0)
	vp := f.Load(f.Bitcast(this))
	done := f.NewLabel()
	other := f.NewLabel()
	f.CondBranch(vp, done, other)
	f.Label(other)
	f.Trap("__cxa_pure_virtual")
	f.Label(done)
	f.Return()

	if err := CheckFuncInvariants(f, nil); err != nil {
		t.Fatalf("CheckFuncInvariants: %v", err)
	}
}

func TestCheckFuncInvariantsUndefinedLabel(t *testing.T) {
	f := emit.NewFunc("broken")
	f.Branch(f.NewLabel())
	f.Return()

	err := CheckFuncInvariants(f, nil)
	if err == nil || !strings.Contains(err.Error(), "undefined label") {
		t.Fatalf("err = %v, want undefined label", err)
	}
}

func TestCheckFuncInvariantsNoTerminator(t *testing.T) {
	f := emit.NewFunc("falls_off")
	f.Param(0)

	err := CheckFuncInvariants(f, nil)
	if err == nil || !strings.Contains(err.Error(), "terminator") {
		t.Fatalf("err = %v, want missing terminator", err)
	}
}

func TestCheckModuleInvariants(t *testing.T) {
	m := &emit.Module{Name: "unit"}
	m.AddGlobal(emit.Global{
		Name: "_ZTV1A",
		Words: []emit.Word{
			{Kind: emit.WordInt},
			{Kind: emit.WordGlobalRef, Sym: "_ZTI1A"},
			{Kind: emit.WordFnRef, Sym: "_ZN1A1fEv"},
		},
		AddressPoints: map[string]int{"A0": 2},
	})
	m.AddGlobal(emit.Global{Name: "_ZTI1A", External: true})

	f := emit.NewFunc("_ZN1A1fEv")
	f.VTableAddr("_ZTV1A", 2)
	f.Return()
	m.Funcs = append(m.Funcs, f)

	if err := CheckModuleInvariants(m); err != nil {
		t.Fatalf("CheckModuleInvariants: %v", err)
	}
}

func TestCheckModuleInvariantsDanglingRef(t *testing.T) {
	m := &emit.Module{Name: "unit"}
	m.AddGlobal(emit.Global{
		Name:  "_ZTT1B",
		Words: []emit.Word{{Kind: emit.WordGlobalRef, Sym: "_ZTV1B", Val: 3}},
	})

	err := CheckModuleInvariants(m)
	if err == nil || !strings.Contains(err.Error(), "unknown global") {
		t.Fatalf("err = %v, want unknown global", err)
	}
}
