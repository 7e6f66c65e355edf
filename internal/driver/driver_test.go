package driver_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BurntSushi/toml"

	"kiln/internal/decl"
	"kiln/internal/diag"
	"kiln/internal/driver"
	"kiln/internal/emit"
	"kiln/internal/testkit"
)

const diamondUnit = `
[unit]
name = "diamond"

[[class]]
name = "V"
polymorphic = true
  [[class.field]]
  name = "tag"
  type = "i32"
  [[class.method]]
  name = "kind"
  virtual = true
  [class.dtor]
  virtual = true

[[class]]
name = "B1"
  [[class.base]]
  type = "V"
  virtual = true
  [[class.field]]
  name = "x"
  type = "i64"

[[class]]
name = "B2"
  [[class.base]]
  type = "V"
  virtual = true
  [[class.field]]
  name = "y"
  type = "i64"

[[class]]
name = "D"
  [[class.base]]
  type = "B1"
  [[class.base]]
  type = "B2"
  [[class.field]]
  name = "z"
  type = "i64"
  [[class.ctor]]
  kind = "default"

[[func]]
name = "handle"
class = "D"
throws = ["V"]
rethrows = 1
  [[func.try]]
  handlers = ["B1", "*"]
  [[func.cast]]
  from = "V"
  to = "B1"
  [[func.cast]]
  from = "V"
  to = "void"
  [[func.new_array]]
  elem = "V"
  count = 3
`

func lowerDiamond(t *testing.T) (*driver.Driver, *emit.Module) {
	t.Helper()
	d := driver.New(driver.Options{})

	var file decl.File
	if _, err := toml.Decode(diamondUnit, &file); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := d.Files.Add("diamond.kiln.toml", []byte(diamondUnit), 0)
	u, err := decl.Resolve(&file, id, d.Hier, diag.BagReporter{Bag: d.Bag})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.Bag.HasErrors() {
		t.Fatalf("resolve diagnostics: %v", d.Bag.Items())
	}
	m, err := d.LowerUnit(u)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return d, m
}

func TestDiamondModuleGlobals(t *testing.T) {
	_, m := lowerDiamond(t)

	for _, sym := range []string{"_ZTV1D", "_ZTT1D", "_ZTI1D", "_ZTS1D", "_ZTI1V", "_ZTI2B1", "_ZTI2B2"} {
		if _, ok := m.FindGlobal(sym); !ok {
			t.Fatalf("missing global %s", sym)
		}
	}

	vt, _ := m.FindGlobal("_ZTV1D")
	if len(vt.AddressPoints) == 0 {
		t.Fatalf("dispatch table has no address points")
	}
	refs := 0
	for _, w := range vt.Words {
		if w.Kind == emit.WordGlobalRef && w.Sym == "_ZTI1D" {
			refs++
		}
	}
	if refs == 0 {
		t.Fatalf("dispatch table never references its own descriptor")
	}

	vtt, _ := m.FindGlobal("_ZTT1D")
	for _, w := range vtt.Words {
		if w.Kind != emit.WordGlobalRef || w.Sym != "_ZTV1D" {
			t.Fatalf("VTT entry %+v does not point into _ZTV1D", w)
		}
	}
}

func TestDiamondStructorBodies(t *testing.T) {
	_, m := lowerDiamond(t)

	c1 := findFunc(t, m, "_ZN1DC1Ev")
	var calls []string
	for _, op := range c1.Ops {
		if op.Kind == emit.OpCall {
			calls = append(calls, op.Sym)
		}
	}
	// The shared virtual base constructs exactly once, before both
	// intermediate bases.
	vCalls := 0
	for _, sym := range calls {
		if sym == "_ZN1VC2Ev" {
			vCalls++
		}
	}
	if vCalls != 1 {
		t.Fatalf("_ZN1VC2Ev called %d times in complete ctor, want 1: %v", vCalls, calls)
	}
	if idx(calls, "_ZN1VC2Ev") > idx(calls, "_ZN2B1C2Ev") {
		t.Fatalf("virtual base constructed after B1: %v", calls)
	}

	// The base variant takes a VTT and must not touch virtual bases.
	c2 := findFunc(t, m, "_ZN1DC2Ev")
	for _, op := range c2.Ops {
		if op.Kind == emit.OpCall && op.Sym == "_ZN1VC2Ev" {
			t.Fatalf("base-variant ctor constructs a virtual base")
		}
	}

	// Virtual destructor forces the deleting variant; it must call the
	// complete variant and then free.
	d0 := findFunc(t, m, "_ZN1VD0Ev")
	wantOrder := []string{"_ZN1VD1Ev", "_ZdlPv"}
	got := 0
	for _, op := range d0.Ops {
		if op.Kind == emit.OpCall && got < len(wantOrder) && op.Sym == wantOrder[got] {
			got++
		}
	}
	if got != len(wantOrder) {
		t.Fatalf("deleting dtor missing call sequence %v", wantOrder)
	}
}

func TestFunctionBodyLowering(t *testing.T) {
	_, m := lowerDiamond(t)
	f := findFunc(t, m, "_ZN1D6handleEv")

	var throwCalls, rethrowCalls, castCalls, typeTests, allocs int
	catchAll := false
	for _, op := range f.Ops {
		switch op.Kind {
		case emit.OpCall:
			switch op.Sym {
			case "__cxa_throw":
				throwCalls++
			case "__cxa_rethrow":
				rethrowCalls++
			case "__dynamic_cast":
				castCalls++
			case "_Znam":
				allocs++
			}
		case emit.OpTypeTest:
			typeTests++
		case emit.OpCatchBegin:
			if op.Sym == "" {
				catchAll = true
			}
		}
	}
	if throwCalls != 1 {
		t.Fatalf("throwCalls = %d, want 1", throwCalls)
	}
	if rethrowCalls != 1 {
		t.Fatalf("rethrowCalls = %d, want 1", rethrowCalls)
	}
	if castCalls != 1 {
		t.Fatalf("castCalls = %d, want 1 (cast-to-void must stay inline)", castCalls)
	}
	if typeTests != 1 {
		t.Fatalf("typeTests = %d, want 1", typeTests)
	}
	if !catchAll {
		t.Fatalf("catch-all handler never emitted")
	}
	if allocs != 1 {
		t.Fatalf("array allocations = %d, want 1", allocs)
	}
}

func TestModuleDumpIsStable(t *testing.T) {
	_, m := lowerDiamond(t)
	var a, b bytes.Buffer
	if err := emit.Dump(&a, m); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if err := emit.Dump(&b, m); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("two dumps of one module differ")
	}
	if !strings.Contains(a.String(), "global _ZTV1D {") {
		t.Fatalf("dump missing dispatch table")
	}
}

func TestLowerPathsParallel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))

	var paths []string
	for _, name := range []string{"a.toml", "b.toml"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(diamondUnit), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		paths = append(paths, p)
	}

	cache, err := driver.OpenDiskCache("kiln-test")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	var doneEvents atomic.Int64
	opts := driver.Options{Cache: cache, OnEvent: func(ev driver.Event) {
		if ev.Stage == driver.StageDone {
			doneEvents.Add(1)
		}
	}}

	results, err := driver.LowerPaths(context.Background(), opts, paths)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	for i, r := range results {
		if r.Module == nil {
			t.Fatalf("unit %d produced no module", i)
		}
		if r.Bag.HasErrors() {
			t.Fatalf("unit %d diagnostics: %v", i, r.Bag.Items())
		}
	}
	if got := doneEvents.Load(); got != int64(len(paths)) {
		t.Fatalf("done events = %d, want %d", got, len(paths))
	}

	// Second run hits the cache with identical content; determinism means
	// no skew diagnostics.
	results, err = driver.LowerPaths(context.Background(), opts, paths)
	if err != nil {
		t.Fatalf("relower: %v", err)
	}
	for i, r := range results {
		if r.Bag.HasErrors() {
			t.Fatalf("unit %d rerun diagnostics: %v", i, r.Bag.Items())
		}
	}
}

func TestDiamondModuleInvariants(t *testing.T) {
	_, m := lowerDiamond(t)
	if err := testkit.CheckModuleInvariants(m); err != nil {
		t.Fatalf("module invariants: %v", err)
	}
}

func findFunc(t *testing.T, m *emit.Module, name string) *emit.Func {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("missing function %s", name)
	return nil
}

func idx(ss []string, want string) int {
	for i, s := range ss {
		if s == want {
			return i
		}
	}
	return -1
}
