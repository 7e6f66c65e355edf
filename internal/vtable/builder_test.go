package vtable_test

import (
	"testing"

	"kiln/internal/abi"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/vtable"
)

func newBuilder(t *testing.T) (*vtable.Builder, *hier.Interner) {
	t.Helper()
	in := hier.NewInterner()
	le := layout.New(layout.X86_64LinuxGNU(), in)
	return vtable.NewBuilder(in, le, abi.NewItanium(8)), in
}

func addClass(t *testing.T, in *hier.Interner, c hier.Class) hier.TypeID {
	t.Helper()
	id, err := in.AddClass(c)
	if err != nil {
		t.Fatalf("AddClass(%s): %v", c.Name, err)
	}
	return id
}

func TestSimplePolymorphicLayout(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})

	lay, err := b.LayoutOf(a)
	if err != nil {
		t.Fatal(err)
	}
	if lay.Sym != "_ZTV1A" {
		t.Fatalf("symbol %q", lay.Sym)
	}
	kinds := []vtable.ComponentKind{vtable.CompOffsetToTop, vtable.CompRTTI, vtable.CompFuncPtr}
	if len(lay.Components) != len(kinds) {
		t.Fatalf("components: %v", lay.Components)
	}
	for i, k := range kinds {
		if lay.Components[i].Kind != k {
			t.Fatalf("component %d = %v, want %v", i, lay.Components[i].Kind, k)
		}
	}
	ap, ok := lay.AddressPointFor(layout.BaseSubobject{Base: a, Offset: 0})
	if !ok || ap != 2 {
		t.Fatalf("address point = %d (ok=%v), want 2", ap, ok)
	}
}

func TestPrimaryBaseContributesNoSlot(t *testing.T) {
	b, in := newBuilder(t)
	base := addClass(t, in, hier.Class{Name: "Base", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	derived := addClass(t, in, hier.Class{Name: "Derived", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: base}},
		Methods: []hier.Method{{Name: "f", Virtual: true}, {Name: "g", Virtual: true}}})

	slots, err := b.Slots(derived)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("primary base must share the parent slot, got %d slots", len(slots))
	}

	lay, err := b.LayoutOf(derived)
	if err != nil {
		t.Fatal(err)
	}
	// Overridden f resolves to Derived's implementation, no thunk at offset 0.
	var fns []vtable.Component
	for _, c := range lay.Components {
		if c.Kind == vtable.CompFuncPtr {
			fns = append(fns, c)
		}
	}
	if len(fns) != 2 {
		t.Fatalf("expected 2 fn entries, got %v", fns)
	}
	if fns[0].Sym != "_ZN7Derived1fEv" || !fns[0].Thunk.Zero() {
		t.Fatalf("f entry %+v", fns[0])
	}
	if fns[1].Sym != "_ZN7Derived1gEv" {
		t.Fatalf("g entry %+v", fns[1])
	}
}

func TestMultipleInheritanceSecondaryTable(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A", Polymorphic: true,
		Methods: []hier.Method{{Name: "fa", Virtual: true}}})
	bb := addClass(t, in, hier.Class{Name: "B", Polymorphic: true,
		Methods: []hier.Method{{Name: "fb", Virtual: true}}})
	c := addClass(t, in, hier.Class{Name: "C", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: a}, {Type: bb}},
		Methods: []hier.Method{{Name: "fb", Virtual: true}}}) // overrides B::fb

	slots, err := b.Slots(c)
	if err != nil {
		t.Fatal(err)
	}
	// A is primary (shares C's slot); B needs its own.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[1].Base.Base != bb || slots[1].Base.Offset != 8 {
		t.Fatalf("B slot %+v", slots[1])
	}

	lay, err := b.LayoutOf(c)
	if err != nil {
		t.Fatal(err)
	}
	apPrimary, _ := lay.AddressPointFor(layout.BaseSubobject{Base: c, Offset: 0})
	apB, ok := lay.AddressPointFor(layout.BaseSubobject{Base: bb, Offset: 8})
	if !ok || apB <= apPrimary {
		t.Fatalf("secondary table must follow the primary: primary=%d b=%d", apPrimary, apB)
	}
	// B's fb entry points at C's override with a -8 this adjustment.
	entry := lay.Components[apB]
	if entry.Kind != vtable.CompFuncPtr || entry.Sym != "_ZN1C2fbEv" {
		t.Fatalf("B section entry %+v", entry)
	}
	if entry.Thunk.NonVirtual != -8 || entry.Thunk.Virtual {
		t.Fatalf("expected nv thunk -8, got %+v", entry.Thunk)
	}
	// The secondary section's offset-to-top must displace back to the top.
	if lay.Components[apB-2].Kind != vtable.CompOffsetToTop || lay.Components[apB-2].Offset != -8 {
		t.Fatalf("offset-to-top %+v", lay.Components[apB-2])
	}
}

func TestDiamondSingleVirtualBaseSlot(t *testing.T) {
	b, in := newBuilder(t)
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "fv", Virtual: true}}})
	b1 := addClass(t, in, hier.Class{Name: "B1", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	b2 := addClass(t, in, hier.Class{Name: "B2", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	d := addClass(t, in, hier.Class{Name: "D", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: b1, Virtual: true}, {Type: b2, Virtual: true}}})

	slots, err := b.Slots(d)
	if err != nil {
		t.Fatal(err)
	}
	var vSlots int
	for _, s := range slots {
		if s.Base.Base == v {
			vSlots++
			if s.NearestVBase != v {
				t.Fatalf("V slot must be anchored at itself: %+v", s)
			}
		}
	}
	if vSlots != 1 {
		t.Fatalf("V reachable via 2 paths must get exactly 1 slot, got %d", vSlots)
	}
	if len(slots) != 4 { // D, B1, V, B2
		t.Fatalf("expected 4 slots, got %d: %+v", len(slots), slots)
	}

	lay, err := b.LayoutOf(d)
	if err != nil {
		t.Fatal(err)
	}
	// Three virtual bases, three vbase-offset slots at negative offsets
	// from the primary address point.
	if len(lay.VBaseOffsetOffsets) != 3 {
		t.Fatalf("vbase offset offsets %v", lay.VBaseOffsetOffsets)
	}
	for vb, oo := range lay.VBaseOffsetOffsets {
		if oo >= 0 {
			t.Fatalf("vbase offset-offset for type#%d must be negative, got %d", vb, oo)
		}
	}
}

func TestVCallOffsetsForVirtualBaseSection(t *testing.T) {
	b, in := newBuilder(t)
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "fv", Virtual: true}, {Name: "g", Virtual: true}}})
	d := addClass(t, in, hier.Class{Name: "D", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: v, Virtual: true}},
		Methods: []hier.Method{{Name: "fv", Virtual: true}}}) // overrides V::fv

	lay, err := b.LayoutOf(d)
	if err != nil {
		t.Fatal(err)
	}
	voff, err := b.Layout.VBaseOffset(d, v)
	if err != nil {
		t.Fatal(err)
	}
	ap, ok := lay.AddressPointFor(layout.BaseSubobject{Base: v, Offset: voff})
	if !ok {
		t.Fatalf("no V section in %+v", lay.AddressPoints)
	}

	// V's section: vcall(g), vcall(fv), offset-to-top, descriptor ref.
	g, fv := lay.Components[ap-4], lay.Components[ap-3]
	if g.Kind != vtable.CompVCallOffset || fv.Kind != vtable.CompVCallOffset {
		t.Fatalf("expected vcall offsets before the V address point, got %+v %+v", g, fv)
	}
	// fv's final overrider is D at offset 0, so the vcall displacement
	// walks back to the top; g stays in V.
	if fv.Offset != -voff {
		t.Fatalf("fv vcall offset = %d, want %d", fv.Offset, -voff)
	}
	if g.Offset != 0 {
		t.Fatalf("g vcall offset = %d, want 0", g.Offset)
	}
}

func TestPureAndDeletedEntriesGetTrapCallees(t *testing.T) {
	b, in := newBuilder(t)
	shape := addClass(t, in, hier.Class{Name: "Shape", Polymorphic: true, Abstract: true,
		Methods: []hier.Method{
			{Name: "area", Virtual: true, Pure: true},
			{Name: "clone", Virtual: true, Deleted: true},
		}})

	lay, err := b.LayoutOf(shape)
	if err != nil {
		t.Fatal(err)
	}
	var area, clone *vtable.Component
	for i := range lay.Components {
		c := &lay.Components[i]
		if c.Kind != vtable.CompFuncPtr {
			continue
		}
		if c.Pure {
			area = c
		}
		if c.Deleted {
			clone = c
		}
	}
	if area == nil || area.Sym != "__cxa_pure_virtual" {
		t.Fatalf("pure entry %+v", area)
	}
	if clone == nil || clone.Sym != "__cxa_deleted_virtual" {
		t.Fatalf("deleted entry %+v", clone)
	}
}

func TestLayoutMemoized(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	l1, err := b.LayoutOf(a)
	if err != nil {
		t.Fatal(err)
	}
	l2, err := b.LayoutOf(a)
	if err != nil {
		t.Fatal(err)
	}
	if l1 != l2 {
		t.Fatal("layouts must be computed once and cached")
	}
}

func TestVTTOnlyForVirtualBases(t *testing.T) {
	b, in := newBuilder(t)
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	plain := addClass(t, in, hier.Class{Name: "Plain", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v}}})
	withVB := addClass(t, in, hier.Class{Name: "WithVB", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})

	if entries, err := b.BuildVTT(plain); err != nil || entries != nil {
		t.Fatalf("no VTT expected: %v %v", entries, err)
	}
	entries, err := b.BuildVTT(withVB)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 { // WithVB itself + V
		t.Fatalf("expected 2 VTT entries, got %+v", entries)
	}
}
