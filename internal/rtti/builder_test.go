package rtti_test

import (
	"testing"

	"kiln/internal/abi"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/rtti"
	"kiln/internal/vtable"
)

func newBuilder(t *testing.T) (*rtti.Builder, *hier.Interner) {
	t.Helper()
	in := hier.NewInterner()
	le := layout.New(layout.X86_64LinuxGNU(), in)
	vt := vtable.NewBuilder(in, le, abi.NewItanium(8))
	return rtti.NewBuilder(in, vt), in
}

func addClass(t *testing.T, in *hier.Interner, c hier.Class) hier.TypeID {
	t.Helper()
	id, err := in.AddClass(c)
	if err != nil {
		t.Fatalf("AddClass(%s): %v", c.Name, err)
	}
	return id
}

func descFor(t *testing.T, b *rtti.Builder, id hier.TypeID) *rtti.Descriptor {
	t.Helper()
	d, err := b.DescriptorFor(id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestBaselessClassDescriptor(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}}})

	d := descFor(t, b, a)
	if d.Kind != rtti.KindClass {
		t.Fatalf("kind = %v", d.Kind)
	}
	if d.Sym != "_ZTI1A" || d.NameSym != "_ZTS1A" || d.TypeName != "1A" {
		t.Fatalf("symbols %q %q %q", d.Sym, d.NameSym, d.TypeName)
	}
}

func TestSingleInheritanceDescriptor(t *testing.T) {
	b, in := newBuilder(t)
	base := addClass(t, in, hier.Class{Name: "Base", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	derived := addClass(t, in, hier.Class{Name: "Derived", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: base}}})

	d := descFor(t, b, derived)
	if d.Kind != rtti.KindSIClass {
		t.Fatalf("kind = %v, want si_class", d.Kind)
	}
	if d.Base == nil || d.Base.Sym != "_ZTI4Base" {
		t.Fatalf("base descriptor %+v", d.Base)
	}
}

func TestPolymorphismMismatchForcesVMI(t *testing.T) {
	b, in := newBuilder(t)
	// Non-empty, non-dynamic base under a polymorphic derived class does
	// not qualify for the compressed form.
	base := addClass(t, in, hier.Class{Name: "Pod",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int64}}})
	derived := addClass(t, in, hier.Class{Name: "Dyn", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: base}},
		Methods: []hier.Method{{Name: "f", Virtual: true}}})

	d := descFor(t, b, derived)
	if d.Kind != rtti.KindVMIClass {
		t.Fatalf("kind = %v, want vmi_class", d.Kind)
	}
	if d.Flags != 0 {
		t.Fatalf("flags = %#x, want 0", d.Flags)
	}
}

func TestEmptyBaseStillSingleInheritance(t *testing.T) {
	b, in := newBuilder(t)
	tag := addClass(t, in, hier.Class{Name: "Tag"})
	derived := addClass(t, in, hier.Class{Name: "Tagged", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: tag}},
		Methods: []hier.Method{{Name: "f", Virtual: true}}})

	if d := descFor(t, b, derived); d.Kind != rtti.KindSIClass {
		t.Fatalf("kind = %v, want si_class", d.Kind)
	}
}

func TestDiamondFlagsAndVirtualBaseEncoding(t *testing.T) {
	b, in := newBuilder(t)
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "fv", Virtual: true}}})
	b1 := addClass(t, in, hier.Class{Name: "B1", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	b2 := addClass(t, in, hier.Class{Name: "B2", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	d := addClass(t, in, hier.Class{Name: "D", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: b1}, {Type: b2}}})

	desc := descFor(t, b, d)
	if desc.Kind != rtti.KindVMIClass {
		t.Fatalf("kind = %v", desc.Kind)
	}
	if desc.Flags&rtti.VMIDiamondShaped == 0 {
		t.Fatalf("flags = %#x, diamond bit missing", desc.Flags)
	}
	if desc.Flags&rtti.VMINonDiamondRepeat != 0 {
		t.Fatalf("flags = %#x, spurious non-diamond repeat", desc.Flags)
	}
	if len(desc.Bases) != 2 {
		t.Fatalf("bases %+v", desc.Bases)
	}
	// B1 is the primary base: offset 0, public, non-virtual.
	if desc.Bases[0].OffsetFlags != rtti.BCTIPublic {
		t.Fatalf("B1 offset_flags = %#x", desc.Bases[0].OffsetFlags)
	}

	// B1's own entry for V must carry the vtable slot displacement,
	// negative, with the virtual bit set.
	b1desc := descFor(t, b, b1)
	if b1desc.Kind != rtti.KindVMIClass {
		t.Fatalf("B1 kind = %v", b1desc.Kind)
	}
	of := b1desc.Bases[0].OffsetFlags
	if of&rtti.BCTIVirtual == 0 || of&rtti.BCTIPublic == 0 {
		t.Fatalf("V offset_flags = %#x, virtual/public bits missing", of)
	}
	if of>>8 >= 0 {
		t.Fatalf("V offset_flags = %#x, offset-offset must be negative", of)
	}
}

func TestNonDiamondRepeatFlag(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}}})
	mid := addClass(t, in, hier.Class{Name: "Mid",
		Bases: []hier.BaseSpec{{Type: a}}})
	d := addClass(t, in, hier.Class{Name: "Rep",
		Bases: []hier.BaseSpec{{Type: a}, {Type: mid}}})

	desc := descFor(t, b, d)
	if desc.Kind != rtti.KindVMIClass {
		t.Fatalf("kind = %v", desc.Kind)
	}
	if desc.Flags != rtti.VMINonDiamondRepeat {
		t.Fatalf("flags = %#x, want non-diamond repeat only", desc.Flags)
	}
}

func TestDescriptorDedup(t *testing.T) {
	b, in := newBuilder(t)
	a := addClass(t, in, hier.Class{Name: "A", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	if descFor(t, b, a) != descFor(t, b, a) {
		t.Fatal("descriptors must dedup by type")
	}
}

func TestFundamentalAndPointerDescriptors(t *testing.T) {
	b, in := newBuilder(t)
	i32 := in.Builtins().Int32
	fd := descFor(t, b, i32)
	if fd.Kind != rtti.KindFundamental || !fd.External {
		t.Fatalf("fundamental descriptor %+v", fd)
	}
	gs := fd.Globals()
	if len(gs) != 1 || !gs[0].External {
		t.Fatalf("fundamental globals %+v", gs)
	}

	pd := descFor(t, b, in.Pointer(i32))
	if pd.Kind != rtti.KindPointer || pd.Pointee != fd {
		t.Fatalf("pointer descriptor %+v", pd)
	}
	pgs := pd.Globals()
	if len(pgs) != 2 || pgs[1].Name != pd.Sym {
		t.Fatalf("pointer globals %+v", pgs)
	}
}
