// Package driver owns one compilation: it resolves declaration units,
// runs the layout and dispatch-table builders over them, and turns
// structor plans, exception constructs, and cast requests into emitted
// modules. Builders are memoized per driver, so every question about a
// class is answered exactly once per compilation.
package driver

import (
	"fmt"
	"strings"

	"kiln/internal/abi"
	"kiln/internal/ctorplan"
	"kiln/internal/decl"
	"kiln/internal/diag"
	"kiln/internal/emit"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
	"kiln/internal/rtti"
	"kiln/internal/source"
	"kiln/internal/vtable"
)

// Options configures one driver instance.
type Options struct {
	Target layout.Target
	Rules  abi.Rules

	// Jobs bounds parallel unit lowering; 0 means one worker per CPU.
	Jobs int

	// MaxDiagnostics caps the bag; 0 picks a sensible default.
	MaxDiagnostics int

	// Cache, when set, records per-unit symbol inventories so repeated
	// runs can flag output skew.
	Cache *DiskCache

	// PoisonVPtrs threads through to destructor planning.
	PoisonVPtrs bool

	// OnEvent, when set, receives progress notifications from
	// LowerPaths. Must be safe for concurrent calls.
	OnEvent func(Event)
}

func (o *Options) fill() {
	if o.Target.PtrSize == 0 {
		o.Target = layout.X86_64LinuxGNU()
	}
	if o.Rules == nil {
		o.Rules = abi.NewItanium(o.Target.PtrSize)
	}
	if o.MaxDiagnostics == 0 {
		o.MaxDiagnostics = 256
	}
}

// Driver lowers declaration units against one hierarchy and one target.
type Driver struct {
	Files   *source.FileSet
	Hier    *hier.Interner
	Layout  *layout.Engine
	Rules   abi.Rules
	VTables *vtable.Builder
	RTTI    *rtti.Builder
	Planner *ctorplan.Planner
	Bag     *diag.Bag

	rep     diag.Reporter
	mangler *mangle.Mangler
	opts    Options
}

// New creates a driver with fresh builders.
func New(opts Options) *Driver {
	opts.fill()
	in := hier.NewInterner()
	le := layout.New(opts.Target, in)
	vt := vtable.NewBuilder(in, le, opts.Rules)
	bag := diag.NewBag(opts.MaxDiagnostics)
	d := &Driver{
		Files:   source.NewFileSet(),
		Hier:    in,
		Layout:  le,
		Rules:   opts.Rules,
		VTables: vt,
		RTTI:    rtti.NewBuilder(in, vt),
		Planner: ctorplan.NewPlanner(in, le, vt),
		Bag:     bag,
		rep:     diag.BagReporter{Bag: bag},
		mangler: vt.Mangler(),
		opts:    opts,
	}
	d.Planner.PoisonVPtrs = opts.PoisonVPtrs
	return d
}

// LoadUnit reads and resolves one declaration file.
func (d *Driver) LoadUnit(path string) (*decl.Unit, error) {
	return decl.LoadFile(path, d.Files, d.Hier, d.rep)
}

// LowerUnit lowers one resolved unit to an emitted module: globals for
// every dynamic class (dispatch table, VTT, descriptors), structor bodies
// for every class, then the requested function bodies.
func (d *Driver) LowerUnit(u *decl.Unit) (*emit.Module, error) {
	m := &emit.Module{Name: u.Name}
	rt := newRTTIQueue(d)

	for _, class := range u.Classes {
		if err := d.lowerClass(m, rt, class); err != nil {
			diag.ReportError(d.rep, diag.LowerNoHierarchy, source.Span{File: u.FileID},
				fmt.Sprintf("class %s: %v", d.Hier.MustClassOf(class).Name, err))
			return nil, err
		}
	}
	for i := range u.Funcs {
		if err := d.lowerFunc(m, rt, &u.Funcs[i]); err != nil {
			diag.ReportError(d.rep, diag.LowerUnimplemented, source.Span{File: u.FileID},
				fmt.Sprintf("func %s: %v", u.Funcs[i].Name, err))
			return nil, err
		}
	}
	rt.flush(m)
	return m, nil
}

// lowerClass emits everything one class contributes on its own: the
// dispatch table and VTT when it is dynamic, its descriptor, and the
// structor variants other units may reference.
func (d *Driver) lowerClass(m *emit.Module, rt *rttiQueue, class hier.TypeID) error {
	if d.Hier.Dynamic(class) {
		lay, err := d.VTables.LayoutOf(class)
		if err != nil {
			return err
		}
		d.emitVTable(m, lay)
		vtt, err := d.VTables.BuildVTT(class)
		if err != nil {
			return err
		}
		if len(vtt) > 0 {
			d.emitVTT(m, class, vtt)
		}
	}
	if err := rt.request(class); err != nil {
		return err
	}
	return d.emitStructors(m, class)
}

// ctorSym disambiguates constructor overloads on top of the nullary
// mangling: the engine identifies constructors by special-member kind, so
// the copy form gets the canonical reference parameter spelling and the
// remaining user form a single scalar parameter.
func (d *Driver) ctorSym(class hier.TypeID, kind hier.CtorKind, v mangle.CtorVariant) string {
	sym := d.mangler.Ctor(class, v)
	switch kind {
	case hier.CtorCopy:
		return strings.TrimSuffix(sym, "Ev") + "ERKS_"
	case hier.CtorOther:
		return strings.TrimSuffix(sym, "Ev") + "Ei"
	default:
		return sym
	}
}

func (d *Driver) funcSym(fn *decl.Func) string {
	if fn.Class != hier.NoTypeID {
		return d.mangler.Method(fn.Class, fn.Name)
	}
	return d.mangler.Function(fn.Name)
}

// addFunc appends a finished body, refusing symbol collisions.
func addFunc(m *emit.Module, f *emit.Func) {
	for _, existing := range m.Funcs {
		if existing.Name == f.Name {
			return
		}
	}
	m.Funcs = append(m.Funcs, f)
}
