package driver

import (
	"fmt"

	"kiln/internal/ctorplan"
	"kiln/internal/ehscope"
	"kiln/internal/emit"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
)

// vptrPoison is the pattern the poisoning step writes over a dispatch
// pointer so stale virtual calls fault on an obvious address.
const vptrPoison int64 = 0x0bad0bad0bad0bad

// operatorDelete is the sized-less global deallocation entry the deleting
// destructor variant calls.
const operatorDelete = "_ZdlPv"

// newArrayAlloc is the array form of the global allocation function.
const newArrayAlloc = "_Znam"

// emitStructors lowers every constructor and destructor variant of a
// class. A class without declared constructors still gets an implicit
// default pair when it has anything to initialize, because other units
// link against those symbols.
func (d *Driver) emitStructors(m *emit.Module, class hier.TypeID) error {
	c := d.Hier.MustClassOf(class)

	ctors := c.Ctors
	if len(ctors) == 0 && d.needsImplicitCtor(class, c) {
		ctors = []hier.Ctor{{Kind: hier.CtorDefault}}
	}
	for i := range ctors {
		for _, v := range []mangle.CtorVariant{mangle.CtorComplete, mangle.CtorBase} {
			plan, err := d.Planner.PlanCtor(class, &ctors[i], v)
			if err != nil {
				return err
			}
			f, err := d.emitCtorBody(class, c, ctors, &ctors[i], v, plan)
			if err != nil {
				return err
			}
			addFunc(m, f)
		}
	}

	if !c.Dtor.Present && !d.Hier.NeedsDestruction(class) {
		return nil
	}
	variants := []mangle.DtorVariant{mangle.DtorBase, mangle.DtorComplete}
	if d.Hier.HasVirtualDtor(class) {
		variants = append(variants, mangle.DtorDeleting)
	}
	for _, v := range variants {
		plan, err := d.Planner.PlanDtor(class, v)
		if err != nil {
			return err
		}
		f, err := d.emitDtorBody(class, c, v, plan)
		if err != nil {
			return err
		}
		addFunc(m, f)
	}
	return nil
}

func (d *Driver) needsImplicitCtor(class hier.TypeID, c *hier.Class) bool {
	return d.Hier.Dynamic(class) || len(c.Bases) > 0 || len(c.Fields) > 0
}

// guard pairs an EH cleanup scope with the teardown it protects, so the
// landing block can replay cleanups in the order the dispatch walk yields.
type guard struct {
	scope *ehscope.Scope
	kind  ctorplan.StepKind
	typ   hier.TypeID
	off   int64
}

// emitCtorBody turns one constructor plan into a function. Parameters
// follow the object ABI convention: receiver first, then the
// virtual-table-table for base variants of classes with virtual bases,
// then user parameters (the source object first for copy constructors).
func (d *Driver) emitCtorBody(class hier.TypeID, c *hier.Class, ctors []hier.Ctor, ctor *hier.Ctor, variant mangle.CtorVariant, plan *ctorplan.Plan) (*emit.Func, error) {
	f := emit.NewFunc(d.ctorSym(class, ctor.Kind, variant))
	this := f.Param(0)

	paramBase := 1
	var vtt emit.Value
	hasVTT := variant == mangle.CtorBase && d.Rules.NeedsVTT(d.Hier, class)
	if hasVTT {
		vtt = f.Param(1)
		paramBase = 2
	}
	var src emit.Value
	if ctor.Kind == hier.CtorCopy {
		src = f.Param(paramBase)
	}

	rl, err := d.Layout.RecordOf(class)
	if err != nil {
		return nil, err
	}

	stack := ehscope.NewStack()
	var guards []guard

	for _, s := range plan.Steps {
		switch s.Kind {
		case ctorplan.StepDelegate:
			target := &ctors[s.TargetCtor]
			args := []emit.Value{this}
			if hasVTT {
				args = append(args, vtt)
			}
			f.Call(d.ctorSym(class, target.Kind, variant), args...)

		case ctorplan.StepCallCtorVariant:
			args := []emit.Value{this}
			if ctor.Kind == hier.CtorCopy {
				args = append(args, src)
			}
			f.Call(d.ctorSym(class, ctor.Kind, s.CtorVariant), args...)

		case ctorplan.StepConstructVBase, ctorplan.StepConstructBase:
			d.emitConstructBase(f, class, &s, this, src, vtt, hasVTT, paramBase)
			if d.Planner.EHEnabled && d.Hier.NeedsDestruction(s.Base) {
				guards = append(guards, guard{
					scope: stack.PushCleanup(true),
					kind:  s.Kind,
					typ:   s.Base,
					off:   s.Offset,
				})
			}

		case ctorplan.StepInstallVPtr:
			if err := d.emitInstallVPtr(f, class, &s, this, vtt, hasVTT); err != nil {
				return nil, err
			}

		case ctorplan.StepInitField:
			d.emitInitField(f, c, rl, &s, this, src, paramBase)
			if s.Cleanup {
				guards = append(guards, guard{
					scope: stack.PushCleanup(true),
					kind:  s.Kind,
					typ:   c.Fields[s.Field].Type,
					off:   rl.FieldOffsets[s.Field],
				})
			}

		case ctorplan.StepCopyRun:
			dst := d.subobjectAddr(f, this, s.Offset)
			from := d.subobjectAddr(f, src, s.Offset)
			f.MemCopy(dst, from, s.Size, d.opts.Target.CopyWidth)

		default:
			return nil, fmt.Errorf("driver: unexpected constructor step %s", s.Kind)
		}
	}

	d.emitCleanupLanding(f, this, stack, guards)
	return f, nil
}

// emitConstructBase calls the base-variant constructor of a base
// subobject, picking the constructor form from the initializing
// expression.
func (d *Driver) emitConstructBase(f *emit.Func, class hier.TypeID, s *ctorplan.Step, this, src, vtt emit.Value, hasVTT bool, paramBase int) {
	addr := d.subobjectAddr(f, this, s.Offset)
	kind := hier.CtorDefault
	args := []emit.Value{addr}
	if d.Rules.NeedsVTT(d.Hier, s.Base) {
		if hasVTT {
			args = append(args, vtt)
		} else {
			args = append(args, f.GlobalAddr(d.mangler.VTT(class)))
		}
	}
	switch s.Expr.Kind {
	case hier.ExprMemberCopy:
		kind = hier.CtorCopy
		args = append(args, d.subobjectAddr(f, src, s.Offset))
	case hier.ExprParam:
		kind = hier.CtorOther
		args = append(args, f.Param(paramBase+s.Expr.Param))
	}
	f.Call(d.ctorSym(s.Base, kind, mangle.CtorBase), args...)
}

// emitInstallVPtr stores one dispatch pointer. Complete-object variants
// know every subobject address statically; base variants of classes with
// virtual bases read both the pointer and the subobject location through
// the virtual-table-table, because neither is knowable until the
// most-derived type exists.
func (d *Driver) emitInstallVPtr(f *emit.Func, class hier.TypeID, s *ctorplan.Step, this, vtt emit.Value, hasVTT bool) error {
	lay, err := d.VTables.LayoutOf(class)
	if err != nil {
		return err
	}

	var vp emit.Value
	if hasVTT {
		idx, err := d.vttIndexFor(class, s)
		if err != nil {
			return err
		}
		slot := f.PtrStride(f.Bitcast(vtt), f.Const(int64(idx)*d.opts.Target.PtrSize))
		vp = f.Load(slot)
	} else {
		vp = f.VTableAddr(lay.Sym, s.AddressPoint)
	}

	var addr emit.Value
	if hasVTT && s.Slot.NearestVBase != hier.NoTypeID {
		oo, ok := lay.VBaseOffsetOffsets[s.Slot.NearestVBase]
		if !ok {
			return fmt.Errorf("driver: no vbase offset slot for type #%d in %s", s.Slot.NearestVBase, lay.Sym)
		}
		addr = d.adjustThis(f, this, s.Slot.OffsetFromNearestVBase, oo, true)
	} else {
		addr = d.subobjectAddr(f, this, s.Slot.Base.Offset)
	}
	f.Store(f.Bitcast(addr), vp)
	return nil
}

// vttIndexFor finds the virtual-table-table slot serving one dispatch
// pointer install.
func (d *Driver) vttIndexFor(class hier.TypeID, s *ctorplan.Step) (int, error) {
	entries, err := d.VTables.BuildVTT(class)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if e.Sub == s.Slot.Base {
			return i, nil
		}
	}
	return 0, fmt.Errorf("driver: no VTT entry for %s", s.Slot.Base)
}

// emitInitField lowers one member initializer: scalar stores stay plain
// stores, class-typed members construct in place through their complete
// variant.
func (d *Driver) emitInitField(f *emit.Func, c *hier.Class, rl *layout.RecordLayout, s *ctorplan.Step, this, src emit.Value, paramBase int) {
	off := rl.FieldOffsets[s.Field]
	addr := d.subobjectAddr(f, this, off)
	ftype := c.Fields[s.Field].Type

	switch s.Expr.Kind {
	case hier.ExprParam:
		f.Store(f.Bitcast(addr), f.Param(paramBase+s.Expr.Param))

	case hier.ExprMemberCopy:
		if d.Hier.TriviallyCopyable(ftype) {
			v := f.Load(f.Bitcast(d.subobjectAddr(f, src, off)))
			f.Store(f.Bitcast(addr), v)
			return
		}
		f.Call(d.ctorSym(ftype, hier.CtorCopy, mangle.CtorComplete), addr, d.subobjectAddr(f, src, off))

	default:
		if _, isClass := d.Hier.ClassOf(ftype); isClass {
			f.Call(d.ctorSym(ftype, hier.CtorDefault, mangle.CtorComplete), addr)
			return
		}
		f.Store(f.Bitcast(addr), f.Const(0))
	}
}

// emitCleanupLanding closes a constructor body: return on the normal
// path, and when any initializer is guarded, one landing block that tears
// down already-constructed subobjects in unwind order before resuming.
func (d *Driver) emitCleanupLanding(f *emit.Func, this emit.Value, stack *ehscope.Stack, guards []guard) {
	if len(guards) == 0 {
		f.Return()
		return
	}
	steps := stack.DispatchPlan()
	f.Return()

	lpad := f.NewLabel()
	f.Label(lpad)
	for _, st := range steps {
		if st.Kind != ehscope.DispatchCleanup {
			continue
		}
		for i := range guards {
			if guards[i].scope != st.Scope {
				continue
			}
			addr := d.subobjectAddr(f, this, guards[i].off)
			v := mangle.DtorComplete
			if guards[i].kind != ctorplan.StepInitField {
				v = mangle.DtorBase
			}
			f.Call(d.dtorSymForType(guards[i].typ, v), addr)
		}
	}
	f.Resume()

	for i := len(guards) - 1; i >= 0; i-- {
		stack.Pop(guards[i].scope)
	}
}

// emitDtorBody turns one destructor plan into a function.
func (d *Driver) emitDtorBody(class hier.TypeID, c *hier.Class, variant mangle.DtorVariant, plan *ctorplan.Plan) (*emit.Func, error) {
	f := emit.NewFunc(d.mangler.Dtor(class, variant))
	this := f.Param(0)

	var vtt emit.Value
	hasVTT := variant == mangle.DtorBase && d.Rules.NeedsVTT(d.Hier, class)
	if hasVTT {
		vtt = f.Param(1)
	}

	rl, err := d.Layout.RecordOf(class)
	if err != nil {
		return nil, err
	}

	for _, s := range plan.Steps {
		switch s.Kind {
		case ctorplan.StepTrap:
			f.Trap(d.Rules.TerminateCallee())

		case ctorplan.StepCallDtorVariant:
			f.Call(d.mangler.Dtor(class, s.DtorVariant), this)

		case ctorplan.StepOperatorDelete:
			f.Call(operatorDelete, this)

		case ctorplan.StepInstallVPtr:
			if err := d.emitInstallVPtr(f, class, &s, this, vtt, hasVTT); err != nil {
				return nil, err
			}

		case ctorplan.StepPoisonVPtr:
			f.Store(f.Bitcast(this), f.Const(vptrPoison))

		case ctorplan.StepDestroyField:
			addr := d.subobjectAddr(f, this, rl.FieldOffsets[s.Field])
			f.Call(d.dtorSymForType(c.Fields[s.Field].Type, mangle.DtorComplete), addr)

		case ctorplan.StepDestroyBase, ctorplan.StepDestroyVBase:
			addr := d.subobjectAddr(f, this, s.Offset)
			f.Call(d.mangler.Dtor(s.Base, mangle.DtorBase), addr)

		default:
			return nil, fmt.Errorf("driver: unexpected destructor step %s", s.Kind)
		}
	}
	f.Return()
	return f, nil
}

// dtorSymForType resolves the destructor of a member type, unwrapping
// arrays to their element class.
func (d *Driver) dtorSymForType(t hier.TypeID, v mangle.DtorVariant) string {
	ty, ok := d.Hier.Lookup(t)
	if ok && ty.Kind == hier.KindArray {
		return d.dtorSymForType(ty.Elem, v)
	}
	return d.mangler.Dtor(t, v)
}
