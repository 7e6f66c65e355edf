package vtable

import (
	"fmt"

	"kiln/internal/abi"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
)

// Layout is the fully merged dispatch table of one most-derived type:
// the primary table followed by secondary tables for every non-primary
// polymorphic base, with one address point per table section.
type Layout struct {
	Sym        string
	Components []Component

	// AddressPoints maps each base subobject with its own table section
	// to the component index its dispatch pointer stores.
	AddressPoints map[layout.BaseSubobject]int

	// VBaseOffsetOffsets gives, per virtual base, the byte displacement
	// of its vbase-offset slot relative to the primary address point.
	// Always negative; this is the value RTTI encodes for virtual bases
	// and the load constructors use to locate a virtual base.
	VBaseOffsetOffsets map[hier.TypeID]int64
}

// AddressPointFor returns the address point of the table section serving
// the given subobject.
func (l *Layout) AddressPointFor(sub layout.BaseSubobject) (int, bool) {
	ap, ok := l.AddressPoints[sub]
	return ap, ok
}

// Builder computes dispatch table layouts. Layouts are memoized per
// most-derived type: computed at most once and never recomputed with
// different results within one compilation.
type Builder struct {
	Hier   *hier.Interner
	Layout *layout.Engine
	Rules  abi.Rules

	mangler *mangle.Mangler
	cache   map[hier.TypeID]*Layout
}

// NewBuilder creates a Builder over one hierarchy and layout engine.
func NewBuilder(in *hier.Interner, le *layout.Engine, rules abi.Rules) *Builder {
	return &Builder{
		Hier:    in,
		Layout:  le,
		Rules:   rules,
		mangler: rules.NewMangler(in),
		cache:   make(map[hier.TypeID]*Layout, 16),
	}
}

// Mangler exposes the builder's mangling hook.
func (b *Builder) Mangler() *mangle.Mangler { return b.mangler }

// LayoutOf returns the memoized dispatch table layout of a most-derived
// polymorphic class.
func (b *Builder) LayoutOf(mostDerived hier.TypeID) (*Layout, error) {
	if cached, ok := b.cache[mostDerived]; ok {
		return cached, nil
	}
	if !b.Hier.Polymorphic(mostDerived) && !b.Hier.Dynamic(mostDerived) {
		return nil, fmt.Errorf("vtable: type#%d is not dynamic", mostDerived)
	}
	lay := &Layout{
		Sym:                b.mangler.VTable(mostDerived),
		AddressPoints:      make(map[layout.BaseSubobject]int, 4),
		VBaseOffsetOffsets: make(map[hier.TypeID]int64, 2),
	}
	slots, err := b.Slots(mostDerived)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if err := b.buildSection(lay, slot, mostDerived); err != nil {
			return nil, err
		}
	}
	b.cache[mostDerived] = lay
	return lay, nil
}

// buildSection appends one table section (vcall offsets, vbase offsets,
// offset-to-top, descriptor ref, function pointers) and records its
// address point.
func (b *Builder) buildSection(lay *Layout, slot Slot, mostDerived hier.TypeID) error {
	cls := slot.Base.Base
	off := slot.Base.Offset
	isPrimary := cls == mostDerived

	methods := b.Hier.VirtualMethods(cls)

	// vcall offsets, only for sections that are themselves virtual bases:
	// calls through the vbase need a this displacement that depends on
	// the most-derived type.
	vcallAt := make(map[string]int, 0)
	if !isPrimary && slot.NearestVBase == cls {
		for i := len(methods) - 1; i >= 0; i-- {
			m := methods[i]
			oo, err := b.overriderOffset(mostDerived, cls, m.Name)
			if err != nil {
				return err
			}
			lay.Components = append(lay.Components, Component{
				Kind:   CompVCallOffset,
				Offset: oo - off,
			})
			vcallAt[m.Name] = len(lay.Components) - 1
		}
	}

	// vbase offsets for every virtual base visible from this section,
	// reverse construction order so the nearest slot sits closest to the
	// address point.
	vbs := b.Hier.VirtualBases(cls)
	vbaseAt := make(map[hier.TypeID]int, len(vbs))
	for i := len(vbs) - 1; i >= 0; i-- {
		voff, err := b.Layout.VBaseOffset(mostDerived, vbs[i])
		if err != nil {
			return err
		}
		lay.Components = append(lay.Components, Component{
			Kind:   CompVBaseOffset,
			Offset: voff - off,
		})
		vbaseAt[vbs[i]] = len(lay.Components) - 1
	}

	lay.Components = append(lay.Components,
		Component{Kind: CompOffsetToTop, Offset: -off},
		Component{Kind: CompRTTI, Sym: b.mangler.TypeInfo(mostDerived)},
	)

	ap := len(lay.Components)
	lay.AddressPoints[slot.Base] = ap
	if isPrimary {
		ptr := b.Layout.Target.PtrSize
		for vb, idx := range vbaseAt {
			lay.VBaseOffsetOffsets[vb] = int64(idx-ap) * ptr
		}
	}

	for _, m := range methods {
		comp, err := b.methodEntry(mostDerived, slot, m, vcallAt, ap)
		if err != nil {
			return err
		}
		lay.Components = append(lay.Components, comp)
	}

	// Virtual destructors contribute a complete/deleting entry pair. The
	// final overrider is by definition the most-derived class.
	if b.Hier.HasVirtualDtor(cls) {
		dtorThunk, err := b.thunkFor(mostDerived, slot, mostDerived)
		if err != nil {
			return err
		}
		lay.Components = append(lay.Components,
			Component{Kind: CompCompleteDtor, Sym: b.mangler.Dtor(mostDerived, mangle.DtorComplete), Thunk: dtorThunk},
			Component{Kind: CompDeletingDtor, Sym: b.mangler.Dtor(mostDerived, mangle.DtorDeleting), Thunk: dtorThunk},
		)
	}
	return nil
}

// methodEntry resolves one virtual method slot to its final overrider,
// substituting the ABI fault handlers for pure and deleted entries.
func (b *Builder) methodEntry(mostDerived hier.TypeID, slot Slot, m hier.Method, vcallAt map[string]int, ap int) (Component, error) {
	final, ok := b.Hier.FindVirtualMethod(mostDerived, m.Name)
	if !ok {
		final = m
	}
	comp := Component{Kind: CompFuncPtr, Pure: final.Pure, Deleted: final.Deleted}

	switch {
	case final.Pure:
		comp.Sym = b.Rules.PureVirtualCallee()
		return comp, nil
	case final.Deleted:
		comp.Sym = b.Rules.DeletedVirtualCallee()
		return comp, nil
	}

	overrider, ok := b.Hier.FinalOverrider(mostDerived, m.Name)
	if !ok {
		return Component{}, fmt.Errorf("vtable: no overrider for %q in type#%d", m.Name, mostDerived)
	}
	comp.Sym = b.mangler.Method(overrider, m.Name)

	thunk, err := b.thunkFor(mostDerived, slot, overrider)
	if err != nil {
		return Component{}, err
	}
	if thunk.Virtual {
		if at, ok := vcallAt[m.Name]; ok {
			thunk.VCallOffsetOffset = int64(at-ap) * b.Layout.Target.PtrSize
		}
	}
	comp.Thunk = thunk
	return comp, nil
}

// overriderOffset locates the subobject of the class that finally
// overrides the named method, falling back to the section class when
// nothing further derived overrides it. Feeds the vcall offset section.
func (b *Builder) overriderOffset(mostDerived, section hier.TypeID, name string) (int64, error) {
	overrider, ok := b.Hier.FinalOverrider(mostDerived, name)
	if !ok {
		overrider = section
	}
	return b.subobjectOffset(mostDerived, overrider)
}

// thunkFor computes the this-adjustment from a table section's subobject
// to the overrider's subobject. Entries in a virtual base's section whose
// overrider lives outside that base need the virtual (vcall offset) path,
// because the displacement depends on the most-derived type.
func (b *Builder) thunkFor(mostDerived hier.TypeID, slot Slot, overrider hier.TypeID) (Adjustment, error) {
	if overrider == slot.Base.Base {
		return Adjustment{}, nil
	}
	oo, err := b.subobjectOffset(mostDerived, overrider)
	if err != nil {
		return Adjustment{}, err
	}
	delta := oo - slot.Base.Offset
	if delta == 0 && slot.NearestVBase == hier.NoTypeID {
		return Adjustment{}, nil
	}
	adj := Adjustment{NonVirtual: delta}
	if slot.NearestVBase != hier.NoTypeID && !b.Hier.DerivesFrom(slot.NearestVBase, overrider) && slot.NearestVBase != overrider {
		adj.Virtual = true
	}
	if adj.Zero() {
		return Adjustment{}, nil
	}
	return adj, nil
}

// subobjectOffset locates the first subobject of the given class type in
// the most-derived object: offset 0 for the class itself, the recorded
// offset for virtual bases, or the first non-virtual path otherwise.
func (b *Builder) subobjectOffset(mostDerived, target hier.TypeID) (int64, error) {
	if mostDerived == target {
		return 0, nil
	}
	rl, err := b.Layout.RecordOf(mostDerived)
	if err != nil {
		return 0, err
	}
	if off, ok := rl.VBaseOffsets[target]; ok {
		return off, nil
	}
	if off, ok := b.nvSubobjectOffset(mostDerived, target); ok {
		return off, nil
	}
	return 0, fmt.Errorf("vtable: type#%d has no subobject of type#%d", mostDerived, target)
}

func (b *Builder) nvSubobjectOffset(class, target hier.TypeID) (int64, bool) {
	if class == target {
		return 0, true
	}
	rl, err := b.Layout.RecordOf(class)
	if err != nil {
		return 0, false
	}
	c, ok := b.Hier.ClassOf(class)
	if !ok {
		return 0, false
	}
	for i := range c.Bases {
		if c.Bases[i].Virtual {
			continue
		}
		off, ok := rl.BaseOffsets[c.Bases[i].Type]
		if !ok {
			continue
		}
		if sub, ok := b.nvSubobjectOffset(c.Bases[i].Type, target); ok {
			return off + sub, true
		}
	}
	return 0, false
}
