package rtti

import (
	"fmt"

	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
	"kiln/internal/vtable"
)

// Builder computes descriptors on demand and dedups them by mangled
// symbol: the same type always yields the same *Descriptor for the life
// of a compilation.
type Builder struct {
	Hier    *hier.Interner
	Layout  *layout.Engine
	VTables *vtable.Builder

	mangler *mangle.Mangler
	cache   map[hier.TypeID]*Descriptor
}

func NewBuilder(in *hier.Interner, vt *vtable.Builder) *Builder {
	return &Builder{
		Hier:    in,
		Layout:  vt.Layout,
		VTables: vt,
		mangler: mangle.New(in),
		cache:   make(map[hier.TypeID]*Descriptor, 16),
	}
}

// DescriptorFor returns the memoized descriptor for a type.
func (b *Builder) DescriptorFor(t hier.TypeID) (*Descriptor, error) {
	if d, ok := b.cache[t]; ok {
		return d, nil
	}
	ty, ok := b.Hier.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("rtti: unknown type #%d", t)
	}

	d := &Descriptor{
		Type:     t,
		Sym:      b.mangler.TypeInfo(t),
		NameSym:  b.mangler.TypeInfoName(t),
		TypeName: b.mangler.Type(t),
	}
	b.cache[t] = d

	var err error
	switch ty.Kind {
	case hier.KindClass:
		err = b.fillClass(d, t)
	case hier.KindPointer:
		d.Kind = KindPointer
		d.Pointee, err = b.DescriptorFor(ty.Elem)
	default:
		d.Kind = KindFundamental
		d.External = true
	}
	if err != nil {
		delete(b.cache, t)
		return nil, err
	}
	return d, nil
}

func (b *Builder) fillClass(d *Descriptor, t hier.TypeID) error {
	c, ok := b.Hier.ClassOf(t)
	if !ok {
		return fmt.Errorf("rtti: type #%d is not a class", t)
	}

	if len(c.Bases) == 0 {
		d.Kind = KindClass
		return nil
	}

	if base, ok := b.singleInheritanceBase(t); ok {
		d.Kind = KindSIClass
		bd, err := b.DescriptorFor(base)
		if err != nil {
			return err
		}
		d.Base = bd
		return nil
	}

	d.Kind = KindVMIClass
	d.Flags = b.vmiFlags(t)
	d.Bases = make([]BaseInfo, 0, len(c.Bases))
	for i := range c.Bases {
		info, err := b.baseInfo(t, &c.Bases[i])
		if err != nil {
			return err
		}
		d.Bases = append(d.Bases, info)
	}
	return nil
}

// singleInheritanceBase decides whether the compressed form applies: one
// public non-virtual base, and the base is dynamic exactly when the class
// is (empty bases exempted).
func (b *Builder) singleInheritanceBase(t hier.TypeID) (hier.TypeID, bool) {
	base, ok := b.Hier.SinglePublicNonVirtualBase(t)
	if !ok {
		return hier.NoTypeID, false
	}
	if !b.isEmptyClass(base) && b.Hier.Dynamic(base) != b.Hier.Dynamic(t) {
		return hier.NoTypeID, false
	}
	return base, true
}

func (b *Builder) isEmptyClass(t hier.TypeID) bool {
	c, ok := b.Hier.ClassOf(t)
	if !ok {
		return false
	}
	return len(c.Fields) == 0 && len(c.Bases) == 0 && !c.Polymorphic
}

// seenBases tracks which classes the flags walk has already crossed, split
// by how they were inherited.
type seenBases struct {
	nonVirtual map[hier.TypeID]bool
	virtual    map[hier.TypeID]bool
}

// vmiFlags walks the full inheritance graph and reports whether the shape
// is diamond (a virtual base reached twice) or carries non-diamond
// repetition (any other duplicated base).
func (b *Builder) vmiFlags(t hier.TypeID) uint32 {
	seen := seenBases{
		nonVirtual: make(map[hier.TypeID]bool, 8),
		virtual:    make(map[hier.TypeID]bool, 4),
	}
	var flags uint32
	c, ok := b.Hier.ClassOf(t)
	if !ok {
		return 0
	}
	for i := range c.Bases {
		flags |= b.baseFlags(&c.Bases[i], &seen)
	}
	return flags
}

func (b *Builder) baseFlags(base *hier.BaseSpec, seen *seenBases) uint32 {
	var flags uint32
	if base.Virtual {
		if seen.virtual[base.Type] {
			flags |= VMIDiamondShaped
		} else {
			seen.virtual[base.Type] = true
			if seen.nonVirtual[base.Type] {
				flags |= VMINonDiamondRepeat
			}
		}
	} else {
		if seen.nonVirtual[base.Type] {
			flags |= VMINonDiamondRepeat
		} else {
			seen.nonVirtual[base.Type] = true
			if seen.virtual[base.Type] {
				flags |= VMINonDiamondRepeat
			}
		}
	}

	bc, ok := b.Hier.ClassOf(base.Type)
	if !ok {
		return flags
	}
	for i := range bc.Bases {
		flags |= b.baseFlags(&bc.Bases[i], seen)
	}
	return flags
}

// baseInfo packs one direct base entry. Virtual bases do not have a fixed
// byte offset in derived objects, so their entry stores the displacement
// of the vbase-offset slot in the dispatch table instead (always
// negative).
func (b *Builder) baseInfo(t hier.TypeID, base *hier.BaseSpec) (BaseInfo, error) {
	bd, err := b.DescriptorFor(base.Type)
	if err != nil {
		return BaseInfo{}, err
	}
	info := BaseInfo{Type: base.Type, Sym: bd.Sym}

	var off int64
	if base.Virtual {
		lay, lerr := b.VTables.LayoutOf(t)
		if lerr != nil {
			return BaseInfo{}, lerr
		}
		oo, ok := lay.VBaseOffsetOffsets[base.Type]
		if !ok {
			return BaseInfo{}, fmt.Errorf("rtti: no vbase offset slot for type #%d in %s", base.Type, lay.Sym)
		}
		off = oo
	} else {
		rl, lerr := b.Layout.RecordOf(t)
		if lerr != nil {
			return BaseInfo{}, lerr
		}
		o, ok := rl.BaseOffsets[base.Type]
		if !ok {
			return BaseInfo{}, fmt.Errorf("rtti: type #%d is not a direct base of #%d", base.Type, t)
		}
		off = o
	}

	info.OffsetFlags = off << 8
	if base.Virtual {
		info.OffsetFlags |= BCTIVirtual
	}
	if base.Access == hier.AccessPublic {
		info.OffsetFlags |= BCTIPublic
	}
	return info, nil
}
