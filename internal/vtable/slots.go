package vtable

import (
	"kiln/internal/hier"
	"kiln/internal/layout"
)

// Slot describes one dispatch pointer that constructors of the
// most-derived type must install: which base subobject it lives in, and
// how that subobject is reached (statically, or through the nearest
// enclosing virtual base when the location depends on the most-derived
// type).
type Slot struct {
	Base                   layout.BaseSubobject
	NearestVBase           hier.TypeID
	OffsetFromNearestVBase int64
	VTableClass            hier.TypeID
}

// Slots enumerates the dispatch pointer slots of a most-derived class in
// install order. A non-virtual primary base shares its parent's pointer
// and therefore contributes no slot of its own; that is the layout rule,
// not a post-hoc deduplication. Virtual bases are visited once no matter
// how many paths reach them, tracked by an explicit visited set scoped to
// this call.
func (b *Builder) Slots(mostDerived hier.TypeID) ([]Slot, error) {
	if !b.Hier.Dynamic(mostDerived) {
		return nil, nil
	}
	visited := make(map[hier.TypeID]struct{}, 4)
	var out []Slot
	err := b.collectSlots(
		layout.BaseSubobject{Base: mostDerived, Offset: 0},
		hier.NoTypeID, 0, false, mostDerived, visited, &out,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) collectSlots(
	base layout.BaseSubobject,
	nearestVBase hier.TypeID,
	offsetFromNearestVBase int64,
	baseIsNonVirtualPrimary bool,
	mostDerived hier.TypeID,
	visited map[hier.TypeID]struct{},
	out *[]Slot,
) error {
	// A non-virtual primary base shares the enclosing slot.
	if !baseIsNonVirtualPrimary {
		*out = append(*out, Slot{
			Base:                   base,
			NearestVBase:           nearestVBase,
			OffsetFromNearestVBase: offsetFromNearestVBase,
			VTableClass:            mostDerived,
		})
	}

	c, ok := b.Hier.ClassOf(base.Base)
	if !ok {
		return nil
	}
	rl, err := b.Layout.RecordOf(base.Base)
	if err != nil {
		return err
	}

	for i := range c.Bases {
		spec := &c.Bases[i]
		if !b.Hier.Dynamic(spec.Type) {
			continue
		}

		var (
			childOffset        int64
			childFromVBase     int64
			childIsPrimary     bool
			childNearestVBase  = nearestVBase
		)
		if spec.Virtual {
			if _, seen := visited[spec.Type]; seen {
				continue
			}
			visited[spec.Type] = struct{}{}
			off, err := b.Layout.VBaseOffset(mostDerived, spec.Type)
			if err != nil {
				return err
			}
			childOffset = off
			childFromVBase = 0
			childIsPrimary = false
			childNearestVBase = spec.Type
		} else {
			off, ok := rl.BaseOffsets[spec.Type]
			if !ok {
				continue
			}
			childOffset = base.Offset + off
			childFromVBase = offsetFromNearestVBase + off
			childIsPrimary = rl.PrimaryBase == spec.Type
		}

		err := b.collectSlots(
			layout.BaseSubobject{Base: spec.Type, Offset: childOffset},
			childNearestVBase, childFromVBase, childIsPrimary,
			mostDerived, visited, out,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
