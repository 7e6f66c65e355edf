package layout

import (
	"fmt"

	"kiln/internal/hier"
)

// BaseSubobject identifies one base class subobject by its byte offset
// inside the most-derived object. The same base type can appear at several
// offsets under repeated non-virtual inheritance; a virtual base appears at
// exactly one.
type BaseSubobject struct {
	Base   hier.TypeID
	Offset int64
}

func (b BaseSubobject) String() string {
	return fmt.Sprintf("(type#%d, +%d)", b.Base, b.Offset)
}

// CombinedOffset is the two-part base-offset computation of §2.4 of the
// object ABI: a static byte component, plus an optional dynamic component
// that must be loaded at run time from the vbase-offset slot of the
// nearest enclosing virtual base, because a virtual base's location
// depends on the most-derived type.
type CombinedOffset struct {
	Static       int64
	NeedsDynamic bool
	NearestVBase hier.TypeID
}

// Zero reports whether no adjustment is needed at all.
func (c CombinedOffset) Zero() bool {
	return c.Static == 0 && !c.NeedsDynamic
}

// NonVirtualBaseOffset sums the per-level static base offsets along an
// inheritance path path[0] -> path[len-1]. Every step must be a direct
// non-virtual base of its predecessor.
func (e *Engine) NonVirtualBaseOffset(path []hier.TypeID) (int64, error) {
	var total int64
	for i := 0; i+1 < len(path); i++ {
		rl, err := e.RecordOf(path[i])
		if err != nil {
			return 0, err
		}
		off, ok := rl.BaseOffsets[path[i+1]]
		if !ok {
			return 0, fmt.Errorf("type#%d is not a direct non-virtual base of type#%d", path[i+1], path[i])
		}
		total += off
	}
	return total, nil
}

// VBaseOffset returns the static offset of a virtual base inside a given
// most-derived object. Callers that only know a static (non-most-derived)
// pointer type must go through the dynamic component instead.
func (e *Engine) VBaseOffset(mostDerived, vbase hier.TypeID) (int64, error) {
	rl, err := e.RecordOf(mostDerived)
	if err != nil {
		return 0, err
	}
	off, ok := rl.VBaseOffsets[vbase]
	if !ok {
		return 0, &Error{Kind: ErrNoVirtualBase, Type: vbase}
	}
	return off, nil
}

// SubobjectOffset classifies how a subobject is addressed from a pointer
// whose static type is the most-derived class: purely statically, or with
// a run-time load when the subobject lives under a virtual base.
func (e *Engine) SubobjectOffset(sub BaseSubobject, nearestVBase hier.TypeID, offsetFromNearestVBase int64) CombinedOffset {
	if nearestVBase == hier.NoTypeID {
		return CombinedOffset{Static: sub.Offset}
	}
	return CombinedOffset{
		Static:       offsetFromNearestVBase,
		NeedsDynamic: true,
		NearestVBase: nearestVBase,
	}
}

// ResultAlign computes the guaranteed alignment after applying a combined
// offset to a pointer of known alignment. With a dynamic component the
// result is only as aligned as the virtual base's own natural alignment
// allows, further reduced by the static displacement.
func (e *Engine) ResultAlign(inputAlign int64, co CombinedOffset) int64 {
	align := inputAlign
	if co.NeedsDynamic {
		if rl, err := e.RecordOf(co.NearestVBase); err == nil {
			if rl.NVAlign < align {
				align = rl.NVAlign
			}
		}
	}
	return minAlignAtOffset(align, co.Static)
}
