// Package vtable lays out dispatch tables: one primary table per
// most-derived type, secondary tables for non-primary polymorphic bases,
// address points, and the this-adjusting thunk entries multi-inheritance
// merging requires.
package vtable

import (
	"fmt"
)

// ComponentKind enumerates dispatch table entry kinds, in the order the
// object ABI lays them out: vcall offsets, vbase offsets, offset-to-top,
// type descriptor reference, then function pointers.
type ComponentKind uint8

const (
	// CompVCallOffset adjusts `this` for virtual calls through a
	// virtual base.
	CompVCallOffset ComponentKind = iota
	// CompVBaseOffset locates a virtual base from this subobject.
	CompVBaseOffset
	// CompOffsetToTop displaces from this subobject to the most-derived
	// object.
	CompOffsetToTop
	// CompRTTI references the type descriptor of the most-derived type.
	CompRTTI
	// CompFuncPtr is a virtual method entry.
	CompFuncPtr
	// CompCompleteDtor is the complete-object destructor entry.
	CompCompleteDtor
	// CompDeletingDtor is the deleting destructor entry.
	CompDeletingDtor
)

func (k ComponentKind) String() string {
	switch k {
	case CompVCallOffset:
		return "vcall_offset"
	case CompVBaseOffset:
		return "vbase_offset"
	case CompOffsetToTop:
		return "offset_to_top"
	case CompRTTI:
		return "rtti"
	case CompFuncPtr:
		return "fn"
	case CompCompleteDtor:
		return "complete_dtor"
	case CompDeletingDtor:
		return "deleting_dtor"
	default:
		return "component?"
	}
}

// Adjustment is the this-pointer fixup a thunk entry applies before
// forwarding to the real implementation.
type Adjustment struct {
	NonVirtual int64
	// Virtual selects the vcall-offset path: load an extra displacement
	// from VCallOffsetOffset bytes relative to the address point.
	Virtual           bool
	VCallOffsetOffset int64
}

// Zero reports whether the entry forwards without any fixup.
func (a Adjustment) Zero() bool {
	return a.NonVirtual == 0 && !a.Virtual
}

// Component is one dispatch table entry. Pure and deleted entries carry
// the fault-handler symbol instead of a method symbol: the ABI requires a
// callable address at every slot, so nothing is ever left null.
type Component struct {
	Kind    ComponentKind
	Offset  int64  // VCallOffset / VBaseOffset / OffsetToTop payload
	Sym     string // function or descriptor symbol
	Pure    bool
	Deleted bool
	Thunk   Adjustment
}

func (c Component) String() string {
	switch c.Kind {
	case CompVCallOffset, CompVBaseOffset, CompOffsetToTop:
		return fmt.Sprintf("%s %d", c.Kind, c.Offset)
	case CompRTTI:
		return fmt.Sprintf("rtti @%s", c.Sym)
	default:
		tag := ""
		if c.Pure {
			tag = " pure"
		}
		if c.Deleted {
			tag = " deleted"
		}
		if !c.Thunk.Zero() {
			tag += fmt.Sprintf(" thunk(nv=%d,v=%v)", c.Thunk.NonVirtual, c.Thunk.Virtual)
		}
		return fmt.Sprintf("%s @%s%s", c.Kind, c.Sym, tag)
	}
}
