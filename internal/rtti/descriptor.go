// Package rtti builds the runtime type descriptors the object ABI hangs
// off every dispatch table: plain class descriptors, the compressed
// single-inheritance form, and the multi-inheritance form with its
// per-base offset/flags words.
package rtti

import (
	"fmt"

	"kiln/internal/hier"
)

// Kind selects the runtime support class a descriptor instantiates.
type Kind uint8

const (
	// KindFundamental covers builtin scalar types. The runtime library
	// ships these descriptors; we only reference them.
	KindFundamental Kind = iota
	// KindClass is a class with no bases.
	KindClass
	// KindSIClass is a class with a single public non-virtual base and
	// matching polymorphism, the compressed single-inheritance form.
	KindSIClass
	// KindVMIClass is every other class shape: multiple bases, virtual
	// bases, or non-public/repeated inheritance.
	KindVMIClass
	// KindPointer describes a pointer type, referencing its pointee.
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindFundamental:
		return "fundamental"
	case KindClass:
		return "class"
	case KindSIClass:
		return "si_class"
	case KindVMIClass:
		return "vmi_class"
	case KindPointer:
		return "pointer"
	default:
		return "kind?"
	}
}

// RuntimeClass returns the mangled vtable symbol of the abi support class
// backing descriptors of this kind.
func (k Kind) RuntimeClass() string {
	switch k {
	case KindFundamental:
		return "_ZTVN10__cxxabiv123__fundamental_type_infoE"
	case KindClass:
		return "_ZTVN10__cxxabiv117__class_type_infoE"
	case KindSIClass:
		return "_ZTVN10__cxxabiv120__si_class_type_infoE"
	case KindVMIClass:
		return "_ZTVN10__cxxabiv121__vmi_class_type_infoE"
	case KindPointer:
		return "_ZTVN10__cxxabiv119__pointer_type_infoE"
	default:
		return ""
	}
}

// Flags word of the multi-inheritance descriptor.
const (
	// VMINonDiamondRepeat marks repeated inheritance that is not diamond
	// shaped: some base class appears more than once without being virtual
	// everywhere.
	VMINonDiamondRepeat uint32 = 0x1
	// VMIDiamondShaped marks a virtual base reachable along more than one
	// path.
	VMIDiamondShaped uint32 = 0x2
)

// Low byte of each per-base __offset_flags word.
const (
	BCTIVirtual int64 = 0x1
	BCTIPublic  int64 = 0x2
)

// BaseInfo is one direct base entry of a multi-inheritance descriptor.
type BaseInfo struct {
	Type hier.TypeID
	Sym  string // descriptor symbol of the base

	// OffsetFlags packs the base offset (shifted left 8) over the
	// virtual/public bits. For a virtual base the offset is the negative
	// vbase-offset slot displacement in the dispatch table, not a direct
	// byte offset.
	OffsetFlags int64
}

// Descriptor is one runtime type descriptor. External descriptors are
// referenced by symbol only and never re-emitted.
type Descriptor struct {
	Kind Kind
	Type hier.TypeID

	Sym      string // _ZTI symbol
	NameSym  string // _ZTS symbol
	TypeName string // mangled type string the name global holds

	External bool

	Base    *Descriptor // single-inheritance form
	Flags   uint32      // multi-inheritance form
	Bases   []BaseInfo  // multi-inheritance form
	Pointee *Descriptor // pointer form
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %s", d.Kind, d.Sym)
}
