package abi

import (
	"kiln/internal/hier"
	"kiln/internal/mangle"
)

// Itanium implements Rules for the cross-vendor Itanium C++ object ABI.
type Itanium struct {
	// PtrSize feeds the array-cookie minimum; cookies are at least one
	// pointer wide regardless of element alignment.
	PtrSize int64
}

// NewItanium returns the Itanium rules for a pointer size.
func NewItanium(ptrSize int64) *Itanium {
	return &Itanium{PtrSize: ptrSize}
}

func (*Itanium) Name() string { return "itanium" }

func (*Itanium) HasStructorVariants() bool { return true }

func (*Itanium) NeedsVTT(in *hier.Interner, class hier.TypeID) bool {
	return in.NumVBases(class) > 0
}

func (*Itanium) NewMangler(in *hier.Interner) *mangle.Mangler {
	return mangle.New(in)
}

// ArrayCookieSize: max(sizeof(size_t), alignof(elem)) when the element
// type has a non-trivial destructor, else no cookie at all.
func (i *Itanium) ArrayCookieSize(elemAlign int64, hasNontrivialDtor bool) int64 {
	if !hasNontrivialDtor {
		return 0
	}
	if elemAlign > i.PtrSize {
		return elemAlign
	}
	return i.PtrSize
}

func (*Itanium) PureVirtualCallee() string        { return "__cxa_pure_virtual" }
func (*Itanium) DeletedVirtualCallee() string     { return "__cxa_deleted_virtual" }
func (*Itanium) BadCastCallee() string            { return "__cxa_bad_cast" }
func (*Itanium) DynamicCastCallee() string        { return "__dynamic_cast" }
func (*Itanium) AllocateExceptionCallee() string  { return "__cxa_allocate_exception" }
func (*Itanium) ThrowCallee() string              { return "__cxa_throw" }
func (*Itanium) RethrowCallee() string            { return "__cxa_rethrow" }
func (*Itanium) TerminateCallee() string          { return "__clang_call_terminate" }
func (*Itanium) Personality() string              { return "__gxx_personality_v0" }
