// Package abi isolates per-ABI policy behind a narrow strategy interface:
// structor variants, runtime entry points, array cookies, and the mangling
// hook. The planners consult Rules and never hard-code a vendor scheme, so
// an alternate object ABI can slot in without touching construction or
// exception logic.
package abi

import (
	"kiln/internal/hier"
	"kiln/internal/mangle"
)

// Rules is the per-ABI policy surface.
type Rules interface {
	Name() string

	// HasStructorVariants reports whether constructors/destructors come
	// in complete/base (and deleting) variants.
	HasStructorVariants() bool

	// NeedsVTT reports whether base-variant structors of the class
	// receive a virtual-table-table parameter.
	NeedsVTT(in *hier.Interner, class hier.TypeID) bool

	// NewMangler returns the name mangling hook bound to one interner.
	NewMangler(in *hier.Interner) *mangle.Mangler

	// ArrayCookieSize returns the number of bytes reserved before an
	// array allocation for the element-count cookie, or 0 when no cookie
	// is required.
	ArrayCookieSize(elemAlign int64, hasNontrivialDtor bool) int64

	// Runtime entry points. Every one of these must resolve to a callable
	// symbol in emitted code; none may be elided even if provably dead.
	PureVirtualCallee() string
	DeletedVirtualCallee() string
	BadCastCallee() string
	DynamicCastCallee() string
	AllocateExceptionCallee() string
	ThrowCallee() string
	RethrowCallee() string
	TerminateCallee() string
	Personality() string
}
