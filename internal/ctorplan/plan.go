// Package ctorplan computes the ordered initialization sequence of a
// constructor and the reverse teardown sequence of a destructor, split by
// structor variant the way the object ABI demands. Plans are pure data;
// the driver turns steps into emitted operations.
package ctorplan

import (
	"fmt"

	"kiln/internal/hier"
	"kiln/internal/mangle"
	"kiln/internal/vtable"
)

// StepKind tags the Step sum type.
type StepKind uint8

const (
	// StepDelegate forwards the whole construction to a sibling
	// constructor of the same class. Always the only step of its plan.
	StepDelegate StepKind = iota
	// StepCallCtorVariant lowers the complete variant to a direct call
	// into another variant of the same constructor.
	StepCallCtorVariant
	// StepCallDtorVariant delegates to another destructor variant.
	StepCallDtorVariant
	// StepConstructVBase runs a virtual base constructor on the complete
	// object. Complete variant only.
	StepConstructVBase
	// StepConstructBase runs a direct non-virtual base constructor.
	StepConstructBase
	// StepInstallVPtr stores one dispatch pointer.
	StepInstallVPtr
	// StepInitField initializes one member.
	StepInitField
	// StepCopyRun bulk-copies a contiguous byte range of members from the
	// source object of a copy operation.
	StepCopyRun
	// StepPoisonVPtr rewrites dispatch pointers before teardown so stale
	// virtual calls fault loudly. Diagnostic aid, not required by the ABI.
	StepPoisonVPtr
	// StepDestroyField runs one member destructor.
	StepDestroyField
	// StepDestroyBase runs a direct non-virtual base destructor.
	StepDestroyBase
	// StepDestroyVBase runs a virtual base destructor. Complete variant
	// only.
	StepDestroyVBase
	// StepOperatorDelete frees the object storage. Deleting variant only.
	StepOperatorDelete
	// StepTrap marks a structor body that must never execute: non-base
	// destructor variants of abstract classes still get emitted, as a
	// trap.
	StepTrap
)

func (k StepKind) String() string {
	switch k {
	case StepDelegate:
		return "delegate"
	case StepCallCtorVariant:
		return "call_ctor_variant"
	case StepCallDtorVariant:
		return "call_dtor_variant"
	case StepConstructVBase:
		return "construct_vbase"
	case StepConstructBase:
		return "construct_base"
	case StepInstallVPtr:
		return "install_vptr"
	case StepInitField:
		return "init_field"
	case StepCopyRun:
		return "copy_run"
	case StepPoisonVPtr:
		return "poison_vptr"
	case StepDestroyField:
		return "destroy_field"
	case StepDestroyBase:
		return "destroy_base"
	case StepDestroyVBase:
		return "destroy_vbase"
	case StepOperatorDelete:
		return "operator_delete"
	case StepTrap:
		return "trap"
	default:
		return "step?"
	}
}

// Step is one entry of a structor plan. The payload group matching Kind is
// meaningful, the rest is zero.
type Step struct {
	Kind StepKind

	// Construct/Destroy base steps.
	Base   hier.TypeID
	Offset int64 // byte offset of the subobject; start byte for CopyRun

	// InitField / DestroyField.
	Field   int
	Expr    hier.InitExpr
	Cleanup bool // initializer guarded by an EH cleanup

	// InstallVPtr.
	Slot         vtable.Slot
	AddressPoint int

	// CopyRun.
	FirstField int
	LastField  int
	Size       int64

	// Delegate.
	TargetCtor int

	// CallCtorVariant / CallDtorVariant.
	CtorVariant mangle.CtorVariant
	DtorVariant mangle.DtorVariant
}

func (s Step) String() string {
	switch s.Kind {
	case StepConstructVBase, StepConstructBase, StepDestroyBase, StepDestroyVBase:
		return fmt.Sprintf("%s type#%d +%d", s.Kind, s.Base, s.Offset)
	case StepInitField, StepDestroyField:
		return fmt.Sprintf("%s #%d", s.Kind, s.Field)
	case StepCopyRun:
		return fmt.Sprintf("copy_run fields %d..%d [%d,+%d)", s.FirstField, s.LastField, s.Offset, s.Size)
	case StepInstallVPtr:
		return fmt.Sprintf("install_vptr %s @%d", s.Slot.Base, s.AddressPoint)
	default:
		return s.Kind.String()
	}
}

// Plan is the full ordered step sequence for one structor variant of one
// class. Plans are built per body and never shared across functions.
type Plan struct {
	Class hier.TypeID
	Steps []Step
}
