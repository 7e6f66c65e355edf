// Package ehscope tracks the nested cleanup/catch/filter/terminate
// scopes of one function body while it lowers, and computes the unwind
// dispatch sequence a throwing operation lands in. Stacks are strictly
// per body; sharing one across functions is a logic error.
package ehscope

import (
	"kiln/internal/emit"
	"kiln/internal/hier"
)

// Kind tags the scope sum type.
type Kind uint8

const (
	// KindCleanup runs teardown code on the unwind path. Only EH-active
	// cleanups participate in dispatch; the rest exist for normal-path
	// bookkeeping.
	KindCleanup Kind = iota
	// KindCatch holds the handlers of one try construct.
	KindCatch
	// KindFilter holds an exception specification filter.
	KindFilter
	// KindTerminate aborts the program when reached while unwinding.
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindCleanup:
		return "cleanup"
	case KindCatch:
		return "catch"
	case KindFilter:
		return "filter"
	case KindTerminate:
		return "terminate"
	default:
		return "scope?"
	}
}

// Handler is one catch clause: the descriptor to test against and the
// block holding the handler body. A zero Type is a catch-all; the input
// surface guarantees a catch-all is last.
type Handler struct {
	Type  hier.TypeID
	Block emit.Label
}

// Scope is one stack entry.
type Scope struct {
	Kind Kind

	// Cleanup.
	EHActive bool

	// Catch.
	Handlers []Handler

	// Filter.
	Types []hier.TypeID

	// unwindEdges counts dispatch walks that crossed this scope; a catch
	// scope popped with zero edges is dead and pops as a no-op.
	unwindEdges int
}

// Exercised reports whether any unwind dispatch ever routed through this
// scope.
func (s *Scope) Exercised() bool { return s.unwindEdges > 0 }
