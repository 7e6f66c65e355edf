package ehscope

import (
	"kiln/internal/hier"
)

// DispatchKind tags one landing step of an unwind dispatch sequence.
type DispatchKind uint8

const (
	// DispatchCleanup runs an EH-active cleanup, then falls through to
	// the next step.
	DispatchCleanup DispatchKind = iota
	// DispatchTypeTest compares the in-flight exception against one
	// handler's descriptor, branching to the handler on match.
	DispatchTypeTest
	// DispatchCatchAll unconditionally selects a catch-all handler. Ends
	// the sequence.
	DispatchCatchAll
	// DispatchFilter checks the exception against an allowed-type list.
	DispatchFilter
	// DispatchTerminate aborts. Ends the sequence.
	DispatchTerminate
	// DispatchUnwindToCaller resumes unwinding into the caller's frame.
	// Ends the sequence; present exactly when no enclosing scope fully
	// handles the exception.
	DispatchUnwindToCaller
)

func (k DispatchKind) String() string {
	switch k {
	case DispatchCleanup:
		return "cleanup"
	case DispatchTypeTest:
		return "type_test"
	case DispatchCatchAll:
		return "catch_all"
	case DispatchFilter:
		return "filter"
	case DispatchTerminate:
		return "terminate"
	case DispatchUnwindToCaller:
		return "unwind_to_caller"
	default:
		return "dispatch?"
	}
}

// DispatchStep is one entry of the landing sequence for a throwing
// operation.
type DispatchStep struct {
	Kind    DispatchKind
	Scope   *Scope
	Handler int         // DispatchTypeTest / DispatchCatchAll
	Type    hier.TypeID // DispatchTypeTest
}

// DispatchPlan walks the active scope chain innermost to outermost and
// returns the landing sequence a throw at the current point needs.
// Inactive cleanups are transparent. Every scope the walk crosses is
// marked exercised, which is what keeps its pop from degrading to a
// no-op later.
func (st *Stack) DispatchPlan() []DispatchStep {
	var steps []DispatchStep
	for i := len(st.scopes) - 1; i >= 0; i-- {
		s := st.scopes[i]
		switch s.Kind {
		case KindCleanup:
			if !s.EHActive {
				continue
			}
			s.unwindEdges++
			steps = append(steps, DispatchStep{Kind: DispatchCleanup, Scope: s})

		case KindCatch:
			s.unwindEdges++
			for h := range s.Handlers {
				if s.Handlers[h].Type == hier.NoTypeID {
					steps = append(steps, DispatchStep{Kind: DispatchCatchAll, Scope: s, Handler: h})
					return steps
				}
				steps = append(steps, DispatchStep{
					Kind:    DispatchTypeTest,
					Scope:   s,
					Handler: h,
					Type:    s.Handlers[h].Type,
				})
			}

		case KindFilter:
			s.unwindEdges++
			steps = append(steps, DispatchStep{Kind: DispatchFilter, Scope: s})

		case KindTerminate:
			s.unwindEdges++
			steps = append(steps, DispatchStep{Kind: DispatchTerminate, Scope: s})
			return steps
		}
	}
	steps = append(steps, DispatchStep{Kind: DispatchUnwindToCaller})
	return steps
}
