package ehscope

import (
	"fmt"

	"kiln/internal/hier"
)

// Stack is the per-body scope stack. Pushes and pops must pair up
// exactly; a mismatch is an internal planner inconsistency and panics
// rather than returning an error.
type Stack struct {
	scopes []*Scope
}

func NewStack() *Stack {
	return &Stack{scopes: make([]*Scope, 0, 8)}
}

// Depth returns the number of live scopes.
func (st *Stack) Depth() int { return len(st.scopes) }

// PushCleanup enters a cleanup scope. ehActive marks it as participating
// in unwinding, not just in normal-path teardown.
func (st *Stack) PushCleanup(ehActive bool) *Scope {
	s := &Scope{Kind: KindCleanup, EHActive: ehActive}
	st.scopes = append(st.scopes, s)
	return s
}

// PushCatch enters a try construct with its handlers in source order.
func (st *Stack) PushCatch(handlers []Handler) *Scope {
	for i, h := range handlers {
		if h.Type == hier.NoTypeID && i != len(handlers)-1 {
			panic(fmt.Sprintf("ehscope: catch-all at position %d of %d, must be last", i, len(handlers)))
		}
	}
	s := &Scope{Kind: KindCatch, Handlers: handlers}
	st.scopes = append(st.scopes, s)
	return s
}

// PushFilter enters an exception specification filter.
func (st *Stack) PushFilter(types []hier.TypeID) *Scope {
	s := &Scope{Kind: KindFilter, Types: types}
	st.scopes = append(st.scopes, s)
	return s
}

// PushTerminate enters a scope that aborts on unwind.
func (st *Stack) PushTerminate() *Scope {
	s := &Scope{Kind: KindTerminate}
	st.scopes = append(st.scopes, s)
	return s
}

// Pop removes the innermost scope, which must be the one given. Popping
// out of order or off an empty stack means the lowering walked its
// lexical structure wrong.
func (st *Stack) Pop(s *Scope) {
	n := len(st.scopes)
	if n == 0 {
		panic("ehscope: pop on empty stack")
	}
	if st.scopes[n-1] != s {
		panic(fmt.Sprintf("ehscope: pop order violation, top is %s", st.scopes[n-1].Kind))
	}
	st.scopes = st.scopes[:n-1]
}

// PopCatch removes the innermost scope, which must be the given catch
// scope, and returns its handler emission plan. A scope no unwind edge
// ever reached pops as a no-op and returns false.
func (st *Stack) PopCatch(s *Scope) (CatchPop, bool) {
	if s.Kind != KindCatch {
		panic(fmt.Sprintf("ehscope: PopCatch on a %s scope", s.Kind))
	}
	st.Pop(s)
	if !s.Exercised() {
		return CatchPop{}, false
	}
	plan := CatchPop{Steps: make([]CatchPopStep, 0, 2*len(s.Handlers))}
	for i := range s.Handlers {
		plan.Steps = append(plan.Steps,
			CatchPopStep{Kind: PopEmitHandler, Handler: i},
			CatchPopStep{Kind: PopForceCleanups, Handler: i},
		)
	}
	return plan, true
}

// CatchPopStep kinds: emit one handler body, then force any cleanups the
// handler left pending before the next handler or the resume point runs.
type CatchPopStepKind uint8

const (
	PopEmitHandler CatchPopStepKind = iota
	PopForceCleanups
)

type CatchPopStep struct {
	Kind    CatchPopStepKind
	Handler int
}

// CatchPop is the ordered emission plan of an exercised catch scope:
// handlers innermost-first in declaration order, cleanups forced between
// them.
type CatchPop struct {
	Steps []CatchPopStep
}
