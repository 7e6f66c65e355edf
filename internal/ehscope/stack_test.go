package ehscope_test

import (
	"testing"

	"kiln/internal/ehscope"
	"kiln/internal/hier"
)

func typeIDs(t *testing.T) (a, b hier.TypeID) {
	t.Helper()
	in := hier.NewInterner()
	ta, err := in.AddClass(hier.Class{Name: "TypeA"})
	if err != nil {
		t.Fatal(err)
	}
	tb, err := in.AddClass(hier.Class{Name: "TypeB"})
	if err != nil {
		t.Fatal(err)
	}
	return ta, tb
}

func dispatchKinds(steps []ehscope.DispatchStep) []ehscope.DispatchKind {
	out := make([]ehscope.DispatchKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestDispatchWithCatchAll(t *testing.T) {
	ta, tb := typeIDs(t)
	st := ehscope.NewStack()
	st.PushCatch([]ehscope.Handler{
		{Type: ta, Block: 1},
		{Type: tb, Block: 2},
		{Block: 3}, // catch-all
	})

	steps := st.DispatchPlan()
	want := []ehscope.DispatchKind{
		ehscope.DispatchTypeTest,
		ehscope.DispatchTypeTest,
		ehscope.DispatchCatchAll,
	}
	got := dispatchKinds(steps)
	if len(got) != len(want) {
		t.Fatalf("steps %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d = %v, want %v", i, got[i], want[i])
		}
	}
	if steps[0].Type != ta || steps[1].Type != tb {
		t.Fatalf("test order %v then %v, want TypeA then TypeB", steps[0].Type, steps[1].Type)
	}
}

func TestDispatchWithoutCatchAllUnwindsToCaller(t *testing.T) {
	ta, tb := typeIDs(t)
	st := ehscope.NewStack()
	st.PushCatch([]ehscope.Handler{
		{Type: ta, Block: 1},
		{Type: tb, Block: 2},
	})

	steps := st.DispatchPlan()
	if steps[len(steps)-1].Kind != ehscope.DispatchUnwindToCaller {
		t.Fatalf("end of chain = %v, want unwind_to_caller", steps[len(steps)-1].Kind)
	}
}

func TestInactiveCleanupIsTransparent(t *testing.T) {
	ta, _ := typeIDs(t)
	st := ehscope.NewStack()
	st.PushCatch([]ehscope.Handler{{Type: ta, Block: 1}})
	inactive := st.PushCleanup(false)
	active := st.PushCleanup(true)

	steps := st.DispatchPlan()
	want := []ehscope.DispatchKind{
		ehscope.DispatchCleanup,
		ehscope.DispatchTypeTest,
		ehscope.DispatchUnwindToCaller,
	}
	got := dispatchKinds(steps)
	if len(got) != len(want) {
		t.Fatalf("steps %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d = %v, want %v", i, got[i], want[i])
		}
	}
	if inactive.Exercised() {
		t.Fatal("inactive cleanup must stay untouched by dispatch")
	}
	if !active.Exercised() {
		t.Fatal("active cleanup must be marked exercised")
	}
}

func TestTerminateScopeEndsChain(t *testing.T) {
	ta, _ := typeIDs(t)
	st := ehscope.NewStack()
	st.PushCatch([]ehscope.Handler{{Type: ta, Block: 1}})
	st.PushTerminate()

	steps := st.DispatchPlan()
	if len(steps) != 1 || steps[0].Kind != ehscope.DispatchTerminate {
		t.Fatalf("steps %v, want a lone terminate", dispatchKinds(steps))
	}
}

func TestDeadCatchPopsAsNoOp(t *testing.T) {
	ta, _ := typeIDs(t)
	st := ehscope.NewStack()
	catch := st.PushCatch([]ehscope.Handler{{Type: ta, Block: 1}})

	if _, live := st.PopCatch(catch); live {
		t.Fatal("catch scope with no unwind edges must pop as a no-op")
	}
	if st.Depth() != 0 {
		t.Fatalf("depth %d after pop", st.Depth())
	}
}

func TestExercisedCatchEmitsHandlersInOrder(t *testing.T) {
	ta, tb := typeIDs(t)
	st := ehscope.NewStack()
	catch := st.PushCatch([]ehscope.Handler{
		{Type: ta, Block: 1},
		{Type: tb, Block: 2},
	})
	st.DispatchPlan() // something threw inside the try body

	plan, live := st.PopCatch(catch)
	if !live {
		t.Fatal("exercised catch must produce an emission plan")
	}
	want := []ehscope.CatchPopStep{
		{Kind: ehscope.PopEmitHandler, Handler: 0},
		{Kind: ehscope.PopForceCleanups, Handler: 0},
		{Kind: ehscope.PopEmitHandler, Handler: 1},
		{Kind: ehscope.PopForceCleanups, Handler: 1},
	}
	if len(plan.Steps) != len(want) {
		t.Fatalf("steps %v", plan.Steps)
	}
	for i := range want {
		if plan.Steps[i] != want[i] {
			t.Fatalf("step %d = %+v, want %+v", i, plan.Steps[i], want[i])
		}
	}
}

func TestPopOrderViolationPanics(t *testing.T) {
	st := ehscope.NewStack()
	outer := st.PushCleanup(true)
	st.PushCleanup(true)

	defer func() {
		if recover() == nil {
			t.Fatal("out-of-order pop must panic")
		}
	}()
	st.Pop(outer)
}

func TestMisplacedCatchAllPanics(t *testing.T) {
	ta, _ := typeIDs(t)
	st := ehscope.NewStack()
	defer func() {
		if recover() == nil {
			t.Fatal("catch-all before typed handlers must panic")
		}
	}()
	st.PushCatch([]ehscope.Handler{
		{Block: 1}, // catch-all first
		{Type: ta, Block: 2},
	})
}
