package ctorplan_test

import (
	"testing"

	"kiln/internal/abi"
	"kiln/internal/ctorplan"
	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
	"kiln/internal/vtable"
)

func newPlanner(t *testing.T) (*ctorplan.Planner, *hier.Interner) {
	t.Helper()
	in := hier.NewInterner()
	le := layout.New(layout.X86_64LinuxGNU(), in)
	vt := vtable.NewBuilder(in, le, abi.NewItanium(8))
	return ctorplan.NewPlanner(in, le, vt), in
}

func addClass(t *testing.T, in *hier.Interner, c hier.Class) hier.TypeID {
	t.Helper()
	id, err := in.AddClass(c)
	if err != nil {
		t.Fatalf("AddClass(%s): %v", c.Name, err)
	}
	return id
}

func kinds(steps []ctorplan.Step) []ctorplan.StepKind {
	out := make([]ctorplan.StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestCtorEmissionOrder(t *testing.T) {
	p, in := newPlanner(t)
	nt := addClass(t, in, hier.Class{Name: "NT",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}},
		Dtor:   hier.Dtor{Present: true}})
	base := addClass(t, in, hier.Class{Name: "Base", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	cls := addClass(t, in, hier.Class{Name: "C", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: base}},
		Fields: []hier.Field{
			{Name: "m", Type: nt},
			{Name: "n", Type: in.Builtins().Int64},
		}})

	ctor := &hier.Ctor{Kind: hier.CtorDefault}
	plan, err := p.PlanCtor(cls, ctor, mangle.CtorBase)
	if err != nil {
		t.Fatal(err)
	}
	want := []ctorplan.StepKind{
		ctorplan.StepConstructBase,
		ctorplan.StepInstallVPtr,
		ctorplan.StepInitField,
		ctorplan.StepInitField,
	}
	got := kinds(plan.Steps)
	if len(got) != len(want) {
		t.Fatalf("steps %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
	// m holds a type with teardown, so its initializer carries a cleanup
	// guard; the scalar after it does not.
	if !plan.Steps[2].Cleanup || plan.Steps[3].Cleanup {
		t.Fatalf("cleanup flags %v %v", plan.Steps[2].Cleanup, plan.Steps[3].Cleanup)
	}
}

func TestDiamondCompleteCtorInitializesSharedBaseOnce(t *testing.T) {
	p, in := newPlanner(t)
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "fv", Virtual: true}}})
	b1 := addClass(t, in, hier.Class{Name: "B1", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	b2 := addClass(t, in, hier.Class{Name: "B2", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	d := addClass(t, in, hier.Class{Name: "D", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: b1, Virtual: true}, {Type: b2, Virtual: true}}})

	plan, err := p.PlanCtor(d, &hier.Ctor{Kind: hier.CtorDefault}, mangle.CtorComplete)
	if err != nil {
		t.Fatal(err)
	}
	var vbases []hier.TypeID
	for _, s := range plan.Steps {
		if s.Kind == ctorplan.StepConstructVBase {
			vbases = append(vbases, s.Base)
		}
	}
	if len(vbases) != 3 || vbases[0] != v || vbases[1] != b1 || vbases[2] != b2 {
		t.Fatalf("vbase construction order %v, want [V B1 B2]", vbases)
	}

	// The base variant must not touch virtual bases at all.
	basePlan, err := p.PlanCtor(d, &hier.Ctor{Kind: hier.CtorDefault}, mangle.CtorBase)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range basePlan.Steps {
		if s.Kind == ctorplan.StepConstructVBase {
			t.Fatalf("base variant constructed a virtual base: %v", s)
		}
	}
}

func TestDelegationElision(t *testing.T) {
	p, in := newPlanner(t)
	plain := addClass(t, in, hier.Class{Name: "Plain",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}}})
	copyCtor := &hier.Ctor{Kind: hier.CtorCopy, Inits: []hier.CtorInit{
		{Kind: hier.InitMember, Field: 0, Expr: hier.InitExpr{Kind: hier.ExprMemberCopy}},
	}}

	plan, err := p.PlanCtor(plain, copyCtor, mangle.CtorComplete)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != ctorplan.StepCallCtorVariant ||
		plan.Steps[0].CtorVariant != mangle.CtorBase {
		t.Fatalf("expected direct base-variant call, got %v", plan.Steps)
	}

	if variadic := (&hier.Ctor{Variadic: true}); p.DelegationValid(plain, variadic) {
		t.Fatal("variadic constructor must not delegate")
	}

	v := addClass(t, in, hier.Class{Name: "VB", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}}})
	withVB := addClass(t, in, hier.Class{Name: "WithVB",
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	vbPlan, err := p.PlanCtor(withVB, copyCtor, mangle.CtorComplete)
	if err != nil {
		t.Fatal(err)
	}
	if len(vbPlan.Steps) > 0 && vbPlan.Steps[0].Kind == ctorplan.StepCallCtorVariant {
		t.Fatal("class with virtual bases must not elide into the base variant")
	}
}

func TestDelegatingCtorShortCircuits(t *testing.T) {
	p, in := newPlanner(t)
	cls := addClass(t, in, hier.Class{Name: "C", Polymorphic: true,
		Methods: []hier.Method{{Name: "f", Virtual: true}},
		Fields:  []hier.Field{{Name: "x", Type: in.Builtins().Int32}}})

	deleg := &hier.Ctor{Inits: []hier.CtorInit{{Kind: hier.InitDelegating, Target: 2}}}
	plan, err := p.PlanCtor(cls, deleg, mangle.CtorComplete)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Kind != ctorplan.StepDelegate || plan.Steps[0].TargetCtor != 2 {
		t.Fatalf("delegating plan %v", plan.Steps)
	}
}

func TestDtorVariants(t *testing.T) {
	p, in := newPlanner(t)
	nt := addClass(t, in, hier.Class{Name: "NT",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}},
		Dtor:   hier.Dtor{Present: true}})
	v := addClass(t, in, hier.Class{Name: "V", Polymorphic: true,
		Methods: []hier.Method{{Name: "fv", Virtual: true}},
		Dtor:    hier.Dtor{Present: true, Virtual: true}})
	cls := addClass(t, in, hier.Class{Name: "C", Polymorphic: true,
		Bases: []hier.BaseSpec{{Type: v, Virtual: true}, {Type: nt}},
		Fields: []hier.Field{
			{Name: "a", Type: nt},
			{Name: "b", Type: nt},
		},
		Dtor: hier.Dtor{Present: true, Virtual: true}})

	del, err := p.PlanDtor(cls, mangle.DtorDeleting)
	if err != nil {
		t.Fatal(err)
	}
	wantDel := []ctorplan.StepKind{ctorplan.StepCallDtorVariant, ctorplan.StepOperatorDelete}
	if g := kinds(del.Steps); len(g) != 2 || g[0] != wantDel[0] || g[1] != wantDel[1] {
		t.Fatalf("deleting plan %v", g)
	}
	if del.Steps[0].DtorVariant != mangle.DtorComplete {
		t.Fatalf("deleting must run the complete body, got %v", del.Steps[0].DtorVariant)
	}

	comp, err := p.PlanDtor(cls, mangle.DtorComplete)
	if err != nil {
		t.Fatal(err)
	}
	if comp.Steps[0].Kind != ctorplan.StepCallDtorVariant || comp.Steps[0].DtorVariant != mangle.DtorBase {
		t.Fatalf("complete plan %v", comp.Steps)
	}
	if len(comp.Steps) != 2 || comp.Steps[1].Kind != ctorplan.StepDestroyVBase || comp.Steps[1].Base != v {
		t.Fatalf("complete plan must tear down the virtual base: %v", comp.Steps)
	}

	// Base variant: vptr reinstalls, fields b then a, then the non-virtual
	// base. Virtual bases stay untouched.
	base, err := p.PlanDtor(cls, mangle.DtorBase)
	if err != nil {
		t.Fatal(err)
	}
	var fields []int
	var bases []hier.TypeID
	for _, s := range base.Steps {
		switch s.Kind {
		case ctorplan.StepDestroyField:
			fields = append(fields, s.Field)
		case ctorplan.StepDestroyBase:
			bases = append(bases, s.Base)
		case ctorplan.StepDestroyVBase:
			t.Fatalf("base variant destroyed a virtual base: %v", s)
		}
	}
	if len(fields) != 2 || fields[0] != 1 || fields[1] != 0 {
		t.Fatalf("field teardown order %v, want [1 0]", fields)
	}
	if len(bases) != 1 || bases[0] != nt {
		t.Fatalf("base teardown %v", bases)
	}
	if base.Steps[0].Kind != ctorplan.StepInstallVPtr {
		t.Fatalf("base variant must reinstall dispatch pointers first: %v", kinds(base.Steps))
	}
}

func TestAbstractDtorTrap(t *testing.T) {
	p, in := newPlanner(t)
	abs := addClass(t, in, hier.Class{Name: "Abs", Polymorphic: true, Abstract: true,
		Methods: []hier.Method{{Name: "f", Virtual: true, Pure: true}},
		Dtor:    hier.Dtor{Present: true, Virtual: true}})

	for _, variant := range []mangle.DtorVariant{mangle.DtorDeleting, mangle.DtorComplete} {
		plan, err := p.PlanDtor(abs, variant)
		if err != nil {
			t.Fatal(err)
		}
		if len(plan.Steps) != 1 || plan.Steps[0].Kind != ctorplan.StepTrap {
			t.Fatalf("variant %d: %v", variant, plan.Steps)
		}
	}
	basePlan, err := p.PlanDtor(abs, mangle.DtorBase)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range basePlan.Steps {
		if s.Kind == ctorplan.StepTrap {
			t.Fatalf("base variant must get a real body: %v", basePlan.Steps)
		}
	}
}

func TestCanAliasDestructor(t *testing.T) {
	p, in := newPlanner(t)
	nt := addClass(t, in, hier.Class{Name: "NT",
		Fields: []hier.Field{{Name: "x", Type: in.Builtins().Int32}},
		Dtor:   hier.Dtor{Present: true}})
	wrapper := addClass(t, in, hier.Class{Name: "Wrapper",
		Bases: []hier.BaseSpec{{Type: nt}},
		Dtor:  hier.Dtor{Present: true, BodyTrivial: true}})
	if !p.CanAliasDestructor(wrapper) {
		t.Fatal("thin wrapper over one non-trivial base should alias")
	}

	busy := addClass(t, in, hier.Class{Name: "Busy",
		Bases:  []hier.BaseSpec{{Type: nt}},
		Fields: []hier.Field{{Name: "m", Type: nt}},
		Dtor:   hier.Dtor{Present: true, BodyTrivial: true}})
	if p.CanAliasDestructor(busy) {
		t.Fatal("member teardown rules out aliasing")
	}

	poly := addClass(t, in, hier.Class{Name: "Poly", Polymorphic: true,
		Bases:   []hier.BaseSpec{{Type: nt}},
		Methods: []hier.Method{{Name: "f", Virtual: true}},
		Dtor:    hier.Dtor{Present: true, BodyTrivial: true}})
	if p.CanAliasDestructor(poly) {
		t.Fatal("polymorphic class should not alias")
	}
}
