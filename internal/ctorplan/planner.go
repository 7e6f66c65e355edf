package ctorplan

import (
	"fmt"

	"kiln/internal/hier"
	"kiln/internal/layout"
	"kiln/internal/mangle"
	"kiln/internal/vtable"
)

// Planner builds structor plans against one hierarchy and one target.
// State is per compilation; the per-body working set lives in locals.
type Planner struct {
	Hier    *hier.Interner
	Layout  *layout.Engine
	VTables *vtable.Builder

	// EHEnabled gates per-member cleanup guards: without exception
	// support a throwing later initializer cannot happen, so nothing
	// needs unwinding.
	EHEnabled bool

	// PoisonVPtrs inserts a dispatch pointer rewrite before field
	// teardown, for use-after-destruction diagnostics.
	PoisonVPtrs bool
}

func NewPlanner(in *hier.Interner, le *layout.Engine, vt *vtable.Builder) *Planner {
	return &Planner{Hier: in, Layout: le, VTables: vt, EHEnabled: true}
}

// DelegationValid reports whether the complete constructor variant may be
// lowered as a direct call into the base variant. Classes with virtual
// bases are excluded because the delegate call would duplicate parameter
// copies whose addresses must stay consistent across initializers;
// variadic constructors cannot re-pass their arguments; a delegating
// constructor already forwards elsewhere.
func (p *Planner) DelegationValid(class hier.TypeID, ctor *hier.Ctor) bool {
	if p.Hier.NumVBases(class) != 0 {
		return false
	}
	if ctor.Variadic {
		return false
	}
	return !ctor.Delegating()
}

// PlanCtor computes the step sequence for one constructor variant. The
// emission order is fixed: virtual bases (complete variant of non-abstract
// classes only), non-virtual direct bases, dispatch pointer installs,
// then members.
func (p *Planner) PlanCtor(class hier.TypeID, ctor *hier.Ctor, variant mangle.CtorVariant) (*Plan, error) {
	c, ok := p.Hier.ClassOf(class)
	if !ok {
		return nil, fmt.Errorf("ctorplan: type #%d is not a class", class)
	}
	plan := &Plan{Class: class}

	if ctor.Delegating() {
		plan.Steps = append(plan.Steps, Step{
			Kind:       StepDelegate,
			TargetCtor: ctor.Inits[0].Target,
		})
		return plan, nil
	}

	if variant == mangle.CtorComplete && p.DelegationValid(class, ctor) {
		plan.Steps = append(plan.Steps, Step{
			Kind:        StepCallCtorVariant,
			CtorVariant: mangle.CtorBase,
		})
		return plan, nil
	}

	exprs := initExprIndex(ctor)

	// Virtual bases are constructed on the complete object only, walking
	// the deduplicated hierarchy order so a shared base runs once, before
	// any intermediate base that embeds it. Abstract classes never exist
	// as complete objects, so their variant skips this entirely.
	if variant == mangle.CtorComplete && !c.Abstract {
		for _, vb := range p.Hier.VirtualBases(class) {
			off, err := p.Layout.VBaseOffset(class, vb)
			if err != nil {
				return nil, err
			}
			plan.Steps = append(plan.Steps, Step{
				Kind:   StepConstructVBase,
				Base:   vb,
				Offset: off,
				Expr:   exprs.base[vb],
			})
		}
	}

	rl, err := p.Layout.RecordOf(class)
	if err != nil {
		return nil, err
	}
	for i := range c.Bases {
		b := &c.Bases[i]
		if b.Virtual {
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			Kind:   StepConstructBase,
			Base:   b.Type,
			Offset: rl.BaseOffsets[b.Type],
			Expr:   exprs.base[b.Type],
		})
	}

	if err := p.appendVPtrInstalls(plan, class); err != nil {
		return nil, err
	}

	merger := NewMerger(p.Hier, p.Layout, c, rl)
	for i := range c.Fields {
		expr, found := exprs.member[i]
		if !found {
			expr = hier.InitExpr{Kind: hier.ExprDefault}
		}
		cleanup := p.EHEnabled && p.Hier.NeedsDestruction(c.Fields[i].Type)
		merger.add(Step{
			Kind:    StepInitField,
			Field:   i,
			Expr:    expr,
			Cleanup: cleanup,
		})
	}
	plan.Steps = append(plan.Steps, merger.finish()...)
	return plan, nil
}

// appendVPtrInstalls emits one store per dispatch pointer slot of the
// class. Primary bases never show up here: they share the enclosing
// slot by construction, which is exactly the statically-known-correct
// case the install phase is allowed to skip.
func (p *Planner) appendVPtrInstalls(plan *Plan, class hier.TypeID) error {
	if !p.Hier.Dynamic(class) {
		return nil
	}
	lay, err := p.VTables.LayoutOf(class)
	if err != nil {
		return err
	}
	slots, err := p.VTables.Slots(class)
	if err != nil {
		return err
	}
	for _, s := range slots {
		ap, ok := lay.AddressPointFor(s.Base)
		if !ok {
			return fmt.Errorf("ctorplan: no address point for %s in %s", s.Base, lay.Sym)
		}
		plan.Steps = append(plan.Steps, Step{
			Kind:         StepInstallVPtr,
			Slot:         s,
			AddressPoint: ap,
		})
	}
	return nil
}

// initExprs indexes a constructor's initializer list by target so the
// planner can walk bases and fields in hierarchy order while still
// honoring the declared initializing expressions.
type initExprs struct {
	base   map[hier.TypeID]hier.InitExpr
	member map[int]hier.InitExpr
}

func initExprIndex(ctor *hier.Ctor) initExprs {
	ix := initExprs{
		base:   make(map[hier.TypeID]hier.InitExpr, 4),
		member: make(map[int]hier.InitExpr, len(ctor.Inits)),
	}
	for i := range ctor.Inits {
		init := &ctor.Inits[i]
		switch init.Kind {
		case hier.InitBase:
			ix.base[init.Base] = init.Expr
		case hier.InitMember:
			ix.member[init.Field] = init.Expr
		}
	}
	return ix
}
