package ctorplan

import (
	"fmt"

	"kiln/internal/hier"
	"kiln/internal/mangle"
)

// PlanDtor computes the teardown sequence for one destructor variant.
// The deleting variant runs the complete body then frees; the complete
// variant delegates to the base variant then destroys virtual bases; the
// base variant destroys fields then non-virtual bases, each in reverse
// declaration order.
func (p *Planner) PlanDtor(class hier.TypeID, variant mangle.DtorVariant) (*Plan, error) {
	c, ok := p.Hier.ClassOf(class)
	if !ok {
		return nil, fmt.Errorf("ctorplan: type #%d is not a class", class)
	}
	plan := &Plan{Class: class}

	// Non-base variants of an abstract class can never run on a live
	// object, but other units may still reference them, so they are
	// emitted as traps rather than omitted.
	if variant != mangle.DtorBase && c.Abstract {
		plan.Steps = append(plan.Steps, Step{Kind: StepTrap})
		return plan, nil
	}

	switch variant {
	case mangle.DtorDeleting:
		plan.Steps = append(plan.Steps,
			Step{Kind: StepCallDtorVariant, DtorVariant: mangle.DtorComplete},
			Step{Kind: StepOperatorDelete},
		)
		return plan, nil

	case mangle.DtorComplete:
		plan.Steps = append(plan.Steps, Step{Kind: StepCallDtorVariant, DtorVariant: mangle.DtorBase})
		vbs := p.Hier.VirtualBases(class)
		for i := len(vbs) - 1; i >= 0; i-- {
			if !p.Hier.NeedsDestruction(vbs[i]) {
				continue
			}
			off, err := p.Layout.VBaseOffset(class, vbs[i])
			if err != nil {
				return nil, err
			}
			plan.Steps = append(plan.Steps, Step{
				Kind:   StepDestroyVBase,
				Base:   vbs[i],
				Offset: off,
			})
		}
		return plan, nil

	case mangle.DtorBase:
		if !p.canSkipVPtrReinstall(class, c) {
			if err := p.appendVPtrInstalls(plan, class); err != nil {
				return nil, err
			}
		}
		if p.PoisonVPtrs && p.Hier.Dynamic(class) {
			plan.Steps = append(plan.Steps, Step{Kind: StepPoisonVPtr})
		}
		for i := len(c.Fields) - 1; i >= 0; i-- {
			if !p.Hier.NeedsDestruction(c.Fields[i].Type) {
				continue
			}
			plan.Steps = append(plan.Steps, Step{Kind: StepDestroyField, Field: i})
		}
		rl, err := p.Layout.RecordOf(class)
		if err != nil {
			return nil, err
		}
		for i := len(c.Bases) - 1; i >= 0; i-- {
			b := &c.Bases[i]
			if b.Virtual || !p.Hier.NeedsDestruction(b.Type) {
				continue
			}
			plan.Steps = append(plan.Steps, Step{
				Kind:   StepDestroyBase,
				Base:   b.Type,
				Offset: rl.BaseOffsets[b.Type],
			})
		}
		return plan, nil

	default:
		return nil, fmt.Errorf("ctorplan: unknown destructor variant %d", variant)
	}
}

// canSkipVPtrReinstall: the base-variant destructor resets dispatch
// pointers so virtual calls made during teardown resolve against this
// class rather than the (already destroyed) derived one. The reset is
// dead when nothing in the body or the member teardown can make a virtual
// call.
func (p *Planner) canSkipVPtrReinstall(class hier.TypeID, c *hier.Class) bool {
	if !p.Hier.Dynamic(class) {
		return true
	}
	if !c.Dtor.BodyTrivial {
		return false
	}
	for i := range c.Fields {
		if p.Hier.NeedsDestruction(c.Fields[i].Type) {
			return false
		}
	}
	return true
}

// CanAliasDestructor reports whether the base-variant destructor of the
// class is exactly its sole non-trivial direct base's destructor, letting
// the emitter alias the symbol instead of emitting a duplicate body.
// Deliberately conservative: a trivial own body, no members needing
// teardown, no virtual bases, and exactly one base with teardown, sitting
// at offset zero.
func (p *Planner) CanAliasDestructor(class hier.TypeID) bool {
	c, ok := p.Hier.ClassOf(class)
	if !ok {
		return false
	}
	if c.Dtor.Present && !c.Dtor.BodyTrivial {
		return false
	}
	if p.Hier.NumVBases(class) != 0 || c.Polymorphic {
		return false
	}
	for i := range c.Fields {
		if p.Hier.NeedsDestruction(c.Fields[i].Type) {
			return false
		}
	}
	nontrivial := 0
	var base hier.TypeID
	for i := range c.Bases {
		if p.Hier.NeedsDestruction(c.Bases[i].Type) {
			nontrivial++
			base = c.Bases[i].Type
		}
	}
	if nontrivial != 1 {
		return false
	}
	rl, err := p.Layout.RecordOf(class)
	if err != nil {
		return false
	}
	return rl.BaseOffsets[base] == 0
}
