// Package testkit holds structural checks shared by tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"kiln/internal/emit"
)

// CheckModuleInvariants runs structural sanity checks on an emitted module:
// 1) global names are unique and non-empty, external globals carry no words
// 2) address points and word-level global references resolve inside the module
// 3) every function body is well-formed per CheckFuncInvariants
func CheckModuleInvariants(m *emit.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}

	globals := make(map[string]*emit.Global, len(m.Globals))
	for i := range m.Globals {
		g := &m.Globals[i]
		if g.Name == "" {
			return fmt.Errorf("global #%d has no name", i)
		}
		if _, dup := globals[g.Name]; dup {
			return fmt.Errorf("duplicate global %q", g.Name)
		}
		globals[g.Name] = g
		if g.External && len(g.Words) > 0 {
			return fmt.Errorf("external global %q has an initializer", g.Name)
		}
		for tag, idx := range g.AddressPoints {
			if idx < 0 || idx >= len(g.Words) {
				return fmt.Errorf("global %q: address point %q = %d out of range [0,%d)", g.Name, tag, idx, len(g.Words))
			}
		}
	}

	for _, g := range m.Globals {
		for i, w := range g.Words {
			switch w.Kind {
			case emit.WordGlobalRef:
				target, ok := globals[w.Sym]
				if !ok {
					return fmt.Errorf("global %q word %d references unknown global %q", g.Name, i, w.Sym)
				}
				if w.Val != 0 && !target.External {
					if w.Val < 0 || w.Val >= int64(len(target.Words)) {
						return fmt.Errorf("global %q word %d displacement %d outside %q", g.Name, i, w.Val, w.Sym)
					}
				}
			case emit.WordFnRef:
				if w.Sym == "" {
					return fmt.Errorf("global %q word %d: function reference without a symbol", g.Name, i)
				}
			}
		}
	}

	funcNames := make(map[string]struct{}, len(m.Funcs))
	for _, f := range m.Funcs {
		if f.Name == "" {
			return fmt.Errorf("function with no name")
		}
		if _, dup := funcNames[f.Name]; dup {
			return fmt.Errorf("duplicate function %q", f.Name)
		}
		funcNames[f.Name] = struct{}{}
		if err := CheckFuncInvariants(f, globals); err != nil {
			return fmt.Errorf("func %s: %w", f.Name, err)
		}
	}
	return nil
}

// CheckFuncInvariants verifies one function body:
// labels defined at most once, branch targets defined, values defined
// before use, try/catch regions balanced, and the body ends on a
// terminating op. globals may be nil to skip symbol resolution.
func CheckFuncInvariants(f *emit.Func, globals map[string]*emit.Global) error {
	if len(f.Ops) == 0 {
		return fmt.Errorf("empty body")
	}

	defined := make(map[emit.Label]struct{})
	for i, op := range f.Ops {
		if op.Kind != emit.OpLabel {
			continue
		}
		if _, dup := defined[op.Target]; dup {
			return fmt.Errorf("op %d: label L%d defined twice", i, op.Target)
		}
		defined[op.Target] = struct{}{}
	}

	var maxValue emit.Value
	tryDepth, catchDepth := 0, 0
	for i, op := range f.Ops {
		for _, arg := range op.Args {
			if arg == emit.NoValue {
				return fmt.Errorf("op %d (%s): argument is no-value", i, op.Kind)
			}
			if arg > maxValue {
				return fmt.Errorf("op %d (%s): value v%d used before definition", i, op.Kind, arg)
			}
		}
		if op.Dst != emit.NoValue {
			if op.Dst != maxValue+1 {
				return fmt.Errorf("op %d (%s): non-sequential destination v%d", i, op.Kind, op.Dst)
			}
			maxValue = op.Dst
		}

		switch op.Kind {
		case emit.OpBranch:
			if _, ok := defined[op.Target]; !ok {
				return fmt.Errorf("op %d: branch to undefined label L%d", i, op.Target)
			}
		case emit.OpCondBranch:
			if _, ok := defined[op.Target]; !ok {
				return fmt.Errorf("op %d: branch to undefined label L%d", i, op.Target)
			}
			if _, ok := defined[op.Else]; !ok {
				return fmt.Errorf("op %d: branch to undefined label L%d", i, op.Else)
			}
		case emit.OpTryBegin:
			tryDepth++
		case emit.OpTryEnd:
			tryDepth--
			if tryDepth < 0 {
				return fmt.Errorf("op %d: try region closed without open", i)
			}
		case emit.OpCatchBegin:
			catchDepth++
		case emit.OpCatchEnd:
			catchDepth--
			if catchDepth < 0 {
				return fmt.Errorf("op %d: handler region closed without open", i)
			}
		case emit.OpVTableAddr:
			// Dispatch tables are always defined in the emitting module.
			// OpGlobalAddr is exempt: it may name function symbols too.
			if globals != nil {
				if _, ok := globals[op.Sym]; !ok {
					return fmt.Errorf("op %d: vtable_addr of unknown global %q", i, op.Sym)
				}
			}
		}
	}
	if tryDepth != 0 {
		return fmt.Errorf("unbalanced try regions: depth %d at end", tryDepth)
	}
	if catchDepth != 0 {
		return fmt.Errorf("unbalanced handler regions: depth %d at end", catchDepth)
	}

	if _, err := safecast.Conv[uint32](len(f.Ops)); err != nil {
		return fmt.Errorf("op count overflow: %w", err)
	}

	switch last := f.Ops[len(f.Ops)-1]; last.Kind {
	case emit.OpReturn, emit.OpResume, emit.OpTrap, emit.OpBranch:
	default:
		return fmt.Errorf("body ends on %s, not a terminator", last.Kind)
	}
	return nil
}
