package driver

import (
	"kiln/internal/decl"
	"kiln/internal/ehscope"
	"kiln/internal/emit"
	"kiln/internal/hier"
	"kiln/internal/mangle"
)

// lowerFunc emits one requested function body: throw and rethrow sites
// first, then try constructs, then cast and allocation requests, in
// declaration order.
func (d *Driver) lowerFunc(m *emit.Module, rt *rttiQueue, fn *decl.Func) error {
	f := emit.NewFunc(d.funcSym(fn))
	stack := ehscope.NewStack()

	for _, t := range fn.Throws {
		if err := rt.request(t); err != nil {
			return err
		}
		if err := d.emitThrow(f, t); err != nil {
			return err
		}
	}
	for i := 0; i < fn.Rethrows; i++ {
		f.Call(d.Rules.RethrowCallee())
	}
	for _, clauses := range fn.Tries {
		if err := d.emitTry(f, rt, clauses, stack); err != nil {
			return err
		}
	}
	for i := range fn.Casts {
		if err := d.emitDynamicCast(f, rt, &fn.Casts[i]); err != nil {
			return err
		}
	}
	for i := range fn.NewArrays {
		if err := d.emitNewArray(f, &fn.NewArrays[i]); err != nil {
			return err
		}
	}
	f.Return()
	addFunc(m, f)
	return nil
}

// emitThrow lowers one throw site: allocate the exception object, then
// hand it to the runtime with its descriptor and, when the thrown type
// needs teardown, its complete-object destructor.
func (d *Driver) emitThrow(f *emit.Func, t hier.TypeID) error {
	sz, err := d.Layout.SizeOf(t)
	if err != nil {
		return err
	}
	exc := f.Call(d.Rules.AllocateExceptionCallee(), f.Const(sz))
	ti := f.GlobalAddr(d.mangler.TypeInfo(t))
	var dtor emit.Value
	if d.Hier.NeedsDestruction(t) {
		dtor = f.GlobalAddr(d.dtorSymForType(t, mangle.DtorComplete))
	} else {
		dtor = f.Const(0)
	}
	f.Call(d.Rules.ThrowCallee(), exc, ti, dtor)
	return nil
}

// emitTry lowers one try construct. The scope stack orders the dispatch:
// the landing block obtains the in-flight exception, tests handler
// descriptors in declaration order, and resumes into the caller when
// nothing matched. Handler bodies come out of the pop plan so cleanup
// forcing stays interleaved the way the scope model demands.
func (d *Driver) emitTry(f *emit.Func, rt *rttiQueue, clauses []hier.CatchClause, stack *ehscope.Stack) error {
	handlers := make([]ehscope.Handler, len(clauses))
	for i := range clauses {
		handlers[i] = ehscope.Handler{Type: clauses[i].Type, Block: f.NewLabel()}
		if clauses[i].Type != hier.NoTypeID {
			if err := rt.request(clauses[i].Type); err != nil {
				return err
			}
		}
	}
	scope := stack.PushCatch(handlers)
	cont := f.NewLabel()

	f.TryBegin()
	f.TryEnd()
	f.Branch(cont)

	steps := stack.DispatchPlan()
	land := f.NewLabel()
	f.Label(land)
	exc := f.Call(d.Rules.Personality())
	for _, st := range steps {
		switch st.Kind {
		case ehscope.DispatchTypeTest:
			match := f.TypeTest(exc, d.mangler.TypeInfo(st.Type))
			next := f.NewLabel()
			f.CondBranch(match, handlers[st.Handler].Block, next)
			f.Label(next)
		case ehscope.DispatchCatchAll:
			f.Branch(handlers[st.Handler].Block)
		case ehscope.DispatchTerminate:
			f.Trap(d.Rules.TerminateCallee())
		case ehscope.DispatchUnwindToCaller:
			f.Resume()
		}
	}

	pop, live := stack.PopCatch(scope)
	if live {
		for _, ps := range pop.Steps {
			if ps.Kind != ehscope.PopEmitHandler {
				continue
			}
			h := handlers[ps.Handler]
			f.Label(h.Block)
			sym := ""
			if h.Type != hier.NoTypeID {
				sym = d.mangler.TypeInfo(h.Type)
			}
			f.CatchBegin(sym)
			f.CatchEnd()
			f.Branch(cont)
		}
	}
	f.Label(cont)
	return nil
}
