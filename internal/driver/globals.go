package driver

import (
	"kiln/internal/emit"
	"kiln/internal/hier"
	"kiln/internal/vtable"
)

// emitVTable lowers one dispatch table layout to a global definition and
// emits the thunk bodies its merged entries reference.
func (d *Driver) emitVTable(m *emit.Module, lay *vtable.Layout) {
	if _, ok := m.FindGlobal(lay.Sym); ok {
		return
	}
	g := emit.Global{
		Name:          lay.Sym,
		Words:         make([]emit.Word, 0, len(lay.Components)),
		AddressPoints: make(map[string]int, len(lay.AddressPoints)),
	}
	for _, c := range lay.Components {
		switch c.Kind {
		case vtable.CompVCallOffset, vtable.CompVBaseOffset, vtable.CompOffsetToTop:
			g.Words = append(g.Words, emit.Word{Kind: emit.WordInt, Val: c.Offset})
		case vtable.CompRTTI:
			g.Words = append(g.Words, emit.Word{Kind: emit.WordGlobalRef, Sym: c.Sym})
		default:
			sym := c.Sym
			if !c.Thunk.Zero() {
				sym = d.mangler.ThunkFor(c.Sym, c.Thunk.NonVirtual, c.Thunk.VCallOffsetOffset, c.Thunk.Virtual)
				d.emitThunk(m, sym, c.Sym, c.Thunk)
			}
			g.Words = append(g.Words, emit.Word{Kind: emit.WordFnRef, Sym: sym})
		}
	}
	for sub, idx := range lay.AddressPoints {
		g.AddressPoints[sub.String()] = idx
	}
	m.AddGlobal(g)
}

// emitThunk emits one this-adjusting forwarder. Thunks are shared by
// symbol: two table entries with the same adjustment and target reuse one
// body.
func (d *Driver) emitThunk(m *emit.Module, sym, target string, adj vtable.Adjustment) {
	for _, f := range m.Funcs {
		if f.Name == sym {
			return
		}
	}
	f := emit.NewFunc(sym)
	this := f.Param(0)
	adjusted := d.applyThunkAdjustment(f, this, adj)
	f.Call(target, adjusted)
	f.Return()
	addFunc(m, f)
}

// emitVTT lowers the virtual-table-table: one address-point reference per
// base subobject with its own table section.
func (d *Driver) emitVTT(m *emit.Module, class hier.TypeID, entries []vtable.VTTEntry) {
	sym := d.mangler.VTT(class)
	if _, ok := m.FindGlobal(sym); ok {
		return
	}
	g := emit.Global{Name: sym, Words: make([]emit.Word, 0, len(entries))}
	for _, e := range entries {
		g.Words = append(g.Words, emit.Word{
			Kind: emit.WordGlobalRef,
			Sym:  e.Sym,
			Val:  int64(e.AddressPoint),
		})
	}
	m.AddGlobal(g)
}

// rttiQueue accumulates descriptor requests during unit lowering and
// flushes them as globals once, in request order. External descriptors
// come out as reference-only globals.
type rttiQueue struct {
	d     *Driver
	order []hier.TypeID
	seen  map[hier.TypeID]struct{}
}

func newRTTIQueue(d *Driver) *rttiQueue {
	return &rttiQueue{d: d, seen: make(map[hier.TypeID]struct{}, 8)}
}

func (q *rttiQueue) request(t hier.TypeID) error {
	if _, ok := q.seen[t]; ok {
		return nil
	}
	desc, err := q.d.RTTI.DescriptorFor(t)
	if err != nil {
		return err
	}
	q.seen[t] = struct{}{}
	q.order = append(q.order, t)

	// A descriptor references the descriptors of everything it names, so
	// those must land in the module too.
	if desc.Base != nil {
		if err := q.request(desc.Base.Type); err != nil {
			return err
		}
	}
	for i := range desc.Bases {
		if err := q.request(desc.Bases[i].Type); err != nil {
			return err
		}
	}
	if desc.Pointee != nil {
		if err := q.request(desc.Pointee.Type); err != nil {
			return err
		}
	}
	return nil
}

func (q *rttiQueue) flush(m *emit.Module) {
	for _, t := range q.order {
		desc, err := q.d.RTTI.DescriptorFor(t)
		if err != nil {
			continue
		}
		for _, g := range desc.Globals() {
			if _, ok := m.FindGlobal(g.Name); ok {
				continue
			}
			m.AddGlobal(g)
		}
	}
}
