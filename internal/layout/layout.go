package layout

import (
	"kiln/internal/hier"
)

// TypeLayout is the ABI size/alignment of a type for a specific Target.
type TypeLayout struct {
	Size  int64
	Align int64
}

// Engine computes memory layout for types and class records. Results are
// memoized per type for the lifetime of the engine; one engine serves one
// compilation and is not safe for concurrent use.
type Engine struct {
	Target Target
	Hier   *hier.Interner

	cache *cache
}

// New creates a layout Engine for the specified target.
func New(target Target, in *hier.Interner) *Engine {
	return &Engine{
		Target: target,
		Hier:   in,
		cache:  newCache(),
	}
}

// layoutState tracks the in-flight computation stack for cycle detection.
// It is scoped to a single top-level query and never stored on the engine.
type layoutState struct {
	stack []hier.TypeID
	index map[hier.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{index: make(map[hier.TypeID]int, 16)}
}

// LayoutOf computes and caches the size/alignment of a type.
func (e *Engine) LayoutOf(t hier.TypeID) (TypeLayout, error) {
	l, err := e.layoutOf(t, newLayoutState())
	if err != nil {
		return l, err
	}
	return l, nil
}

func (e *Engine) layoutOf(t hier.TypeID, state *layoutState) (TypeLayout, *Error) {
	if cached, ok := e.cache.getType(t); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[t]; ok {
		cycle := append([]hier.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		err := &Error{Kind: ErrRecursiveClass, Type: t, Cycle: cycle}
		e.cache.putType(t, typeEntry{Layout: TypeLayout{Size: 0, Align: 1}, Err: err})
		return TypeLayout{Size: 0, Align: 1}, err
	}
	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)

	l, err := e.computeType(t, state)

	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	e.cache.putType(t, typeEntry{Layout: l, Err: err})
	return l, err
}

func (e *Engine) computeType(id hier.TypeID, state *layoutState) (TypeLayout, *Error) {
	tt, ok := e.Hier.Lookup(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	switch tt.Kind {
	case hier.KindVoid:
		return TypeLayout{Size: 0, Align: 1}, nil
	case hier.KindBool:
		return TypeLayout{Size: 1, Align: 1}, nil
	case hier.KindInt, hier.KindUint, hier.KindFloat:
		b := int64(tt.Width) / 8
		if b == 0 {
			b = 1
		}
		return TypeLayout{Size: b, Align: b}, nil
	case hier.KindPointer:
		return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}, nil
	case hier.KindArray:
		elem, err := e.layoutOf(tt.Elem, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		size := elem.Size * int64(tt.Count)
		if tt.Count != 0 && size/int64(tt.Count) != elem.Size {
			return TypeLayout{Size: 0, Align: 1}, &Error{Kind: ErrOverflow, Type: id}
		}
		return TypeLayout{Size: size, Align: elem.Align}, nil
	case hier.KindClass:
		rl, err := e.recordOf(id, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		return TypeLayout{Size: rl.Size, Align: rl.Align}, nil
	default:
		return TypeLayout{Size: 0, Align: 1}, nil
	}
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t hier.TypeID) (int64, error) {
	l, err := e.LayoutOf(t)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t hier.TypeID) (int64, error) {
	l, err := e.LayoutOf(t)
	return l.Align, err
}

func alignTo(offset, align int64) int64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// minAlignAtOffset returns the guaranteed alignment of an address that is
// `offset` bytes past an `align`-aligned address.
func minAlignAtOffset(align, offset int64) int64 {
	if offset == 0 {
		return align
	}
	low := offset & -offset // lowest set bit
	if low < align {
		return low
	}
	return align
}
