package driver

import (
	"kiln/internal/emit"
	"kiln/internal/vtable"
)

// subobjectAddr displaces a complete-object pointer to a statically
// placed subobject. Zero displacement reuses the pointer unchanged.
func (d *Driver) subobjectAddr(f *emit.Func, this emit.Value, off int64) emit.Value {
	if off == 0 {
		return this
	}
	return f.PtrStride(f.Bitcast(this), f.Const(off))
}

// adjustThis applies a combined non-virtual plus virtual displacement to
// a pointer. The virtual part loads the displacement out of the object's
// own dispatch table at a known slot offset from the address point, which
// is how a position that depends on the most-derived type is resolved at
// run time. The non-virtual part applies after: it is relative to the
// virtual base, not to the starting subobject.
func (d *Driver) adjustThis(f *emit.Func, ptr emit.Value, nonVirtual int64, virtualOffsetOffset int64, virtual bool) emit.Value {
	if !virtual {
		return d.subobjectAddr(f, ptr, nonVirtual)
	}
	vptr := f.Load(f.Bitcast(ptr))
	slot := f.PtrStride(f.Bitcast(vptr), f.Const(virtualOffsetOffset))
	disp := f.Load(slot)
	out := f.PtrStride(f.Bitcast(ptr), disp)
	if nonVirtual != 0 {
		out = f.PtrStride(out, f.Const(nonVirtual))
	}
	return out
}

// applyThunkAdjustment fixes the receiver the way a dispatch table thunk
// entry requires before forwarding.
func (d *Driver) applyThunkAdjustment(f *emit.Func, this emit.Value, adj vtable.Adjustment) emit.Value {
	if adj.Zero() {
		return this
	}
	if !adj.Virtual {
		return d.subobjectAddr(f, this, adj.NonVirtual)
	}
	// Virtual thunk adjustments displace through the vcall offset first,
	// then apply the residual constant.
	vptr := f.Load(f.Bitcast(this))
	slot := f.PtrStride(f.Bitcast(vptr), f.Const(adj.VCallOffsetOffset))
	disp := f.Load(slot)
	out := f.PtrStride(f.Bitcast(this), disp)
	if adj.NonVirtual != 0 {
		out = f.PtrStride(out, f.Const(adj.NonVirtual))
	}
	return out
}
