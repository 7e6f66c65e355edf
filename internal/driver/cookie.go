package driver

import (
	"kiln/internal/decl"
	"kiln/internal/emit"
	"kiln/internal/hier"
	"kiln/internal/mangle"
)

// emitNewArray lowers one array allocation: reserve the cookie the ABI
// demands in front of the payload, stash the element count in the last
// pointer-sized slot of the cookie, then construct each element in place.
// Elements without teardown get no cookie at all, because nothing ever
// needs to read the count back.
func (d *Driver) emitNewArray(f *emit.Func, na *decl.NewArray) error {
	size, err := d.Layout.SizeOf(na.Elem)
	if err != nil {
		return err
	}
	align, err := d.Layout.AlignOf(na.Elem)
	if err != nil {
		return err
	}
	hasDtor := d.Hier.NeedsDestruction(na.Elem)
	cookie := d.Rules.ArrayCookieSize(align, hasDtor)

	total := cookie + int64(na.Count)*size
	raw := f.Call(newArrayAlloc, f.Const(total))

	payload := raw
	if cookie > 0 {
		countSlot := f.PtrStride(f.Bitcast(raw), f.Const(cookie-d.opts.Target.PtrSize))
		f.Store(countSlot, f.Const(int64(na.Count)))
		payload = f.PtrStride(f.Bitcast(raw), f.Const(cookie))
	}

	if _, isClass := d.Hier.ClassOf(na.Elem); !isClass {
		return nil
	}
	sym := d.ctorSym(na.Elem, hier.CtorDefault, mangle.CtorComplete)
	for i := uint32(0); i < na.Count; i++ {
		addr := payload
		if i > 0 {
			addr = f.PtrStride(f.Bitcast(payload), f.Const(int64(i)*size))
		}
		f.Call(sym, addr)
	}
	return nil
}
