package driver

import (
	"kiln/internal/decl"
	"kiln/internal/emit"
	"kiln/internal/hier"
)

// Hint values the runtime cast entry accepts when the static src-to-dst
// displacement is not a plain offset.
const (
	castHintUnknown   int64 = -1
	castHintNotPublic int64 = -2
	castHintAmbiguous int64 = -3
)

// emitDynamicCast lowers one checked downcast. Cast-to-void never calls
// the runtime: the offset-to-top slot of the object's own dispatch table
// says where the most-derived object starts. Everything else goes through
// the runtime entry with a static hint, and a null result reaches the
// bad-cast entry.
func (d *Driver) emitDynamicCast(f *emit.Func, rt *rttiQueue, c *decl.Cast) error {
	src := f.Param(0)
	if err := rt.request(c.From); err != nil {
		return err
	}

	if c.ToVoid {
		vptr := f.Load(f.Bitcast(src))
		ott := f.Load(f.PtrStride(f.Bitcast(vptr), f.Const(-2*d.opts.Target.PtrSize)))
		f.PtrStride(f.Bitcast(src), ott)
		return nil
	}

	if err := rt.request(c.To); err != nil {
		return err
	}
	srcTI := f.GlobalAddr(d.mangler.TypeInfo(c.From))
	dstTI := f.GlobalAddr(d.mangler.TypeInfo(c.To))
	hint := f.Const(d.castHint(c.From, c.To))
	res := f.Call(d.Rules.DynamicCastCallee(), src, srcTI, dstTI, hint)

	ok := f.NewLabel()
	bad := f.NewLabel()
	f.CondBranch(res, ok, bad)
	f.Label(bad)
	f.Call(d.Rules.BadCastCallee())
	f.Label(ok)
	return nil
}

// castHint computes the src2dst displacement hint: the static offset of
// the source subobject within the destination type when it sits behind a
// sole public non-virtual path. Non-public paths never count; a virtual
// element on the first public path forfeits the hint entirely.
func (d *Driver) castHint(from, to hier.TypeID) int64 {
	var w baseWalk
	d.walkBasePaths(to, from, 0, true, false, &w)
	switch {
	case w.virtualStop:
		return castHintUnknown
	case w.paths == 0:
		return castHintNotPublic
	case w.paths > 1:
		return castHintAmbiguous
	default:
		return w.offset
	}
}

type baseWalk struct {
	paths       int
	offset      int64
	virtualStop bool
}

// walkBasePaths counts the public inheritance paths from cls down to
// target. Only the first public path records an offset; a virtual base
// on that path stops the walk. Later public paths only bump the count,
// their shape no longer matters.
func (d *Driver) walkBasePaths(cls, target hier.TypeID, off int64, public, viaVirtual bool, w *baseWalk) {
	if w.virtualStop {
		return
	}
	if cls == target {
		if !public {
			return
		}
		w.paths++
		if w.paths == 1 {
			if viaVirtual {
				w.virtualStop = true
				return
			}
			w.offset = off
		}
		return
	}
	c, ok := d.Hier.ClassOf(cls)
	if !ok {
		return
	}
	rl, err := d.Layout.RecordOf(cls)
	if err != nil {
		return
	}
	for i := range c.Bases {
		b := &c.Bases[i]
		childPublic := public && b.Access == hier.AccessPublic
		if b.Virtual {
			vboff, verr := d.Layout.VBaseOffset(cls, b.Type)
			if verr != nil {
				continue
			}
			d.walkBasePaths(b.Type, target, off+vboff, childPublic, true, w)
			continue
		}
		d.walkBasePaths(b.Type, target, off+rl.BaseOffsets[b.Type], childPublic, viaVirtual, w)
	}
}
