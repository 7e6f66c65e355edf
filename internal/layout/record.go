package layout

import (
	"kiln/internal/hier"
)

// RecordLayout is the complete-object layout of one class. Base placement
// uses the non-virtual size of each base: a base subobject embeds only its
// non-virtual part, virtual bases are allocated once at the end of the
// most-derived object.
type RecordLayout struct {
	Size     int64 // complete object, padded, never 0 for a class
	DataSize int64 // bytes actually occupied before tail padding
	Align    int64

	// Non-virtual part, used when this class is embedded as a base.
	NVSize  int64
	NVAlign int64

	// HasOwnVFPtr is set when the class allocates its own dispatch
	// pointer at offset 0 instead of sharing a primary base's.
	HasOwnVFPtr bool

	// PrimaryBase is the direct non-virtual dynamic base placed at
	// offset 0 whose dispatch pointer this class reuses.
	PrimaryBase hier.TypeID

	BaseOffsets  map[hier.TypeID]int64 // direct non-virtual bases
	VBaseOffsets map[hier.TypeID]int64 // every virtual base, complete object

	FieldOffsets []int64  // byte offsets, storage-unit offset for bit-fields
	FieldBitOff  []uint32 // bit offset within the unit, 0 for plain fields
}

// RecordOf computes and caches the record layout of a class type.
func (e *Engine) RecordOf(class hier.TypeID) (*RecordLayout, error) {
	rl, err := e.recordOf(class, newLayoutState())
	if err != nil {
		return rl, err
	}
	return rl, nil
}

func (e *Engine) recordOf(class hier.TypeID, state *layoutState) (*RecordLayout, *Error) {
	if cached, ok := e.cache.getRecord(class); ok {
		return cached.Layout, cached.Err
	}
	c, ok := e.Hier.ClassOf(class)
	if !ok {
		err := &Error{Kind: ErrNotAClass, Type: class}
		e.cache.putRecord(class, recordEntry{Err: err})
		return nil, err
	}

	rl, err := e.buildRecord(class, c, state)
	e.cache.putRecord(class, recordEntry{Layout: rl, Err: err})
	return rl, err
}

func (e *Engine) buildRecord(class hier.TypeID, c *hier.Class, state *layoutState) (*RecordLayout, *Error) {
	rl := &RecordLayout{
		Align:        1,
		NVAlign:      1,
		BaseOffsets:  make(map[hier.TypeID]int64, len(c.Bases)),
		VBaseOffsets: make(map[hier.TypeID]int64, 2),
	}

	if c.Union {
		if lerr := e.layoutUnion(class, c, rl, state); lerr != nil {
			return nil, lerr
		}
		return rl, nil
	}

	var dsize int64

	// Primary base selection: the first direct non-virtual dynamic base
	// shares its dispatch pointer with us and sits at offset 0.
	if e.Hier.Dynamic(class) {
		for i := range c.Bases {
			b := &c.Bases[i]
			if b.Virtual || !e.Hier.Dynamic(b.Type) {
				continue
			}
			rl.PrimaryBase = b.Type
			break
		}
		if rl.PrimaryBase == hier.NoTypeID {
			rl.HasOwnVFPtr = true
			dsize = e.Target.PtrSize
			rl.Align = maxInt64(rl.Align, e.Target.PtrAlign)
		}
	}

	if rl.PrimaryBase != hier.NoTypeID {
		prl, lerr := e.recordOf(rl.PrimaryBase, state)
		if lerr != nil {
			return nil, lerr
		}
		rl.BaseOffsets[rl.PrimaryBase] = 0
		dsize = prl.NVSize
		rl.Align = maxInt64(rl.Align, prl.NVAlign)
	}

	// Remaining direct non-virtual bases, declaration order.
	for i := range c.Bases {
		b := &c.Bases[i]
		if b.Virtual || b.Type == rl.PrimaryBase {
			continue
		}
		brl, lerr := e.recordOf(b.Type, state)
		if lerr != nil {
			return nil, lerr
		}
		off := alignTo(dsize, brl.NVAlign)
		rl.BaseOffsets[b.Type] = off
		dsize = off + brl.NVSize
		rl.Align = maxInt64(rl.Align, brl.NVAlign)
	}

	var lerr *Error
	dsize, lerr = e.layoutFields(c, rl, dsize, state)
	if lerr != nil {
		return nil, lerr
	}

	rl.NVSize = dsize
	rl.NVAlign = rl.Align

	// Virtual bases close the complete object, in construction order.
	for _, vb := range e.Hier.VirtualBases(class) {
		vrl, lerr := e.recordOf(vb, state)
		if lerr != nil {
			return nil, lerr
		}
		off := alignTo(dsize, vrl.NVAlign)
		rl.VBaseOffsets[vb] = off
		dsize = off + vrl.NVSize
		rl.Align = maxInt64(rl.Align, vrl.NVAlign)
	}

	rl.DataSize = dsize
	rl.Size = alignTo(dsize, rl.Align)
	if rl.Size == 0 {
		rl.Size = 1
	}
	return rl, nil
}

func (e *Engine) layoutFields(c *hier.Class, rl *RecordLayout, dsize int64, state *layoutState) (int64, *Error) {
	rl.FieldOffsets = make([]int64, len(c.Fields))
	rl.FieldBitOff = make([]uint32, len(c.Fields))

	// Running bit-field unit, packing consecutive bit-fields while they fit.
	var unitOffset int64 = -1
	var unitSize int64
	var unitUsed uint32

	for i := range c.Fields {
		f := &c.Fields[i]
		fl, lerr := e.layoutOf(f.Type, state)
		if lerr != nil {
			return 0, lerr
		}
		if f.BitWidth > 0 {
			bits := uint32(fl.Size * 8)
			if unitOffset < 0 || unitSize != fl.Size || unitUsed+f.BitWidth > bits {
				unitOffset = alignTo(dsize, fl.Align)
				unitSize = fl.Size
				unitUsed = 0
				dsize = unitOffset + fl.Size
				rl.Align = maxInt64(rl.Align, fl.Align)
			}
			rl.FieldOffsets[i] = unitOffset
			rl.FieldBitOff[i] = unitUsed
			unitUsed += f.BitWidth
			continue
		}
		unitOffset = -1
		off := alignTo(dsize, fl.Align)
		rl.FieldOffsets[i] = off
		dsize = off + fl.Size
		rl.Align = maxInt64(rl.Align, fl.Align)
	}
	return dsize, nil
}

func (e *Engine) layoutUnion(class hier.TypeID, c *hier.Class, rl *RecordLayout, state *layoutState) *Error {
	rl.FieldOffsets = make([]int64, len(c.Fields))
	rl.FieldBitOff = make([]uint32, len(c.Fields))
	var size int64
	for i := range c.Fields {
		fl, lerr := e.layoutOf(c.Fields[i].Type, state)
		if lerr != nil {
			return lerr
		}
		size = maxInt64(size, fl.Size)
		rl.Align = maxInt64(rl.Align, fl.Align)
	}
	rl.DataSize = size
	rl.NVSize = size
	rl.NVAlign = rl.Align
	rl.Size = alignTo(size, rl.Align)
	if rl.Size == 0 {
		rl.Size = 1
	}
	return nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
