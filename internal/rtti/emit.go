package rtti

import (
	"kiln/internal/emit"
)

// Globals lowers a descriptor to its emitted form: the name string global
// plus the descriptor global. External descriptors produce a single
// reference-only entry.
func (d *Descriptor) Globals() []emit.Global {
	if d.External {
		return []emit.Global{{Name: d.Sym, External: true}}
	}

	words := []emit.Word{
		{Kind: emit.WordGlobalRef, Sym: d.Kind.RuntimeClass()},
		{Kind: emit.WordGlobalRef, Sym: d.NameSym},
	}
	switch d.Kind {
	case KindSIClass:
		words = append(words, emit.Word{Kind: emit.WordGlobalRef, Sym: d.Base.Sym})
	case KindVMIClass:
		words = append(words,
			emit.Word{Kind: emit.WordInt, Val: int64(d.Flags)},
			emit.Word{Kind: emit.WordInt, Val: int64(len(d.Bases))},
		)
		for _, bi := range d.Bases {
			words = append(words,
				emit.Word{Kind: emit.WordGlobalRef, Sym: bi.Sym},
				emit.Word{Kind: emit.WordInt, Val: bi.OffsetFlags},
			)
		}
	case KindPointer:
		words = append(words,
			emit.Word{Kind: emit.WordInt, Val: 0},
			emit.Word{Kind: emit.WordGlobalRef, Sym: d.Pointee.Sym},
		)
	}

	return []emit.Global{
		{Name: d.NameSym, Words: []emit.Word{{Kind: emit.WordString, Sym: d.TypeName}}},
		{Name: d.Sym, Words: words},
	}
}
