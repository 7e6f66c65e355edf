// Package mangle implements the subset of the Itanium name mangling scheme
// the lowering engine needs: class names for type descriptors, dispatch
// table symbols, and structor symbols. Mangled names are the identity used
// to deduplicate descriptors across declaration files, so two spellings of
// the same identifier must never mangle differently; identifiers are
// NFC-normalized before encoding.
package mangle

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"kiln/internal/hier"
)

// CtorVariant selects the structor symbol suffix.
type CtorVariant uint8

const (
	// CtorComplete is the complete-object constructor (C1).
	CtorComplete CtorVariant = iota
	// CtorBase is the base-object constructor (C2).
	CtorBase
)

// DtorVariant selects the destructor symbol suffix.
type DtorVariant uint8

const (
	// DtorDeleting frees the object after destruction (D0).
	DtorDeleting DtorVariant = iota
	// DtorComplete destroys the full object including virtual bases (D1).
	DtorComplete
	// DtorBase destroys the non-virtual part only (D2).
	DtorBase
)

// Mangler encodes names against one hierarchy interner.
type Mangler struct {
	Hier *hier.Interner
}

// New returns a Mangler over the given interner.
func New(in *hier.Interner) *Mangler {
	return &Mangler{Hier: in}
}

// Type returns the <type> encoding of any interned type.
func (m *Mangler) Type(id hier.TypeID) string {
	var sb strings.Builder
	m.typeInto(&sb, id)
	return sb.String()
}

func (m *Mangler) typeInto(sb *strings.Builder, id hier.TypeID) {
	t, ok := m.Hier.Lookup(id)
	if !ok {
		sb.WriteString("u7invalid")
		return
	}
	switch t.Kind {
	case hier.KindVoid:
		sb.WriteByte('v')
	case hier.KindBool:
		sb.WriteByte('b')
	case hier.KindInt:
		switch t.Width {
		case 8:
			sb.WriteByte('a')
		case 16:
			sb.WriteByte('s')
		case 32:
			sb.WriteByte('i')
		default:
			sb.WriteByte('l')
		}
	case hier.KindUint:
		switch t.Width {
		case 8:
			sb.WriteByte('h')
		case 16:
			sb.WriteByte('t')
		case 32:
			sb.WriteByte('j')
		default:
			sb.WriteByte('m')
		}
	case hier.KindFloat:
		if t.Width == 32 {
			sb.WriteByte('f')
		} else {
			sb.WriteByte('d')
		}
	case hier.KindPointer:
		sb.WriteByte('P')
		m.typeInto(sb, t.Elem)
	case hier.KindArray:
		fmt.Fprintf(sb, "A%d_", t.Count)
		m.typeInto(sb, t.Elem)
	case hier.KindClass:
		c, ok := m.Hier.Class(t.Class)
		if !ok {
			sb.WriteString("u7invalid")
			return
		}
		writeSourceName(sb, c.Name)
	default:
		sb.WriteString("u7invalid")
	}
}

// VTable returns the dispatch table symbol (_ZTV) for a class.
func (m *Mangler) VTable(class hier.TypeID) string {
	return "_ZTV" + m.Type(class)
}

// VTT returns the virtual-table-table symbol (_ZTT) for a class.
func (m *Mangler) VTT(class hier.TypeID) string {
	return "_ZTT" + m.Type(class)
}

// TypeInfo returns the type descriptor symbol (_ZTI) for a type.
func (m *Mangler) TypeInfo(id hier.TypeID) string {
	return "_ZTI" + m.Type(id)
}

// TypeInfoName returns the descriptor name-string symbol (_ZTS).
func (m *Mangler) TypeInfoName(id hier.TypeID) string {
	return "_ZTS" + m.Type(id)
}

// Ctor returns the structor symbol for a constructor variant. Parameter
// types are not part of the engine's identity model, so all constructors
// of one class and variant share a spelling with an empty parameter list.
func (m *Mangler) Ctor(class hier.TypeID, v CtorVariant) string {
	code := "C1"
	if v == CtorBase {
		code = "C2"
	}
	return "_ZN" + m.Type(class) + code + "Ev"
}

// Dtor returns the structor symbol for a destructor variant.
func (m *Mangler) Dtor(class hier.TypeID, v DtorVariant) string {
	var code string
	switch v {
	case DtorDeleting:
		code = "D0"
	case DtorComplete:
		code = "D1"
	default:
		code = "D2"
	}
	return "_ZN" + m.Type(class) + code + "Ev"
}

// Method returns the symbol of a member function, nullary spelling.
func (m *Mangler) Method(class hier.TypeID, name string) string {
	var sb strings.Builder
	sb.WriteString("_ZN")
	sb.WriteString(m.Type(class))
	writeSourceName(&sb, name)
	sb.WriteString("Ev")
	return sb.String()
}

// Thunk returns the symbol of a this-adjusting thunk to a method. The
// non-virtual adjustment is encoded Th<n>_ style; virtual adjustments get
// the Tv<voff>_<n>_ spelling.
func (m *Mangler) Thunk(class hier.TypeID, name string, nvAdjust, vOffset int64, virtualAdjust bool) string {
	return m.ThunkFor(m.Method(class, name), nvAdjust, vOffset, virtualAdjust)
}

// ThunkFor derives a thunk symbol from an already mangled target symbol.
func (m *Mangler) ThunkFor(target string, nvAdjust, vOffset int64, virtualAdjust bool) string {
	if virtualAdjust {
		return fmt.Sprintf("_ZTv%s_%s_%s", encodeOffset(vOffset), encodeOffset(nvAdjust), target[2:])
	}
	return fmt.Sprintf("_ZTh%s_%s", encodeOffset(nvAdjust), target[2:])
}

// Function returns the symbol of a free function, nullary spelling.
func (m *Mangler) Function(name string) string {
	var sb strings.Builder
	sb.WriteString("_Z")
	writeSourceName(&sb, name)
	sb.WriteString("v")
	return sb.String()
}

func encodeOffset(n int64) string {
	if n < 0 {
		return fmt.Sprintf("n%d", -n)
	}
	return fmt.Sprintf("%d", n)
}

// writeSourceName emits <len><identifier> with the identifier in NFC so
// visually identical spellings share one descriptor.
func writeSourceName(sb *strings.Builder, name string) {
	n := norm.NFC.String(name)
	fmt.Fprintf(sb, "%d%s", len(n), n)
}
