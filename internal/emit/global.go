package emit

// WordKind tags one slot of a global initializer.
type WordKind uint8

const (
	// WordInt is a plain integer slot (offset-to-top, vbase offsets...).
	WordInt WordKind = iota
	// WordFnRef references a function symbol (methods, structors, traps).
	WordFnRef
	// WordGlobalRef references another global (type descriptors).
	WordGlobalRef
	// WordString is an inline name string (descriptor names).
	WordString
	// WordNull is an explicit null slot.
	WordNull
)

// Word is one pointer-sized slot of a global definition's initializer.
// For WordGlobalRef, Val is an optional word displacement into the
// referenced global (virtual-table-table entries point at address points,
// not at table starts).
type Word struct {
	Kind WordKind
	Val  int64
	Sym  string
}

// Global is one emitted global definition: a dispatch table, a type
// descriptor, or a VTT.
type Global struct {
	Name string
	// External marks a reference-only global: declared, never defined
	// here (foreign descriptors, standard scalar type infos).
	External bool
	Words    []Word
	// AddressPoints records, for dispatch tables, the word index each
	// dispatch pointer actually stores, keyed by a printable subobject tag.
	AddressPoints map[string]int
}

// Module collects everything emitted for one compilation unit.
type Module struct {
	Name    string
	Globals []Global
	Funcs   []*Func
}

// AddGlobal appends a global definition, returning its index.
func (m *Module) AddGlobal(g Global) int {
	m.Globals = append(m.Globals, g)
	return len(m.Globals) - 1
}

// FindGlobal returns the first global with the given symbol name.
func (m *Module) FindGlobal(name string) (*Global, bool) {
	for i := range m.Globals {
		if m.Globals[i].Name == name {
			return &m.Globals[i], true
		}
	}
	return nil, false
}
