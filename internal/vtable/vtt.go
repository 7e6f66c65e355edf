package vtable

import (
	"kiln/internal/hier"
	"kiln/internal/layout"
)

// VTTEntry is one slot of the virtual-table-table: an address point the
// base-variant structors of a class with virtual bases consume to install
// dispatch pointers while the most-derived type is still under
// construction.
type VTTEntry struct {
	Sub          layout.BaseSubobject
	Sym          string
	AddressPoint int
}

// BuildVTT returns the VTT entries for a class, or nil when the ABI does
// not require one (no virtual bases). Entry order follows the dispatch
// slot walk: the complete-object table first, then one entry per base
// subobject with its own table section. Construction tables are folded
// onto the main table's address points; the section contents already
// reflect the most-derived layout.
func (b *Builder) BuildVTT(mostDerived hier.TypeID) ([]VTTEntry, error) {
	if !b.Rules.NeedsVTT(b.Hier, mostDerived) {
		return nil, nil
	}
	lay, err := b.LayoutOf(mostDerived)
	if err != nil {
		return nil, err
	}
	slots, err := b.Slots(mostDerived)
	if err != nil {
		return nil, err
	}
	entries := make([]VTTEntry, 0, len(slots))
	for _, slot := range slots {
		ap, ok := lay.AddressPointFor(slot.Base)
		if !ok {
			continue
		}
		entries = append(entries, VTTEntry{
			Sub:          slot.Base,
			Sym:          lay.Sym,
			AddressPoint: ap,
		})
	}
	return entries, nil
}
