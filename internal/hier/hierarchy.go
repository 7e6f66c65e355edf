package hier

// Hierarchy queries. All traversals that must see a virtual base exactly
// once take an explicit visited set scoped to the query; nothing here keeps
// traversal state on the class records themselves.

// Dynamic reports whether the class needs a dispatch pointer: it declares
// virtual methods, has virtual bases, or inherits either.
func (in *Interner) Dynamic(class TypeID) bool {
	c, ok := in.ClassOf(class)
	if !ok {
		return false
	}
	if c.Polymorphic || c.hasDirectVBase() {
		return true
	}
	for i := range c.Bases {
		if in.Dynamic(c.Bases[i].Type) {
			return true
		}
	}
	return false
}

// Polymorphic reports whether the class has virtual methods (own or
// inherited), i.e. whether virtual calls can be made through it.
func (in *Interner) Polymorphic(class TypeID) bool {
	c, ok := in.ClassOf(class)
	if !ok {
		return false
	}
	if c.Polymorphic {
		return true
	}
	for i := range c.Bases {
		if in.Polymorphic(c.Bases[i].Type) {
			return true
		}
	}
	return false
}

// VirtualBases returns the transitive virtual bases of class in
// construction order: a virtual base's own virtual bases precede it, and
// bases are otherwise discovered left-to-right through the declaration
// order of the inheritance graph. Each virtual base appears exactly once
// no matter how many paths reach it.
func (in *Interner) VirtualBases(class TypeID) []TypeID {
	seen := make(map[TypeID]struct{}, 4)
	var order []TypeID
	in.collectVBases(class, seen, &order)
	return order
}

func (in *Interner) collectVBases(class TypeID, seen map[TypeID]struct{}, order *[]TypeID) {
	c, ok := in.ClassOf(class)
	if !ok {
		return
	}
	for i := range c.Bases {
		b := &c.Bases[i]
		in.collectVBases(b.Type, seen, order)
		if b.Virtual {
			if _, dup := seen[b.Type]; !dup {
				seen[b.Type] = struct{}{}
				*order = append(*order, b.Type)
			}
		}
	}
}

// NumVBases returns the count of distinct virtual bases in the hierarchy.
func (in *Interner) NumVBases(class TypeID) int {
	return len(in.VirtualBases(class))
}

// IsVirtualBaseOf reports whether base is among the virtual bases of class.
func (in *Interner) IsVirtualBaseOf(base, class TypeID) bool {
	for _, vb := range in.VirtualBases(class) {
		if vb == base {
			return true
		}
	}
	return false
}

// DerivesFrom reports whether derived reaches base through any inheritance
// path (virtual or not). A class does not derive from itself.
func (in *Interner) DerivesFrom(derived, base TypeID) bool {
	c, ok := in.ClassOf(derived)
	if !ok {
		return false
	}
	for i := range c.Bases {
		if c.Bases[i].Type == base || in.DerivesFrom(c.Bases[i].Type, base) {
			return true
		}
	}
	return false
}

// SinglePublicNonVirtualBase returns the lone direct base when the class
// has exactly one base that is public and non-virtual, which is the shape
// the single-inheritance RTTI descriptor kind requires.
func (in *Interner) SinglePublicNonVirtualBase(class TypeID) (TypeID, bool) {
	c, ok := in.ClassOf(class)
	if !ok || len(c.Bases) != 1 {
		return NoTypeID, false
	}
	b := &c.Bases[0]
	if b.Access != AccessPublic || b.Virtual {
		return NoTypeID, false
	}
	return b.Type, true
}

// VirtualMethods returns the virtual methods a vtable for class must carry,
// in slot order: inherited slots first (in the order of the primary-path
// bases), then methods introduced by class in declaration order. Overrides
// collapse onto the inherited slot.
func (in *Interner) VirtualMethods(class TypeID) []Method {
	c, ok := in.ClassOf(class)
	if !ok {
		return nil
	}
	var slots []Method
	index := make(map[string]int)
	var walk func(t TypeID)
	walk = func(t TypeID) {
		cc, ok := in.ClassOf(t)
		if !ok {
			return
		}
		for i := range cc.Bases {
			if !cc.Bases[i].Virtual {
				walk(cc.Bases[i].Type)
			}
		}
		for i := range cc.Methods {
			m := cc.Methods[i]
			if !m.Virtual {
				continue
			}
			if at, hit := index[m.Name]; hit {
				slots[at] = m
				continue
			}
			index[m.Name] = len(slots)
			slots = append(slots, m)
		}
	}
	for i := range c.Bases {
		if !c.Bases[i].Virtual {
			walk(c.Bases[i].Type)
		}
	}
	for i := range c.Methods {
		m := c.Methods[i]
		if !m.Virtual {
			continue
		}
		if at, hit := index[m.Name]; hit {
			slots[at] = m
			continue
		}
		index[m.Name] = len(slots)
		slots = append(slots, m)
	}
	return slots
}

// FindVirtualMethod reports whether class (or a base) declares a virtual
// method with the given name.
func (in *Interner) FindVirtualMethod(class TypeID, name string) (Method, bool) {
	for _, m := range in.VirtualMethods(class) {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// HasVirtualDtor reports whether the class's destructor is virtual,
// directly or by inheritance.
func (in *Interner) HasVirtualDtor(class TypeID) bool {
	c, ok := in.ClassOf(class)
	if !ok {
		return false
	}
	if c.Dtor.Present && c.Dtor.Virtual {
		return true
	}
	for i := range c.Bases {
		if in.HasVirtualDtor(c.Bases[i].Type) {
			return true
		}
	}
	return false
}

// NeedsDestruction reports whether values of a type run nontrivial
// teardown code: a class with a user-provided destructor, or one whose
// bases or members need destruction, or an array of such a class.
func (in *Interner) NeedsDestruction(t TypeID) bool {
	ty, ok := in.Lookup(t)
	if !ok {
		return false
	}
	switch ty.Kind {
	case KindArray:
		return in.NeedsDestruction(ty.Elem)
	case KindClass:
	default:
		return false
	}
	c, ok := in.ClassOf(t)
	if !ok {
		return false
	}
	if c.Dtor.Present && !c.Dtor.Trivial {
		return true
	}
	for i := range c.Bases {
		if in.NeedsDestruction(c.Bases[i].Type) {
			return true
		}
	}
	for i := range c.Fields {
		if in.NeedsDestruction(c.Fields[i].Type) {
			return true
		}
	}
	return false
}

// TriviallyCopyable reports whether values of a type can be moved with a
// bulk byte copy. Scalars and pointers always can; classes only when
// flagged so by the declaration surface; arrays inherit from the element.
func (in *Interner) TriviallyCopyable(t TypeID) bool {
	ty, ok := in.Lookup(t)
	if !ok {
		return false
	}
	switch ty.Kind {
	case KindArray:
		return in.TriviallyCopyable(ty.Elem)
	case KindClass:
		c, ok := in.ClassOf(t)
		return ok && c.TrivialCopy
	case KindInvalid:
		return false
	default:
		return true
	}
}

// FinalOverrider returns the most-derived class in the hierarchy of class
// that declares a virtual method with the given name: class itself if it
// does, otherwise the first base (declaration order) whose sub-hierarchy
// does. Overload sets are pre-resolved by the declaration surface, so name
// identity is override identity here.
func (in *Interner) FinalOverrider(class TypeID, name string) (TypeID, bool) {
	c, ok := in.ClassOf(class)
	if !ok {
		return NoTypeID, false
	}
	for i := range c.Methods {
		if c.Methods[i].Virtual && c.Methods[i].Name == name {
			return class, true
		}
	}
	for i := range c.Bases {
		if got, ok := in.FinalOverrider(c.Bases[i].Type, name); ok {
			return got, true
		}
	}
	return NoTypeID, false
}
