package hier

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common scalar types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	Int32   TypeID
	Int64   TypeID
	UInt32  TypeID
	UInt64  TypeID
	Float32 TypeID
	Float64 TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors and
// owns the class records of one compilation unit. Descriptors are
// append-only: once a class is registered it is never rewritten.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins

	classes   []Class
	className map[string]ClassID
}

// NewInterner constructs an interner seeded with built-in scalars.
func NewInterner() *Interner {
	in := &Interner{
		index:     make(map[typeKey]TypeID, 64),
		className: make(map[string]ClassID, 32),
	}
	in.classes = append(in.classes, Class{}) // reserve 0 as invalid sentinel
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Int32 = in.Intern(Type{Kind: KindInt, Width: 32})
	in.builtins.Int64 = in.Intern(Type{Kind: KindInt, Width: 64})
	in.builtins.UInt32 = in.Intern(Type{Kind: KindUint, Width: 32})
	in.builtins.UInt64 = in.Intern(Type{Kind: KindUint, Width: 64})
	in.builtins.Float32 = in.Intern(Type{Kind: KindFloat, Width: 32})
	in.builtins.Float64 = in.Intern(Type{Kind: KindFloat, Width: 64})
	return in
}

// Builtins returns TypeIDs for the built-in scalars.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Pointer interns a pointer-to-elem type.
func (in *Interner) Pointer(elem TypeID) TypeID {
	return in.Intern(Type{Kind: KindPointer, Elem: elem})
}

// Array interns a fixed-length array type.
func (in *Interner) Array(elem TypeID, count uint32) TypeID {
	return in.Intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// AddClass registers a class record and returns its class TypeID. The name
// must be unique within the unit.
func (in *Interner) AddClass(c Class) (TypeID, error) {
	if _, dup := in.className[c.Name]; dup {
		return NoTypeID, fmt.Errorf("duplicate class %q", c.Name)
	}
	lenClasses, err := safecast.Conv[uint32](len(in.classes))
	if err != nil {
		return NoTypeID, fmt.Errorf("len(classes) overflow: %w", err)
	}
	cid := ClassID(lenClasses)
	in.classes = append(in.classes, c)
	in.className[c.Name] = cid
	return in.Intern(Type{Kind: KindClass, Class: cid}), nil
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// Class returns the class record for a ClassID.
func (in *Interner) Class(id ClassID) (*Class, bool) {
	if id == NoClassID || int(id) >= len(in.classes) {
		return nil, false
	}
	return &in.classes[id], true
}

// ClassOf resolves a class TypeID to its record.
func (in *Interner) ClassOf(id TypeID) (*Class, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindClass {
		return nil, false
	}
	return in.Class(t.Class)
}

// ClassByName resolves a registered class name to its TypeID.
func (in *Interner) ClassByName(name string) (TypeID, bool) {
	cid, ok := in.className[name]
	if !ok {
		return NoTypeID, false
	}
	return in.Intern(Type{Kind: KindClass, Class: cid}), true
}

// MustClassOf panics when id is not a registered class type. Reaching the
// panic means an earlier phase handed lowering an inconsistent descriptor.
func (in *Interner) MustClassOf(id TypeID) *Class {
	c, ok := in.ClassOf(id)
	if !ok {
		panic(fmt.Sprintf("hier: TypeID %d is not a class", id))
	}
	return c
}

type typeKey struct {
	Kind  Kind
	Width uint16
	Elem  TypeID
	Count uint32
	Class ClassID
}
