package hier

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// ClassID indexes class records inside the interner.
type ClassID uint32

// NoClassID marks the absence of a class record.
const NoClassID ClassID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindInt
	KindUint
	KindFloat
	KindPointer
	KindArray
	KindClass
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindClass:
		return "class"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is the structural descriptor behind a TypeID.
type Type struct {
	Kind  Kind
	Width uint16  // scalar width in bits (Int/Uint/Float)
	Elem  TypeID  // Pointer/Array element
	Count uint32  // Array length
	Class ClassID // Class payload
}
