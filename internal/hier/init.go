package hier

// InitKind tags the CtorInit sum type.
type InitKind uint8

const (
	// InitBase initializes a direct or virtual base subobject.
	InitBase InitKind = iota
	// InitMember initializes one non-static data member.
	InitMember
	// InitDelegating forwards the whole construction to a sibling
	// constructor. Mutually exclusive with every other initializer.
	InitDelegating
)

// ExprKind classifies the initializing expression as far as lowering needs
// to: the run merger only cares whether a member initializer is a plain
// copy of the same field out of a designated source object.
type ExprKind uint8

const (
	// ExprDefault default-constructs / zero-initializes the target.
	ExprDefault ExprKind = iota
	// ExprParam initializes from a constructor parameter.
	ExprParam
	// ExprMemberCopy copies the same field from a source object of the
	// same class (the shape a defaulted copy constructor produces).
	ExprMemberCopy
)

// InitExpr is the lowering-relevant shape of an initializing expression.
type InitExpr struct {
	Kind  ExprKind
	Param int // ExprParam: parameter index
}

// CtorInit is one entry of a constructor's ordered initializer list.
// Exactly one of the payload groups is meaningful, selected by Kind.
type CtorInit struct {
	Kind InitKind

	// InitBase
	Base    TypeID
	Virtual bool

	// InitMember
	Field int // index into Class.Fields

	// InitBase / InitMember
	Expr InitExpr

	// InitDelegating
	Target int // index into Class.Ctors
}
