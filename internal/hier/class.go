package hier

// Access is the declared accessibility of a base or member.
type Access uint8

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "access?"
	}
}

// BaseSpec is one direct base in a class declaration.
type BaseSpec struct {
	Type    TypeID // always a class type
	Access  Access
	Virtual bool
}

// Field is one non-static data member.
type Field struct {
	Name     string
	Type     TypeID
	BitWidth uint32 // 0 when not a bit-field
	Volatile bool
}

// Method is a member function declaration. Only the virtual ones matter to
// dispatch-table layout; signature identity is by name here, the declaration
// surface is responsible for pre-resolving overloads.
type Method struct {
	Name    string
	Virtual bool
	Pure    bool
	Deleted bool
}

// CtorKind distinguishes the special-member shape of a constructor.
type CtorKind uint8

const (
	CtorDefault CtorKind = iota
	CtorCopy
	CtorOther
)

// Ctor is one constructor declaration with its ordered initializer list.
type Ctor struct {
	Kind     CtorKind
	Variadic bool
	Inits    []CtorInit
}

// Delegating reports whether the constructor delegates to a sibling. The
// declaration surface guarantees a delegating constructor carries exactly
// one initializer.
func (c *Ctor) Delegating() bool {
	return len(c.Inits) == 1 && c.Inits[0].Kind == InitDelegating
}

// Dtor is the destructor declaration of a class.
type Dtor struct {
	Present     bool
	Virtual     bool
	Trivial     bool
	BodyTrivial bool // body is empty; base/member teardown may still run
}

// CatchClause is one handler of a try-construct supplied by the
// declaration surface. A zero Type marks a catch-all.
type CatchClause struct {
	Type TypeID
}

// Class is the immutable structural description of one class. Instances
// are produced once by the declaration surface and never mutated.
type Class struct {
	Name string

	Bases  []BaseSpec
	Fields []Field

	Methods []Method
	Ctors   []Ctor
	Dtor    Dtor

	Polymorphic bool
	Abstract    bool
	Union       bool
	Final       bool

	// TrivialCopy marks types that can be moved around with a bulk byte
	// copy (no user-provided copy operations, no virtual anything).
	TrivialCopy bool
}

// HasVBases reports whether any base anywhere in the hierarchy is virtual.
// It only checks the direct level; use Interner.VirtualBases for the
// transitive, de-duplicated set.
func (c *Class) hasDirectVBase() bool {
	for i := range c.Bases {
		if c.Bases[i].Virtual {
			return true
		}
	}
	return false
}
