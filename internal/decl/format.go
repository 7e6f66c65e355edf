// Package decl is the declaration surface: it parses TOML unit files
// describing class hierarchies, constructors and try constructs, checks
// them, and resolves them into interned hierarchy descriptors. Nothing
// else feeds class structure into the engine.
package decl

// File mirrors the on-disk TOML schema of one declaration unit.
//
//	[unit]
//	name = "shapes"
//
//	[[class]]
//	name = "Shape"
//	polymorphic = true
//	abstract = true
//
//	[[class.base]]
//	type = "Refcounted"
//	access = "public"
//	virtual = true
//
//	[[class.field]]
//	name = "id"
//	type = "i32"
//
//	[[class.method]]
//	name = "area"
//	virtual = true
//	pure = true
//
//	[class.dtor]
//	virtual = true
//
//	[[class.ctor]]
//	kind = "copy"
//	[[class.ctor.init]]
//	member = "id"
//	expr = "copy"
//
//	[[func]]
//	name = "make_shape"
//	throws = ["BadShape"]
//	[[func.try]]
//	handlers = ["BadShape", "*"]
type File struct {
	Unit    UnitSection `toml:"unit"`
	Classes []ClassDecl `toml:"class"`
	Funcs   []FuncDecl  `toml:"func"`
}

type UnitSection struct {
	Name string `toml:"name"`
}

type ClassDecl struct {
	Name        string `toml:"name"`
	Polymorphic bool   `toml:"polymorphic"`
	Abstract    bool   `toml:"abstract"`
	Union       bool   `toml:"union"`
	Final       bool   `toml:"final"`
	TrivialCopy bool   `toml:"trivial_copy"`

	Bases   []BaseDecl   `toml:"base"`
	Fields  []FieldDecl  `toml:"field"`
	Methods []MethodDecl `toml:"method"`
	Ctors   []CtorDecl   `toml:"ctor"`
	Dtor    *DtorDecl    `toml:"dtor"`
}

type BaseDecl struct {
	Type    string `toml:"type"`
	Access  string `toml:"access"` // public (default), protected, private
	Virtual bool   `toml:"virtual"`
}

type FieldDecl struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Bits     uint32 `toml:"bits"`
	Volatile bool   `toml:"volatile"`
}

type MethodDecl struct {
	Name    string `toml:"name"`
	Virtual bool   `toml:"virtual"`
	Pure    bool   `toml:"pure"`
	Deleted bool   `toml:"deleted"`
}

type CtorDecl struct {
	Kind     string     `toml:"kind"` // default, copy, other
	Variadic bool       `toml:"variadic"`
	Inits    []InitDecl `toml:"init"`
}

// InitDecl sets exactly one of Base, Member, or Delegate.
type InitDecl struct {
	Base     string `toml:"base"`
	Member   string `toml:"member"`
	Delegate *int   `toml:"delegate"` // index into the class's ctor list
	Expr     string `toml:"expr"`     // default, copy, param:N
}

type DtorDecl struct {
	Virtual     bool `toml:"virtual"`
	Trivial     bool `toml:"trivial"`
	BodyTrivial bool `toml:"body_trivial"`
}

type FuncDecl struct {
	Name      string         `toml:"name"`
	Class     string         `toml:"class"` // optional: lower against this class
	Throws    []string       `toml:"throws"`
	Rethrows  int            `toml:"rethrows"` // rethrow sites after the throws
	Tries     []TryDecl      `toml:"try"`
	Casts     []CastDecl     `toml:"cast"`
	NewArrays []NewArrayDecl `toml:"new_array"`
}

// TryDecl lists handler types in source order; "*" is a catch-all and
// must come last.
type TryDecl struct {
	Handlers []string `toml:"handlers"`
}

// CastDecl requests a dynamic cast lowering inside the function.
type CastDecl struct {
	From string `toml:"from"`
	To   string `toml:"to"` // "void" selects the cast-to-void fast path
}

// NewArrayDecl requests an array allocation (and matching deallocation)
// lowering inside the function.
type NewArrayDecl struct {
	Elem  string `toml:"elem"`
	Count uint32 `toml:"count"`
}
