package decl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"kiln/internal/diag"
	"kiln/internal/hier"
	"kiln/internal/source"
)

// Unit is one resolved declaration file: interned classes plus the
// functions to lower.
type Unit struct {
	Name    string
	FileID  source.FileID
	Classes []hier.TypeID
	Funcs   []Func
}

// Func is one function body request: throw sites, try constructs with
// resolved handler types, dynamic cast requests.
type Func struct {
	Name      string
	Class     hier.TypeID // zero when the function is free-standing
	Throws    []hier.TypeID
	Rethrows  int
	Tries     [][]hier.CatchClause
	Casts     []Cast
	NewArrays []NewArray
}

// Cast is one resolved dynamic cast request. ToVoid selects the
// cast-to-void fast path, where To stays zero.
type Cast struct {
	From   hier.TypeID
	To     hier.TypeID
	ToVoid bool
}

// NewArray is one resolved array allocation request.
type NewArray struct {
	Elem  hier.TypeID
	Count uint32
}

// LoadFile reads, parses, and resolves one declaration unit.
func LoadFile(path string, files *source.FileSet, in *hier.Interner, rep diag.Reporter) (*Unit, error) {
	id, err := files.Load(path)
	if err != nil {
		return nil, err
	}
	f := files.Get(id)
	var file File
	if _, derr := toml.Decode(string(f.Content), &file); derr != nil {
		diag.ReportError(rep, diag.DeclBadSyntax, source.Span{File: id}, derr.Error())
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, derr)
	}
	return Resolve(&file, id, in, rep)
}

// Resolve interns every class of the unit and resolves its functions.
// Problems are reported through rep; the returned unit covers whatever
// resolved cleanly, so callers must consult their bag before lowering.
func Resolve(file *File, fileID source.FileID, in *hier.Interner, rep diag.Reporter) (*Unit, error) {
	r := &resolver{
		hier: in,
		rep:  rep,
		span: source.Span{File: fileID},
	}

	unit := &Unit{Name: file.Unit.Name, FileID: fileID}

	// Classes may reference each other in any order, so names are
	// registered first and bodies filled in a second pass.
	ids := make([]hier.TypeID, len(file.Classes))
	for i := range file.Classes {
		id, err := in.AddClass(hier.Class{Name: file.Classes[i].Name})
		if err != nil {
			r.errorf(diag.DeclDuplicateClass, "duplicate class %q", file.Classes[i].Name)
			continue
		}
		ids[i] = id
	}
	for i := range file.Classes {
		if ids[i] == hier.NoTypeID {
			continue
		}
		r.resolveClass(ids[i], &file.Classes[i])
		unit.Classes = append(unit.Classes, ids[i])
	}

	for i := range file.Funcs {
		unit.Funcs = append(unit.Funcs, r.resolveFunc(&file.Funcs[i]))
	}
	return unit, nil
}

type resolver struct {
	hier *hier.Interner
	rep  diag.Reporter
	span source.Span
}

func (r *resolver) errorf(code diag.Code, format string, args ...any) {
	diag.ReportError(r.rep, code, r.span, fmt.Sprintf(format, args...))
}

func (r *resolver) resolveClass(id hier.TypeID, d *ClassDecl) {
	c := hier.Class{
		Name:        d.Name,
		Polymorphic: d.Polymorphic,
		Abstract:    d.Abstract,
		Union:       d.Union,
		Final:       d.Final,
		TrivialCopy: d.TrivialCopy,
	}

	if d.Union && len(d.Bases) > 0 {
		r.errorf(diag.DeclUnionWithBase, "union %q cannot declare bases", d.Name)
	} else {
		for i := range d.Bases {
			if b, ok := r.resolveBase(d.Name, &d.Bases[i]); ok {
				c.Bases = append(c.Bases, b)
			}
		}
	}

	for i := range d.Fields {
		if f, ok := r.resolveField(d.Name, &d.Fields[i]); ok {
			c.Fields = append(c.Fields, f)
		}
	}

	for i := range d.Methods {
		m := &d.Methods[i]
		c.Methods = append(c.Methods, hier.Method{
			Name:    m.Name,
			Virtual: m.Virtual,
			Pure:    m.Pure,
			Deleted: m.Deleted,
		})
		if m.Pure {
			c.Abstract = true
		}
	}

	if d.Dtor != nil {
		c.Dtor = hier.Dtor{
			Present:     true,
			Virtual:     d.Dtor.Virtual,
			Trivial:     d.Dtor.Trivial,
			BodyTrivial: d.Dtor.BodyTrivial,
		}
	}

	// Publish the structural part before resolving constructors: initializer
	// checks walk the hierarchy through the interner.
	*r.hier.MustClassOf(id) = c

	cls := r.hier.MustClassOf(id)
	for i := range d.Ctors {
		cls.Ctors = append(cls.Ctors, r.resolveCtor(cls, d.Name, &d.Ctors[i]))
	}
}

func (r *resolver) resolveBase(class string, d *BaseDecl) (hier.BaseSpec, bool) {
	t, ok := r.hier.ClassByName(d.Type)
	if !ok {
		r.errorf(diag.DeclBadBase, "class %q: base %q is not a declared class", class, d.Type)
		return hier.BaseSpec{}, false
	}
	access := hier.AccessPublic
	switch d.Access {
	case "", "public":
	case "protected":
		access = hier.AccessProtected
	case "private":
		access = hier.AccessPrivate
	default:
		r.errorf(diag.DeclBadAccess, "class %q: base %q has unknown access %q", class, d.Type, d.Access)
		return hier.BaseSpec{}, false
	}
	return hier.BaseSpec{Type: t, Access: access, Virtual: d.Virtual}, true
}

func (r *resolver) resolveField(class string, d *FieldDecl) (hier.Field, bool) {
	t, ok := r.parseType(d.Type)
	if !ok {
		r.errorf(diag.DeclUnknownType, "class %q: field %q has unknown type %q", class, d.Name, d.Type)
		return hier.Field{}, false
	}
	if d.Bits > 0 {
		ty, _ := r.hier.Lookup(t)
		switch ty.Kind {
		case hier.KindInt, hier.KindUint, hier.KindBool:
			if d.Bits > uint32(ty.Width) {
				r.errorf(diag.DeclBadBitWidth, "class %q: field %q declares %d bits in a %d-bit type", class, d.Name, d.Bits, ty.Width)
				return hier.Field{}, false
			}
		default:
			r.errorf(diag.DeclBadBitWidth, "class %q: field %q: bit-fields need an integer type, got %s", class, d.Name, ty.Kind)
			return hier.Field{}, false
		}
	}
	return hier.Field{Name: d.Name, Type: t, BitWidth: d.Bits, Volatile: d.Volatile}, true
}

func (r *resolver) resolveCtor(c *hier.Class, class string, d *CtorDecl) hier.Ctor {
	kind := hier.CtorOther
	switch d.Kind {
	case "", "default":
		kind = hier.CtorDefault
	case "copy":
		kind = hier.CtorCopy
	case "other":
	default:
		r.errorf(diag.DeclBadInitializer, "class %q: unknown constructor kind %q", class, d.Kind)
	}
	ctor := hier.Ctor{Kind: kind, Variadic: d.Variadic}

	delegating := false
	for i := range d.Inits {
		init, ok := r.resolveInit(c, class, &d.Inits[i])
		if !ok {
			continue
		}
		if init.Kind == hier.InitDelegating {
			delegating = true
		}
		ctor.Inits = append(ctor.Inits, init)
	}
	if delegating && len(ctor.Inits) != 1 {
		r.errorf(diag.DeclDelegatingMix, "class %q: a delegating constructor cannot carry other initializers", class)
		// Keep only the delegation so downstream invariants hold.
		for i := range ctor.Inits {
			if ctor.Inits[i].Kind == hier.InitDelegating {
				ctor.Inits = ctor.Inits[i : i+1]
				break
			}
		}
	}
	return ctor
}

func (r *resolver) resolveInit(c *hier.Class, class string, d *InitDecl) (hier.CtorInit, bool) {
	set := 0
	if d.Base != "" {
		set++
	}
	if d.Member != "" {
		set++
	}
	if d.Delegate != nil {
		set++
	}
	if set != 1 {
		r.errorf(diag.DeclBadInitializer, "class %q: initializer must set exactly one of base/member/delegate", class)
		return hier.CtorInit{}, false
	}

	switch {
	case d.Delegate != nil:
		return hier.CtorInit{Kind: hier.InitDelegating, Target: *d.Delegate}, true

	case d.Base != "":
		t, ok := r.hier.ClassByName(d.Base)
		if !ok {
			r.errorf(diag.DeclBadInitializer, "class %q: initializer names unknown base %q", class, d.Base)
			return hier.CtorInit{}, false
		}
		virtual := false
		found := false
		for i := range c.Bases {
			if c.Bases[i].Type == t {
				virtual = c.Bases[i].Virtual
				found = true
				break
			}
		}
		if !found && !r.hier.IsVirtualBaseOf(t, r.mustID(class)) {
			r.errorf(diag.DeclBadInitializer, "class %q: %q is not a direct or virtual base", class, d.Base)
			return hier.CtorInit{}, false
		}
		if !found {
			virtual = true
		}
		expr, ok := r.parseExpr(class, d.Expr)
		if !ok {
			return hier.CtorInit{}, false
		}
		return hier.CtorInit{Kind: hier.InitBase, Base: t, Virtual: virtual, Expr: expr}, true

	default:
		idx := -1
		for i := range c.Fields {
			if c.Fields[i].Name == d.Member {
				idx = i
				break
			}
		}
		if idx < 0 {
			r.errorf(diag.DeclBadInitializer, "class %q: initializer names unknown member %q", class, d.Member)
			return hier.CtorInit{}, false
		}
		expr, ok := r.parseExpr(class, d.Expr)
		if !ok {
			return hier.CtorInit{}, false
		}
		return hier.CtorInit{Kind: hier.InitMember, Field: idx, Expr: expr}, true
	}
}

func (r *resolver) parseExpr(class, s string) (hier.InitExpr, bool) {
	switch {
	case s == "" || s == "default":
		return hier.InitExpr{Kind: hier.ExprDefault}, true
	case s == "copy":
		return hier.InitExpr{Kind: hier.ExprMemberCopy}, true
	case strings.HasPrefix(s, "param:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "param:"))
		if err != nil || n < 0 {
			r.errorf(diag.DeclBadInitializer, "class %q: bad parameter reference %q", class, s)
			return hier.InitExpr{}, false
		}
		return hier.InitExpr{Kind: hier.ExprParam, Param: n}, true
	default:
		r.errorf(diag.DeclBadInitializer, "class %q: unknown initializer expression %q", class, s)
		return hier.InitExpr{}, false
	}
}

func (r *resolver) resolveFunc(d *FuncDecl) Func {
	fn := Func{Name: d.Name}
	if d.Class != "" {
		t, ok := r.hier.ClassByName(d.Class)
		if !ok {
			r.errorf(diag.DeclUnknownType, "func %q: unknown class %q", d.Name, d.Class)
		} else {
			fn.Class = t
		}
	}
	for _, name := range d.Throws {
		t, ok := r.parseType(name)
		if !ok {
			r.errorf(diag.DeclUnknownType, "func %q: unknown thrown type %q", d.Name, name)
			continue
		}
		fn.Throws = append(fn.Throws, t)
	}
	if d.Rethrows < 0 {
		r.errorf(diag.DeclBadSyntax, "func %q: negative rethrow count %d", d.Name, d.Rethrows)
	} else {
		fn.Rethrows = d.Rethrows
	}
	for ti := range d.Tries {
		handlers := d.Tries[ti].Handlers
		var clauses []hier.CatchClause
		bad := false
		for i, h := range handlers {
			if h == "*" {
				if i != len(handlers)-1 {
					r.errorf(diag.DeclCatchAllOrder, "func %q: catch-all must be the last handler", d.Name)
					bad = true
					break
				}
				clauses = append(clauses, hier.CatchClause{})
				continue
			}
			t, ok := r.parseType(h)
			if !ok {
				r.errorf(diag.DeclUnknownType, "func %q: unknown handler type %q", d.Name, h)
				bad = true
				break
			}
			clauses = append(clauses, hier.CatchClause{Type: t})
		}
		if !bad {
			fn.Tries = append(fn.Tries, clauses)
		}
	}
	for i := range d.Casts {
		from, ok := r.hier.ClassByName(d.Casts[i].From)
		if !ok {
			r.errorf(diag.DeclUnknownType, "func %q: unknown cast source %q", d.Name, d.Casts[i].From)
			continue
		}
		cast := Cast{From: from}
		if d.Casts[i].To == "void" {
			cast.ToVoid = true
		} else {
			to, ok := r.hier.ClassByName(d.Casts[i].To)
			if !ok {
				r.errorf(diag.DeclUnknownType, "func %q: unknown cast target %q", d.Name, d.Casts[i].To)
				continue
			}
			cast.To = to
		}
		fn.Casts = append(fn.Casts, cast)
	}
	for i := range d.NewArrays {
		elem, ok := r.parseType(d.NewArrays[i].Elem)
		if !ok {
			r.errorf(diag.DeclUnknownType, "func %q: unknown array element type %q", d.Name, d.NewArrays[i].Elem)
			continue
		}
		fn.NewArrays = append(fn.NewArrays, NewArray{Elem: elem, Count: d.NewArrays[i].Count})
	}
	return fn
}

func (r *resolver) mustID(name string) hier.TypeID {
	id, _ := r.hier.ClassByName(name)
	return id
}

// parseType resolves the declaration type syntax: builtin scalar names,
// declared class names, "*T" pointers, and "T[N]" arrays.
func (r *resolver) parseType(s string) (hier.TypeID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return hier.NoTypeID, false
	}
	if strings.HasPrefix(s, "*") {
		elem, ok := r.parseType(s[1:])
		if !ok {
			return hier.NoTypeID, false
		}
		return r.hier.Pointer(elem), true
	}
	if i := strings.IndexByte(s, '['); i > 0 && strings.HasSuffix(s, "]") {
		n, err := strconv.ParseUint(s[i+1:len(s)-1], 10, 32)
		if err != nil {
			return hier.NoTypeID, false
		}
		elem, ok := r.parseType(s[:i])
		if !ok {
			return hier.NoTypeID, false
		}
		return r.hier.Array(elem, uint32(n)), true
	}

	b := r.hier.Builtins()
	switch s {
	case "void":
		return b.Void, true
	case "bool":
		return b.Bool, true
	case "i32":
		return b.Int32, true
	case "i64":
		return b.Int64, true
	case "u32":
		return b.UInt32, true
	case "u64":
		return b.UInt64, true
	case "f32":
		return b.Float32, true
	case "f64":
		return b.Float64, true
	}
	return r.hier.ClassByName(s)
}
