package emit

// Func is one emitted function body: a linear op sequence with labels.
type Func struct {
	Name string
	Ops  []Op

	nextValue Value
	nextLabel Label
}

// NewFunc starts an empty function body.
func NewFunc(name string) *Func {
	return &Func{Name: name}
}

func (f *Func) push(op Op) Value {
	f.Ops = append(f.Ops, op)
	return op.Dst
}

func (f *Func) newValue() Value {
	f.nextValue++
	return f.nextValue
}

// NewLabel reserves a fresh branch target.
func (f *Func) NewLabel() Label {
	f.nextLabel++
	return f.nextLabel
}

// Param materializes the incoming parameter at position idx.
func (f *Func) Param(idx int) Value {
	return f.push(Op{Kind: OpParam, Dst: f.newValue(), Index: idx})
}

// Const materializes an integer constant.
func (f *Func) Const(v int64) Value {
	return f.push(Op{Kind: OpConst, Dst: f.newValue(), Imm: v})
}

// Load reads a word through addr.
func (f *Func) Load(addr Value) Value {
	return f.push(Op{Kind: OpLoad, Dst: f.newValue(), Args: []Value{addr}})
}

// Store writes src through addr.
func (f *Func) Store(addr, src Value) {
	f.push(Op{Kind: OpStore, Args: []Value{addr, src}})
}

// Bitcast reinterprets a pointer value.
func (f *Func) Bitcast(src Value) Value {
	return f.push(Op{Kind: OpBitcast, Dst: f.newValue(), Args: []Value{src}})
}

// PtrStride advances a byte pointer by a dynamic byte count. Callers must
// bitcast to a byte pointer first; strides are in bytes, not elements.
func (f *Func) PtrStride(base, bytes Value) Value {
	return f.push(Op{Kind: OpPtrStride, Dst: f.newValue(), Args: []Value{base, bytes}})
}

// GlobalAddr takes the address of a named global.
func (f *Func) GlobalAddr(sym string) Value {
	return f.push(Op{Kind: OpGlobalAddr, Dst: f.newValue(), Sym: sym})
}

// VTableAddr takes the address point of a dispatch table.
func (f *Func) VTableAddr(sym string, addressPoint int) Value {
	return f.push(Op{Kind: OpVTableAddr, Dst: f.newValue(), Sym: sym, Index: addressPoint})
}

// Call emits a direct call.
func (f *Func) Call(sym string, args ...Value) Value {
	return f.push(Op{Kind: OpCall, Dst: f.newValue(), Sym: sym, Args: args})
}

// CallIndirect calls through a function pointer.
func (f *Func) CallIndirect(fn Value, args ...Value) Value {
	all := append([]Value{fn}, args...)
	return f.push(Op{Kind: OpCallIndirect, Dst: f.newValue(), Args: all})
}

// MemCopy copies bytes from src to dst with a preferred chunk width.
func (f *Func) MemCopy(dst, src Value, bytes, chunk int64) {
	f.push(Op{Kind: OpMemCopy, Args: []Value{dst, src}, Imm: bytes, Chunk: chunk})
}

// Trap reaches a runtime fault entry point.
func (f *Func) Trap(sym string) {
	f.push(Op{Kind: OpTrap, Sym: sym})
}

// Label places a branch target.
func (f *Func) Label(l Label) {
	f.push(Op{Kind: OpLabel, Target: l})
}

// Branch jumps unconditionally.
func (f *Func) Branch(l Label) {
	f.push(Op{Kind: OpBranch, Target: l})
}

// CondBranch branches on cond: then-target when true, else-target when not.
func (f *Func) CondBranch(cond Value, then, els Label) {
	f.push(Op{Kind: OpCondBranch, Args: []Value{cond}, Target: then, Else: els})
}

// TypeTest matches the in-flight exception against a type descriptor.
func (f *Func) TypeTest(exc Value, typeSym string) Value {
	return f.push(Op{Kind: OpTypeTest, Dst: f.newValue(), Sym: typeSym, Args: []Value{exc}})
}

// TryBegin opens a try region.
func (f *Func) TryBegin() {
	f.push(Op{Kind: OpTryBegin})
}

// TryEnd closes a try region.
func (f *Func) TryEnd() {
	f.push(Op{Kind: OpTryEnd})
}

// CatchBegin opens one handler region; empty typeSym is a catch-all.
func (f *Func) CatchBegin(typeSym string) {
	f.push(Op{Kind: OpCatchBegin, Sym: typeSym})
}

// CatchEnd closes a handler region.
func (f *Func) CatchEnd() {
	f.push(Op{Kind: OpCatchEnd})
}

// Resume resumes unwinding into the caller.
func (f *Func) Resume() {
	f.push(Op{Kind: OpResume})
}

// Return leaves the function.
func (f *Func) Return() {
	f.push(Op{Kind: OpReturn})
}
