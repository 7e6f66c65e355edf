// Package emit is the boundary between the lowering engine and whatever
// materializes code: an ordered sequence of abstract operations plus
// global definitions. The engine only ever appends; interpretation belongs
// to the consumer.
package emit

// Value names an SSA-ish result inside one Func. NoValue marks ops that
// produce nothing.
type Value uint32

const NoValue Value = 0

// Label names a branch target inside one Func.
type Label uint32

// OpKind enumerates abstract operation kinds.
type OpKind uint8

const (
	// OpConst materializes an integer constant.
	OpConst OpKind = iota
	// OpParam materializes an incoming parameter by position. Index 0 is
	// the receiver for member functions.
	OpParam
	// OpLoad reads a word through a pointer.
	OpLoad
	// OpStore writes a word through a pointer.
	OpStore
	// OpBitcast reinterprets a pointer (byte pointer casts around strides).
	OpBitcast
	// OpPtrStride advances a byte pointer by a dynamic byte count.
	OpPtrStride
	// OpGlobalAddr takes the address of a global definition.
	OpGlobalAddr
	// OpVTableAddr takes the address point of a dispatch table.
	OpVTableAddr
	// OpCall calls a symbol directly.
	OpCall
	// OpCallIndirect calls through a function pointer value.
	OpCallIndirect
	// OpMemCopy copies a byte range (bulk field copy).
	OpMemCopy
	// OpTrap reaches an ABI-mandated runtime fault entry. Always emitted,
	// never folded away.
	OpTrap
	// OpLabel marks a branch target.
	OpLabel
	// OpBranch jumps unconditionally.
	OpBranch
	// OpCondBranch branches on a boolean value.
	OpCondBranch
	// OpTypeTest matches an in-flight exception against a type descriptor.
	OpTypeTest
	// OpTryBegin opens a try region.
	OpTryBegin
	// OpTryEnd closes a try region.
	OpTryEnd
	// OpCatchBegin opens one handler region (empty TypeSym = catch-all).
	OpCatchBegin
	// OpCatchEnd closes a handler region.
	OpCatchEnd
	// OpResume resumes unwinding into the caller.
	OpResume
	// OpReturn leaves the function.
	OpReturn
)

func (k OpKind) String() string {
	switch k {
	case OpConst:
		return "const"
	case OpParam:
		return "param"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpBitcast:
		return "bitcast"
	case OpPtrStride:
		return "ptr_stride"
	case OpGlobalAddr:
		return "global_addr"
	case OpVTableAddr:
		return "vtable_addr"
	case OpCall:
		return "call"
	case OpCallIndirect:
		return "call_indirect"
	case OpMemCopy:
		return "memcopy"
	case OpTrap:
		return "trap"
	case OpLabel:
		return "label"
	case OpBranch:
		return "br"
	case OpCondBranch:
		return "br_cond"
	case OpTypeTest:
		return "type_test"
	case OpTryBegin:
		return "try_begin"
	case OpTryEnd:
		return "try_end"
	case OpCatchBegin:
		return "catch_begin"
	case OpCatchEnd:
		return "catch_end"
	case OpResume:
		return "resume"
	case OpReturn:
		return "ret"
	default:
		return "op?"
	}
}

// Op is one abstract operation. Kind selects which payload fields carry
// meaning; unused fields stay zero.
type Op struct {
	Kind OpKind

	Dst  Value
	Args []Value

	Imm    int64  // OpConst, OpMemCopy (bytes)
	Chunk  int64  // OpMemCopy preferred copy width
	Sym    string // OpCall, OpTrap, OpGlobalAddr, OpVTableAddr, OpTypeTest, OpCatchBegin
	Index  int    // OpVTableAddr address-point index, OpParam position
	Target Label  // OpBranch, OpLabel
	Else   Label  // OpCondBranch fallthrough target
}
