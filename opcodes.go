package mqjs

// OpCode is the one-byte instruction tag. Operand bytes, if any,
// immediately follow in the bytecode stream. Changing the order of
// these constants breaks the bytecode container's ABI.
type OpCode byte

const (
	OpHalt OpCode = iota

	// Stack literals
	OpPushUndefined
	OpPushNull
	OpPushTrue
	OpPushFalse
	OpPushIntSmall0
	OpPushIntSmall1
	OpPushIntSmall2
	OpPushIntSmall3
	OpPushIntSmall4
	OpPushIntSmall5
	OpPushIntSmall6
	OpPushIntSmall7
	OpPushInt8
	OpPushInt16
	OpPushConst

	// Stack shape
	OpPop
	OpDup
	OpSwap

	// Locals / captures / globals
	OpGetLocal
	OpSetLocal
	OpGetCapture
	OpSetCapture
	OpGetGlobal
	OpSetGlobal

	// Arithmetic / bitwise / logical
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpSar
	OpShr

	// Comparison
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpStrictEq
	OpStrictNe

	// Control
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	// Calls
	OpCall
	OpCallMethod
	OpCallConstructor
	OpReturn

	// Objects / arrays / fields
	OpMakeArray
	OpMakeObject
	OpGetElem
	OpSetElem
	OpGetField
	OpGetFieldKeepBase
	OpSetField
	OpDeleteField
	OpIn
	OpInstanceOf

	// Closures
	OpMakeClosure

	// Exceptions
	OpPushHandler
	OpPopHandler
	OpThrow

	// Iteration
	OpForInStart
	OpForOfStart
	OpIterNext

	// Reflection
	OpTypeOf
)

var opNames = map[OpCode]string{
	OpHalt:             "halt",
	OpPushUndefined:    "push_undefined",
	OpPushNull:         "push_null",
	OpPushTrue:         "push_true",
	OpPushFalse:        "push_false",
	OpPushIntSmall0:    "push_int0",
	OpPushIntSmall1:    "push_int1",
	OpPushIntSmall2:    "push_int2",
	OpPushIntSmall3:    "push_int3",
	OpPushIntSmall4:    "push_int4",
	OpPushIntSmall5:    "push_int5",
	OpPushIntSmall6:    "push_int6",
	OpPushIntSmall7:    "push_int7",
	OpPushInt8:         "push_int8",
	OpPushInt16:        "push_int16",
	OpPushConst:        "push_const",
	OpPop:               "pop",
	OpDup:               "dup",
	OpSwap:              "swap",
	OpGetLocal:          "get_local",
	OpSetLocal:          "set_local",
	OpGetCapture:        "get_capture",
	OpSetCapture:        "set_capture",
	OpGetGlobal:         "get_global",
	OpSetGlobal:         "set_global",
	OpAdd:               "add",
	OpSub:               "sub",
	OpMul:               "mul",
	OpDiv:               "div",
	OpMod:               "mod",
	OpPow:               "pow",
	OpNeg:               "neg",
	OpNot:               "not",
	OpBitAnd:            "bit_and",
	OpBitOr:             "bit_or",
	OpBitXor:            "bit_xor",
	OpBitNot:            "bit_not",
	OpShl:               "shl",
	OpSar:               "sar",
	OpShr:               "shr",
	OpLt:                "lt",
	OpLe:                "le",
	OpGt:                "gt",
	OpGe:                "ge",
	OpEq:                "eq",
	OpNe:                "ne",
	OpStrictEq:          "strict_eq",
	OpStrictNe:          "strict_ne",
	OpJump:              "jump",
	OpJumpIfFalse:       "jump_if_false",
	OpJumpIfTrue:        "jump_if_true",
	OpCall:              "call",
	OpCallMethod:        "call_method",
	OpCallConstructor:   "call_constructor",
	OpReturn:            "return",
	OpMakeArray:         "make_array",
	OpMakeObject:        "make_object",
	OpGetElem:           "get_elem",
	OpSetElem:           "set_elem",
	OpGetField:          "get_field",
	OpGetFieldKeepBase:  "get_field_keep_base",
	OpSetField:          "set_field",
	OpDeleteField:       "delete_field",
	OpIn:                "in",
	OpInstanceOf:        "instanceof",
	OpMakeClosure:       "make_closure",
	OpPushHandler:       "push_handler",
	OpPopHandler:        "pop_handler",
	OpThrow:             "throw",
	OpForInStart:        "for_in_start",
	OpForOfStart:        "for_of_start",
	OpIterNext:          "iter_next",
	OpTypeOf:            "typeof",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "unknown"
}

// operandBytes returns how many operand bytes follow the opcode byte
// in the instruction stream (0, 1, or 2). MakeClosure is variable-
// length and handled specially by the disassembler and the VM.
func operandBytes(op OpCode) int {
	switch op {
	case OpPushInt8:
		return 1
	case OpPushInt16, OpPushConst, OpGetLocal, OpSetLocal, OpGetCapture,
		OpSetCapture, OpGetGlobal, OpSetGlobal, OpJump, OpJumpIfFalse,
		OpJumpIfTrue, OpCall, OpCallMethod, OpCallConstructor,
		OpMakeArray, OpMakeObject, OpGetField, OpGetFieldKeepBase,
		OpSetField, OpDeleteField, OpPushHandler, OpIterNext:
		return 2
	default:
		return 0
	}
}
