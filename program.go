package mqjs

import "encoding/binary"

// CompiledFunction is the unit the compiler emits: one
// flat byte buffer of instructions plus the constant pool and shape
// metadata the VM needs to build a call frame. Nested function
// literals compile to their own CompiledFunction, referenced by its
// function-table index in the enclosing one's MakeClosure operand.
type CompiledFunction struct {
	Name      string
	NumParams int
	NumLocals int
	Code      []byte
	Consts    []Value
	// IsScript marks the top-level script function, whose local
	// window has no implicit `this`/parameter/`arguments` slots.
	IsScript bool
	// funcBase is the index of this function's program within the
	// engine-wide function table; MakeClosure operands are
	// program-relative and are offset by it at runtime. Assigned when
	// the program is installed into a VM, never serialized.
	funcBase int
	// CaptureNames records, in capture-slot order, the name each
	// OpGetCapture/OpSetCapture slot resolves to. Only used by the
	// disassembler and by compile-time capture resolution, never at
	// runtime.
	CaptureNames []string
}

// Program is the result of a successful Compile: the function
// table plus the index of the top-level script function.
type Program struct {
	Functions []*CompiledFunction
	Entry     int

	// installedIn/entryIdx memoize installation into a VM's function
	// table, so running the same Program twice doesn't append its
	// functions twice.
	installedIn interface{}
	entryIdx    int
}

func newCompiledFunction(name string, numParams int) *CompiledFunction {
	return &CompiledFunction{Name: name, NumParams: numParams}
}

// emitByte appends a single opcode or raw operand byte and returns its
// offset.
func (f *CompiledFunction) emitByte(b byte) int {
	f.Code = append(f.Code, b)
	return len(f.Code) - 1
}

func (f *CompiledFunction) emitOp(op OpCode) int {
	return f.emitByte(byte(op))
}

// emitOpU16 emits an opcode followed by a big-endian uint16 operand,
// returning the offset of the operand's first byte (for later
// patching, e.g. jump targets).
func (f *CompiledFunction) emitOpU16(op OpCode, operand uint16) int {
	f.emitOp(op)
	at := len(f.Code)
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], operand)
	f.Code = append(f.Code, buf[0], buf[1])
	return at
}

func (f *CompiledFunction) emitOpU8(op OpCode, operand byte) int {
	f.emitOp(op)
	return f.emitByte(operand)
}

// patchU16 overwrites the two operand bytes at offset `at` (as
// returned by emitOpU16) with a new value. Used to backpatch forward
// jumps once the real target address is known.
func (f *CompiledFunction) patchU16(at int, value uint16) {
	binary.BigEndian.PutUint16(f.Code[at:at+2], value)
}

// here returns the address the next emitted byte will occupy.
func (f *CompiledFunction) here() int { return len(f.Code) }

// addConst interns a constant value into the pool, returning its
// index. Simple equality dedup on Value is enough since constants are
// immutable scalars/string indices.
func (f *CompiledFunction) addConst(v Value) int {
	for i, c := range f.Consts {
		if c.Kind() == v.Kind() && c.StrictEquals(v) {
			return i
		}
	}
	f.Consts = append(f.Consts, v)
	return len(f.Consts) - 1
}
