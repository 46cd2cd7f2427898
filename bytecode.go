package mqjs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Bytecode container: 4 magic bytes, 1 version byte, then the
// program's function table. String constants are serialized by value
// so the container is self-contained — loading re-interns them into
// the target engine's string table, since string-table indices are
// only meaningful inside the engine that assigned them.
const (
	bytecodeMagic   = "MQJS"
	bytecodeVersion = 1

	// BytecodeExt is the file suffix the CLI uses to recognize
	// pre-compiled input.
	BytecodeExt = ".mqbc"
)

const (
	bcConstInt = iota
	bcConstFloat
	bcConstString
	bcConstRegexp
)

// SerializeProgram encodes a compiled program into the container
// format.
func (e *Engine) SerializeProgram(p *Program) []byte {
	var buf bytes.Buffer
	buf.WriteString(bytecodeMagic)
	buf.WriteByte(bytecodeVersion)
	writeU16(&buf, len(p.Functions))
	writeU16(&buf, p.Entry)
	for _, fn := range p.Functions {
		e.serializeFunction(&buf, fn)
	}
	return buf.Bytes()
}

func (e *Engine) serializeFunction(buf *bytes.Buffer, fn *CompiledFunction) {
	var flags byte
	if fn.IsScript {
		flags |= 1
	}
	buf.WriteByte(flags)
	writeU16(buf, fn.NumParams)
	writeU16(buf, fn.NumLocals)
	writeU16(buf, len(fn.Name))
	buf.WriteString(fn.Name)
	writeU16(buf, len(fn.Consts))
	for _, c := range fn.Consts {
		switch c.Kind() {
		case KindInt31:
			buf.WriteByte(bcConstInt)
			writeU64(buf, uint64(c.Int()))
		case KindFloat:
			buf.WriteByte(bcConstFloat)
			writeU64(buf, math.Float64bits(c.Float()))
		case KindString:
			buf.WriteByte(bcConstString)
			s := e.heap.String(c.Index())
			writeU32(buf, len(s))
			buf.WriteString(s)
		case KindRegexp:
			buf.WriteByte(bcConstRegexp)
			r := e.heap.Regexp(c.Index())
			writeU32(buf, len(r.source))
			buf.WriteString(r.source)
			writeU16(buf, len(r.flags))
			buf.WriteString(r.flags)
		}
	}
	writeU32(buf, len(fn.Code))
	buf.Write(fn.Code)
}

// DeserializeProgram decodes a container produced by
// SerializeProgram, rejecting unknown magic or versions.
func (e *Engine) DeserializeProgram(data []byte) (*Program, error) {
	r := &bcReader{data: data}
	if string(r.bytes(4)) != bytecodeMagic {
		return nil, fmt.Errorf("not a bytecode file: bad magic")
	}
	if v := r.u8(); v != bytecodeVersion {
		return nil, fmt.Errorf("unsupported bytecode version %d", v)
	}
	count := r.u16()
	entry := r.u16()
	p := &Program{Entry: entry}
	for i := 0; i < count && r.err == nil; i++ {
		p.Functions = append(p.Functions, e.deserializeFunction(r))
	}
	if r.err != nil {
		return nil, r.err
	}
	if entry >= len(p.Functions) {
		return nil, fmt.Errorf("bytecode entry index out of range")
	}
	return p, nil
}

func (e *Engine) deserializeFunction(r *bcReader) *CompiledFunction {
	fn := &CompiledFunction{}
	flags := r.u8()
	fn.IsScript = flags&1 != 0
	fn.NumParams = r.u16()
	fn.NumLocals = r.u16()
	fn.Name = string(r.bytes(r.u16()))
	nconsts := r.u16()
	for i := 0; i < nconsts && r.err == nil; i++ {
		switch r.u8() {
		case bcConstInt:
			fn.Consts = append(fn.Consts, Int(int64(r.u64())))
		case bcConstFloat:
			fn.Consts = append(fn.Consts, Float(math.Float64frombits(r.u64())))
		case bcConstString:
			s := string(r.bytes(r.u32()))
			fn.Consts = append(fn.Consts, StringVal(e.heap.InternString(s)))
		case bcConstRegexp:
			source := string(r.bytes(r.u32()))
			flags := string(r.bytes(r.u16()))
			fn.Consts = append(fn.Consts, RegexpVal(e.heap.NewRegexp(source, flags)))
		default:
			r.err = fmt.Errorf("bad constant tag")
		}
	}
	fn.Code = append([]byte(nil), r.bytes(r.u32())...)
	return fn
}

// CompileToBytes and LoadBytes are the host-facing pair for ahead-
// of-time compilation.
func (e *Engine) CompileToBytes(src []byte) ([]byte, error) {
	p, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	return e.SerializeProgram(p), nil
}

func (e *Engine) LoadBytes(data []byte) (*Program, error) {
	return e.DeserializeProgram(data)
}

func writeU16(buf *bytes.Buffer, v int) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// bcReader reads the container with sticky error handling: the first
// truncation poisons every later read instead of panicking.
type bcReader struct {
	data []byte
	off  int
	err  error
}

func (r *bcReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.off+n > len(r.data) {
		if r.err == nil {
			r.err = fmt.Errorf("truncated bytecode")
		}
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *bcReader) u8() int {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return int(b[0])
}

func (r *bcReader) u16() int {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint16(b))
}

func (r *bcReader) u32() int {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint32(b))
}

func (r *bcReader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
