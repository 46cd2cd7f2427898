package mqjs

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// NativeFunc is the host-provided callable contract. The
// engine handle lets natives allocate, convert values, and reenter
// the VM (Engine.Call) for higher-order built-ins; a returned error
// of type *ThrownValue propagates as a script-visible exception,
// anything else aborts evaluation as a host error.
type NativeFunc func(e *Engine, this Value, args []Value) (Value, error)

type nativeEntry struct {
	name string
	fn   NativeFunc
}

// jsThrow is the internal signal a throwing opcode returns to the
// dispatch loop. It never escapes the VM: the loop either unwinds to
// an installed handler or converts it into a *ThrownValue
// for the embedding API.
type jsThrow struct{ v Value }

func (jsThrow) Error() string { return "js throw" }

// VM is the stack-based interpreter: one operand stack, a
// heap-allocated call-frame stack, and a handler stack, all plain Go
// slices owned by the engine. JS calls push frames here instead of
// recursing in Go, so recursion depth is bounded by heap memory.
type VM struct {
	engine *Engine
	heap   *Heap
	config *Config

	functions []*CompiledFunction
	natives   []nativeEntry

	globals  map[string]Value
	stack    []Value
	frames   []callFrame
	handlers []handlerEntry

	// pinned holds values native code must keep alive and index-stable
	// across collections (e.g. the target of Function.prototype.bind).
	// Entries are roots and are rewritten by the compactor like any
	// other root; they are never released.
	pinned []Value

	gcThreshold     int64
	gcThresholdBase int64
	pendingGC       bool
	nativeDepth     int

	checkInterrupt bool
	interrupt      func() bool
}

func newVM(e *Engine, heap *Heap, config *Config) *VM {
	base := int64(config.GCThresholdBytes)
	return &VM{
		engine:          e,
		heap:            heap,
		config:          config,
		globals:         map[string]Value{},
		gcThreshold:     base,
		gcThresholdBase: base,
		checkInterrupt:  config.InterruptChecks,
	}
}

// installProgram appends a compiled program's functions to the
// engine-wide table, stamping each with the base offset MakeClosure
// needs to translate its program-relative operand. Returns
// the absolute index of the program's entry function.
func (vm *VM) installProgram(p *Program) int {
	if p.installedIn == vm {
		return p.entryIdx
	}
	base := len(vm.functions)
	for _, fn := range p.Functions {
		fn.funcBase = base
	}
	vm.functions = append(vm.functions, p.Functions...)
	p.installedIn = vm
	p.entryIdx = base + p.Entry
	return p.entryIdx
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) top() Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) internStr(s string) Value {
	return StringVal(vm.heap.InternString(s))
}

// throwNew allocates an error object of the given taxonomy kind
// and returns it as a throw signal.
func (vm *VM) throwNew(kind errorKind, format string, args ...interface{}) error {
	idx := vm.heap.NewError(string(kind), fmt.Sprintf(format, args...))
	return jsThrow{ErrorObjectVal(idx)}
}

// capturesOf returns the capture vector the current frame reads and
// writes through its closure, or nil for a bare bytecode function.
func (vm *VM) capturesOf(f *callFrame) []Value {
	if f.closure.IsClosure() {
		return vm.heap.Closure(f.closure.Index()).captures
	}
	return nil
}

func (vm *VM) constString(f *callFrame, idx int) string {
	return vm.heap.String(f.fn.Consts[idx].Index())
}

// unwind searches the handler stack for a handler installed at or
// above floor frames and, when found, restores the recorded frame and
// stack depths, pushes the thrown value, and redirects the surviving
// frame to the catch PC. Returns false when the throw must
// leave this run invocation (either uncaught, or destined for a
// handler beneath a reentrant native call on the Go stack).
func (vm *VM) unwind(v Value, floor int) bool {
	n := len(vm.handlers)
	if n == 0 {
		return false
	}
	h := vm.handlers[n-1]
	if h.frameDepth < floor {
		return false
	}
	vm.handlers = vm.handlers[:n-1]
	vm.frames = vm.frames[:h.frameDepth]
	vm.stack = vm.stack[:h.stackDepth]
	vm.push(v)
	vm.frames[len(vm.frames)-1].pc = h.catchPC
	return true
}

// uncaught converts a thrown value that escaped every handler into
// the structured error the embedding API reports.
func (vm *VM) uncaught(v Value) *ThrownValue {
	name, message := "Error", toJSString(vm.heap, v)
	if v.IsErrorObject() {
		e := vm.heap.Error(v.Index())
		name, message = e.name, e.message
	}
	return &ThrownValue{Value: v, Name: name, Message: message}
}

func isObjectLike(v Value) bool {
	switch v.Kind() {
	case KindObject, KindArray, KindErrorObject, KindRegexp:
		return true
	}
	return false
}

// pushFrame rearranges the operand stack into the callee's local
// window and appends the call frame. calleePos is the stack index of
// the callee value; everything from there up is consumed.
func (vm *VM) pushFrame(fn *CompiledFunction, closure, this Value, calleePos int, args []Value, isCtor bool) {
	argv := append([]Value(nil), args...)
	vm.stack = vm.stack[:calleePos]
	base := len(vm.stack)
	if fn.IsScript {
		for i := 0; i < fn.NumLocals; i++ {
			vm.push(Undefined())
		}
	} else {
		vm.push(this)
		for i := 0; i < fn.NumParams; i++ {
			if i < len(argv) {
				vm.push(argv[i])
			} else {
				vm.push(Undefined())
			}
		}
		vm.push(ArrayVal(vm.heap.NewArray(argv)))
		for i := fn.NumParams + 2; i < fn.NumLocals; i++ {
			vm.push(Undefined())
		}
	}
	vm.frames = append(vm.frames, callFrame{
		fn:            fn,
		basePtr:       base,
		closure:       closure,
		this:          this,
		isConstructor: isCtor,
		handlerBase:   len(vm.handlers),
	})
}

// callNative invokes a host function in place, replacing the call's
// stack region with the result. Collections are deferred for the
// duration (see maybeCollect), so Value copies in the native's Go
// locals stay valid.
func (vm *VM) callNative(idx int, this Value, calleePos int, args []Value, isCtor bool) error {
	vm.nativeDepth++
	res, err := vm.natives[idx].fn(vm.engine, this, args)
	vm.nativeDepth--
	if err != nil {
		if tv, ok := err.(*ThrownValue); ok {
			return jsThrow{tv.Value}
		}
		if jt, ok := err.(jsThrow); ok {
			return jt
		}
		return err
	}
	vm.stack = vm.stack[:calleePos]
	if isCtor && !isObjectLike(res) {
		res = this
	}
	vm.push(res)
	return nil
}

// beginCall dispatches on the callee kind: closures
// and bytecode functions get a frame, natives run in place, builtin
// tags act as the conversion/constructor callables they name, and
// anything else is a TypeError.
func (vm *VM) beginCall(callee, this Value, calleePos int, args []Value, isCtor bool) error {
	switch callee.Kind() {
	case KindClosure:
		cl := vm.heap.Closure(callee.Index())
		vm.pushFrame(vm.functions[cl.funcIndex], callee, this, calleePos, args, isCtor)
		return nil
	case KindBytecodeFunction:
		vm.pushFrame(vm.functions[callee.Index()], Undefined(), this, calleePos, args, isCtor)
		return nil
	case KindNativeFunction:
		return vm.callNative(callee.Index(), this, calleePos, args, isCtor)
	case KindBuiltin:
		res, err := vm.callBuiltin(callee.BuiltinTag(), args, isCtor)
		if err != nil {
			return err
		}
		vm.stack = vm.stack[:calleePos]
		vm.push(res)
		return nil
	default:
		return vm.throwNew(errType, "%s is not a function", toJSString(vm.heap, callee))
	}
}

// callBuiltin implements the small set of builtin tags that are
// directly callable: the Error family (with or without `new`), the
// Array/Object constructors, the String/Number/Boolean conversions,
// and Date.
func (vm *VM) callBuiltin(tag BuiltinTag, args []Value, isCtor bool) (Value, error) {
	arg := func(i int) Value {
		if i < len(args) {
			return args[i]
		}
		return Undefined()
	}
	if name, ok := errorConstructorTags[tag]; ok {
		msg := ""
		if len(args) > 0 {
			msg = toJSString(vm.heap, arg(0))
		}
		return ErrorObjectVal(vm.heap.NewError(name, msg)), nil
	}
	switch tag {
	case BuiltinArray:
		if len(args) == 1 && args[0].IsNumber() {
			n := int(toNumber(vm.heap, args[0]))
			if n < 0 {
				return Undefined(), vm.throwNew(errRange, "invalid array length")
			}
			return ArrayVal(vm.heap.NewArray(make([]Value, n))), nil
		}
		return ArrayVal(vm.heap.NewArray(append([]Value(nil), args...))), nil
	case BuiltinObject:
		return ObjectVal(vm.heap.NewObject()), nil
	case BuiltinString:
		if len(args) == 0 {
			return vm.internStr(""), nil
		}
		return vm.internStr(toJSString(vm.heap, args[0])), nil
	case BuiltinNumber:
		if len(args) == 0 {
			return Int(0), nil
		}
		return numVal(toNumber(vm.heap, args[0])), nil
	case BuiltinBoolean:
		return Bool(toBoolean(vm.heap, arg(0))), nil
	case BuiltinDate:
		if !isCtor {
			return Undefined(), vm.throwNew(errType, "Date called without new is not supported")
		}
		return vm.engine.newDateObject(), nil
	default:
		return Undefined(), vm.throwNew(errType, "%s is not a function", tag)
	}
}

// numVal normalizes a float result back into the int31 fast path when
// it is integral and fits, so arithmetic stays on small integers
// whenever it can.
func numVal(f float64) Value {
	if i := int64(f); float64(i) == f && i >= MinInt31 && i <= MaxInt31 {
		// Preserve the -0.0 float rather than collapsing it to int 0.
		if !(f == 0 && math.Signbit(f)) {
			return Int(i)
		}
	}
	return Float(f)
}

func (vm *VM) add(a, b Value) Value {
	if a.IsInt() && b.IsInt() {
		return Int(a.Int() + b.Int())
	}
	if a.IsString() || b.IsString() || a.IsArray() || b.IsArray() ||
		a.IsObject() || b.IsObject() || a.IsErrorObject() || b.IsErrorObject() {
		return vm.internStr(toJSString(vm.heap, a) + toJSString(vm.heap, b))
	}
	return numVal(toNumber(vm.heap, a) + toNumber(vm.heap, b))
}

func (vm *VM) arith(op OpCode, a, b Value) Value {
	h := vm.heap
	if a.IsInt() && b.IsInt() {
		x, y := a.Int(), b.Int()
		switch op {
		case OpSub:
			return Int(x - y)
		case OpMul:
			return Int(x * y)
		case OpDiv:
			if y != 0 && x%y == 0 {
				return Int(x / y)
			}
		case OpMod:
			if y != 0 {
				return Int(x % y)
			}
		}
	}
	x, y := toNumber(h, a), toNumber(h, b)
	switch op {
	case OpSub:
		return numVal(x - y)
	case OpMul:
		return numVal(x * y)
	case OpDiv:
		return numVal(x / y)
	case OpMod:
		return numVal(math.Mod(x, y))
	case OpPow:
		return numVal(math.Pow(x, y))
	}
	return Undefined()
}

// compare returns the ordering of a and b for the relational
// operators: strings compare lexicographically, everything else
// numerically; ok is false when either side is NaN.
func (vm *VM) compare(a, b Value) (int, bool) {
	if a.IsString() && b.IsString() {
		return strings.Compare(vm.heap.String(a.Index()), vm.heap.String(b.Index())), true
	}
	x, y := toNumber(vm.heap, a), toNumber(vm.heap, b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	default:
		return 0, true
	}
}

func (vm *VM) readU8(f *callFrame) int {
	v := int(f.fn.Code[f.pc])
	f.pc++
	return v
}

func (vm *VM) readU16(f *callFrame) int {
	v := int(binary.BigEndian.Uint16(f.fn.Code[f.pc:]))
	f.pc += 2
	return v
}

// safepoint runs between opcode dispatches: collection when the
// threshold trips, budget enforcement, and the
// optional interrupt hook.
func (vm *VM) safepoint() error {
	if vm.nativeDepth == 0 && (vm.pendingGC || vm.heap.bytesUsed >= vm.gcThreshold) {
		vm.maybeCollect()
		if vm.heap.OverBudget() {
			return vm.throwNew(errGeneric, "out of memory")
		}
	}
	if vm.checkInterrupt && vm.interrupt != nil && vm.interrupt() {
		return InterruptError{}
	}
	return nil
}

// run is the dispatch loop: it executes until the frame
// count drops below floor (the matching Return), an uncaught throw,
// or a host error. Reentrant invocations from native functions call
// it with their own floor so an inner throw stops at the native
// boundary instead of silently unwinding through Go frames.
func (vm *VM) run(floor int) (Value, error) {
	for {
		if err := vm.safepoint(); err != nil {
			if jt, ok := err.(jsThrow); ok {
				if vm.unwind(jt.v, floor) {
					continue
				}
				return Undefined(), vm.uncaught(jt.v)
			}
			return Undefined(), err
		}

		frame := &vm.frames[len(vm.frames)-1]
		op := OpCode(frame.fn.Code[frame.pc])
		frame.pc++

		var err error
		switch op {
		case OpHalt:
			return Undefined(), nil

		case OpPushUndefined:
			vm.push(Undefined())
		case OpPushNull:
			vm.push(Null())
		case OpPushTrue:
			vm.push(True())
		case OpPushFalse:
			vm.push(False())
		case OpPushIntSmall0, OpPushIntSmall1, OpPushIntSmall2, OpPushIntSmall3,
			OpPushIntSmall4, OpPushIntSmall5, OpPushIntSmall6, OpPushIntSmall7:
			vm.push(Int(int64(op - OpPushIntSmall0)))
		case OpPushInt8:
			vm.push(Int(int64(int8(vm.readU8(frame)))))
		case OpPushInt16:
			vm.push(Int(int64(int16(vm.readU16(frame)))))
		case OpPushConst:
			vm.push(frame.fn.Consts[vm.readU16(frame)])

		case OpPop:
			vm.pop()
		case OpDup:
			vm.push(vm.top())
		case OpSwap:
			n := len(vm.stack)
			vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]

		case OpGetLocal:
			vm.push(vm.stack[frame.basePtr+vm.readU16(frame)])
		case OpSetLocal:
			vm.stack[frame.basePtr+vm.readU16(frame)] = vm.top()
		case OpGetCapture:
			k := vm.readU16(frame)
			caps := vm.capturesOf(frame)
			if k >= len(caps) {
				err = vm.throwNew(errType, "invalid capture slot")
				break
			}
			vm.push(caps[k])
		case OpSetCapture:
			k := vm.readU16(frame)
			caps := vm.capturesOf(frame)
			if k >= len(caps) {
				err = vm.throwNew(errType, "invalid capture slot")
				break
			}
			caps[k] = vm.top()
		case OpGetGlobal:
			name := vm.constString(frame, vm.readU16(frame))
			v, ok := vm.globals[name]
			if !ok {
				err = vm.throwNew(errReference, "%s is not defined", name)
				break
			}
			vm.push(v)
		case OpSetGlobal:
			name := vm.constString(frame, vm.readU16(frame))
			vm.globals[name] = vm.top()

		case OpAdd:
			b, a := vm.pop(), vm.pop()
			vm.push(vm.add(a, b))
		case OpSub, OpMul, OpDiv, OpMod, OpPow:
			b, a := vm.pop(), vm.pop()
			vm.push(vm.arith(op, a, b))
		case OpNeg:
			a := vm.pop()
			if a.IsInt() {
				vm.push(Int(-a.Int()))
			} else {
				vm.push(numVal(-toNumber(vm.heap, a)))
			}
		case OpNot:
			vm.push(Bool(!toBoolean(vm.heap, vm.pop())))
		case OpBitAnd:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(toInt32(vm.heap, a) & toInt32(vm.heap, b))))
		case OpBitOr:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(toInt32(vm.heap, a) | toInt32(vm.heap, b))))
		case OpBitXor:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(toInt32(vm.heap, a) ^ toInt32(vm.heap, b))))
		case OpBitNot:
			vm.push(Int(int64(^toInt32(vm.heap, vm.pop()))))
		case OpShl:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(toInt32(vm.heap, a) << (uint32(toInt32(vm.heap, b)) & 31))))
		case OpSar:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(toInt32(vm.heap, a) >> (uint32(toInt32(vm.heap, b)) & 31))))
		case OpShr:
			b, a := vm.pop(), vm.pop()
			vm.push(Int(int64(uint32(toInt32(vm.heap, a)) >> (uint32(toInt32(vm.heap, b)) & 31))))

		case OpLt:
			b, a := vm.pop(), vm.pop()
			cmp, ok := vm.compare(a, b)
			vm.push(Bool(ok && cmp < 0))
		case OpLe:
			b, a := vm.pop(), vm.pop()
			cmp, ok := vm.compare(a, b)
			vm.push(Bool(ok && cmp <= 0))
		case OpGt:
			b, a := vm.pop(), vm.pop()
			cmp, ok := vm.compare(a, b)
			vm.push(Bool(ok && cmp > 0))
		case OpGe:
			b, a := vm.pop(), vm.pop()
			cmp, ok := vm.compare(a, b)
			vm.push(Bool(ok && cmp >= 0))
		case OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(looseEquals(vm.heap, a, b)))
		case OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!looseEquals(vm.heap, a, b)))
		case OpStrictEq:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(a.StrictEquals(b)))
		case OpStrictNe:
			b, a := vm.pop(), vm.pop()
			vm.push(Bool(!a.StrictEquals(b)))

		case OpJump:
			frame.pc = vm.readU16(frame)
		case OpJumpIfFalse:
			target := vm.readU16(frame)
			if !toBoolean(vm.heap, vm.pop()) {
				frame.pc = target
			}
		case OpJumpIfTrue:
			target := vm.readU16(frame)
			if toBoolean(vm.heap, vm.pop()) {
				frame.pc = target
			}

		case OpCall:
			argc := vm.readU16(frame)
			calleePos := len(vm.stack) - argc - 1
			err = vm.beginCall(vm.stack[calleePos], Undefined(), calleePos, vm.stack[calleePos+1:], false)
		case OpCallMethod:
			argc := vm.readU16(frame)
			calleePos := len(vm.stack) - argc - 2
			err = vm.beginCall(vm.stack[calleePos], vm.stack[calleePos+1], calleePos, vm.stack[calleePos+2:], false)
		case OpCallConstructor:
			argc := vm.readU16(frame)
			calleePos := len(vm.stack) - argc - 1
			callee := vm.stack[calleePos]
			args := vm.stack[calleePos+1:]
			switch callee.Kind() {
			case KindClosure, KindBytecodeFunction, KindNativeFunction:
				objIdx := vm.heap.NewObject()
				vm.heap.Object(objIdx).ctor = callee
				err = vm.beginCall(callee, ObjectVal(objIdx), calleePos, args, true)
			case KindBuiltin:
				var res Value
				res, err = vm.callBuiltin(callee.BuiltinTag(), args, true)
				if err == nil {
					vm.stack = vm.stack[:calleePos]
					vm.push(res)
				}
			default:
				err = vm.throwNew(errType, "%s is not a constructor", toJSString(vm.heap, callee))
			}
		case OpReturn:
			ret := vm.pop()
			f := vm.frames[len(vm.frames)-1]
			vm.handlers = vm.handlers[:f.handlerBase]
			vm.stack = vm.stack[:f.basePtr]
			if f.isConstructor && !isObjectLike(ret) {
				ret = f.this
			}
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) < floor {
				return ret, nil
			}
			vm.push(ret)

		case OpMakeArray:
			n := vm.readU16(frame)
			elems := append([]Value(nil), vm.stack[len(vm.stack)-n:]...)
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(ArrayVal(vm.heap.NewArray(elems)))
		case OpMakeObject:
			n := vm.readU16(frame)
			at := len(vm.stack) - 2*n
			objIdx := vm.heap.NewObject()
			o := vm.heap.Object(objIdx)
			for i := 0; i < n; i++ {
				key := toJSString(vm.heap, vm.stack[at+2*i])
				o.set(key, vm.stack[at+2*i+1])
				vm.heap.bytesUsed += int64(16 + len(key))
			}
			vm.stack = vm.stack[:at]
			vm.push(ObjectVal(objIdx))
		case OpGetElem:
			key, base := vm.pop(), vm.pop()
			var v Value
			v, err = vm.getElem(base, key)
			if err == nil {
				vm.push(v)
			}
		case OpSetElem:
			value, key, base := vm.pop(), vm.pop(), vm.pop()
			err = vm.setElem(base, key, value)
			if err == nil {
				vm.push(value)
			}
		case OpGetField:
			name := vm.constString(frame, vm.readU16(frame))
			base := vm.pop()
			var v Value
			v, err = vm.getField(base, name)
			if err == nil {
				vm.push(v)
			}
		case OpGetFieldKeepBase:
			name := vm.constString(frame, vm.readU16(frame))
			base := vm.pop()
			var v Value
			v, err = vm.getField(base, name)
			if err == nil {
				vm.push(v)
				vm.push(base)
			}
		case OpSetField:
			name := vm.constString(frame, vm.readU16(frame))
			value, base := vm.pop(), vm.pop()
			err = vm.setField(base, name, value)
			if err == nil {
				vm.push(value)
			}
		case OpDeleteField:
			name := vm.constString(frame, vm.readU16(frame))
			base := vm.pop()
			if base.IsObject() {
				vm.push(Bool(vm.heap.Object(base.Index()).delete(name)))
			} else {
				vm.push(True())
			}
		case OpIn:
			base, key := vm.pop(), vm.pop()
			var v Value
			v, err = vm.hasProperty(base, key)
			if err == nil {
				vm.push(v)
			}
		case OpInstanceOf:
			rhs, lhs := vm.pop(), vm.pop()
			var v Value
			v, err = vm.instanceOf(lhs, rhs)
			if err == nil {
				vm.push(v)
			}

		case OpMakeClosure:
			funcIdx := frame.fn.funcBase + vm.readU16(frame)
			count := vm.readU8(frame)
			captures := make([]Value, count)
			for i := 0; i < count; i++ {
				fromLocal := vm.readU8(frame) == 1
				idx := vm.readU16(frame)
				if fromLocal {
					captures[i] = vm.stack[frame.basePtr+idx]
				} else {
					captures[i] = vm.capturesOf(frame)[idx]
				}
			}
			vm.push(ClosureVal(vm.heap.NewClosure(funcIdx, captures)))

		case OpPushHandler:
			catchPC := vm.readU16(frame)
			vm.handlers = append(vm.handlers, handlerEntry{
				catchPC:    catchPC,
				stackDepth: len(vm.stack),
				frameDepth: len(vm.frames),
			})
		case OpPopHandler:
			vm.handlers = vm.handlers[:len(vm.handlers)-1]
		case OpThrow:
			err = jsThrow{vm.pop()}

		case OpForInStart:
			v := vm.pop()
			vm.push(IteratorVal(vm.heap.NewIterator(vm.forInKeys(v))))
		case OpForOfStart:
			v := vm.pop()
			var vals []Value
			vals, err = vm.forOfValues(v)
			if err == nil {
				vm.push(IteratorVal(vm.heap.NewIterator(vals)))
			}
		case OpIterNext:
			target := vm.readU16(frame)
			top := vm.top()
			if !top.IsIterator() {
				err = vm.throwNew(errType, "value is not iterable")
				break
			}
			it := vm.heap.Iterator(top.Index())
			if it.cursor < len(it.values) {
				vm.push(it.values[it.cursor])
				it.cursor++
			} else {
				frame.pc = target
			}

		case OpTypeOf:
			vm.push(vm.internStr(vm.pop().TypeOf()))

		default:
			return Undefined(), fmt.Errorf("invalid opcode %d at pc %d", op, frame.pc-1)
		}

		if err != nil {
			if jt, ok := err.(jsThrow); ok {
				if vm.unwind(jt.v, floor) {
					continue
				}
				return Undefined(), vm.uncaught(jt.v)
			}
			return Undefined(), err
		}
	}
}

// forInKeys snapshots the enumeration keys of a collection: own-property names for
// objects, index strings for arrays and strings, nothing for
// everything else (for-in over a primitive iterates zero times).
func (vm *VM) forInKeys(v Value) []Value {
	switch v.Kind() {
	case KindObject:
		o := vm.heap.Object(v.Index())
		keys := make([]Value, len(o.props))
		for i := range o.props {
			keys[i] = vm.internStr(o.props[i].name)
		}
		return keys
	case KindArray:
		n := len(vm.heap.Array(v.Index()).elems)
		keys := make([]Value, n)
		for i := 0; i < n; i++ {
			keys[i] = vm.internStr(itoa(int64(i)))
		}
		return keys
	case KindString:
		n := len([]rune(vm.heap.String(v.Index())))
		keys := make([]Value, n)
		for i := 0; i < n; i++ {
			keys[i] = vm.internStr(itoa(int64(i)))
		}
		return keys
	default:
		return nil
	}
}

func (vm *VM) forOfValues(v Value) ([]Value, error) {
	switch v.Kind() {
	case KindArray:
		return append([]Value(nil), vm.heap.Array(v.Index()).elems...), nil
	case KindString:
		runes := []rune(vm.heap.String(v.Index()))
		vals := make([]Value, len(runes))
		for i, r := range runes {
			vals[i] = vm.internStr(string(r))
		}
		return vals, nil
	default:
		return nil, vm.throwNew(errType, "%s is not iterable", toJSString(vm.heap, v))
	}
}

// toIndex converts a numeric key into an element index; NaN and the
// infinities map to -1 so every range check below treats them as out
// of bounds.
func toIndex(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	return int(f)
}

func (vm *VM) getElem(base, key Value) (Value, error) {
	if key.IsNumber() {
		switch base.Kind() {
		case KindArray:
			a := vm.heap.Array(base.Index())
			idx := toIndex(toNumber(vm.heap, key))
			if idx >= 0 && idx < len(a.elems) {
				return a.elems[idx], nil
			}
			return Undefined(), nil
		case KindString:
			runes := []rune(vm.heap.String(base.Index()))
			idx := toIndex(toNumber(vm.heap, key))
			if idx >= 0 && idx < len(runes) {
				return vm.internStr(string(runes[idx])), nil
			}
			return Undefined(), nil
		}
	}
	return vm.getField(base, toJSString(vm.heap, key))
}

func (vm *VM) setElem(base, key, value Value) error {
	switch base.Kind() {
	case KindArray:
		a := vm.heap.Array(base.Index())
		idx := toIndex(toNumber(vm.heap, key))
		if idx < 0 {
			return vm.throwNew(errRange, "invalid array index %s", toJSString(vm.heap, key))
		}
		// No holes: extend with undefined fill on a write past
		// the end.
		for idx >= len(a.elems) {
			a.elems = append(a.elems, Undefined())
			vm.heap.bytesUsed += 16
		}
		a.elems[idx] = value
		return nil
	case KindObject:
		o := vm.heap.Object(base.Index())
		name := toJSString(vm.heap, key)
		if _, ok := o.get(name); !ok {
			vm.heap.bytesUsed += int64(16 + len(name))
		}
		o.set(name, value)
		return nil
	case KindString:
		// Strings are immutable; writes are silently dropped.
		return nil
	case KindUndefined, KindNull:
		return vm.throwNew(errType, "cannot set properties of %s", base.Kind())
	default:
		return nil
	}
}

func (vm *VM) setField(base Value, name string, value Value) error {
	switch base.Kind() {
	case KindObject:
		o := vm.heap.Object(base.Index())
		if _, ok := o.get(name); !ok {
			vm.heap.bytesUsed += int64(16 + len(name))
		}
		o.set(name, value)
		return nil
	case KindErrorObject:
		e := vm.heap.Error(base.Index())
		switch name {
		case "name":
			e.name = toJSString(vm.heap, value)
		case "message":
			e.message = toJSString(vm.heap, value)
		}
		return nil
	case KindUndefined, KindNull:
		return vm.throwNew(errType, "cannot set properties of %s", base.Kind())
	default:
		return nil
	}
}

func (vm *VM) hasProperty(base, key Value) (Value, error) {
	switch base.Kind() {
	case KindObject:
		_, ok := vm.heap.Object(base.Index()).get(toJSString(vm.heap, key))
		return Bool(ok), nil
	case KindArray:
		a := vm.heap.Array(base.Index())
		if key.IsNumber() {
			idx := toIndex(toNumber(vm.heap, key))
			return Bool(idx >= 0 && idx < len(a.elems)), nil
		}
		return Bool(toJSString(vm.heap, key) == "length"), nil
	default:
		return Undefined(), vm.throwNew(errType, "'in' requires an object, got %s", base.Kind())
	}
}

// instanceOf compares the stored constructor reference, not a
// prototype chain: objects remember the callee
// CallConstructor ran, arrays answer to the Array builtin, and error
// objects answer to their own sub-constructor tag plus plain Error.
func (vm *VM) instanceOf(lhs, rhs Value) (Value, error) {
	if !rhs.IsCallable() && !rhs.IsBuiltin() {
		return Undefined(), vm.throwNew(errType, "right-hand side of 'instanceof' is not callable")
	}
	switch lhs.Kind() {
	case KindObject:
		o := vm.heap.Object(lhs.Index())
		if o.ctor.StrictEquals(rhs) {
			return True(), nil
		}
		if rhs.IsBuiltin() && rhs.BuiltinTag() == BuiltinObject {
			return True(), nil
		}
		return False(), nil
	case KindArray:
		return Bool(rhs.IsBuiltin() && rhs.BuiltinTag() == BuiltinArray), nil
	case KindErrorObject:
		if rhs.IsBuiltin() {
			tag := rhs.BuiltinTag()
			if tag == BuiltinError {
				return True(), nil
			}
			if name, ok := errorConstructorTags[tag]; ok {
				return Bool(vm.heap.Error(lhs.Index()).name == name), nil
			}
		}
		return False(), nil
	default:
		return False(), nil
	}
}
