package mqjs

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Engine is one self-contained evaluator instance: it owns the
// heap arenas, the VM, the globals map, and the builtin dispatch
// tables. Engines are single-threaded; two engines in different
// goroutines must not share Values.
type Engine struct {
	config *Config
	heap   *Heap
	vm     *VM

	builtinProps map[BuiltinTag]map[string]Value
	objectProto  map[string]Value
	arrayProto   map[string]Value
	stringProto  map[string]Value
	numberProto  map[string]Value
	funcProto    map[string]Value
	errorProto   map[string]Value
	regexpProto  map[string]Value
	dateProto    map[string]Value

	// Stdout/Stderr receive print/console output. Replaceable by
	// hosts and tests.
	Stdout io.Writer
	Stderr io.Writer
}

// NewEngine creates an engine with its arenas sized by the config's
// memory budget, its globals primed with the builtin tags, and the
// default native functions registered.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = NewConfig()
	}
	heap := NewHeap(int64(config.MemoryBudgetBytes))
	e := &Engine{
		config:       config,
		heap:         heap,
		builtinProps: map[BuiltinTag]map[string]Value{},
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
	e.vm = newVM(e, heap, config)
	registerBuiltins(e)
	return e
}

// Destroy releases every arena. The engine must not be used
// afterwards.
func (e *Engine) Destroy() {
	e.vm.stack = nil
	e.vm.frames = nil
	e.vm.handlers = nil
	e.vm.globals = nil
	e.vm.functions = nil
	e.vm.natives = nil
	e.vm.pinned = nil
	e.heap.strings = nil
	e.heap.stringIdx = nil
	e.heap.objects = nil
	e.heap.arrays = nil
	e.heap.closures = nil
	e.heap.errors = nil
	e.heap.regexps = nil
	e.heap.iterators = nil
}

// RegisterNative binds name in the globals map to a host callable.
func (e *Engine) RegisterNative(name string, fn NativeFunc) {
	e.vm.globals[name] = e.addNative(name, fn)
}

// SetInterrupt installs the optional cancellation hook, polled
// between opcode dispatches. Passing nil removes it.
func (e *Engine) SetInterrupt(fn func() bool) {
	e.vm.interrupt = fn
	e.vm.checkInterrupt = fn != nil
}

// Compile parses src as a script body. On a syntax error the returned
// CompileError carries a line/column position resolved against src.
func (e *Engine) Compile(src []byte) (*Program, error) {
	p, err := Compile(src, e.heap, e.config)
	if err != nil {
		if ce, ok := err.(CompileError); ok {
			ce.Pos = positionAt(src, ce.Offset)
			return nil, ce
		}
		return nil, err
	}
	return p, nil
}

// Run installs a compiled program and executes its entry function,
// returning the script's last-expression value or the uncaught thrown
// value as a *ThrownValue error.
func (e *Engine) Run(p *Program) (Value, error) {
	vm := e.vm
	entry := vm.installProgram(p)
	s0, f0, h0 := len(vm.stack), len(vm.frames), len(vm.handlers)
	vm.pushFrame(vm.functions[entry], Undefined(), Undefined(), len(vm.stack), nil, false)
	res, err := vm.run(f0 + 1)
	if err != nil {
		vm.stack = vm.stack[:s0]
		vm.frames = vm.frames[:f0]
		vm.handlers = vm.handlers[:h0]
		return Undefined(), err
	}
	return res, nil
}

// Eval compiles and runs source in one step.
func (e *Engine) Eval(source string) (Value, error) {
	p, err := e.Compile([]byte(source))
	if err != nil {
		return Undefined(), err
	}
	return e.Run(p)
}

// Call invokes a JS-level callable from the host, also
// used by higher-order natives to reenter the VM. Exception semantics
// are preserved across the reentry: a throw with no handler above
// this call returns as a *ThrownValue, which the calling native is
// expected to propagate.
func (e *Engine) Call(callee, this Value, args []Value) (Value, error) {
	vm := e.vm
	s0, f0, h0 := len(vm.stack), len(vm.frames), len(vm.handlers)
	calleePos := len(vm.stack)
	vm.push(callee)
	vm.stack = append(vm.stack, args...)
	err := vm.beginCall(callee, this, calleePos, vm.stack[calleePos+1:], false)
	if err == nil && len(vm.frames) > f0 {
		var res Value
		res, err = vm.run(f0 + 1)
		if err == nil {
			return res, nil
		}
	} else if err == nil {
		// A native callee completed in place; its result is on top.
		return vm.pop(), nil
	}
	vm.stack = vm.stack[:s0]
	vm.frames = vm.frames[:f0]
	vm.handlers = vm.handlers[:h0]
	if jt, ok := err.(jsThrow); ok {
		return Undefined(), vm.uncaught(jt.v)
	}
	return Undefined(), err
}

// Global reads a binding from the globals map, so hosts can pull out
// functions and values a script defined.
func (e *Engine) Global(name string) (Value, bool) {
	v, ok := e.vm.globals[name]
	return v, ok
}

// SetGlobal binds name to a value in the globals map.
func (e *Engine) SetGlobal(name string, v Value) {
	e.vm.globals[name] = v
}

// GC forces a full mark-compact cycle. Safe to call whenever
// no evaluation is in flight.
func (e *Engine) GC() {
	e.vm.collectGarbage()
	e.vm.gcThreshold = e.heap.bytesUsed + e.vm.gcThresholdBase
}

// MemoryStats is the arena census behind the CLI's -d flag.
type MemoryStats struct {
	BytesUsed int64
	Strings   int
	Objects   int
	Arrays    int
	Closures  int
	Errors    int
	Regexps   int
	Iterators int
	Functions int
}

func (e *Engine) MemoryStats() MemoryStats {
	return MemoryStats{
		BytesUsed: e.heap.BytesUsed(),
		Strings:   len(e.heap.strings),
		Objects:   e.heap.NumObjects(),
		Arrays:    e.heap.NumArrays(),
		Closures:  e.heap.NumClosures(),
		Errors:    e.heap.NumErrors(),
		Regexps:   e.heap.NumRegexps(),
		Iterators: e.heap.NumIterators(),
		Functions: len(e.vm.functions),
	}
}

// NewString, NewArray and NewError build heap values for host code
// and native functions; Values are only meaningful inside the engine
// that created them.
func (e *Engine) NewString(s string) Value { return StringVal(e.heap.InternString(s)) }

func (e *Engine) NewArray(elems []Value) Value {
	return ArrayVal(e.heap.NewArray(append([]Value(nil), elems...)))
}

func (e *Engine) NewError(name, message string) Value {
	return ErrorObjectVal(e.heap.NewError(name, message))
}

// ToString renders a value with JS string-conversion semantics;
// Inspect renders it the way the REPL shows results, with
// strings quoted and nested containers expanded at every depth (a
// container that is already being printed shows as [circular]).
func (e *Engine) ToString(v Value) string { return toJSString(e.heap, v) }

type inspectKey struct {
	kind Kind
	idx  int
}

func (e *Engine) Inspect(v Value) string {
	return e.inspect(v, map[inspectKey]bool{})
}

func (e *Engine) inspect(v Value, seen map[inspectKey]bool) string {
	switch v.Kind() {
	case KindString:
		return strconv.Quote(e.heap.String(v.Index()))
	case KindArray:
		k := inspectKey{KindArray, v.Index()}
		if seen[k] {
			return "[circular]"
		}
		seen[k] = true
		defer delete(seen, k)
		parts := make([]string, len(e.heap.Array(v.Index()).elems))
		for i, el := range e.heap.Array(v.Index()).elems {
			parts[i] = e.inspect(el, seen)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		k := inspectKey{KindObject, v.Index()}
		if seen[k] {
			return "[circular]"
		}
		seen[k] = true
		defer delete(seen, k)
		o := e.heap.Object(v.Index())
		parts := make([]string, len(o.props))
		for i, p := range o.props {
			parts[i] = p.name + ": " + e.inspect(p.value, seen)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return toJSString(e.heap, v)
	}
}

// Disassemble renders a compiled program as a readable bytecode
// listing, optionally with terminal colors.
func (e *Engine) Disassemble(p *Program, color bool) string {
	return DisassembleProgram(p, e.heap, color)
}

// writeJoined implements the print/console output contract: arguments
// joined with single spaces, one trailing newline.
func (e *Engine) writeJoined(w io.Writer, args []Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = toJSString(e.heap, a)
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}
