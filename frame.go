package mqjs

// callFrame is one activation of a function. The call-frame stack
// these live in is a heap-allocated Go slice, not host recursion — a
// JS call pushes a frame here
// instead of recursing into Go's own call stack, so JS recursion
// depth is bounded by heap memory, not by goroutine stack size.
//
// Local-slot layout inside the operand stack, for functions compiled
// from a literal: slot 0 is `this`, slots 1..NumParams hold the
// parameters, slot NumParams+1 holds the `arguments` array, and the
// remaining slots hold declared variables and compiler temporaries.
// The top-level script function has no this/parameter/arguments
// slots; the compiler declares its slot 0 to hold the value of the
// last expression statement.
type callFrame struct {
	fn      *CompiledFunction
	pc      int
	basePtr int

	// closure is the closure value this frame was called through, or
	// undefined for a bare bytecode function. GetCapture/SetCapture
	// read and write the closure's own capture vector through this
	// handle, so assignments to a captured name persist across calls
	// of the same closure without ever touching the outer binding it
	// was snapshotted from.
	closure Value

	this          Value
	isConstructor bool

	// handlerBase records how many handlers were installed when this
	// frame was entered, so Return can pop back to exactly that many
	// (a handler installed by an inner function must not survive
	// that function's return).
	handlerBase int
}

// handlerEntry is one entry of the exception-handler stack: the
// catch PC plus the operand-stack and call-frame depths to restore
// when a throw unwinds to it.
type handlerEntry struct {
	catchPC    int
	stackDepth int
	frameDepth int
}
