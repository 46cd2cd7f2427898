package mqjs

// gcMarks holds one mark bit per arena slot for the six compacted
// kinds.
type gcMarks struct {
	objects   []bool
	arrays    []bool
	closures  []bool
	errors    []bool
	regexps   []bool
	iterators []bool
}

func newGCMarks(h *Heap) *gcMarks {
	return &gcMarks{
		objects:   make([]bool, h.NumObjects()),
		arrays:    make([]bool, h.NumArrays()),
		closures:  make([]bool, h.NumClosures()),
		errors:    make([]bool, h.NumErrors()),
		regexps:   make([]bool, h.NumRegexps()),
		iterators: make([]bool, h.NumIterators()),
	}
}

// mark walks v and, for heap-kinded values, everything reachable from
// it, setting mark bits as it goes. It is safe to call
// on an already-marked value: the mark-bit check makes each arena
// entry visited at most once, so cyclic object graphs terminate.
func (gm *gcMarks) mark(h *Heap, v Value) {
	switch v.Kind() {
	case KindObject:
		i := v.Index()
		if gm.objects[i] {
			return
		}
		gm.objects[i] = true
		o := h.Object(i)
		for _, p := range o.props {
			gm.mark(h, p.value)
		}
		gm.mark(h, o.ctor)
	case KindArray:
		i := v.Index()
		if gm.arrays[i] {
			return
		}
		gm.arrays[i] = true
		for _, e := range h.Array(i).elems {
			gm.mark(h, e)
		}
	case KindClosure:
		i := v.Index()
		if gm.closures[i] {
			return
		}
		gm.closures[i] = true
		for _, c := range h.Closure(i).captures {
			gm.mark(h, c)
		}
	case KindErrorObject:
		gm.errors[v.Index()] = true
	case KindRegexp:
		gm.regexps[v.Index()] = true
	case KindIterator:
		i := v.Index()
		if gm.iterators[i] {
			return
		}
		gm.iterators[i] = true
		for _, e := range h.Iterator(i).values {
			gm.mark(h, e)
		}
	}
}

// remap is the old_index -> new_index table the compact step
// produces for one arena kind; a -1 entry means the slot did not
// survive collection.
type remap []int

func buildRemap(marks []bool) remap {
	rm := make(remap, len(marks))
	next := 0
	for i, live := range marks {
		if live {
			rm[i] = next
			next++
		} else {
			rm[i] = -1
		}
	}
	return rm
}

// rewrites bundles the six old->new tables so a single rewriteValue
// call can dispatch on kind.
type rewrites struct {
	objects, arrays, closures, errors, regexps, iterators remap
}

func (rw *rewrites) apply(v Value) Value {
	switch v.Kind() {
	case KindObject:
		return ObjectVal(rw.objects[v.Index()])
	case KindArray:
		return ArrayVal(rw.arrays[v.Index()])
	case KindClosure:
		return ClosureVal(rw.closures[v.Index()])
	case KindErrorObject:
		return ErrorObjectVal(rw.errors[v.Index()])
	case KindRegexp:
		return RegexpVal(rw.regexps[v.Index()])
	case KindIterator:
		return IteratorVal(rw.iterators[v.Index()])
	default:
		return v
	}
}

func (rw *rewrites) applySlice(vs []Value) {
	for i, v := range vs {
		vs[i] = rw.apply(v)
	}
}

// collectGarbage runs one mark-compact cycle. It is only ever
// called between opcode dispatches (from the dispatch loop's safepoint
// while no native function is running, or from Engine.GC between
// evaluations), never mid-instruction, so
// the interpreter holds no raw pointers across the call — only the
// indices that this function is about to rewrite.
func (vm *VM) collectGarbage() {
	h := vm.heap
	gm := newGCMarks(h)

	for _, v := range vm.stack {
		gm.mark(h, v)
	}
	for i := range vm.frames {
		gm.mark(h, vm.frames[i].closure)
		gm.mark(h, vm.frames[i].this)
	}
	for _, v := range vm.globals {
		gm.mark(h, v)
	}
	for _, v := range vm.pinned {
		gm.mark(h, v)
	}
	// Constant pools of every compiled function are conservatively
	// treated as reachable: the function table is immutable
	// and permanent for the life of the engine, and any of its
	// instructions may run at any time via Call/MakeClosure, so there
	// is no narrower "reachable functions" set worth computing. The
	// only heap-kinded constants the compiler emits are interned
	// strings (outside the compacted kinds) and regexp literals,
	// which this loop keeps alive.
	for _, fn := range vm.functions {
		for _, c := range fn.Consts {
			gm.mark(h, c)
		}
	}

	rw := &rewrites{
		objects:   buildRemap(gm.objects),
		arrays:    buildRemap(gm.arrays),
		closures:  buildRemap(gm.closures),
		errors:    buildRemap(gm.errors),
		regexps:   buildRemap(gm.regexps),
		iterators: buildRemap(gm.iterators),
	}

	compactObjects(h, gm.objects, rw)
	compactArrays(h, gm.arrays, rw)
	compactClosures(h, gm.closures, rw)
	compactErrors(h, gm.errors)
	compactRegexps(h, gm.regexps)
	compactIterators(h, gm.iterators, rw)

	for i, v := range vm.stack {
		vm.stack[i] = rw.apply(v)
	}
	for i := range vm.frames {
		vm.frames[i].closure = rw.apply(vm.frames[i].closure)
		vm.frames[i].this = rw.apply(vm.frames[i].this)
	}
	for k, v := range vm.globals {
		vm.globals[k] = rw.apply(v)
	}
	rw.applySlice(vm.pinned)
	for _, fn := range vm.functions {
		rw.applySlice(fn.Consts)
	}

	h.recomputeBytesUsed()
}

func compactObjects(h *Heap, marks []bool, rw *rewrites) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		o := h.objects[i]
		for j := range o.props {
			o.props[j].value = rw.apply(o.props[j].value)
		}
		o.ctor = rw.apply(o.ctor)
		h.objects[write] = o
		write++
	}
	h.objects = h.objects[:write]
}

func compactArrays(h *Heap, marks []bool, rw *rewrites) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		a := h.arrays[i]
		rw.applySlice(a.elems)
		h.arrays[write] = a
		write++
	}
	h.arrays = h.arrays[:write]
}

func compactClosures(h *Heap, marks []bool, rw *rewrites) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		c := h.closures[i]
		rw.applySlice(c.captures)
		h.closures[write] = c
		write++
	}
	h.closures = h.closures[:write]
}

func compactErrors(h *Heap, marks []bool) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		h.errors[write] = h.errors[i]
		write++
	}
	h.errors = h.errors[:write]
}

func compactRegexps(h *Heap, marks []bool) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		h.regexps[write] = h.regexps[i]
		write++
	}
	h.regexps = h.regexps[:write]
}

func compactIterators(h *Heap, marks []bool, rw *rewrites) {
	write := 0
	for i, live := range marks {
		if !live {
			continue
		}
		it := h.iterators[i]
		rw.applySlice(it.values)
		h.iterators[write] = it
		write++
	}
	h.iterators = h.iterators[:write]
}

// maybeCollect triggers a collection once the heap crosses the
// configured threshold, mirroring an
// allocation-size-based trigger rather than a fixed cadence. It is
// called only from the dispatch loop's safe point; while a native
// function is on the Go stack (nativeDepth > 0) collection is
// deferred, since native code may hold Value copies in Go locals that
// the compactor's rewrite pass cannot reach.
func (vm *VM) maybeCollect() {
	if vm.nativeDepth > 0 {
		return
	}
	if vm.pendingGC || vm.heap.bytesUsed >= vm.gcThreshold {
		vm.collectGarbage()
		vm.pendingGC = false
		// Re-arm at the (possibly grown) current usage plus the base
		// threshold so a heap that's genuinely holding a lot of live
		// data doesn't collect on every single allocation afterward.
		vm.gcThreshold = vm.heap.bytesUsed + vm.gcThresholdBase
	}
}
