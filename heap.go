package mqjs

import (
	"github.com/cespare/xxhash/v2"
)

// property is one (name, value) own-property entry. Objects keep
// these in an ordered slice rather than a map so `for-in` enumeration
// order matches insertion order.
type property struct {
	name  string
	value Value
}

// objectData backs the KindObject arena.
type objectData struct {
	props []property
	// ctor records the closure or bytecode-function used to build
	// this object via `new`, so `instanceof` can compare stored
	// constructor references instead of walking a prototype chain.
	ctor Value
	// builtinOrigin, when hasBuiltin is set, names the built-in whose
	// methods this object also dispatches through (objects created by
	// `new Date()` get the Date methods).
	builtinOrigin BuiltinTag
	hasBuiltin    bool
}

func (o *objectData) get(name string) (Value, bool) {
	for i := range o.props {
		if o.props[i].name == name {
			return o.props[i].value, true
		}
	}
	return Undefined(), false
}

func (o *objectData) set(name string, v Value) {
	for i := range o.props {
		if o.props[i].name == name {
			o.props[i].value = v
			return
		}
	}
	o.props = append(o.props, property{name: name, value: v})
}

func (o *objectData) delete(name string) bool {
	for i := range o.props {
		if o.props[i].name == name {
			o.props = append(o.props[:i], o.props[i+1:]...)
			return true
		}
	}
	return false
}

// arrayData backs the KindArray arena. Invariant: no holes —
// writes past the end extend with undefined, reads past the end
// return undefined (enforced by the VM's GetElem/SetElem handlers).
type arrayData struct {
	elems []Value
}

// closureData backs the KindClosure arena: a bytecode-function index
// paired with the values captured at MakeClosure time.
type closureData struct {
	funcIndex int
	captures  []Value
}

// errorData backs the KindErrorObject arena.
type errorData struct {
	name    string
	message string
}

// regexpData backs the KindRegexp arena. The actual matcher is an
// external collaborator; this struct only carries the source text a
// host-supplied matcher would need.
type regexpData struct {
	source string
	flags  string
}

// iteratorData backs the KindIterator arena: a snapshot of values
// already materialized plus a cursor.
type iteratorData struct {
	values []Value
	cursor int
}

// Heap owns every GC-managed arena. Values never hold Go pointers
// into these slices; they hold indices, so the collector (gc.go) is
// free to slide entries around during compaction. Every arena
// except strings is a slice of pointers: compaction reorders the
// pointers themselves rather than copying struct contents, so a
// *objectData or *arrayData held briefly by native code stays valid
// across a slide even though its index changes.
//
// Strings are append-only and never compacted: compiled functions
// embed string-table indices in their constant pools for the life of
// the engine, and those must stay valid without re-visiting
// already-compiled code.
type Heap struct {
	strings   []string
	stringIdx map[uint64][]int
	objects   []*objectData
	arrays    []*arrayData
	closures  []*closureData
	errors    []*errorData
	regexps   []*regexpData
	iterators []*iteratorData

	bytesUsed   int64
	bytesBudget int64
}

func NewHeap(budgetBytes int64) *Heap {
	return &Heap{
		stringIdx:   map[uint64][]int{},
		bytesBudget: budgetBytes,
	}
}

// InternString returns the index of an existing equal string, or
// allocates a new arena slot. Property names and small literals are
// the common case this pays off for.
func (h *Heap) InternString(s string) int {
	sum := xxhash.Sum64String(s)
	for _, idx := range h.stringIdx[sum] {
		if h.strings[idx] == s {
			return idx
		}
	}
	idx := len(h.strings)
	h.strings = append(h.strings, s)
	h.stringIdx[sum] = append(h.stringIdx[sum], idx)
	h.bytesUsed += int64(len(s)) + 16
	return idx
}

func (h *Heap) String(idx int) string { return h.strings[idx] }

func (h *Heap) NewObject() int {
	h.objects = append(h.objects, &objectData{})
	h.bytesUsed += 48
	return len(h.objects) - 1
}

func (h *Heap) Object(idx int) *objectData { return h.objects[idx] }

func (h *Heap) NewArray(elems []Value) int {
	h.arrays = append(h.arrays, &arrayData{elems: elems})
	h.bytesUsed += int64(32 + 16*len(elems))
	return len(h.arrays) - 1
}

func (h *Heap) Array(idx int) *arrayData { return h.arrays[idx] }

func (h *Heap) NewClosure(funcIndex int, captures []Value) int {
	h.closures = append(h.closures, &closureData{funcIndex: funcIndex, captures: captures})
	h.bytesUsed += int64(24 + 16*len(captures))
	return len(h.closures) - 1
}

func (h *Heap) Closure(idx int) *closureData { return h.closures[idx] }

func (h *Heap) NewError(name, message string) int {
	h.errors = append(h.errors, &errorData{name: name, message: message})
	h.bytesUsed += int64(32 + len(name) + len(message))
	return len(h.errors) - 1
}

func (h *Heap) Error(idx int) *errorData { return h.errors[idx] }

func (h *Heap) NewRegexp(source, flags string) int {
	h.regexps = append(h.regexps, &regexpData{source: source, flags: flags})
	h.bytesUsed += int64(32 + len(source) + len(flags))
	return len(h.regexps) - 1
}

func (h *Heap) Regexp(idx int) *regexpData { return h.regexps[idx] }

func (h *Heap) NewIterator(values []Value) int {
	h.iterators = append(h.iterators, &iteratorData{values: values})
	h.bytesUsed += int64(24 + 16*len(values))
	return len(h.iterators) - 1
}

func (h *Heap) Iterator(idx int) *iteratorData { return h.iterators[idx] }

// OverBudget reports whether the heap has exceeded its configured
// memory budget.
func (h *Heap) OverBudget() bool {
	return h.bytesBudget > 0 && h.bytesUsed > h.bytesBudget
}

func (h *Heap) BytesUsed() int64 { return h.bytesUsed }

// NumObjects, NumArrays, etc. expose arena lengths; the collector
// (gc.go) uses them to size its mark tables, and MemoryStats reports
// them. gc.go still indexes the slices directly while compacting.
func (h *Heap) NumObjects() int   { return len(h.objects) }
func (h *Heap) NumArrays() int    { return len(h.arrays) }
func (h *Heap) NumClosures() int  { return len(h.closures) }
func (h *Heap) NumErrors() int    { return len(h.errors) }
func (h *Heap) NumRegexps() int   { return len(h.regexps) }
func (h *Heap) NumIterators() int { return len(h.iterators) }

// recomputeBytesUsed re-derives the budget counter from the arenas'
// post-compaction contents, so steady-state memory actually shrinks
// after a collection instead of only logically reclaiming indices.
func (h *Heap) recomputeBytesUsed() {
	var total int64
	for _, s := range h.strings {
		total += int64(len(s)) + 16
	}
	for _, o := range h.objects {
		total += 48
		for _, p := range o.props {
			total += int64(16 + len(p.name))
		}
	}
	for _, a := range h.arrays {
		total += int64(32 + 16*len(a.elems))
	}
	for _, c := range h.closures {
		total += int64(24 + 16*len(c.captures))
	}
	for _, e := range h.errors {
		total += int64(32 + len(e.name) + len(e.message))
	}
	for _, r := range h.regexps {
		total += int64(32 + len(r.source) + len(r.flags))
	}
	for _, it := range h.iterators {
		total += int64(24 + 16*len(it.values))
	}
	h.bytesUsed = total
}
