package mqjs

import (
	"math"
	"strconv"
	"strings"
)

// toNumber implements the JS numeric coercion rules: booleans
// become 0/1, null becomes 0, undefined becomes NaN, strings are
// parsed (failing to NaN), an empty array becomes 0, a one-element
// array converts its element, and longer arrays and all other values
// become NaN.
func toNumber(h *Heap, v Value) float64 {
	switch v.Kind() {
	case KindInt31:
		return float64(v.Int())
	case KindFloat:
		return v.Float()
	case KindTrue:
		return 1
	case KindFalse:
		return 0
	case KindNull:
		return 0
	case KindUndefined:
		return math.NaN()
	case KindString:
		return stringToNumber(h.String(v.Index()))
	case KindArray:
		arr := h.Array(v.Index())
		switch len(arr.elems) {
		case 0:
			return 0
		case 1:
			return toNumber(h, arr.elems[0])
		default:
			return math.NaN()
		}
	default:
		return math.NaN()
	}
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// toInt32 coerces v to a 32-bit signed integer the way the bitwise
// operators require: NaN/Infinity become 0, then the value
// wraps modulo 2^32 and is reinterpreted as signed.
func toInt32(h *Heap, v Value) int32 {
	f := toNumber(h, v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	x := math.Mod(math.Trunc(f), 4294967296)
	if x < 0 {
		x += 4294967296
	}
	return int32(uint32(int64(x)))
}

// toBoolean implements truthiness: the empty string, 0, NaN, null,
// undefined and false are falsy; everything else (including every
// object and array, per ES5) is truthy.
func toBoolean(h *Heap, v Value) bool {
	switch v.Kind() {
	case KindUndefined, KindNull, KindFalse:
		return false
	case KindTrue:
		return true
	case KindInt31:
		return v.Int() != 0
	case KindFloat:
		f := v.Float()
		return f != 0 && !math.IsNaN(f)
	case KindString:
		return h.String(v.Index()) != ""
	default:
		return true
	}
}

// toJSString implements the String(x) conversion: numbers use the
// shortest round-tripping decimal, arrays join their elements with
// commas (the default Array.prototype.toString/join), and objects
// always become the fixed "[object Object]" tag; a user-defined
// toString property is not consulted.
func toJSString(h *Heap, v Value) string {
	switch v.Kind() {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindInt31:
		return itoa(v.Int())
	case KindFloat:
		return ftoa(v.Float())
	case KindString:
		return h.String(v.Index())
	case KindArray:
		arr := h.Array(v.Index())
		parts := make([]string, len(arr.elems))
		for i, e := range arr.elems {
			if e.IsNullish() {
				parts[i] = ""
			} else {
				parts[i] = toJSString(h, e)
			}
		}
		return strings.Join(parts, ",")
	case KindObject:
		return "[object Object]"
	case KindClosure, KindBytecodeFunction, KindNativeFunction:
		return "function () { [native code] }"
	case KindBuiltin:
		return v.BuiltinTag().String()
	case KindErrorObject:
		e := h.Error(v.Index())
		if e.message == "" {
			return e.name
		}
		return e.name + ": " + e.message
	case KindRegexp:
		r := h.Regexp(v.Index())
		return "/" + r.source + "/" + r.flags
	default:
		return ""
	}
}

// looseEquals implements `==`: null/undefined compare
// equal only to each other and to themselves; numbers and strings
// coerce to numbers; booleans coerce to numbers; everything else
// falls back to StrictEquals (no object-to-primitive coercion is
// attempted, since the engine has no valueOf/toString override hook
// for user objects).
func looseEquals(h *Heap, a, b Value) bool {
	if a.Kind() == b.Kind() {
		return a.StrictEquals(b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	if a.IsNumber() && b.IsString() {
		return a.Float() == stringToNumber(h.String(b.Index()))
	}
	if a.IsString() && b.IsNumber() {
		return stringToNumber(h.String(a.Index())) == b.Float()
	}
	if a.IsBool() {
		return looseEquals(h, Float(boolToFloat(a)), b)
	}
	if b.IsBool() {
		return looseEquals(h, a, Float(boolToFloat(b)))
	}
	if a.IsNumber() && b.IsNumber() {
		return a.Float() == b.Float()
	}
	return a.StrictEquals(b)
}

func boolToFloat(v Value) float64 {
	if v.Bool() {
		return 1
	}
	return 0
}
