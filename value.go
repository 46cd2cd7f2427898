package mqjs

import (
	"fmt"
	"math"
)

// Kind discriminates the variant carried by a Value. Every Value has
// exactly one Kind.
type Kind uint8

const (
	KindInt31 Kind = iota
	KindFloat
	KindUndefined
	KindNull
	KindTrue
	KindFalse
	KindString
	KindObject
	KindArray
	KindClosure
	KindBytecodeFunction
	KindNativeFunction
	KindBuiltin
	KindErrorObject
	KindRegexp
	KindIterator
)

var kindNames = map[Kind]string{
	KindInt31:            "int31",
	KindFloat:            "float",
	KindUndefined:        "undefined",
	KindNull:             "null",
	KindTrue:             "true",
	KindFalse:            "false",
	KindString:           "string",
	KindObject:           "object",
	KindArray:            "array",
	KindClosure:          "closure",
	KindBytecodeFunction: "bytecode-function",
	KindNativeFunction:   "native-function",
	KindBuiltin:          "builtin",
	KindErrorObject:      "error-object",
	KindRegexp:           "regexp",
	KindIterator:         "iterator",
}

func (k Kind) String() string { return kindNames[k] }

// BuiltinTag enumerates the built-in objects that never allocate;
// their identity is the tag itself.
type BuiltinTag uint8

const (
	BuiltinMath BuiltinTag = iota
	BuiltinJSON
	BuiltinArray
	BuiltinObject
	BuiltinNumber
	BuiltinString
	BuiltinBoolean
	BuiltinDate
	BuiltinConsole
	BuiltinFunction
	BuiltinError
	BuiltinTypeError
	BuiltinRangeError
	BuiltinReferenceError
	BuiltinSyntaxError
)

var builtinTagNames = map[BuiltinTag]string{
	BuiltinMath:           "Math",
	BuiltinJSON:           "JSON",
	BuiltinArray:          "Array",
	BuiltinObject:         "Object",
	BuiltinNumber:         "Number",
	BuiltinString:         "String",
	BuiltinBoolean:        "Boolean",
	BuiltinDate:           "Date",
	BuiltinConsole:        "console",
	BuiltinFunction:       "Function",
	BuiltinError:          "Error",
	BuiltinTypeError:      "TypeError",
	BuiltinRangeError:     "RangeError",
	BuiltinReferenceError: "ReferenceError",
	BuiltinSyntaxError:    "SyntaxError",
}

// errorConstructorTags lists the built-ins that double as `new X(message)`
// error constructors.
var errorConstructorTags = map[BuiltinTag]string{
	BuiltinError:          "Error",
	BuiltinTypeError:      "TypeError",
	BuiltinRangeError:     "RangeError",
	BuiltinReferenceError: "ReferenceError",
	BuiltinSyntaxError:    "SyntaxError",
}

func (t BuiltinTag) String() string { return builtinTagNames[t] }

// Value is the engine's one-word tagged encoding. Go has no
// raw pointer tagging, so the "one word" is simulated here: a Kind
// byte plus a 64-bit payload that is either an int31, encoded float
// bits, a builtin tag, or an index into the kind-specific heap arena.
// This keeps Values cheap, comparable, and copyable exactly like the
// spec requires, and it never hands out a raw pointer into an arena
// the collector might later move.
type Value struct {
	kind Kind
	num  int64
}

const (
	// MinInt31 / MaxInt31 bound the fast integer path; arithmetic
	// that would leave this range promotes to float.
	MinInt31 = -(1 << 30)
	MaxInt31 = (1 << 30) - 1
)

func Undefined() Value { return Value{kind: KindUndefined} }
func Null() Value      { return Value{kind: KindNull} }
func True() Value      { return Value{kind: KindTrue} }
func False() Value     { return Value{kind: KindFalse} }

func Bool(b bool) Value {
	if b {
		return True()
	}
	return False()
}

// Int creates an int31 Value when n fits, otherwise promotes to a
// float Value.
func Int(n int64) Value {
	if n >= MinInt31 && n <= MaxInt31 {
		return Value{kind: KindInt31, num: n}
	}
	return Float(float64(n))
}

func Float(f float64) Value {
	return Value{kind: KindFloat, num: int64(math.Float64bits(f))}
}

func StringVal(idx int) Value           { return Value{kind: KindString, num: int64(idx)} }
func ObjectVal(idx int) Value           { return Value{kind: KindObject, num: int64(idx)} }
func ArrayVal(idx int) Value            { return Value{kind: KindArray, num: int64(idx)} }
func ClosureVal(idx int) Value          { return Value{kind: KindClosure, num: int64(idx)} }
func BytecodeFunctionVal(idx int) Value { return Value{kind: KindBytecodeFunction, num: int64(idx)} }
func NativeFunctionVal(idx int) Value   { return Value{kind: KindNativeFunction, num: int64(idx)} }
func BuiltinVal(tag BuiltinTag) Value   { return Value{kind: KindBuiltin, num: int64(tag)} }
func ErrorObjectVal(idx int) Value      { return Value{kind: KindErrorObject, num: int64(idx)} }
func RegexpVal(idx int) Value           { return Value{kind: KindRegexp, num: int64(idx)} }
func IteratorVal(idx int) Value         { return Value{kind: KindIterator, num: int64(idx)} }

func (v Value) Kind() Kind           { return v.kind }
func (v Value) IsInt() bool          { return v.kind == KindInt31 }
func (v Value) IsFloat() bool        { return v.kind == KindFloat }
func (v Value) IsNumber() bool       { return v.kind == KindInt31 || v.kind == KindFloat }
func (v Value) IsUndefined() bool    { return v.kind == KindUndefined }
func (v Value) IsNull() bool         { return v.kind == KindNull }
func (v Value) IsNullish() bool      { return v.kind == KindUndefined || v.kind == KindNull }
func (v Value) IsBool() bool         { return v.kind == KindTrue || v.kind == KindFalse }
func (v Value) IsString() bool       { return v.kind == KindString }
func (v Value) IsObject() bool       { return v.kind == KindObject }
func (v Value) IsArray() bool        { return v.kind == KindArray }
func (v Value) IsClosure() bool      { return v.kind == KindClosure }
func (v Value) IsErrorObject() bool  { return v.kind == KindErrorObject }
func (v Value) IsRegexp() bool       { return v.kind == KindRegexp }
func (v Value) IsIterator() bool     { return v.kind == KindIterator }
func (v Value) IsBuiltin() bool      { return v.kind == KindBuiltin }

// IsCallable reports whether v is a function value (closure, bytecode
// function or native function). Builtin tags such as String are also
// accepted by the call opcodes but are not counted here.
func (v Value) IsCallable() bool {
	switch v.kind {
	case KindClosure, KindBytecodeFunction, KindNativeFunction:
		return true
	}
	return false
}

func (v Value) Int() int64 { return v.num }

func (v Value) Float() float64 {
	if v.kind == KindInt31 {
		return float64(v.num)
	}
	return math.Float64frombits(uint64(v.num))
}

func (v Value) Bool() bool              { return v.kind == KindTrue }
func (v Value) Index() int              { return int(v.num) }
func (v Value) BuiltinTag() BuiltinTag  { return BuiltinTag(v.num) }

// TypeOf implements the `typeof` opcode's canonical strings.
func (v Value) TypeOf() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindTrue, KindFalse:
		return "boolean"
	case KindInt31, KindFloat:
		return "number"
	case KindString:
		return "string"
	case KindClosure, KindBytecodeFunction, KindNativeFunction:
		return "function"
	case KindBuiltin:
		if v.BuiltinTag() == BuiltinFunction {
			return "function"
		}
		return "object"
	default:
		return "object"
	}
}

func (v Value) GoString() string {
	return fmt.Sprintf("Value{kind:%s, num:%d}", v.kind, v.num)
}

// StrictEquals implements `===`: no coercion, but int31/float
// are compared numerically since overflow promotion must not change
// observable identity of a number.
func (v Value) StrictEquals(other Value) bool {
	if v.kind != other.kind {
		if v.IsNumber() && other.IsNumber() {
			return v.Float() == other.Float()
		}
		return false
	}
	switch v.kind {
	case KindInt31, KindString, KindObject, KindArray, KindClosure,
		KindBytecodeFunction, KindNativeFunction, KindErrorObject,
		KindRegexp, KindIterator:
		return v.num == other.num
	case KindFloat:
		return v.Float() == other.Float()
	case KindBuiltin:
		return v.BuiltinTag() == other.BuiltinTag()
	default:
		// undefined, null, true, false: Kind equality is identity.
		return true
	}
}
