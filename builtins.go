package mqjs

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// getField resolves property reads by the base value's kind against a
// static dispatch table — no prototype chain is walked at runtime.
func (vm *VM) getField(base Value, name string) (Value, error) {
	e := vm.engine
	switch base.Kind() {
	case KindObject:
		o := vm.heap.Object(base.Index())
		if v, ok := o.get(name); ok {
			return v, nil
		}
		if v, ok := e.objectProto[name]; ok {
			return v, nil
		}
		if o.hasBuiltin && o.builtinOrigin == BuiltinDate {
			if v, ok := e.dateProto[name]; ok {
				return v, nil
			}
		}
		return Undefined(), nil
	case KindBuiltin:
		if m, ok := e.builtinProps[base.BuiltinTag()]; ok {
			if v, ok := m[name]; ok {
				return v, nil
			}
		}
		return Undefined(), nil
	case KindArray:
		if name == "length" {
			return Int(int64(len(vm.heap.Array(base.Index()).elems))), nil
		}
		if v, ok := e.arrayProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindString:
		if name == "length" {
			return Int(int64(utf8.RuneCountInString(vm.heap.String(base.Index())))), nil
		}
		if v, ok := e.stringProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindInt31, KindFloat:
		if v, ok := e.numberProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindErrorObject:
		err := vm.heap.Error(base.Index())
		switch name {
		case "name":
			return vm.internStr(err.name), nil
		case "message":
			return vm.internStr(err.message), nil
		}
		if v, ok := e.errorProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindRegexp:
		r := vm.heap.Regexp(base.Index())
		switch name {
		case "source":
			return vm.internStr(r.source), nil
		case "flags":
			return vm.internStr(r.flags), nil
		}
		if v, ok := e.regexpProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindClosure, KindBytecodeFunction, KindNativeFunction:
		if v, ok := e.funcProto[name]; ok {
			return v, nil
		}
		return Undefined(), nil
	case KindUndefined, KindNull:
		return Undefined(), vm.throwNew(errType, "cannot read property '%s' of %s", name, base.Kind())
	default:
		return Undefined(), nil
	}
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined()
}

func (e *Engine) addNative(name string, fn NativeFunc) Value {
	e.vm.natives = append(e.vm.natives, nativeEntry{name: name, fn: fn})
	return NativeFunctionVal(len(e.vm.natives) - 1)
}

func (e *Engine) throwNative(kind errorKind, format string, args ...interface{}) error {
	err := e.vm.throwNew(kind, format, args...)
	jt := err.(jsThrow)
	return e.vm.uncaught(jt.v)
}

func (e *Engine) newDateObject() Value {
	idx := e.heap.NewObject()
	o := e.heap.Object(idx)
	o.builtinOrigin = BuiltinDate
	o.hasBuiltin = true
	o.set("ms", Float(float64(time.Now().UnixMilli())))
	return ObjectVal(idx)
}

// registerBuiltins populates the globals map with the builtin tags and
// the default native functions, and builds the per-kind dispatch
// tables getField consults.
func registerBuiltins(e *Engine) {
	vm := e.vm
	for tag, name := range builtinTagNames {
		vm.globals[name] = BuiltinVal(tag)
	}

	e.registerGlobalNatives()
	e.registerMath()
	e.registerJSON()
	e.registerConsole()
	e.registerObjectBuiltin()
	e.registerArrayProto()
	e.registerStringProto()
	e.registerNumberProto()
	e.registerFunctionProto()
	e.registerErrorAndRegexpProtos()

	e.builtinProps[BuiltinDate] = map[string]Value{
		"now": e.addNative("Date.now", func(e *Engine, this Value, args []Value) (Value, error) {
			// Returned as a float, never clamped to int31.
			return Float(float64(time.Now().UnixMilli())), nil
		}),
	}
	e.dateProto = map[string]Value{
		"getTime": e.addNative("Date.prototype.getTime", func(e *Engine, this Value, args []Value) (Value, error) {
			if !this.IsObject() {
				return Undefined(), e.throwNative(errType, "getTime called on non-Date")
			}
			v, _ := e.heap.Object(this.Index()).get("ms")
			return v, nil
		}),
	}
	e.dateProto["valueOf"] = e.dateProto["getTime"]
}

func (e *Engine) registerGlobalNatives() {
	vm := e.vm
	log := e.addNative("print", func(e *Engine, this Value, args []Value) (Value, error) {
		e.writeJoined(e.Stdout, args)
		return Undefined(), nil
	})
	vm.globals["print"] = log

	vm.globals["gc"] = e.addNative("gc", func(e *Engine, this Value, args []Value) (Value, error) {
		// Deferred to the next safe point: the dispatch loop is the
		// only place the compactor may move entries.
		e.vm.pendingGC = true
		return Undefined(), nil
	})

	vm.globals["parseInt"] = e.addNative("parseInt", func(e *Engine, this Value, args []Value) (Value, error) {
		s := strings.TrimSpace(toJSString(e.heap, arg(args, 0)))
		radix := 10
		if len(args) > 1 && args[1].IsNumber() {
			radix = int(toNumber(e.heap, args[1]))
		}
		neg := false
		if strings.HasPrefix(s, "-") {
			neg, s = true, s[1:]
		} else if strings.HasPrefix(s, "+") {
			s = s[1:]
		}
		if radix == 16 || radix == 0 {
			if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
				s, radix = s[2:], 16
			}
		}
		if radix == 0 {
			radix = 10
		}
		end := 0
		for end < len(s) {
			if _, err := strconv.ParseInt(s[:end+1], radix, 64); err != nil {
				break
			}
			end++
		}
		if end == 0 {
			return Float(math.NaN()), nil
		}
		n, _ := strconv.ParseInt(s[:end], radix, 64)
		if neg {
			n = -n
		}
		return Int(n), nil
	})

	vm.globals["parseFloat"] = e.addNative("parseFloat", func(e *Engine, this Value, args []Value) (Value, error) {
		s := strings.TrimSpace(toJSString(e.heap, arg(args, 0)))
		end := 0
		for end < len(s) {
			if _, err := strconv.ParseFloat(s[:end+1], 64); err != nil {
				break
			}
			end++
		}
		if end == 0 {
			return Float(math.NaN()), nil
		}
		f, _ := strconv.ParseFloat(s[:end], 64)
		return numVal(f), nil
	})

	vm.globals["isNaN"] = e.addNative("isNaN", func(e *Engine, this Value, args []Value) (Value, error) {
		return Bool(math.IsNaN(toNumber(e.heap, arg(args, 0)))), nil
	})
}

func (e *Engine) registerMath() {
	unary := func(name string, fn func(float64) float64) Value {
		return e.addNative("Math."+name, func(e *Engine, this Value, args []Value) (Value, error) {
			return numVal(fn(toNumber(e.heap, arg(args, 0)))), nil
		})
	}
	e.builtinProps[BuiltinMath] = map[string]Value{
		"PI":    Float(math.Pi),
		"E":     Float(math.E),
		"abs":   unary("abs", math.Abs),
		"floor": unary("floor", math.Floor),
		"ceil":  unary("ceil", math.Ceil),
		"round": unary("round", func(f float64) float64 { return math.Floor(f + 0.5) }),
		"sqrt":  unary("sqrt", math.Sqrt),
		"pow": e.addNative("Math.pow", func(e *Engine, this Value, args []Value) (Value, error) {
			return numVal(math.Pow(toNumber(e.heap, arg(args, 0)), toNumber(e.heap, arg(args, 1)))), nil
		}),
		"max": e.addNative("Math.max", func(e *Engine, this Value, args []Value) (Value, error) {
			best := math.Inf(-1)
			for _, a := range args {
				f := toNumber(e.heap, a)
				if math.IsNaN(f) {
					return Float(math.NaN()), nil
				}
				best = math.Max(best, f)
			}
			return numVal(best), nil
		}),
		"min": e.addNative("Math.min", func(e *Engine, this Value, args []Value) (Value, error) {
			best := math.Inf(1)
			for _, a := range args {
				f := toNumber(e.heap, a)
				if math.IsNaN(f) {
					return Float(math.NaN()), nil
				}
				best = math.Min(best, f)
			}
			return numVal(best), nil
		}),
		"random": e.addNative("Math.random", func(e *Engine, this Value, args []Value) (Value, error) {
			return Float(rand.Float64()), nil
		}),
	}
}

func (e *Engine) registerConsole() {
	out := e.addNative("console.log", func(e *Engine, this Value, args []Value) (Value, error) {
		e.writeJoined(e.Stdout, args)
		return Undefined(), nil
	})
	errW := e.addNative("console.error", func(e *Engine, this Value, args []Value) (Value, error) {
		e.writeJoined(e.Stderr, args)
		return Undefined(), nil
	})
	e.builtinProps[BuiltinConsole] = map[string]Value{
		"log":   out,
		"error": errW,
		"warn":  errW,
	}
}

func (e *Engine) registerObjectBuiltin() {
	e.builtinProps[BuiltinObject] = map[string]Value{
		"keys": e.addNative("Object.keys", func(e *Engine, this Value, args []Value) (Value, error) {
			v := arg(args, 0)
			keys := e.vm.forInKeys(v)
			if keys == nil && !v.IsObject() && !v.IsArray() {
				return Undefined(), e.throwNative(errType, "Object.keys called on non-object")
			}
			return ArrayVal(e.heap.NewArray(keys)), nil
		}),
		"assign": e.addNative("Object.assign", func(e *Engine, this Value, args []Value) (Value, error) {
			target := arg(args, 0)
			if !target.IsObject() {
				return Undefined(), e.throwNative(errType, "Object.assign target must be an object")
			}
			to := e.heap.Object(target.Index())
			for _, src := range args[1:] {
				if !src.IsObject() {
					continue
				}
				from := e.heap.Object(src.Index())
				for _, p := range from.props {
					to.set(p.name, p.value)
				}
			}
			return target, nil
		}),
	}
	e.objectProto = map[string]Value{
		"hasOwnProperty": e.addNative("Object.prototype.hasOwnProperty", func(e *Engine, this Value, args []Value) (Value, error) {
			if !this.IsObject() {
				return False(), nil
			}
			_, ok := e.heap.Object(this.Index()).get(toJSString(e.heap, arg(args, 0)))
			return Bool(ok), nil
		}),
	}
}

func (e *Engine) registerArrayProto() {
	thisArray := func(e *Engine, this Value, what string) (*arrayData, error) {
		if !this.IsArray() {
			return nil, e.throwNative(errType, "%s called on non-array", what)
		}
		return e.heap.Array(this.Index()), nil
	}

	e.arrayProto = map[string]Value{
		"push": e.addNative("Array.prototype.push", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "push")
			if err != nil {
				return Undefined(), err
			}
			a.elems = append(a.elems, args...)
			e.heap.bytesUsed += int64(16 * len(args))
			return Int(int64(len(a.elems))), nil
		}),
		"pop": e.addNative("Array.prototype.pop", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "pop")
			if err != nil {
				return Undefined(), err
			}
			if len(a.elems) == 0 {
				return Undefined(), nil
			}
			v := a.elems[len(a.elems)-1]
			a.elems = a.elems[:len(a.elems)-1]
			return v, nil
		}),
		"shift": e.addNative("Array.prototype.shift", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "shift")
			if err != nil {
				return Undefined(), err
			}
			if len(a.elems) == 0 {
				return Undefined(), nil
			}
			v := a.elems[0]
			a.elems = append(a.elems[:0], a.elems[1:]...)
			return v, nil
		}),
		"unshift": e.addNative("Array.prototype.unshift", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "unshift")
			if err != nil {
				return Undefined(), err
			}
			a.elems = append(append([]Value(nil), args...), a.elems...)
			e.heap.bytesUsed += int64(16 * len(args))
			return Int(int64(len(a.elems))), nil
		}),
		"slice": e.addNative("Array.prototype.slice", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "slice")
			if err != nil {
				return Undefined(), err
			}
			start, end := sliceBounds(len(a.elems), args, e.heap)
			return ArrayVal(e.heap.NewArray(append([]Value(nil), a.elems[start:end]...))), nil
		}),
		"indexOf": e.addNative("Array.prototype.indexOf", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "indexOf")
			if err != nil {
				return Undefined(), err
			}
			needle := arg(args, 0)
			from := 0
			if len(args) > 1 {
				from = int(toNumber(e.heap, args[1]))
			}
			for i := from; i >= 0 && i < len(a.elems); i++ {
				if a.elems[i].StrictEquals(needle) {
					return Int(int64(i)), nil
				}
			}
			return Int(-1), nil
		}),
		"join": e.addNative("Array.prototype.join", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "join")
			if err != nil {
				return Undefined(), err
			}
			sep := ","
			if len(args) > 0 && !args[0].IsUndefined() {
				sep = toJSString(e.heap, args[0])
			}
			parts := make([]string, len(a.elems))
			for i, el := range a.elems {
				if !el.IsNullish() {
					parts[i] = toJSString(e.heap, el)
				}
			}
			return e.vm.internStr(strings.Join(parts, sep)), nil
		}),
		"map": e.addNative("Array.prototype.map", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "map")
			if err != nil {
				return Undefined(), err
			}
			out := make([]Value, len(a.elems))
			for i := range a.elems {
				v, err := e.Call(arg(args, 0), Undefined(), []Value{a.elems[i], Int(int64(i)), this})
				if err != nil {
					return Undefined(), err
				}
				out[i] = v
			}
			return ArrayVal(e.heap.NewArray(out)), nil
		}),
		"filter": e.addNative("Array.prototype.filter", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "filter")
			if err != nil {
				return Undefined(), err
			}
			var out []Value
			for i := range a.elems {
				v, err := e.Call(arg(args, 0), Undefined(), []Value{a.elems[i], Int(int64(i)), this})
				if err != nil {
					return Undefined(), err
				}
				if toBoolean(e.heap, v) {
					out = append(out, a.elems[i])
				}
			}
			return ArrayVal(e.heap.NewArray(out)), nil
		}),
		"forEach": e.addNative("Array.prototype.forEach", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "forEach")
			if err != nil {
				return Undefined(), err
			}
			for i := range a.elems {
				if _, err := e.Call(arg(args, 0), Undefined(), []Value{a.elems[i], Int(int64(i)), this}); err != nil {
					return Undefined(), err
				}
			}
			return Undefined(), nil
		}),
		"reduce": e.addNative("Array.prototype.reduce", func(e *Engine, this Value, args []Value) (Value, error) {
			a, err := thisArray(e, this, "reduce")
			if err != nil {
				return Undefined(), err
			}
			i := 0
			var acc Value
			if len(args) > 1 {
				acc = args[1]
			} else {
				if len(a.elems) == 0 {
					return Undefined(), e.throwNative(errType, "reduce of empty array with no initial value")
				}
				acc = a.elems[0]
				i = 1
			}
			for ; i < len(a.elems); i++ {
				v, err := e.Call(arg(args, 0), Undefined(), []Value{acc, a.elems[i], Int(int64(i)), this})
				if err != nil {
					return Undefined(), err
				}
				acc = v
			}
			return acc, nil
		}),
	}
}

// sliceBounds resolves the (start, end) argument convention shared by
// Array.prototype.slice and String.prototype.slice: negative indices
// count from the end, everything clamps into [0, n].
func sliceBounds(n int, args []Value, h *Heap) (int, int) {
	resolve := func(v Value, dflt int) int {
		if v.IsUndefined() {
			return dflt
		}
		i := int(toNumber(h, v))
		if i < 0 {
			i += n
		}
		if i < 0 {
			i = 0
		}
		if i > n {
			i = n
		}
		return i
	}
	start := resolve(arg(args, 0), 0)
	end := resolve(arg(args, 1), n)
	if end < start {
		end = start
	}
	return start, end
}

func (e *Engine) registerStringProto() {
	thisStr := func(e *Engine, this Value) string {
		return toJSString(e.heap, this)
	}

	e.stringProto = map[string]Value{
		"charAt": e.addNative("String.prototype.charAt", func(e *Engine, this Value, args []Value) (Value, error) {
			runes := []rune(thisStr(e, this))
			i := int(toNumber(e.heap, arg(args, 0)))
			if i < 0 || i >= len(runes) {
				return e.vm.internStr(""), nil
			}
			return e.vm.internStr(string(runes[i])), nil
		}),
		"charCodeAt": e.addNative("String.prototype.charCodeAt", func(e *Engine, this Value, args []Value) (Value, error) {
			runes := []rune(thisStr(e, this))
			i := int(toNumber(e.heap, arg(args, 0)))
			if i < 0 || i >= len(runes) {
				return Float(math.NaN()), nil
			}
			return Int(int64(runes[i])), nil
		}),
		"indexOf": e.addNative("String.prototype.indexOf", func(e *Engine, this Value, args []Value) (Value, error) {
			s := thisStr(e, this)
			return Int(int64(strings.Index(s, toJSString(e.heap, arg(args, 0))))), nil
		}),
		"lastIndexOf": e.addNative("String.prototype.lastIndexOf", func(e *Engine, this Value, args []Value) (Value, error) {
			s := thisStr(e, this)
			return Int(int64(strings.LastIndex(s, toJSString(e.heap, arg(args, 0))))), nil
		}),
		"slice": e.addNative("String.prototype.slice", func(e *Engine, this Value, args []Value) (Value, error) {
			runes := []rune(thisStr(e, this))
			start, end := sliceBounds(len(runes), args, e.heap)
			return e.vm.internStr(string(runes[start:end])), nil
		}),
		"substring": e.addNative("String.prototype.substring", func(e *Engine, this Value, args []Value) (Value, error) {
			runes := []rune(thisStr(e, this))
			start, end := sliceBounds(len(runes), args, e.heap)
			return e.vm.internStr(string(runes[start:end])), nil
		}),
		"split": e.addNative("String.prototype.split", func(e *Engine, this Value, args []Value) (Value, error) {
			s := thisStr(e, this)
			if len(args) == 0 || args[0].IsUndefined() {
				return ArrayVal(e.heap.NewArray([]Value{e.vm.internStr(s)})), nil
			}
			parts := strings.Split(s, toJSString(e.heap, args[0]))
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = e.vm.internStr(p)
			}
			return ArrayVal(e.heap.NewArray(out)), nil
		}),
		"replace": e.addNative("String.prototype.replace", func(e *Engine, this Value, args []Value) (Value, error) {
			s := thisStr(e, this)
			pat := arg(args, 0)
			if pat.IsRegexp() {
				return Undefined(), e.throwNative(errType, "regular expression matching is not available")
			}
			return e.vm.internStr(strings.Replace(s, toJSString(e.heap, pat), toJSString(e.heap, arg(args, 1)), 1)), nil
		}),
		"toUpperCase": e.addNative("String.prototype.toUpperCase", func(e *Engine, this Value, args []Value) (Value, error) {
			return e.vm.internStr(strings.ToUpper(thisStr(e, this))), nil
		}),
		"toLowerCase": e.addNative("String.prototype.toLowerCase", func(e *Engine, this Value, args []Value) (Value, error) {
			return e.vm.internStr(strings.ToLower(thisStr(e, this))), nil
		}),
		"trim": e.addNative("String.prototype.trim", func(e *Engine, this Value, args []Value) (Value, error) {
			return e.vm.internStr(strings.TrimSpace(thisStr(e, this))), nil
		}),
	}
}

func (e *Engine) registerNumberProto() {
	e.numberProto = map[string]Value{
		"toString": e.addNative("Number.prototype.toString", func(e *Engine, this Value, args []Value) (Value, error) {
			f := toNumber(e.heap, this)
			if len(args) == 0 || args[0].IsUndefined() {
				return e.vm.internStr(ftoa(f)), nil
			}
			radix := int(toNumber(e.heap, args[0]))
			if radix < 2 || radix > 36 {
				return Undefined(), e.throwNative(errRange, "toString() radix must be between 2 and 36")
			}
			return e.vm.internStr(strconv.FormatInt(int64(f), radix)), nil
		}),
		"toFixed": e.addNative("Number.prototype.toFixed", func(e *Engine, this Value, args []Value) (Value, error) {
			d := toNumber(e.heap, arg(args, 0))
			digits := 0
			if !math.IsNaN(d) {
				digits = toIndex(d)
			}
			if digits < 0 || digits > 100 {
				return Undefined(), e.throwNative(errRange, "toFixed() digits argument must be between 0 and 100")
			}
			return e.vm.internStr(strconv.FormatFloat(toNumber(e.heap, this), 'f', digits, 64)), nil
		}),
	}
	e.builtinProps[BuiltinNumber] = map[string]Value{
		"MAX_SAFE_INTEGER": Float(9007199254740991),
		"isInteger": e.addNative("Number.isInteger", func(e *Engine, this Value, args []Value) (Value, error) {
			v := arg(args, 0)
			if !v.IsNumber() {
				return False(), nil
			}
			f := v.Float()
			return Bool(f == math.Trunc(f)), nil
		}),
	}
}

func (e *Engine) registerFunctionProto() {
	vm := e.vm
	e.funcProto = map[string]Value{
		"call": e.addNative("Function.prototype.call", func(e *Engine, this Value, args []Value) (Value, error) {
			return e.Call(this, arg(args, 0), restArgs(args, 1))
		}),
		"apply": e.addNative("Function.prototype.apply", func(e *Engine, this Value, args []Value) (Value, error) {
			var callArgs []Value
			if len(args) > 1 && args[1].IsArray() {
				callArgs = e.heap.Array(args[1].Index()).elems
			}
			return e.Call(this, arg(args, 0), callArgs)
		}),
		"bind": e.addNative("Function.prototype.bind", func(e *Engine, this Value, args []Value) (Value, error) {
			// The bound target, this, and argument list are pinned so
			// they stay reachable and index-stable across collections
			// even though the only reference lives in a Go closure.
			targetPin := vm.pin(this)
			thisPin := vm.pin(arg(args, 0))
			boundPin := vm.pin(ArrayVal(e.heap.NewArray(append([]Value(nil), restArgs(args, 1)...))))
			return e.addNative("bound", func(e *Engine, _ Value, callArgs []Value) (Value, error) {
				bound := e.heap.Array(vm.pinned[boundPin].Index()).elems
				all := append(append([]Value(nil), bound...), callArgs...)
				return e.Call(vm.pinned[targetPin], vm.pinned[thisPin], all)
			}), nil
		}),
	}
}

func (e *Engine) registerErrorAndRegexpProtos() {
	e.errorProto = map[string]Value{
		"toString": e.addNative("Error.prototype.toString", func(e *Engine, this Value, args []Value) (Value, error) {
			return e.vm.internStr(toJSString(e.heap, this)), nil
		}),
	}
	// Matching is delegated to an external collaborator; without
	// one installed, the methods exist but refuse to run.
	unavailable := e.addNative("RegExp.prototype.test", func(e *Engine, this Value, args []Value) (Value, error) {
		return Undefined(), e.throwNative(errType, "regular expression matching is not available")
	})
	e.regexpProto = map[string]Value{
		"test": unavailable,
		"exec": unavailable,
	}
}

func (vm *VM) pin(v Value) int {
	vm.pinned = append(vm.pinned, v)
	return len(vm.pinned) - 1
}

func restArgs(args []Value, from int) []Value {
	if len(args) <= from {
		return nil
	}
	return args[from:]
}
