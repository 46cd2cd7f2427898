package mqjs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalInspect(t *testing.T, src string) string {
	t.Helper()
	e := NewEngine(NewConfig())
	defer e.Destroy()
	v, err := e.Eval(src)
	require.NoError(t, err, "src: %s", src)
	return e.Inspect(v)
}

func TestArithmeticAndCoercion(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3;", "7"},
		{"(1 + 2) * 3;", "9"},
		{"7 / 2;", "3.5"},
		{"8 / 2;", "4"},
		{"7 % 3;", "1"},
		{"-7 % 3;", "-1"},
		{"2 ** 10;", "1024"},
		{"2 ** 3 ** 2;", "512"}, // right-assoc
		{"-(3);", "-3"},
		{"'' + 42;", `"42"`},
		{"'' + 3.5;", `"3.5"`},
		{"'' + true;", `"true"`},
		{"'' + null;", `"null"`},
		{"'' + undefined;", `"undefined"`},
		{"'a' + 1 + 2;", `"a12"`},
		{"1 + 2 + 'a';", `"3a"`},
		{"'3' * '4';", "12"},
		{"true + 1;", "2"},
		{"null + 1;", "1"},
		{"'' + (undefined + 1);", `"NaN"`},
		{"5 & 3;", "1"},
		{"5 | 3;", "7"},
		{"5 ^ 3;", "6"},
		{"~0;", "-1"},
		{"1 << 10;", "1024"},
		{"-8 >> 2;", "-2"},
		{"-1 >>> 28;", "15"},
		{"1073741823 + 1;", "1073741824"}, // int31 overflow promotes to float
		{"(1073741823 + 1) === 1073741824;", "true"},
		{"'' + 5000050000;", `"5000050000"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestEquality(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"null == undefined;", "true"},
		{"null === undefined;", "false"},
		{"null == 0;", "false"},
		{"'5' == 5;", "true"},
		{"'5' === 5;", "false"},
		{"true == 1;", "true"},
		{"false == '';", "true"},
		{"1 === 1.0;", "true"},
		{"'a' == 'a';", "true"},
		{"'a' != 'b';", "true"},
		{"[1] == [1];", "false"}, // distinct heap identities
		{"var a = [1]; var b = a; a == b;", "true"},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestComparisons(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"1 < 2;", "true"},
		{"2 <= 2;", "true"},
		{"3 > 2.5;", "true"},
		{"'abc' < 'abd';", "true"},
		{"'10' < '9';", "true"}, // string compare, not numeric
		{"'10' < 9;", "false"},  // mixed coerces numeric
		{"undefined < 1;", "false"},
		{"undefined >= 1;", "false"},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestControlFlow(t *testing.T) {
	t.Run("if else chains", func(t *testing.T) {
		src := `
			function grade(n) {
				if (n >= 90) { return "A"; }
				else if (n >= 80) { return "B"; }
				else { return "C"; }
			}
			grade(85) + grade(95) + grade(10);`
		assert.Equal(t, `"BAC"`, evalInspect(t, src))
	})

	t.Run("while accumulates", func(t *testing.T) {
		assert.Equal(t, "45", evalInspect(t, `
			var s = 0;
			var i = 0;
			while (i < 10) { s += i; i++; }
			s;`))
	})

	t.Run("do while runs at least once", func(t *testing.T) {
		assert.Equal(t, "1", evalInspect(t, `
			var n = 0;
			do { n++; } while (false);
			n;`))
	})

	t.Run("for with continue hits update clause", func(t *testing.T) {
		assert.Equal(t, "20", evalInspect(t, `
			var s = 0;
			for (var i = 0; i < 10; i++) {
				if (i % 2 == 1) continue;
				s += i;
			}
			s;`))
	})

	t.Run("break and continue bind to the innermost loop", func(t *testing.T) {
		assert.Equal(t, "24", evalInspect(t, `
			var s = 0;
			for (var i = 0; i < 3; i++) {
				for (var j = 0; j < 3; j++) {
					if (j == 1) continue;
					if (i == 2) break;
					s += 10 * i + j;
				}
			}
			s;`))
	})

	t.Run("ternary", func(t *testing.T) {
		assert.Equal(t, `"yes"`, evalInspect(t, "1 < 2 ? 'yes' : 'no';"))
	})

	t.Run("short circuit and", func(t *testing.T) {
		e := NewEngine(NewConfig())
		defer e.Destroy()
		v, err := e.Eval("var y = 0 && (x = 1); y;")
		require.NoError(t, err)
		assert.Equal(t, "0", e.Inspect(v))
		// The right side never ran, so x was never created.
		_, err = e.Eval("x;")
		var thrown *ThrownValue
		require.ErrorAs(t, err, &thrown)
		assert.Equal(t, "ReferenceError", thrown.Name)
	})

	t.Run("short circuit or keeps the first truthy value", func(t *testing.T) {
		assert.Equal(t, `"left"`, evalInspect(t, "'left' || 'right';"))
		assert.Equal(t, `"right"`, evalInspect(t, "0 || 'right';"))
	})
}

func TestClosures(t *testing.T) {
	t.Run("counter state lives in the closure", func(t *testing.T) {
		src := `
			function makeCounter(start) {
				var count = start;
				return function() { count += 1; return count; };
			}
			var c1 = makeCounter(0);
			var c2 = makeCounter(100);
			'' + c1() + c1() + c1() + ':' + c2();`
		assert.Equal(t, `"123:101"`, evalInspect(t, src))
	})

	t.Run("capture survives the creating activation", func(t *testing.T) {
		src := `
			function outer() { var x = 10; return function() { return x; }; }
			outer()();`
		assert.Equal(t, "10", evalInspect(t, src))
	})

	t.Run("assignment to a capture does not reach the outer local", func(t *testing.T) {
		src := `
			function f() {
				var x = 1;
				var g = function() { x = 99; return x; };
				var got = g();
				return '' + got + ':' + x;
			}
			f();`
		assert.Equal(t, `"99:1"`, evalInspect(t, src))
	})

	t.Run("adders", func(t *testing.T) {
		src := `
			function mk(x) { return function(y) { return x + y; }; }
			var g = mk(5);
			g(3) + mk(10)(3);`
		assert.Equal(t, "21", evalInspect(t, src))
	})

	t.Run("capture threads through intermediate functions", func(t *testing.T) {
		src := `
			function a(v) {
				return function b() {
					return function c() { return v * 2; };
				};
			}
			a(21)()();`
		assert.Equal(t, "42", evalInspect(t, src))
	})
}

func TestVarScoping(t *testing.T) {
	t.Run("var hoists out of nested blocks", func(t *testing.T) {
		assert.Equal(t, "1", evalInspect(t,
			"function f() { if (true) { var x = 1; } return x; } f();"))
	})

	t.Run("var declared by a for loop outlives it", func(t *testing.T) {
		src := `
			function f() {
				for (var i = 0; i < 3; i++) { var last = i; }
				return i + ':' + last;
			}
			f();`
		assert.Equal(t, `"3:2"`, evalInspect(t, src))
	})

	t.Run("let stays block scoped", func(t *testing.T) {
		src := `
			function f() {
				{ let y = 1; }
				try { return y; } catch (e) { return e.name; }
			}
			f();`
		assert.Equal(t, `"ReferenceError"`, evalInspect(t, src))
	})

	t.Run("let shadows a var inside its block only", func(t *testing.T) {
		src := `
			function f() {
				var x = 'outer';
				var seen;
				{ let x = 'inner'; seen = x; }
				return seen + ':' + x;
			}
			f();`
		assert.Equal(t, `"inner:outer"`, evalInspect(t, src))
	})
}

func TestRecursionIsStackless(t *testing.T) {
	t.Run("fibonacci", func(t *testing.T) {
		src := `
			function f(n) { if (n <= 1) return n; return f(n - 1) + f(n - 2); }
			f(10);`
		assert.Equal(t, "55", evalInspect(t, src))
	})

	t.Run("deep linear recursion does not touch the host stack", func(t *testing.T) {
		src := `
			function s(n) { if (n == 0) return 0; return n + s(n - 1); }
			s(20000);`
		assert.Equal(t, "200010000", evalInspect(t, src))
	})
}

func TestExceptions(t *testing.T) {
	t.Run("catch reads the thrown error", func(t *testing.T) {
		assert.Equal(t, `"m"`, evalInspect(t,
			"var r; try { throw new Error('m'); } catch (e) { r = e.message; } r;"))
	})

	t.Run("error subclasses keep their taxonomy name", func(t *testing.T) {
		assert.Equal(t, `"TypeError:x"`, evalInspect(t,
			"var r; try { throw new TypeError('x'); } catch (e) { r = e.name + ':' + e.message; } r;"))
	})

	t.Run("finally runs on normal completion", func(t *testing.T) {
		assert.Equal(t, `"try,finally"`, evalInspect(t, `
			var log = [];
			try { log.push('try'); } finally { log.push('finally'); }
			log.join(',');`))
	})

	t.Run("finally runs on exceptional exit", func(t *testing.T) {
		assert.Equal(t, `"finally,caught"`, evalInspect(t, `
			var log = [];
			try {
				try { throw new Error('x'); } finally { log.push('finally'); }
			} catch (e) { log.push('caught'); }
			log.join(',');`))
	})

	t.Run("throw in finally replaces the pending exception", func(t *testing.T) {
		assert.Equal(t, `"b"`, evalInspect(t, `
			var r;
			try {
				try { throw new Error('a'); } finally { throw new Error('b'); }
			} catch (e) { r = e.message; }
			r;`))
	})

	t.Run("unwinding across nested calls restores the operand stack", func(t *testing.T) {
		// Each level pushes operands mid-expression before the throw
		// fires at depth zero; the handler must see a clean stack and
		// the full sum computed after catch must be unaffected.
		src := `
			function deep(n) {
				if (n == 0) throw new RangeError('bottom');
				return 1 + deep(n - 1);
			}
			var caught = '';
			try { deep(37); } catch (e) { caught = e.name; }
			var s = 0;
			for (var i = 0; i < 10; i++) s += i;
			caught + ':' + s;`
		assert.Equal(t, `"RangeError:45"`, evalInspect(t, src))
	})

	t.Run("runtime errors are catchable", func(t *testing.T) {
		for _, test := range []struct {
			src  string
			want string
		}{
			{"var r; try { null.x; } catch (e) { r = e.name; } r;", `"TypeError"`},
			{"var r; try { missing_global; } catch (e) { r = e.name; } r;", `"ReferenceError"`},
			{"var r; try { undefined(); } catch (e) { r = e.name; } r;", `"TypeError"`},
			{"var r; try { (255).toString(99); } catch (e) { r = e.name; } r;", `"RangeError"`},
		} {
			assert.Equal(t, test.want, evalInspect(t, test.src), "src: %s", test.src)
		}
	})

	t.Run("uncaught throws surface as ThrownValue", func(t *testing.T) {
		e := NewEngine(NewConfig())
		defer e.Destroy()
		_, err := e.Eval("throw new Error('boom');")
		var thrown *ThrownValue
		require.ErrorAs(t, err, &thrown)
		assert.Equal(t, "Error", thrown.Name)
		assert.Equal(t, "boom", thrown.Message)
		assert.Equal(t, "Uncaught Error: boom", thrown.Error())
	})

	t.Run("non-error values can be thrown", func(t *testing.T) {
		assert.Equal(t, "42", evalInspect(t,
			"var r; try { throw 42; } catch (e) { r = e; } r;"))
	})
}

func TestObjectsAndFields(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"var o = {a: 1, b: 2}; o.a + o.b;", "3"},
		{"var o = {}; o.a = 1; o['b'] = 2; o.a + o.b;", "3"},
		{"var o = {a: 1}; o.a = 5; o.a;", "5"},
		{"var o = {a: 1}; 'a' in o;", "true"},
		{"var o = {a: 1}; 'b' in o;", "false"},
		{"var o = {a: 1}; delete o.a; 'a' in o;", "false"},
		{"var o = {a: 1}; o.missing;", "undefined"},
		{"var o = {'quoted key': 7}; o['quoted key'];", "7"},
		{"var o = {1: 'one'}; o[1];", `"one"`},
		{"typeof {};", `"object"`},
		{"var o = {a: {b: {c: 9}}}; o.a.b.c;", "9"},
		{"var o = {n: 1}; o.n += 5; o.n;", "6"},
		{"Object.keys({x: 1, y: 2}).join(',');", `"x,y"`},
		{"var t = {a: 1}; Object.assign(t, {b: 2}); t.a + t.b;", "3"},
		{"({a: 1}).hasOwnProperty('a');", "true"},
		{"({a: 1}).hasOwnProperty('b');", "false"},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestConstructors(t *testing.T) {
	t.Run("new binds this and returns it", func(t *testing.T) {
		assert.Equal(t, "7", evalInspect(t,
			"function P(n) { this.n = n; } new P(7).n;"))
	})

	t.Run("instanceof compares the stored constructor", func(t *testing.T) {
		src := `
			function P(n) { this.n = n; }
			function Q() {}
			var p = new P(1);
			'' + (p instanceof P) + (p instanceof Q);`
		assert.Equal(t, `"truefalse"`, evalInspect(t, src))
	})

	t.Run("explicit object return wins", func(t *testing.T) {
		assert.Equal(t, "5", evalInspect(t,
			"function Q() { this.a = 1; return {a: 5}; } new Q().a;"))
	})

	t.Run("primitive return is ignored", func(t *testing.T) {
		assert.Equal(t, "1", evalInspect(t,
			"function R() { this.a = 1; return 9; } new R().a;"))
	})

	t.Run("builtin error constructors", func(t *testing.T) {
		assert.Equal(t, `"truetrue"`, evalInspect(t,
			"var e = new TypeError('x'); '' + (e instanceof TypeError) + (e instanceof Error);"))
	})
}

func TestArrays(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"[1, 2, 3].length;", "3"},
		{"var a = [1, 2]; a[0] + a[1];", "3"},
		{"var a = [1]; a[3] = 9; a.length;", "4"},
		{"var a = [1]; a[3] = 9; '' + a[2];", `"undefined"`}, // no holes: filled
		{"[5, 6][9];", "undefined"},
		{"var a = []; a.push(1); a.push(2, 3); a.length;", "3"},
		{"var a = [1, 2, 3]; a.pop() + a.length;", "5"},
		{"var a = [1, 2, 3]; a.shift() + a[0];", "3"},
		{"var a = [2]; a.unshift(1); a.join('');", `"12"`},
		{"[1, 2, 3, 4].slice(1, 3).join(',');", `"2,3"`},
		{"[1, 2, 3, 4].slice(-2).join(',');", `"3,4"`},
		{"[10, 20, 30].indexOf(20);", "1"},
		{"[10, 20].indexOf(99);", "-1"},
		{"[1, 2, 3].join('-');", `"1-2-3"`},
		{"[1, null, 2, undefined].join(',');", `"1,,2,"`},
		{"[1, 2, 3].map(function(x) { return x * x; }).join(',');", `"1,4,9"`},
		{"[1, 2, 3, 4].filter(function(x) { return x % 2 == 0; }).join(',');", `"2,4"`},
		{"[1, 2, 3].reduce(function(a, b) { return a + b; });", "6"},
		{"[1, 2, 3].reduce(function(a, b) { return a + b; }, 10);", "16"},
		{"var s = 0; [1, 2, 3].forEach(function(x) { s += x; }); s;", "6"},
		{"var a = [1, 2]; a instanceof Array;", "true"},
		{"new Array(3).length;", "3"},
		{"typeof [];", `"object"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}

	t.Run("squares scenario", func(t *testing.T) {
		src := `
			var a = [];
			for (var i = 0; i < 5; i++) { a.push(i * i); }
			a.join(',');`
		assert.Equal(t, `"0,1,4,9,16"`, evalInspect(t, src))
	})
}

func TestStrings(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"'hello'.length;", "5"},
		{"'hello'.toUpperCase();", `"HELLO"`},
		{"'HeLLo'.toLowerCase();", `"hello"`},
		{"'hello'.charAt(1);", `"e"`},
		{"'A'.charCodeAt(0);", "65"},
		{"'hello'.indexOf('ll');", "2"},
		{"'hello'.indexOf('z');", "-1"},
		{"'hello'.slice(1, 3);", `"el"`},
		{"'hello'.slice(-2);", `"lo"`},
		{"'hello'.substring(3, 5);", `"lo"`},
		{"'a,b,c'.split(',').length;", "3"},
		{"'  pad  '.trim();", `"pad"`},
		{"'aXbXc'.replace('X', '-');", `"a-bXc"`}, // first occurrence only
		{"'abc'[1];", `"b"`},
		{"typeof 'x';", `"string"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestIterationStatements(t *testing.T) {
	t.Run("for in sums own properties", func(t *testing.T) {
		src := `
			var o = {a: 1, b: 2};
			var s = 0;
			for (var k in o) { s += o[k]; }
			s;`
		assert.Equal(t, "3", evalInspect(t, src))
	})

	t.Run("for in keys are strings in insertion order", func(t *testing.T) {
		src := `
			var o = {z: 1, a: 2, m: 3};
			var keys = [];
			for (var k in o) { keys.push(k); }
			keys.join('');`
		assert.Equal(t, `"zam"`, evalInspect(t, src))
	})

	t.Run("iterator snapshots ignore later mutation", func(t *testing.T) {
		src := `
			var o = {a: 1};
			var n = 0;
			for (var k in o) { o['extra' + n] = 1; n++; }
			n;`
		assert.Equal(t, "1", evalInspect(t, src))
	})

	t.Run("for of walks array values", func(t *testing.T) {
		assert.Equal(t, "6", evalInspect(t,
			"var t = 0; for (var v of [1, 2, 3]) { t += v; } t;"))
	})

	t.Run("for of over a string yields characters", func(t *testing.T) {
		assert.Equal(t, `"c-a-t"`, evalInspect(t,
			"var parts = []; for (var ch of 'cat') { parts.push(ch); } parts.join('-');"))
	})

	t.Run("break inside for in leaves a balanced stack", func(t *testing.T) {
		src := `
			var o = {a: 1, b: 2, c: 3};
			var first = '';
			for (var k in o) { first = k; break; }
			first + ':' + (1 + 2);`
		assert.Equal(t, `"a:3"`, evalInspect(t, src))
	})
}

func TestTypeof(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"typeof undefined;", `"undefined"`},
		{"typeof null;", `"object"`},
		{"typeof true;", `"boolean"`},
		{"typeof 1.5;", `"number"`},
		{"typeof 'x';", `"string"`},
		{"typeof function() {};", `"function"`},
		{"typeof Math;", `"object"`},
		{"typeof print;", `"function"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}
}

func TestMathAndNumber(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"Math.max(1, 9, 3);", "9"},
		{"Math.min(4, -2, 8);", "-2"},
		{"Math.abs(-5);", "5"},
		{"Math.floor(1.9);", "1"},
		{"Math.ceil(1.1);", "2"},
		{"Math.round(2.5);", "3"},
		{"Math.sqrt(81);", "9"},
		{"Math.pow(2, 8);", "256"},
		{"Math.floor(Math.PI);", "3"},
		{"(255).toString(16);", `"ff"`},
		{"(3.14159).toFixed(2);", `"3.14"`},
		{"parseInt('42');", "42"},
		{"parseInt('0x1f', 16);", "31"},
		{"parseFloat('2.5rem');", "2.5"},
		{"isNaN('abc');", "true"},
		{"isNaN('12');", "false"},
		{"Number('8') + 1;", "9"},
		{"Number.isInteger(4);", "true"},
		{"Number.isInteger(4.5);", "false"},
		{"String(12) + Boolean(0);", `"12false"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}

	t.Run("Math.random stays in range", func(t *testing.T) {
		assert.Equal(t, "true", evalInspect(t,
			"var r = Math.random(); r >= 0 && r < 1;"))
	})
}

func TestJSON(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"JSON.stringify({a: [1, 'x', true], b: null});", `"{\"a\":[1,\"x\",true],\"b\":null}"`},
		{"JSON.stringify([1, undefined, 2]);", `"[1,null,2]"`},
		{"JSON.stringify('he said \"hi\"');", `"\"he said \\\"hi\\\"\""`},
		{"JSON.parse('{\"a\": [1, 2, {\"b\": true}]}').a[2].b;", "true"},
		{"JSON.parse('[1, 2.5, -3]')[1];", "2.5"},
		{"JSON.parse('\"plain\"');", `"plain"`},
		{"JSON.parse(JSON.stringify({x: {y: [null, false]}})).x.y[1];", "false"},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}

	t.Run("parse errors are SyntaxError throws", func(t *testing.T) {
		assert.Equal(t, `"SyntaxError"`, evalInspect(t,
			"var r; try { JSON.parse('{bad'); } catch (e) { r = e.name; } r;"))
	})

	t.Run("circular structures are a TypeError", func(t *testing.T) {
		assert.Equal(t, `"TypeError"`, evalInspect(t,
			"var o = {}; o.self = o; var r; try { JSON.stringify(o); } catch (e) { r = e.name; } r;"))
	})
}

func TestFunctionsAsValues(t *testing.T) {
	t.Run("arguments object", func(t *testing.T) {
		assert.Equal(t, "12", evalInspect(t,
			"function f() { return arguments.length + arguments[0]; } f(10, 20);"))
	})

	t.Run("missing parameters default to undefined", func(t *testing.T) {
		assert.Equal(t, `"undefined"`, evalInspect(t,
			"function f(a, b) { return '' + b; } f(1);"))
	})

	t.Run("this binds through method calls", func(t *testing.T) {
		src := `
			var o = {n: 41, inc: function() { return this.n + 1; }};
			o.inc();`
		assert.Equal(t, "42", evalInspect(t, src))
	})

	t.Run("plain calls get undefined this", func(t *testing.T) {
		assert.Equal(t, `"undefined"`, evalInspect(t,
			"function f() { return typeof this; } f();"))
	})

	t.Run("call and apply rebind this", func(t *testing.T) {
		src := `
			function get() { return this.v; }
			get.call({v: 1}) + get.apply({v: 2}, []);`
		assert.Equal(t, "3", evalInspect(t, src))
	})

	t.Run("bind prefixes arguments", func(t *testing.T) {
		src := `
			function add(a, b) { return a + b; }
			var inc = add.bind(undefined, 1);
			inc(41);`
		assert.Equal(t, "42", evalInspect(t, src))
	})

	t.Run("callbacks can throw through natives", func(t *testing.T) {
		assert.Equal(t, `"mid"`, evalInspect(t, `
			var r;
			try {
				[1, 2, 3].map(function(x) {
					if (x == 2) throw new Error('mid');
					return x;
				});
			} catch (e) { r = e.message; }
			r;`))
	})
}

func TestRegexpLiterals(t *testing.T) {
	for _, test := range []struct {
		src  string
		want string
	}{
		{"typeof /ab/;", `"object"`},
		{"var r = /a+b/gi; r.source + ':' + r.flags;", `"a+b:gi"`},
		{"'' + /x[/]y/;", `"/x[/]y/"`},
	} {
		t.Run(test.src, func(t *testing.T) {
			assert.Equal(t, test.want, evalInspect(t, test.src))
		})
	}

	t.Run("matching is an external collaborator", func(t *testing.T) {
		assert.Equal(t, `"TypeError"`, evalInspect(t,
			"var r; try { /a/.test('a'); } catch (e) { r = e.name; } r;"))
	})
}

func TestPrintOutput(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()
	var out, errOut bytes.Buffer
	e.Stdout = &out
	e.Stderr = &errOut

	_, err := e.Eval("print('a', 1, true); console.log('b'); console.error('oops'); console.warn('w');")
	require.NoError(t, err)
	assert.Equal(t, "a 1 true\nb\n", out.String())
	assert.Equal(t, "oops\nw\n", errOut.String())
}

func TestEvalResultIsLastExpression(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	v, err := e.Eval("40 + 1; var y = 9;")
	require.NoError(t, err)
	assert.Equal(t, "41", e.Inspect(v))

	// Later evals see earlier top-level declarations.
	v, err = e.Eval("y + 1;")
	require.NoError(t, err)
	assert.Equal(t, "10", e.Inspect(v))
}

func TestImplicitGlobals(t *testing.T) {
	assert.Equal(t, "5", evalInspect(t,
		"function f() { leaked = 5; } f(); leaked;"))
}
