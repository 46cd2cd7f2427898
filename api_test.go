package mqjs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterNative(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	e.RegisterNative("twice", func(e *Engine, this Value, args []Value) (Value, error) {
		return Int(int64(2 * toNumber(e.heap, arg(args, 0)))), nil
	})

	v, err := e.Eval("twice(21);")
	require.NoError(t, err)
	assert.Equal(t, "42", e.Inspect(v))

	t.Run("native errors become thrown values", func(t *testing.T) {
		e.RegisterNative("refuse", func(e *Engine, this Value, args []Value) (Value, error) {
			return Undefined(), e.throwNative(errType, "refused")
		})
		v, err := e.Eval("var r; try { refuse(); } catch (err) { r = err.name + ':' + err.message; } r;")
		require.NoError(t, err)
		assert.Equal(t, `"TypeError:refused"`, e.Inspect(v))
	})

	t.Run("plain Go errors abort evaluation", func(t *testing.T) {
		e.RegisterNative("explode", func(e *Engine, this Value, args []Value) (Value, error) {
			return Undefined(), fmt.Errorf("host-side failure")
		})
		_, err := e.Eval("try { explode(); } catch (err) { 'caught'; }")
		require.Error(t, err)
		assert.ErrorContains(t, err, "host-side failure")
	})
}

func TestHostCall(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	_, err := e.Eval("function dbl(x) { return x * 2; }")
	require.NoError(t, err)

	fn, ok := e.Global("dbl")
	require.True(t, ok)
	require.True(t, fn.IsCallable())

	v, err := e.Call(fn, Undefined(), []Value{Int(21)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())

	t.Run("throws propagate out of Call", func(t *testing.T) {
		_, err := e.Eval("function boom() { throw new RangeError('nope'); }")
		require.NoError(t, err)
		fn, _ := e.Global("boom")
		_, err = e.Call(fn, Undefined(), nil)
		var thrown *ThrownValue
		require.ErrorAs(t, err, &thrown)
		assert.Equal(t, "RangeError", thrown.Name)
	})

	t.Run("calling a non-callable", func(t *testing.T) {
		_, err := e.Call(Int(3), Undefined(), nil)
		var thrown *ThrownValue
		require.ErrorAs(t, err, &thrown)
		assert.Equal(t, "TypeError", thrown.Name)
	})
}

func TestHostValueConstructors(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	s := e.NewString("hi")
	assert.Equal(t, "hi", e.ToString(s))

	a := e.NewArray([]Value{Int(1), e.NewString("two")})
	e.SetGlobal("hosted", a)
	v, err := e.Eval("hosted.length + ':' + hosted[1];")
	require.NoError(t, err)
	assert.Equal(t, `"2:two"`, e.Inspect(v))

	errV := e.NewError("TypeError", "made by host")
	assert.Equal(t, "TypeError: made by host", e.ToString(errV))
}

func TestInterruptHook(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	ticks := 0
	e.SetInterrupt(func() bool {
		ticks++
		return ticks > 5000
	})

	_, err := e.Eval("while (true) { 1 + 1; }")
	var interrupted InterruptError
	require.ErrorAs(t, err, &interrupted)

	// A script-level try/catch must not swallow the interrupt.
	ticks = 0
	_, err = e.Eval("try { while (true) { 1 + 1; } } catch (e) { 'swallowed'; }")
	require.ErrorAs(t, err, &interrupted)
}

func TestInspectFormatting(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	for _, test := range []struct {
		src  string
		want string
	}{
		{"undefined;", "undefined"},
		{"null;", "null"},
		{"'text';", `"text"`},
		{"3.5;", "3.5"},
		{"[1, 'a', [2]];", `[1, "a", [2]]`},
		{"var o = {a: 1, b: 'x'}; o;", `{a: 1, b: "x"}`},
		{"var o = {}; o.me = o; o;", "{me: [circular]}"},
	} {
		v, err := e.Eval(test.src)
		require.NoError(t, err, "src: %s", test.src)
		assert.Equal(t, test.want, e.Inspect(v), "src: %s", test.src)
	}
}

func TestMemoryStatsCensus(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	before := e.MemoryStats()
	_, err := e.Eval("var o = {a: 1}; var a = [1, 2]; function f() {}")
	require.NoError(t, err)
	after := e.MemoryStats()

	assert.Greater(t, after.Objects, before.Objects)
	assert.Greater(t, after.Arrays, before.Arrays)
	assert.Greater(t, after.Functions, before.Functions)
	assert.Greater(t, after.BytesUsed, before.BytesUsed)
}

func TestSeparateEnginesAreIsolated(t *testing.T) {
	a := NewEngine(NewConfig())
	defer a.Destroy()
	b := NewEngine(NewConfig())
	defer b.Destroy()

	_, err := a.Eval("var only_in_a = 1;")
	require.NoError(t, err)

	_, err = b.Eval("only_in_a;")
	var thrown *ThrownValue
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "ReferenceError", thrown.Name)
}
