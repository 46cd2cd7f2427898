package mqjs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPreservesReachableGraph(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	_, err := e.Eval(`
		var root = {list: [1, 'two', {three: 3}], self: null};
		root.self = root;
		function touch() { return root.list[2].three; }`)
	require.NoError(t, err)

	// Build garbage so compaction actually slides entries around.
	_, err = e.Eval("for (var i = 0; i < 500; i++) { var junk = [{a: i}, [i], 'g' + i]; }")
	require.NoError(t, err)

	before := e.MemoryStats()
	e.GC()
	after := e.MemoryStats()
	assert.Less(t, after.Objects, before.Objects)
	assert.Less(t, after.Arrays, before.Arrays)

	v, err := e.Eval("touch();")
	require.NoError(t, err)
	assert.Equal(t, "3", e.Inspect(v))

	v, err = e.Eval("root.list[0] + root.list[1];")
	require.NoError(t, err)
	assert.Equal(t, `"1two"`, e.Inspect(v))

	// The cycle through root.self survived as the same identity.
	v, err = e.Eval("root.self === root;")
	require.NoError(t, err)
	assert.Equal(t, "true", e.Inspect(v))
}

func TestClosureStateSurvivesCollection(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	_, err := e.Eval(`
		function makeCounter(start) {
			var count = start;
			return function() { count += 1; return count; };
		}
		var c = makeCounter(40);`)
	require.NoError(t, err)

	v, err := e.Eval("c();")
	require.NoError(t, err)
	assert.Equal(t, "41", e.Inspect(v))

	e.GC()

	v, err = e.Eval("c();")
	require.NoError(t, err)
	assert.Equal(t, "42", e.Inspect(v))
}

func TestSteadyStateMemoryUnderChurn(t *testing.T) {
	cfg := NewConfig()
	cfg.GCThresholdBytes = 16 * 1024
	e := NewEngine(cfg)
	defer e.Destroy()

	// Numeric-only garbage: the string table is append-only, so the
	// workload must not intern fresh strings per iteration for the
	// steady-state comparison to be meaningful.
	churn := "for (var i = 0; i < 5000; i++) { var tmp = [i, [i, i], {n: i}]; }"

	_, err := e.Eval(churn)
	require.NoError(t, err)
	e.GC()
	first := e.MemoryStats().BytesUsed

	for round := 0; round < 3; round++ {
		_, err = e.Eval(churn)
		require.NoError(t, err)
	}
	e.GC()
	assert.LessOrEqual(t, e.MemoryStats().BytesUsed, first)
}

func TestExplicitGCFromScript(t *testing.T) {
	e := NewEngine(NewConfig())
	defer e.Destroy()

	v, err := e.Eval(`
		for (var i = 0; i < 200; i++) { var z = [1, 2, 3]; }
		gc();
		var alive = [7, 8];
		alive.length;`)
	require.NoError(t, err)
	assert.Equal(t, "2", e.Inspect(v))
	e.GC()
	// Only `alive`, plus at most a handful of engine-internal arrays,
	// should remain from the 200 allocated above.
	assert.Less(t, e.MemoryStats().Arrays, 10)
}

func TestThresholdTriggersCollectionAutomatically(t *testing.T) {
	cfg := NewConfig()
	cfg.GCThresholdBytes = 8 * 1024
	e := NewEngine(cfg)
	defer e.Destroy()

	_, err := e.Eval("for (var i = 0; i < 20000; i++) { var tmp = [i, i, i]; }")
	require.NoError(t, err)

	// With a 8 KiB threshold and ~20k dead arrays allocated, the
	// collector must have run many times; the arena cannot still hold
	// them all.
	assert.Less(t, e.MemoryStats().Arrays, 20000)
}

func TestMemoryBudgetExhaustionThrows(t *testing.T) {
	cfg := NewConfig()
	cfg.MemoryBudgetBytes = 96 * 1024
	cfg.GCThresholdBytes = 8 * 1024
	e := NewEngine(cfg)
	defer e.Destroy()

	_, err := e.Eval(`
		var keep = [];
		for (var i = 0; i < 1000000; i++) { keep.push([i, i, i, i]); }`)
	var thrown *ThrownValue
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "Error", thrown.Name)
	assert.Contains(t, thrown.Message, "out of memory")

	// The engine stays usable after the failed run once the hoard is
	// dropped.
	v, err := e.Eval("keep = 0; 1 + 1;")
	require.NoError(t, err)
	assert.Equal(t, "2", e.Inspect(v))
}
