package mqjs

// Config carries the engine tunables a host or the CLI driver sets
// before creating an Engine. The engine has few enough knobs that a
// plain struct beats a keyed settings registry: misspelled options
// fail at compile time and the zero-cost reads sit on hot paths
// (consumeSemi, the dispatch loop's safepoint).
type Config struct {
	// MemoryBudgetBytes caps the total arena footprint. An allocation
	// that stays over the cap after a collection raises an
	// "out of memory" thrown value.
	MemoryBudgetBytes int

	// GCThresholdBytes is the allocation volume that arms the next
	// collection between opcode dispatches.
	GCThresholdBytes int

	// StrictSemicolons makes a missing statement terminator a syntax
	// error instead of tolerating it.
	StrictSemicolons bool

	// InterruptChecks is the initial state of the dispatch loop's
	// interrupt polling. SetInterrupt overrides it (on when a hook is
	// installed, off when it is removed), and with no hook installed
	// there is nothing to poll.
	InterruptChecks bool
}

// NewConfig returns a configuration primed with the defaults the
// engine expects.
func NewConfig() *Config {
	return &Config{
		MemoryBudgetBytes: 8 * 1024 * 1024,
		GCThresholdBytes:  256 * 1024,
		StrictSemicolons:  true,
	}
}
