// Package entropy models the oscillator race comparators that feed the
// harvesting pipeline.
//
// A Source is opaque to the pipeline: it is reset, polled once per clock
// cycle, and eventually reports a result. How long that takes, and how the
// result is produced, is up to the implementation. Scripted sources give
// deterministic results for tests; Comparator sources model a ring
// oscillator bank with process variation and jitter.
package entropy

import "github.com/sarchlab/ropuf/pairs"

// Bits is the value on a comparator's result bus. Bit k holds the winner of
// the k-th compared pair.
type Bits uint64

// Bit returns bit k of b.
func (b Bits) Bit(k uint) bool {
	return b>>k&1 == 1
}

// Source is a variable-latency entropy source.
type Source interface {
	// Reset clears any race in flight. The next Poll starts a new one.
	Reset()

	// Poll advances the source by one clock cycle. It returns true exactly
	// on the cycle a result becomes available, together with that result.
	// The source then starts its next race on its own.
	Poll() (Bits, bool)
}

// PairSelector is implemented by sources that race a selectable pair of
// oscillators instead of a fixed set of lines.
type PairSelector interface {
	// Select routes pair p to the comparator. Selecting a pair other than
	// the current one restarts the race in flight.
	Select(p pairs.Pair)
}
