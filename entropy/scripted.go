package entropy

import "github.com/sarchlab/ropuf/pairs"

// Scripted is a deterministic Source that reports a fixed sequence of
// results, each after a fixed number of cycles.
//
// The script position is kept across Reset; only Rewind restarts it. Once
// the script is exhausted the last result repeats, unless Cycle was set.
type Scripted struct {
	latency uint64
	results []Bits
	cycle   bool

	next    int
	elapsed uint64

	selected pairs.Pair
	history  []pairs.Pair

	resets uint64
	fired  uint64
}

// NewScripted creates a Scripted source reporting results every latency
// cycles. A latency of zero is treated as one.
func NewScripted(latency uint64, results ...Bits) *Scripted {
	if latency == 0 {
		latency = 1
	}
	if len(results) == 0 {
		results = []Bits{0}
	}
	return &Scripted{
		latency: latency,
		results: append([]Bits(nil), results...),
	}
}

// Cycle makes the script wrap around instead of repeating its last result.
func (s *Scripted) Cycle() *Scripted {
	s.cycle = true
	return s
}

// Reset clears the race in flight.
func (s *Scripted) Reset() {
	s.elapsed = 0
	s.resets++
}

// Poll advances the source by one cycle.
func (s *Scripted) Poll() (Bits, bool) {
	s.elapsed++
	if s.elapsed < s.latency {
		return 0, false
	}
	s.elapsed = 0

	result := s.results[s.next]
	switch {
	case s.next+1 < len(s.results):
		s.next++
	case s.cycle:
		s.next = 0
	}

	s.fired++
	s.history = append(s.history, s.selected)
	return result, true
}

// Select records the routed pair. Scripted results do not depend on it.
func (s *Scripted) Select(p pairs.Pair) {
	if p != s.selected {
		s.elapsed = 0
	}
	s.selected = p
}

// Rewind restarts the script from its first result.
func (s *Scripted) Rewind() {
	s.next = 0
	s.elapsed = 0
}

// Resets returns how many times Reset was called.
func (s *Scripted) Resets() uint64 {
	return s.resets
}

// Fired returns how many results were reported.
func (s *Scripted) Fired() uint64 {
	return s.fired
}

// Pairs returns the pair selected at each reported result.
func (s *Scripted) Pairs() []pairs.Pair {
	return append([]pairs.Pair(nil), s.history...)
}
