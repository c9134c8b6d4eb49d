// Package latency provides the race-duration model of the oscillator
// comparators.
//
// Durations are bounded but variable. The pipeline never sees them directly;
// it only waits for the comparators' ready pulses.
package latency

import "math/rand/v2"

// Sampler draws race durations uniformly from a Bounds.
type Sampler struct {
	bounds Bounds
	rng    *rand.Rand
}

// NewSampler creates a Sampler over b seeded with seed. Two samplers with
// the same bounds and seed draw the same sequence.
func NewSampler(b Bounds, seed uint64) *Sampler {
	return &Sampler{
		bounds: b,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

// Bounds returns the sampler's bounds.
func (s *Sampler) Bounds() Bounds {
	return s.bounds
}

// Next returns the next duration in [Min, Max].
func (s *Sampler) Next() uint64 {
	span := s.bounds.Max - s.bounds.Min
	if span == 0 {
		return s.bounds.Min
	}
	return s.bounds.Min + s.rng.Uint64N(span+1)
}
