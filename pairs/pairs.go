// Package pairs converts a linear index into an unordered pair of distinct
// oscillator indices.
//
// Pairs over n elements are enumerated in the canonical order
// (0,1), (0,2), ..., (0,n-1), (1,2), ..., (n-2,n-1): grouped by the smaller
// index i, where group i holds n-1-i pairs.
package pairs

import "math/bits"

// Pair is an unordered pair of distinct indices with I < J.
type Pair struct {
	I int
	J int
}

// Count returns the number of unordered pairs over n elements.
func Count(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// IndexWidth returns the minimal bit width able to enumerate every pair
// index over n elements. It is at least 1.
func IndexWidth(n int) uint {
	c := Count(n)
	if c <= 2 {
		return 1
	}
	return uint(bits.Len(uint(c - 1)))
}

// Map converts k into the k-th pair over n elements. The mapping is a
// bijection from [0, Count(n)) onto all pairs. Indices at or beyond Count(n)
// are folded back into range modulo Count(n). n must be at least 2.
func Map(k uint64, n int) Pair {
	c := uint64(Count(n))
	if c == 0 {
		panic("pairs: need at least two elements")
	}
	k %= c

	i := 0
	for group := uint64(n - 1); k >= group; group-- {
		k -= group
		i++
	}

	return Pair{I: i, J: i + 1 + int(k)}
}

// Index is the inverse of Map for valid pairs.
func Index(p Pair, n int) uint64 {
	// Groups 0..I-1 hold (n-1) + (n-2) + ... + (n-I) pairs.
	before := p.I*(n-1) - p.I*(p.I-1)/2
	return uint64(before + p.J - p.I - 1)
}

// Valid reports whether p is a pair over n elements.
func (p Pair) Valid(n int) bool {
	return p.I >= 0 && p.I < p.J && p.J < n
}
