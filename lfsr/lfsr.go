// Package lfsr provides a width-configurable Fibonacci linear-feedback shift
// register used to draw pseudo-random oscillator pair indices.
package lfsr

import (
	"math/bits"

	"github.com/pkg/errors"
)

const (
	// MinWidth is the narrowest supported register.
	MinWidth = 2
	// MaxWidth is the widest supported register.
	MaxWidth = 32
)

// ErrInvalidConfig is the cause of every construction-time fault.
var ErrInvalidConfig = errors.New("invalid lfsr configuration")

// LFSR is a Fibonacci linear-feedback shift register.
//
// The register shifts toward the low end. The incoming bit is the XOR of all
// register bits selected by the tap mask and is inserted at the vacated high
// position.
type LFSR struct {
	width uint
	taps  uint64
	mask  uint64
	value uint64
}

// New creates an LFSR of the given width with the given tap mask.
// Bit k of taps selects register bit k as a feedback input.
func New(width uint, taps uint64) (*LFSR, error) {
	if width < MinWidth || width > MaxWidth {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"width %d outside [%d, %d]", width, MinWidth, MaxWidth)
	}

	mask := uint64(1)<<width - 1
	if taps == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "tap mask is empty")
	}
	if taps&^mask != 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"tap mask %#x does not fit in %d bits", taps, width)
	}

	return &LFSR{width: width, taps: taps, mask: mask}, nil
}

// NewDefault creates an LFSR of the given width using DefaultTaps.
func NewDefault(width uint) (*LFSR, error) {
	taps, ok := DefaultTaps(width)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidConfig, "no default taps for width %d", width)
	}
	return New(width, taps)
}

// Width returns the register width in bits.
func (l *LFSR) Width() uint {
	return l.width
}

// Taps returns the tap mask.
func (l *LFSR) Taps() uint64 {
	return l.taps
}

// Reset loads seed into the register. Bits above the register width are
// dropped.
func (l *LFSR) Reset(seed uint64) {
	l.value = seed & l.mask
}

// Step advances the register by one feedback shift.
func (l *LFSR) Step() {
	feedback := uint64(bits.OnesCount64(l.value&l.taps) & 1)
	l.value = l.value>>1 | feedback<<(l.width-1)
}

// Value returns the register contents in [0, 2^width).
func (l *LFSR) Value() uint64 {
	return l.value
}

// Period steps a copy of the register until its state repeats and returns
// the number of steps taken. It returns 0 if no repeat is found within
// limit steps. The receiver is not modified.
func (l *LFSR) Period(limit int) int {
	probe := *l
	start := probe.value
	for n := 1; n <= limit; n++ {
		probe.Step()
		if probe.value == start {
			return n
		}
	}
	return 0
}
