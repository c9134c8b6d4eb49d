// Package pipeline provides the entropy-harvesting control pipeline: the
// FSM that sequences seed capture, pair selection and bit accumulation, the
// accumulator and output latch it drives, and the top-level wiring that
// clocks them together with the two comparators.
package pipeline

import "github.com/sarchlab/ropuf/entropy"

// Accumulator is a fixed-width serial-in shift register (the response
// FIFO). It fills from the most significant bit down: the i-th appended bit
// lands at position width-1-i. It is read only as a whole word.
type Accumulator struct {
	width uint
	value uint64
	count uint
}

// NewAccumulator creates an empty accumulator of the given width.
func NewAccumulator(width uint) *Accumulator {
	return &Accumulator{width: width}
}

// Width returns the accumulator width in bits.
func (a *Accumulator) Width() uint {
	return a.width
}

// Count returns the number of bits appended since the last reset.
func (a *Accumulator) Count() uint {
	return a.count
}

// IsFull reports whether width bits have been appended since the last reset.
func (a *Accumulator) IsFull() bool {
	return a.count == a.width
}

// Value returns the register contents. Positions not yet filled read as 0.
func (a *Accumulator) Value() uint64 {
	return a.value
}

// Reset empties the accumulator.
func (a *Accumulator) Reset() {
	a.value = 0
	a.count = 0
}

// Append shifts bit into the most significant free position. Appending to a
// full accumulator is ignored and returns false.
func (a *Accumulator) Append(bit bool) bool {
	if a.IsFull() {
		return false
	}
	if bit {
		a.value |= 1 << (a.width - 1 - a.count)
	}
	a.count++
	return true
}

// OutputLatch owns the response register. It copies the accumulator into
// the register on the rising edge of the capture enable, so a capture pulse
// of any width yields exactly one copy.
type OutputLatch struct {
	response uint64
	ready    bool
	prev     bool
	captured bool
	captures uint64
}

// Observe samples the capture enable for the current cycle. On a rising
// edge value is copied into the response register.
func (l *OutputLatch) Observe(capture bool, value uint64) {
	l.captured = capture && !l.prev
	if l.captured {
		l.response = value
		l.captures++
	}
	l.prev = capture
	l.ready = capture
}

// Ready returns the raw capture enable of the current cycle.
func (l *OutputLatch) Ready() bool {
	return l.ready
}

// Captured reports whether the last Observe copied a new response.
func (l *OutputLatch) Captured() bool {
	return l.captured
}

// Response returns the response register.
func (l *OutputLatch) Response() uint64 {
	return l.response
}

// Captures returns the number of captures since the last reset.
func (l *OutputLatch) Captures() uint64 {
	return l.captures
}

// Reset clears the response register and the edge detector.
func (l *OutputLatch) Reset() {
	l.response = 0
	l.ready = false
	l.prev = false
	l.captured = false
	l.captures = 0
}

// SeedRegister holds the seed comparator's result bus. It is the LFSR's
// auxiliary input path.
type SeedRegister struct {
	// Ready is the seed comparator's ready pulse, registered.
	Ready bool

	// Value is the last seed reported.
	Value uint64
}

// Clear resets the seed register to empty state.
func (r *SeedRegister) Clear() {
	r.Ready = false
	r.Value = 0
}

// StepRegister holds the per-step comparator's ready pulse and winner bit,
// registered one cycle before the FSM consumes them.
type StepRegister struct {
	// Ready is the per-step comparator's ready pulse.
	Ready bool

	// Bit is the winner bit reported with Ready.
	Bit bool
}

// Clear resets the step register to empty state.
func (r *StepRegister) Clear() {
	r.Ready = false
	r.Bit = false
}

// Latch records a poll result.
func (r *StepRegister) Latch(bits entropy.Bits, ready bool) {
	r.Ready = ready
	r.Bit = ready && bits.Bit(0)
}
