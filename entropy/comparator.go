package entropy

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/pairs"
	"github.com/sarchlab/ropuf/timing/latency"
)

// MaxOscillators bounds a comparator bank so that every adjacent pair fits
// on the 64-bit result bus.
const MaxOscillators = 128

// ErrInvalidConfig is the cause of every comparator configuration fault.
var ErrInvalidConfig = errors.New("invalid comparator configuration")

// ComparatorConfig describes a ring oscillator bank and its race counter.
type ComparatorConfig struct {
	// Oscillators is the number of ring oscillators in the bank.
	Oscillators int `json:"oscillators"`

	// Latency bounds the number of cycles a race takes.
	Latency latency.Bounds `json:"latency"`

	// Variation is the relative standard deviation of oscillator
	// frequencies across the bank (process variation). It is fixed per
	// device.
	Variation float64 `json:"variation"`

	// Jitter is the relative standard deviation of an oscillator's
	// frequency within a single race.
	Jitter float64 `json:"jitter"`

	// DeviceSeed fixes the process variation, and therefore the device's
	// identity.
	DeviceSeed uint64 `json:"device_seed"`

	// NoiseSeed seeds race jitter and race durations.
	NoiseSeed uint64 `json:"noise_seed"`
}

// Validate checks the configuration.
func (c ComparatorConfig) Validate() error {
	if c.Oscillators < 2 || c.Oscillators > MaxOscillators {
		return errors.Wrapf(ErrInvalidConfig,
			"oscillators %d outside [2, %d]", c.Oscillators, MaxOscillators)
	}
	if err := c.Latency.Validate(); err != nil {
		return errors.Wrap(err, "latency")
	}
	if c.Variation < 0 || c.Jitter < 0 {
		return errors.Wrap(ErrInvalidConfig, "variation and jitter must be >= 0")
	}
	return nil
}

// Comparator models a bank of free-running ring oscillators raced against
// each other by edge counters.
//
// Unselected, it races every adjacent pair (0,1), (2,3), ... and reports
// one winner bit per pair, pair k on bit k. Once a pair is selected through
// Select, it races only that pair and reports a single bit. A winner bit is
// 1 when the lower-indexed oscillator of the pair ran faster.
type Comparator struct {
	config    ComparatorConfig
	frequency []float64
	noise     *rand.Rand
	durations *latency.Sampler

	selected    pairs.Pair
	hasSelected bool

	elapsed  uint64
	duration uint64
}

// NewComparator creates a comparator bank.
func NewComparator(config ComparatorConfig) (*Comparator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	device := rand.New(rand.NewPCG(config.DeviceSeed, ^config.DeviceSeed))
	frequency := make([]float64, config.Oscillators)
	for i := range frequency {
		frequency[i] = 1 + config.Variation*device.NormFloat64()
	}

	c := &Comparator{
		config:    config,
		frequency: frequency,
		noise:     rand.New(rand.NewPCG(config.NoiseSeed, config.NoiseSeed>>1|1)),
		durations: latency.NewSampler(config.Latency, config.NoiseSeed),
	}
	c.restart()
	return c, nil
}

// Config returns the comparator configuration.
func (c *Comparator) Config() ComparatorConfig {
	return c.config
}

// Width returns the number of result bits reported per race.
func (c *Comparator) Width() int {
	if c.hasSelected {
		return 1
	}
	return c.config.Oscillators / 2
}

// Frequency returns the nominal relative frequency of oscillator i.
func (c *Comparator) Frequency(i int) float64 {
	return c.frequency[i]
}

// Reset clears the race in flight.
func (c *Comparator) Reset() {
	c.restart()
}

// Select routes pair p to the race counter.
func (c *Comparator) Select(p pairs.Pair) {
	if !p.Valid(c.config.Oscillators) {
		panic("entropy: selected pair outside the oscillator bank")
	}
	if c.hasSelected && p == c.selected {
		return
	}
	c.selected = p
	c.hasSelected = true
	c.restart()
}

// Poll advances the race by one cycle.
func (c *Comparator) Poll() (Bits, bool) {
	c.elapsed++
	if c.elapsed < c.duration {
		return 0, false
	}

	var result Bits
	if c.hasSelected {
		if c.race(c.selected.I, c.selected.J) {
			result = 1
		}
	} else {
		for k := 0; k < c.config.Oscillators/2; k++ {
			if c.race(2*k, 2*k+1) {
				result |= 1 << uint(k)
			}
		}
	}

	c.restart()
	return result, true
}

// race reports whether oscillator a beats oscillator b in one race.
func (c *Comparator) race(a, b int) bool {
	fa := c.frequency[a] * (1 + c.config.Jitter*c.noise.NormFloat64())
	fb := c.frequency[b] * (1 + c.config.Jitter*c.noise.NormFloat64())
	return fa > fb
}

func (c *Comparator) restart() {
	c.elapsed = 0
	c.duration = c.durations.Next()
}
