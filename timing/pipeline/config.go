package pipeline

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/lfsr"
	"github.com/sarchlab/ropuf/pairs"
)

const (
	// MinResponseWidth is the narrowest response word.
	MinResponseWidth = 2
	// MaxResponseWidth is the widest response word.
	MaxResponseWidth = 16
)

// ErrInvalidConfig is the cause of every construction-time fault.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Config is the construction-time configuration of a pipeline. It cannot
// change while the pipeline runs.
type Config struct {
	// Oscillators is the number of oscillators the per-step comparator
	// chooses pairs from.
	Oscillators int `json:"oscillators"`

	// LFSRWidth is the LFSR width. Zero selects the minimal index width
	// for Oscillators (at least 2).
	LFSRWidth uint `json:"lfsr_width"`

	// Taps is the LFSR tap mask. Zero selects lfsr.DefaultTaps.
	Taps uint64 `json:"taps"`

	// ResponseWidth is the width of the response word. Must be in [2, 16].
	ResponseWidth uint `json:"response_width"`

	// ResetActiveLow makes the global reset pin assert when driven low.
	ResetActiveLow bool `json:"reset_active_low"`
}

// DefaultConfig returns a 16-oscillator, 16-bit response configuration.
func DefaultConfig() Config {
	return Config{
		Oscillators:   16,
		ResponseWidth: 16,
	}
}

// Pairs returns the number of oscillator pairs.
func (c Config) Pairs() int {
	return pairs.Count(c.Oscillators)
}

// IndexWidth returns the minimal width enumerating every pair index.
func (c Config) IndexWidth() uint {
	return pairs.IndexWidth(c.Oscillators)
}

// Resolve returns a copy of c with the derived LFSR width and taps filled
// in.
func (c Config) Resolve() Config {
	if c.LFSRWidth == 0 {
		c.LFSRWidth = c.IndexWidth()
		if c.LFSRWidth < lfsr.MinWidth {
			c.LFSRWidth = lfsr.MinWidth
		}
	}
	if c.Taps == 0 {
		if taps, ok := lfsr.DefaultTaps(c.LFSRWidth); ok {
			c.Taps = taps
		}
	}
	return c
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if c.Oscillators < 2 || c.Oscillators > entropy.MaxOscillators {
		return errors.Wrapf(ErrInvalidConfig,
			"oscillators %d outside [2, %d]", c.Oscillators, entropy.MaxOscillators)
	}
	if c.ResponseWidth < MinResponseWidth || c.ResponseWidth > MaxResponseWidth {
		return errors.Wrapf(ErrInvalidConfig,
			"response width %d outside [%d, %d]",
			c.ResponseWidth, MinResponseWidth, MaxResponseWidth)
	}

	r := c.Resolve()
	if r.LFSRWidth < r.IndexWidth() {
		return errors.Wrapf(ErrInvalidConfig,
			"lfsr width %d cannot index %d pairs (need %d bits)",
			r.LFSRWidth, r.Pairs(), r.IndexWidth())
	}
	if _, err := lfsr.New(r.LFSRWidth, r.Taps); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "lfsr: %v", err)
	}
	return nil
}

// resetAsserted resolves the reset pin level for the configured polarity.
func (c Config) resetAsserted(level bool) bool {
	return level != c.ResetActiveLow
}

// resetIdle returns the reset pin level that keeps reset deasserted.
func (c Config) resetIdle() bool {
	return c.ResetActiveLow
}
