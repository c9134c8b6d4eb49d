package latency

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// MinStepLatency is the shortest race the per-step comparator may run. A
// ready pulse must never land on the edge that consumes the previous one.
const MinStepLatency = 2

// ErrInvalidConfig is the cause of every validation fault.
var ErrInvalidConfig = errors.New("invalid timing configuration")

// Bounds is an inclusive range of race durations in clock cycles.
type Bounds struct {
	// Min is the shortest race. Must be >= 1.
	Min uint64 `json:"min"`

	// Max is the longest race. Must be >= Min.
	Max uint64 `json:"max"`
}

// Fixed returns bounds holding exactly n cycles.
func Fixed(n uint64) Bounds {
	return Bounds{Min: n, Max: n}
}

// Validate checks that the bounds describe a non-empty range of positive
// durations.
func (b Bounds) Validate() error {
	if b.Min == 0 {
		return errors.Wrap(ErrInvalidConfig, "min must be > 0")
	}
	if b.Min > b.Max {
		return errors.Wrapf(ErrInvalidConfig, "min %d must be <= max %d", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether n lies within the bounds.
func (b Bounds) Contains(n uint64) bool {
	return n >= b.Min && n <= b.Max
}

// TimingConfig holds the race latency bounds of both comparators.
// The core treats these as opaque: it only waits for ready pulses.
type TimingConfig struct {
	// Seed bounds the seed comparator's race. Default: 8-16 cycles.
	Seed Bounds `json:"seed"`

	// Step bounds the per-step comparator's race. Default: 4-12 cycles.
	Step Bounds `json:"step"`
}

// DefaultTimingConfig returns a TimingConfig with default bounds.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		Seed: Bounds{Min: 8, Max: 16},
		Step: Bounds{Min: 4, Max: 12},
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read timing config file")
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse timing config")
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize timing config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write timing config file")
	}

	return nil
}

// Validate checks both bounds and the per-step minimum.
func (c *TimingConfig) Validate() error {
	if err := c.Seed.Validate(); err != nil {
		return errors.WithMessage(err, "seed")
	}
	if err := c.Step.Validate(); err != nil {
		return errors.WithMessage(err, "step")
	}
	if c.Step.Min < MinStepLatency {
		return errors.Wrapf(ErrInvalidConfig,
			"step: min must be >= %d", MinStepLatency)
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	return &TimingConfig{
		Seed: c.Seed,
		Step: c.Step,
	}
}
