package core

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/timing/latency"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

// DeviceConfig describes one simulated PUF device: its harvesting pipeline,
// its comparator timing and the physics of its oscillator arrays.
type DeviceConfig struct {
	// Pipeline is the harvesting pipeline configuration.
	Pipeline pipeline.Config `json:"pipeline"`

	// Timing bounds the race durations of both comparators.
	Timing latency.TimingConfig `json:"timing"`

	// Variation is the relative standard deviation of oscillator
	// frequencies. Default: 0.02.
	Variation float64 `json:"variation"`

	// Jitter is the relative per-race frequency noise. Default: 0.001.
	Jitter float64 `json:"jitter"`

	// DeviceSeed fixes the oscillator frequencies, i.e. which device this
	// is. Default: 1.
	DeviceSeed uint64 `json:"device_seed"`

	// NoiseSeed seeds race noise. Zero draws a fresh seed from
	// crypto/rand when the core is built.
	NoiseSeed uint64 `json:"noise_seed"`
}

// DefaultDeviceConfig returns a DeviceConfig with default values.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Pipeline:   pipeline.DefaultConfig(),
		Timing:     *latency.DefaultTimingConfig(),
		Variation:  0.02,
		Jitter:     0.001,
		DeviceSeed: 1,
	}
}

// LoadConfig loads a DeviceConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read device config file")
	}

	config := DefaultDeviceConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse device config")
	}

	return config, nil
}

// SaveConfig writes a DeviceConfig to a JSON file.
func (c *DeviceConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize device config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write device config file")
	}

	return nil
}

// Validate checks every part of the configuration.
func (c *DeviceConfig) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return errors.WithMessage(err, "pipeline")
	}
	if err := c.Timing.Validate(); err != nil {
		return errors.WithMessage(err, "timing")
	}
	if c.Variation < 0 || c.Jitter < 0 {
		return errors.Wrap(entropy.ErrInvalidConfig, "variation and jitter must be >= 0")
	}
	return nil
}
