// Package core provides a complete simulated PUF device.
// It builds both oscillator comparators from a DeviceConfig and wires them
// into a harvesting pipeline.
package core

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

// stepArraySalt separates the step array's process variation from the seed
// array's on the same device.
const stepArraySalt = 0x5DEECE66D

// Stats holds activity statistics for the device.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Responses is the number of response words harvested.
	Responses uint64
	// SeedCaptures is the number of seeds acquired.
	SeedCaptures uint64
	// WaitCycles is the number of cycles spent waiting on the step
	// comparator.
	WaitCycles uint64
}

// CyclesPerResponse returns the average number of cycles per response.
func (s Stats) CyclesPerResponse() float64 {
	if s.Responses == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Responses)
}

// Core represents one simulated PUF device.
type Core struct {
	// Pipeline is the underlying harvesting pipeline.
	Pipeline *pipeline.Pipeline

	config   DeviceConfig
	seedBank *entropy.Comparator
	stepBank *entropy.Comparator
}

// NewCore creates a device from config. The seed array has two oscillators
// per LFSR bit; the step array has one oscillator per pipeline oscillator.
func NewCore(config *DeviceConfig, opts ...pipeline.PipelineOption) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid device config")
	}

	cfg := *config
	cfg.Pipeline = cfg.Pipeline.Resolve()
	if cfg.NoiseSeed == 0 {
		seed, err := entropy.NewSeed()
		if err != nil {
			return nil, err
		}
		cfg.NoiseSeed = seed
	}

	seedBank, err := entropy.NewComparator(entropy.ComparatorConfig{
		Oscillators: int(2 * cfg.Pipeline.LFSRWidth),
		Latency:     cfg.Timing.Seed,
		Variation:   cfg.Variation,
		Jitter:      cfg.Jitter,
		DeviceSeed:  cfg.DeviceSeed,
		NoiseSeed:   cfg.NoiseSeed,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "seed comparator")
	}

	stepBank, err := entropy.NewComparator(entropy.ComparatorConfig{
		Oscillators: cfg.Pipeline.Oscillators,
		Latency:     cfg.Timing.Step,
		Variation:   cfg.Variation,
		Jitter:      cfg.Jitter,
		DeviceSeed:  cfg.DeviceSeed ^ stepArraySalt,
		NoiseSeed:   cfg.NoiseSeed + 1,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "step comparator")
	}

	pipe, err := pipeline.NewPipeline(cfg.Pipeline, seedBank, stepBank, opts...)
	if err != nil {
		return nil, err
	}

	return &Core{
		Pipeline: pipe,
		config:   cfg,
		seedBank: seedBank,
		stepBank: stepBank,
	}, nil
}

// Config returns the resolved device configuration.
func (c *Core) Config() DeviceConfig {
	return c.config
}

// StepFrequency returns the nominal relative frequency of step oscillator i.
func (c *Core) StepFrequency(i int) float64 {
	return c.stepBank.Frequency(i)
}

// Tick executes one clock cycle with the reset released.
func (c *Core) Tick() pipeline.Outputs {
	return c.Pipeline.Step()
}

// Harvest collects n response words. maxCycles bounds the wait for each
// response; zero waits as long as ctx allows.
func (c *Core) Harvest(ctx context.Context, n int, maxCycles uint64) ([]uint64, error) {
	responses := make([]uint64, 0, n)
	for len(responses) < n {
		r, err := c.Pipeline.NextResponse(ctx, maxCycles)
		if err != nil {
			return responses, errors.WithMessagef(err, "response %d", len(responses))
		}
		responses = append(responses, r)
	}
	return responses, nil
}

// RunCycles executes the core for the specified number of cycles and
// returns the responses harvested meanwhile.
func (c *Core) RunCycles(cycles uint64) []uint64 {
	return c.Pipeline.RunCycles(cycles)
}

// Stats returns activity statistics for the device.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Responses:    pipeStats.Responses,
		SeedCaptures: pipeStats.SeedCaptures,
		WaitCycles:   pipeStats.WaitCycles,
	}
}

// Restart asserts the global reset for one cycle. The next cycles acquire a
// new seed.
func (c *Core) Restart() {
	c.Pipeline.Restart()
}

// Reset clears all device state and statistics.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
