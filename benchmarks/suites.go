package benchmarks

import (
	"github.com/sarchlab/ropuf/timing/core"
	"github.com/sarchlab/ropuf/timing/latency"
)

// GetStandardBenchmarks returns the standard set of device configurations.
// Each benchmark varies one characteristic of the default device.
func GetStandardBenchmarks() []Benchmark {
	return []Benchmark{
		defaultDevice(),
		smallArray(),
		wideArray(),
		fastRace(),
		slowRace(),
		noisyDevice(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		defaultDevice(),
		smallArray(),
	}
}

func defaultDevice() Benchmark {
	return Benchmark{
		Name:        "default",
		Description: "16 oscillators, 16-bit responses, 4-12 cycle races",
	}
}

func smallArray() Benchmark {
	return Benchmark{
		Name:        "small_array",
		Description: "4 oscillators (6 pairs), 8-bit responses - minimal LFSR",
		Setup: func(config *core.DeviceConfig) {
			config.Pipeline.Oscillators = 4
			config.Pipeline.ResponseWidth = 8
		},
	}
}

func wideArray() Benchmark {
	return Benchmark{
		Name:        "wide_array",
		Description: "64 oscillators (2016 pairs) - 11-bit LFSR",
		Setup: func(config *core.DeviceConfig) {
			config.Pipeline.Oscillators = 64
		},
	}
}

func fastRace() Benchmark {
	return Benchmark{
		Name:        "fast_race",
		Description: "fixed 2-cycle step races - measures pipeline overhead",
		Setup: func(config *core.DeviceConfig) {
			config.Timing.Step = latency.Fixed(latency.MinStepLatency)
		},
	}
}

func slowRace() Benchmark {
	return Benchmark{
		Name:        "slow_race",
		Description: "16-32 cycle step races - wait-dominated harvest",
		Setup: func(config *core.DeviceConfig) {
			config.Timing.Step = latency.Bounds{Min: 16, Max: 32}
		},
	}
}

func noisyDevice() Benchmark {
	return Benchmark{
		Name:        "noisy",
		Description: "jitter comparable to process variation - degraded reliability",
		Setup: func(config *core.DeviceConfig) {
			config.Jitter = 0.02
		},
	}
}
