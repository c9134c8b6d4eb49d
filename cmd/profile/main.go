// Package main provides a profiling wrapper for the PUF model to identify
// performance bottlenecks in the cycle loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sarchlab/ropuf/timing/core"
)

var (
	configPath = flag.String("config", "", "Path to device configuration JSON file")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	cycles     = flag.Uint64("cycles", 10000000, "cycles to simulate")
)

func main() {
	flag.Parse()

	config := core.DefaultDeviceConfig()
	if *configPath != "" {
		var err error
		config, err = core.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading device config: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := core.NewCore(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating device: %v\n", err)
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	simulated := runProfile(ctx, c, *cycles)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		fmt.Printf("\nTimeout reached after %v - stopped early\n", *duration)
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	stats := c.Stats()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Cycles simulated: %s\n", humanize.Comma(int64(simulated)))
	fmt.Printf("Responses: %s\n", humanize.Comma(int64(stats.Responses)))
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if simulated > 0 {
		fmt.Printf("Cycles/second: %s\n", humanize.Comma(int64(float64(simulated)/elapsed.Seconds())))
	}
}

// runProfile ticks the device until the cycle budget or the deadline runs
// out and returns the number of cycles simulated.
func runProfile(ctx context.Context, c *core.Core, budget uint64) uint64 {
	const chunk = 4096

	var n uint64
	for n < budget && ctx.Err() == nil {
		step := min(uint64(chunk), budget-n)
		c.RunCycles(step)
		n += step
	}
	return n
}
