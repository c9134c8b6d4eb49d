// Command benchmark runs the RO-PUF harvesting benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-quick      Run only the core benchmarks
//	-responses  Responses harvested per device (default: 64)
//	-v          Log verbosity for pipeline events
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/stdr"

	"github.com/sarchlab/ropuf/benchmarks"
)

func main() {
	os.Exit(run())
}

func run() int {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	quick := flag.Bool("quick", false, "Run only the core benchmarks")
	responses := flag.Int("responses", 64, "Responses harvested per device")
	verbosity := flag.Int("v", 0, "Log verbosity for pipeline events")
	flag.Parse()

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))

	config := benchmarks.DefaultConfig()
	config.Responses = *responses
	config.Output = os.Stdout
	config.Logger = logger

	harness := benchmarks.NewHarness(config)
	if *quick {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetStandardBenchmarks())
	}

	human := !*csvOutput && !*jsonOutput
	if human {
		fmt.Println("RO-PUF Harvest Benchmark Harness")
		fmt.Println("================================")
		fmt.Printf("Responses per device: %d\n", config.Responses)
		fmt.Printf("Verify threshold:     %.0f%% of bits\n", 100*config.Threshold)
		fmt.Println("")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := harness.RunAll(ctx)

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			logger.Error(err, "failed to write report")
			return 1
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- intra distance near 0 and inter distance near 0.5 for a good device")
		fmt.Println("- fast_race: cycles per response dominated by per-bit overhead")
		fmt.Println("- slow_race: wait cycles dominate")
		fmt.Println("- noisy: intra distance rises, same-device accept rate falls")
	}

	for _, r := range results {
		if r.Error != "" {
			return 1
		}
	}
	return 0
}
