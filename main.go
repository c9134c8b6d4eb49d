// Package main provides the entry point for ropuf.
// ropuf is a cycle-level model of a ring oscillator PUF harvesting pipeline.
//
// For the full CLI, use: go run ./cmd/ropuf
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("ropuf - Ring Oscillator PUF Simulator")
	fmt.Println("")
	fmt.Println("Usage: ropuf [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -mode      harvest, verify or trace")
	fmt.Println("  -config    Path to device configuration JSON file")
	fmt.Println("  -n         Number of responses to harvest")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ropuf' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the harvesting benchmarks.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ropuf' instead.")
	}
}
