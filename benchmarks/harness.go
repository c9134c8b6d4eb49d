// Package benchmarks provides harvesting benchmark infrastructure for the
// ring oscillator PUF model.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/bits"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/enroll"
	"github.com/sarchlab/ropuf/timing/core"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Oscillators is the size of the step oscillator array
	Oscillators int `json:"oscillators"`

	// ResponseWidth is the width of a response word in bits
	ResponseWidth uint `json:"response_width"`

	// Responses is the number of response words harvested
	Responses uint64 `json:"responses"`

	// SimulatedCycles is the total cycle count of the reference harvest
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// CyclesPerResponse is the mean harvest latency
	CyclesPerResponse float64 `json:"cycles_per_response"`

	// SeedCaptures is the number of seeds acquired
	SeedCaptures uint64 `json:"seed_captures"`

	// WaitCycles is the number of cycles spent waiting on races
	WaitCycles uint64 `json:"wait_cycles"`

	// Bias is the fraction of response bits that are 1
	Bias float64 `json:"bias"`

	// IntraDistance is the mean fractional Hamming distance between the
	// reference harvest and a re-harvest of the same device
	IntraDistance float64 `json:"intra_distance"`

	// InterDistance is the mean fractional Hamming distance between the
	// reference harvest and a harvest of a different device
	InterDistance float64 `json:"inter_distance"`

	// IntraAcceptRate is the fraction of same-device responses verified
	IntraAcceptRate float64 `json:"intra_accept_rate"`

	// InterAcceptRate is the fraction of other-device responses verified
	InterAcceptRate float64 `json:"inter_accept_rate"`

	// Error is set if the benchmark could not complete
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the benchmark
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single device configuration to harvest from.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup adjusts the default device configuration
	Setup func(config *core.DeviceConfig)
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Responses is the number of response words harvested per device
	Responses int

	// MaxCyclesPerResponse bounds the wait for a single response
	MaxCyclesPerResponse uint64

	// NoiseSeed seeds the reference harvest; re-harvests use NoiseSeed+1
	NoiseSeed uint64

	// Threshold is the fraction of response bits allowed to differ for a
	// response to verify
	Threshold float64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives pipeline events (default: discard)
	Logger logr.Logger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Responses:            64,
		MaxCyclesPerResponse: 100000,
		NoiseSeed:            1,
		Threshold:            0.25,
		Output:               os.Stdout,
		Logger:               logr.Discard(),
	}
}

// Harness runs harvesting benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll(ctx context.Context) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		start := time.Now()
		result, err := h.runBenchmark(ctx, bench)
		result.WallTime = time.Since(start)
		if err != nil {
			result.Error = err.Error()
			h.config.Logger.Error(err, "benchmark failed", "name", bench.Name)
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark harvests a reference set from one device, enrolls it, and
// verifies a re-harvest of the same device and a harvest of another device
// against it.
func (h *Harness) runBenchmark(ctx context.Context, bench Benchmark) (BenchmarkResult, error) {
	config := core.DefaultDeviceConfig()
	if bench.Setup != nil {
		bench.Setup(config)
	}
	config.NoiseSeed = h.config.NoiseSeed

	result := BenchmarkResult{
		Name:          bench.Name,
		Description:   bench.Description,
		Oscillators:   config.Pipeline.Oscillators,
		ResponseWidth: config.Pipeline.ResponseWidth,
	}

	ways := 4
	store, err := enroll.New(enroll.Config{
		Sets: (h.config.Responses + ways - 1) / ways,
		Ways: ways,
	})
	if err != nil {
		return result, err
	}

	reference, stats, err := h.harvest(ctx, config, store.Record)
	if err != nil {
		return result, errors.WithMessage(err, "reference harvest")
	}

	result.Responses = stats.Responses
	result.SimulatedCycles = stats.Cycles
	result.CyclesPerResponse = stats.CyclesPerResponse()
	result.SeedCaptures = stats.SeedCaptures
	result.WaitCycles = stats.WaitCycles
	result.Bias = bias(reference, config.Pipeline.ResponseWidth)

	retest := *config
	retest.NoiseSeed++
	result.IntraDistance, result.IntraAcceptRate, err = h.verify(ctx, &retest, store)
	if err != nil {
		return result, errors.WithMessage(err, "same-device harvest")
	}

	other := retest
	other.DeviceSeed++
	result.InterDistance, result.InterAcceptRate, err = h.verify(ctx, &other, store)
	if err != nil {
		return result, errors.WithMessage(err, "other-device harvest")
	}

	return result, nil
}

// harvest runs one device until the configured number of responses is
// captured. Each captured response is passed to hook.
func (h *Harness) harvest(
	ctx context.Context,
	config *core.DeviceConfig,
	hook func(pipeline.Response),
) ([]pipeline.Response, core.Stats, error) {
	var responses []pipeline.Response
	c, err := core.NewCore(config,
		pipeline.WithLogger(h.config.Logger),
		pipeline.WithResponseHook(func(r pipeline.Response) {
			responses = append(responses, r)
			if hook != nil {
				hook(r)
			}
		}))
	if err != nil {
		return nil, core.Stats{}, err
	}

	_, err = c.Harvest(ctx, h.config.Responses, h.config.MaxCyclesPerResponse)
	return responses, c.Stats(), err
}

// verify harvests from config and checks every response against store. It
// returns the mean fractional distance and the accept rate.
func (h *Harness) verify(
	ctx context.Context,
	config *core.DeviceConfig,
	store *enroll.Store,
) (float64, float64, error) {
	responses, _, err := h.harvest(ctx, config, nil)
	if err != nil {
		return 0, 0, err
	}

	width := config.Pipeline.ResponseWidth
	maxDistance := int(h.config.Threshold * float64(width))

	var distance, accepted, found int
	for _, r := range responses {
		v := store.Verify(enroll.ChallengeOf(r), r.Value, maxDistance)
		if !v.Found {
			continue
		}
		found++
		distance += v.Distance
		if v.Accepted {
			accepted++
		}
	}

	if found == 0 {
		return 0, 0, nil
	}
	return float64(distance) / float64(found*int(width)),
		float64(accepted) / float64(found), nil
}

func bias(responses []pipeline.Response, width uint) float64 {
	if len(responses) == 0 {
		return 0
	}
	ones := 0
	for _, r := range responses {
		ones += bits.OnesCount64(r.Value)
	}
	return float64(ones) / float64(len(responses)*int(width))
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== RO-PUF Harvest Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Geometry: %d oscillators, %d-bit responses\n",
			r.Oscillators, r.ResponseWidth)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:    %s\n", humanize.Comma(int64(r.SimulatedCycles)))
		_, _ = fmt.Fprintf(h.config.Output, "  Responses:           %s\n", humanize.Comma(int64(r.Responses)))
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles per Response: %.1f\n", r.CyclesPerResponse)
		_, _ = fmt.Fprintf(h.config.Output, "  Seed Captures:       %d\n", r.SeedCaptures)
		_, _ = fmt.Fprintf(h.config.Output, "  Wait Cycles:         %s\n", humanize.Comma(int64(r.WaitCycles)))
		_, _ = fmt.Fprintln(h.config.Output, "  --- Quality ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Bias:                %.3f\n", r.Bias)
		_, _ = fmt.Fprintf(h.config.Output, "  Intra Distance:      %.3f (accept %.1f%%)\n",
			r.IntraDistance, 100*r.IntraAcceptRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Inter Distance:      %.3f (accept %.1f%%)\n",
			r.InterDistance, 100*r.InterAcceptRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,oscillators,response_width,responses,cycles,cycles_per_response,seed_captures,wait_cycles,bias,intra_distance,inter_distance,intra_accept,inter_accept")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%.3f,%d,%d,%.4f,%.4f,%.4f,%.4f,%.4f\n",
			r.Name,
			r.Oscillators,
			r.ResponseWidth,
			r.Responses,
			r.SimulatedCycles,
			r.CyclesPerResponse,
			r.SeedCaptures,
			r.WaitCycles,
			r.Bias,
			r.IntraDistance,
			r.InterDistance,
			r.IntraAcceptRate,
			r.InterAcceptRate,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Responses is the number of responses harvested per device
	Responses int `json:"responses"`

	// Threshold is the verification threshold as a fraction of bits
	Threshold float64 `json:"threshold"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that reported an error
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalResponses is the sum of all responses harvested
	TotalResponses uint64 `json:"total_responses"`

	// AverageCyclesPerResponse is the overall mean harvest latency
	AverageCyclesPerResponse float64 `json:"average_cycles_per_response"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in JSON benchmark reports.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalResponses += r.Responses
		summary.TotalWallTime += r.WallTime
		if r.Error != "" {
			summary.Failed++
		}
	}
	if summary.TotalResponses > 0 {
		summary.AverageCyclesPerResponse =
			float64(summary.TotalCycles) / float64(summary.TotalResponses)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Responses: h.config.Responses,
			Threshold: h.config.Threshold,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
