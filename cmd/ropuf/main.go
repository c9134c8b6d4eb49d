// Command ropuf harvests response words from a simulated ring oscillator PUF.
//
// Usage:
//
//	ropuf [options]
//
// Modes:
//
//	harvest  print response words (default)
//	verify   enroll one harvest, re-harvest the device and verify it
//	trace    print the pipeline outputs of every cycle
//
// Every option can also be set through a ROPUF_* environment variable;
// flags win over the environment.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/enroll"
	"github.com/sarchlab/ropuf/timing/core"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

// settings holds the command options after the environment is applied.
type settings struct {
	Mode        string        `env:"ROPUF_MODE"`
	ConfigPath  string        `env:"ROPUF_CONFIG"`
	WriteConfig string        `env:"ROPUF_WRITE_CONFIG"`
	Responses   int           `env:"ROPUF_RESPONSES"`
	Cycles      uint64        `env:"ROPUF_CYCLES"`
	MaxCycles   uint64        `env:"ROPUF_MAX_CYCLES"`
	Oscillators int           `env:"ROPUF_OSCILLATORS"`
	Width       uint          `env:"ROPUF_RESPONSE_WIDTH"`
	DeviceSeed  uint64        `env:"ROPUF_DEVICE_SEED"`
	NoiseSeed   uint64        `env:"ROPUF_NOISE_SEED"`
	Threshold   int           `env:"ROPUF_THRESHOLD"`
	Verbosity   int           `env:"ROPUF_VERBOSITY"`
	Store       enroll.Config `envPrefix:"ROPUF_ENROLL_"`
}

func defaultSettings() settings {
	return settings{
		Mode:      "harvest",
		Responses: 8,
		Cycles:    64,
		MaxCycles: 100000,
		Threshold: 2,
		Store:     enroll.DefaultConfig(),
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	s := defaultSettings()
	if err := env.Parse(&s); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error reading environment: %v\n", err)
		return 2
	}

	fs := flag.NewFlagSet("ropuf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&s.Mode, "mode", s.Mode, "One of harvest, verify, trace")
	fs.StringVar(&s.ConfigPath, "config", s.ConfigPath, "Path to device configuration JSON file")
	fs.StringVar(&s.WriteConfig, "write-config", s.WriteConfig, "Write the resolved device configuration to this path")
	fs.IntVar(&s.Responses, "n", s.Responses, "Number of responses to harvest")
	fs.Uint64Var(&s.Cycles, "cycles", s.Cycles, "Cycles to trace")
	fs.Uint64Var(&s.MaxCycles, "max-cycles", s.MaxCycles, "Cycle budget per response (0 = unbounded)")
	fs.IntVar(&s.Oscillators, "oscillators", s.Oscillators, "Override the oscillator count")
	fs.UintVar(&s.Width, "width", s.Width, "Override the response width")
	fs.Uint64Var(&s.DeviceSeed, "device", s.DeviceSeed, "Override the device seed")
	fs.Uint64Var(&s.NoiseSeed, "noise", s.NoiseSeed, "Override the noise seed (0 = random)")
	fs.IntVar(&s.Threshold, "threshold", s.Threshold, "Maximum differing bits for a response to verify")
	fs.IntVar(&s.Verbosity, "v", s.Verbosity, "Log verbosity (1 = transitions, 2 = every edge)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	stdr.SetVerbosity(s.Verbosity)
	logger := stdr.New(log.New(stderr, "", log.LstdFlags))

	config, err := deviceConfig(s)
	if err != nil {
		logger.Error(err, "invalid device configuration")
		return 1
	}

	if s.WriteConfig != "" {
		if err := config.SaveConfig(s.WriteConfig); err != nil {
			logger.Error(err, "failed to write device configuration")
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch s.Mode {
	case "harvest":
		err = runHarvest(ctx, stdout, logger, config, s)
	case "verify":
		err = runVerify(ctx, stdout, logger, config, s)
	case "trace":
		err = runTrace(stdout, logger, config, s)
	default:
		err = errors.Errorf("unknown mode %q", s.Mode)
	}
	if err != nil {
		logger.Error(err, "run failed", "mode", s.Mode)
		return 1
	}
	return 0
}

// deviceConfig loads the device configuration and applies overrides.
func deviceConfig(s settings) (*core.DeviceConfig, error) {
	config := core.DefaultDeviceConfig()
	if s.ConfigPath != "" {
		var err error
		config, err = core.LoadConfig(s.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if s.Oscillators != 0 {
		config.Pipeline.Oscillators = s.Oscillators
		config.Pipeline.LFSRWidth = 0
		config.Pipeline.Taps = 0
	}
	if s.Width != 0 {
		config.Pipeline.ResponseWidth = s.Width
	}
	if s.DeviceSeed != 0 {
		config.DeviceSeed = s.DeviceSeed
	}
	if s.NoiseSeed != 0 {
		config.NoiseSeed = s.NoiseSeed
	}

	return config, config.Validate()
}

func runHarvest(
	ctx context.Context,
	w io.Writer,
	logger logr.Logger,
	config *core.DeviceConfig,
	s settings,
) error {
	c, err := core.NewCore(config, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	responses, err := c.Harvest(ctx, s.Responses, s.MaxCycles)
	digits := int(config.Pipeline.ResponseWidth+3) / 4
	for i, r := range responses {
		_, _ = fmt.Fprintf(w, "%4d  0x%0*X\n", i, digits, r)
	}
	printStats(w, c.Stats())
	return err
}

func runVerify(
	ctx context.Context,
	w io.Writer,
	logger logr.Logger,
	config *core.DeviceConfig,
	s settings,
) error {
	store, err := enroll.New(s.Store)
	if err != nil {
		return err
	}

	reference, err := core.NewCore(config,
		pipeline.WithLogger(logger.WithName("enroll")),
		pipeline.WithResponseHook(store.Record))
	if err != nil {
		return err
	}
	if _, err := reference.Harvest(ctx, s.Responses, s.MaxCycles); err != nil {
		return errors.WithMessage(err, "enrollment harvest")
	}

	retestConfig := *config
	retestConfig.NoiseSeed = reference.Config().NoiseSeed + 1

	var verified, failed int
	retest, err := core.NewCore(&retestConfig,
		pipeline.WithLogger(logger.WithName("verify")),
		pipeline.WithResponseHook(func(r pipeline.Response) {
			ch := enroll.ChallengeOf(r)
			result := store.Verify(ch, r.Value, s.Threshold)
			verdict := "ok"
			switch {
			case !result.Found:
				verdict = "not enrolled"
				failed++
			case !result.Accepted:
				verdict = "REJECT"
				failed++
			default:
				verified++
			}
			_, _ = fmt.Fprintf(w, "epoch %d index %3d  0x%X  distance %2d  %s\n",
				ch.Epoch, ch.Index, r.Value, result.Distance, verdict)
		}))
	if err != nil {
		return err
	}
	if _, err := retest.Harvest(ctx, s.Responses, s.MaxCycles); err != nil {
		return errors.WithMessage(err, "verification harvest")
	}

	stats := store.Stats()
	_, _ = fmt.Fprintf(w, "\nVerified %d of %d responses (threshold %d bits)\n",
		verified, verified+failed, s.Threshold)
	_, _ = fmt.Fprintf(w, "Enrollments: %d held, %d evicted\n",
		store.Len(), stats.Evictions)
	printStats(w, retest.Stats())
	return nil
}

func runTrace(w io.Writer, logger logr.Logger, config *core.DeviceConfig, s settings) error {
	c, err := core.NewCore(config, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w, "cycle  state         lfsr      pair      count  ready  response")
	for i := uint64(0); i < s.Cycles; i++ {
		out := c.Tick()
		p := c.Pipeline.Pair()
		_, _ = fmt.Fprintf(w, "%5d  %-12s  %#-8x  (%2d,%2d)  %5d  %-5v  %#x\n",
			i+1, out.State, c.Pipeline.LFSRValue(), p.I, p.J,
			c.Pipeline.AccumulatorCount(), out.Ready, out.Response)
	}
	return nil
}

func printStats(w io.Writer, stats core.Stats) {
	_, _ = fmt.Fprintf(w, "\nCycles:              %s\n", humanize.Comma(int64(stats.Cycles)))
	_, _ = fmt.Fprintf(w, "Responses:           %s\n", humanize.Comma(int64(stats.Responses)))
	_, _ = fmt.Fprintf(w, "Cycles per response: %.1f\n", stats.CyclesPerResponse())
	_, _ = fmt.Fprintf(w, "Seed captures:       %d\n", stats.SeedCaptures)
	_, _ = fmt.Fprintf(w, "Wait cycles:         %s\n", humanize.Comma(int64(stats.WaitCycles)))
}
