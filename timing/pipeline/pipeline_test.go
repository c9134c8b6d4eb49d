package pipeline_test

import (
	"context"
	"strings"

	"github.com/go-logr/logr/funcr"
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/pairs"
	"github.com/sarchlab/ropuf/timing/latency"
	"github.com/sarchlab/ropuf/timing/pipeline"
)

// silentSource never reports a result.
type silentSource struct{}

func (silentSource) Reset()                     {}
func (silentSource) Poll() (entropy.Bits, bool) { return 0, false }

var _ = Describe("Pipeline", func() {
	var (
		config pipeline.Config
		seed   *entropy.Scripted
		step   *entropy.Scripted
		pipe   *pipeline.Pipeline
	)

	// N=4 gives 6 pairs and a 3-bit LFSR with taps x^3 + x^2 + 1.
	BeforeEach(func() {
		config = pipeline.Config{Oscillators: 4, ResponseWidth: 3}
		seed = entropy.NewScripted(1, 5)
		step = entropy.NewScripted(2, 1, 0, 1)
	})

	JustBeforeEach(func() {
		var err error
		pipe, err = pipeline.NewPipeline(config, seed, step)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start in Idle with an empty response", func() {
		Expect(pipe.State()).To(Equal(pipeline.StateIdle))
		Expect(pipe.Ready()).To(BeFalse())
		Expect(pipe.Response()).To(Equal(uint64(0)))
		Expect(pipe.Config().LFSRWidth).To(Equal(uint(3)))
	})

	It("should load the seed at the RegisterSeed edge", func() {
		out := pipe.Step()
		Expect(out.State).To(Equal(pipeline.StateIdle))

		out = pipe.Step()
		Expect(out.State).To(Equal(pipeline.StateRegisterSeed))
		Expect(pipe.LFSRValue()).To(Equal(uint64(0)))

		out = pipe.Step()
		Expect(out.State).To(Equal(pipeline.StateSeedReady))
		Expect(pipe.LFSRValue()).To(Equal(uint64(5)))

		out = pipe.Step()
		Expect(out.State).To(Equal(pipeline.StateOneBit))
		Expect(pipe.LFSRValue()).To(Equal(uint64(5)))
		Expect(pipe.Stats().SeedCaptures).To(Equal(uint64(1)))
	})

	Context("when the seed comparator reports again before the load", func() {
		BeforeEach(func() {
			seed = entropy.NewScripted(1, 5, 6)
		})

		It("should load the seed that left Idle", func() {
			pipe.Step()
			pipe.Step()
			pipe.Step()
			Expect(pipe.State()).To(Equal(pipeline.StateSeedReady))
			Expect(pipe.LFSRValue()).To(Equal(uint64(5)))
			Expect(seed.Fired()).To(Equal(uint64(3)))
		})
	})

	Describe("End to end", func() {
		It("should harvest 0b101 from winner bits 1, 0, 1", func() {
			var outs []pipeline.Outputs
			for i := 0; i < 13; i++ {
				outs = append(outs, pipe.Step())
			}

			for _, out := range outs[:12] {
				Expect(out.Ready).To(BeFalse())
			}
			last := outs[12]
			Expect(last.Ready).To(BeTrue())
			Expect(last.Response).To(Equal(uint64(0b101)))
			Expect(last.State).To(Equal(pipeline.StateRegisterFifo))

			stats := pipe.Stats()
			Expect(stats.SeedCaptures).To(Equal(uint64(1)))
			Expect(stats.LFSRSteps).To(Equal(uint64(3)))
			Expect(stats.Appends).To(Equal(uint64(3)))
			Expect(stats.Responses).To(Equal(uint64(1)))
			Expect(stats.WaitCycles).To(Equal(uint64(6)))

			// LFSR 5 -> 2 -> 1 -> 4.
			Expect(step.Pairs()).To(Equal([]pairs.Pair{
				{I: 0, J: 3}, {I: 0, J: 2}, {I: 1, J: 3},
			}))
		})

		It("should assert ready on the cycle after the third append", func() {
			for pipe.AccumulatorCount() < 3 {
				out := pipe.Step()
				if pipe.AccumulatorCount() < 3 {
					Expect(out.Ready).To(BeFalse())
				} else {
					Expect(out.Ready).To(BeTrue())
					Expect(out.Response).To(Equal(uint64(0b101)))
				}
			}
		})

		It("should resume OneBit without reseeding", func() {
			pipe.RunCycles(13)

			out := pipe.Step()
			Expect(out.State).To(Equal(pipeline.StateSeedReady))
			Expect(out.Ready).To(BeFalse())
			Expect(out.Response).To(Equal(uint64(0b101)))

			out = pipe.Step()
			Expect(out.State).To(Equal(pipeline.StateOneBit))
			Expect(pipe.AccumulatorCount()).To(Equal(uint(0)))
			Expect(pipe.Stats().SeedCaptures).To(Equal(uint64(1)))
		})

		It("should keep harvesting from the same seed", func() {
			step.Cycle()
			responses := pipe.RunCycles(13 + 3*11)
			Expect(responses).To(Equal([]uint64{0b101, 0b101, 0b101, 0b101}))
			Expect(pipe.Stats().SeedCaptures).To(Equal(uint64(1)))
			Expect(pipe.Stats().Responses).To(Equal(uint64(4)))
		})
	})

	Describe("Global reset", func() {
		It("should return to Idle and clear the accumulator from OneBit", func() {
			pipe.RunCycles(10)
			Expect(pipe.State()).To(Equal(pipeline.StateOneBit))
			Expect(pipe.AccumulatorCount()).To(Equal(uint(2)))

			out := pipe.Restart()
			Expect(out.State).To(Equal(pipeline.StateIdle))
			Expect(out.Ready).To(BeFalse())
			Expect(pipe.AccumulatorCount()).To(Equal(uint(0)))
			Expect(pipe.LFSRValue()).To(Equal(uint64(0)))
		})

		It("should clear ready while a response is being captured", func() {
			out := pipe.Tick(pipeline.Pins{})
			for !out.Ready {
				out = pipe.Tick(pipeline.Pins{})
			}

			out = pipe.Tick(pipeline.Pins{Reset: true})
			Expect(out.Ready).To(BeFalse())
			Expect(out.Response).To(Equal(uint64(0)))
			Expect(out.State).To(Equal(pipeline.StateIdle))
		})

		It("should reacquire a seed after reset", func() {
			pipe.RunCycles(20)
			pipe.Restart()
			step.Rewind()

			responses := pipe.RunCycles(13)
			Expect(responses).To(Equal([]uint64{0b101}))
			Expect(pipe.Stats().SeedCaptures).To(Equal(uint64(2)))
			Expect(pipe.Stats().Resets).To(Equal(uint64(1)))
		})

		It("should hold the pipeline while reset stays asserted", func() {
			for i := 0; i < 5; i++ {
				out := pipe.Restart()
				Expect(out.State).To(Equal(pipeline.StateIdle))
			}
			Expect(seed.Fired()).To(BeZero())
		})

		Context("with an active-low reset pin", func() {
			BeforeEach(func() {
				config.ResetActiveLow = true
			})

			It("should treat a low pin as reset", func() {
				for i := 0; i < 5; i++ {
					out := pipe.Tick(pipeline.Pins{Reset: false})
					Expect(out.State).To(Equal(pipeline.StateIdle))
				}

				pipe.Tick(pipeline.Pins{Reset: true})
				out := pipe.Tick(pipeline.Pins{Reset: true})
				Expect(out.State).To(Equal(pipeline.StateRegisterSeed))
			})

			It("should harvest with the idle level", func() {
				Expect(pipe.RunCycles(13)).To(Equal([]uint64{0b101}))
			})
		})
	})

	Describe("Per-step comparator lines", func() {
		It("should hold the comparator in reset outside OneBit", func() {
			pipe.RunCycles(4)
			Expect(step.Fired()).To(BeZero())
			Expect(step.Resets()).To(BeNumerically(">=", 4))
		})

		It("should clear the comparator on the epoch reset and release it in OneBit", func() {
			pipe.RunCycles(3)
			before := step.Resets()

			pipe.Step()
			Expect(step.Resets()).To(Equal(before + 1))
			Expect(pipe.State()).To(Equal(pipeline.StateOneBit))

			pipe.Step()
			pipe.Step()
			Expect(step.Resets()).To(Equal(before + 1))
		})

		It("should deliver exactly one append per ready pulse", func() {
			step.Cycle()
			pipe.RunCycles(200)
			stats := pipe.Stats()
			Expect(stats.Appends).To(BeNumerically("~", step.Fired(), 1))
			Expect(stats.Appends).To(BeNumerically("<=", step.Fired()))
			Expect(stats.Appends).To(BeNumerically(">=", 3*stats.Responses))
		})
	})

	Describe("Drivers", func() {
		It("should return the next response", func() {
			v, err := pipe.NextResponse(context.Background(), 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint64(0b101)))
		})

		It("should report a stall when the budget runs out", func() {
			var err error
			pipe, err = pipeline.NewPipeline(config, seed, silentSource{})
			Expect(err).NotTo(HaveOccurred())

			_, err = pipe.NextResponse(context.Background(), 50)
			Expect(errors.Cause(err)).To(Equal(pipeline.ErrStalled))
			Expect(pipe.State()).To(Equal(pipeline.StateOneBit))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := pipe.NextResponse(ctx, 0)
			Expect(errors.Cause(err)).To(Equal(context.Canceled))
		})

		It("should report responses to the hook", func() {
			var got []pipeline.Response
			step.Cycle()
			hooked, err := pipeline.NewPipeline(config, seed, step,
				pipeline.WithResponseHook(func(r pipeline.Response) {
					got = append(got, r)
				}))
			Expect(err).NotTo(HaveOccurred())

			hooked.RunCycles(13 + 11)
			Expect(got).To(HaveLen(2))
			Expect(got[0]).To(Equal(pipeline.Response{Value: 0b101, Cycle: 13, Epoch: 1, Index: 0}))
			Expect(got[1].Index).To(Equal(uint64(1)))
			Expect(got[1].Cycle).To(Equal(uint64(24)))
		})

		It("should clear statistics on reset", func() {
			pipe.RunCycles(20)
			pipe.Reset()
			Expect(pipe.Stats()).To(Equal(pipeline.Statistics{}))
			Expect(pipe.State()).To(Equal(pipeline.StateIdle))
		})
	})

	It("should log state transitions", func() {
		var lines []string
		logger := funcr.New(func(prefix, args string) {
			lines = append(lines, args)
		}, funcr.Options{Verbosity: 1})

		logged, err := pipeline.NewPipeline(config, seed, step, pipeline.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		logged.RunCycles(13)

		joined := strings.Join(lines, "\n")
		Expect(joined).To(ContainSubstring(`"state transition"`))
		Expect(joined).To(ContainSubstring(`"seed captured"`))
		Expect(joined).To(ContainSubstring(`"response captured"`))
	})

	It("should reject an invalid configuration", func() {
		_, err := pipeline.NewPipeline(pipeline.Config{Oscillators: 4, ResponseWidth: 20}, seed, step)
		Expect(errors.Cause(err)).To(Equal(pipeline.ErrInvalidConfig))
	})

	It("should panic on a nil source", func() {
		Expect(func() {
			pipeline.NewPipeline(config, nil, step)
		}).To(Panic())
	})

	Context("with ring oscillator comparators", func() {
		newDevice := func(deviceSeed uint64) *pipeline.Pipeline {
			cfg := pipeline.DefaultConfig().Resolve()
			seedCmp, err := entropy.NewComparator(entropy.ComparatorConfig{
				Oscillators: int(2 * cfg.LFSRWidth),
				Latency:     latency.Bounds{Min: 8, Max: 16},
				Variation:   0.02,
				DeviceSeed:  deviceSeed,
				NoiseSeed:   1,
			})
			Expect(err).NotTo(HaveOccurred())
			stepCmp, err := entropy.NewComparator(entropy.ComparatorConfig{
				Oscillators: cfg.Oscillators,
				Latency:     latency.Bounds{Min: 4, Max: 12},
				Variation:   0.02,
				DeviceSeed:  deviceSeed + 1,
				NoiseSeed:   2,
			})
			Expect(err).NotTo(HaveOccurred())

			p, err := pipeline.NewPipeline(cfg, seedCmp, stepCmp)
			Expect(err).NotTo(HaveOccurred())
			return p
		}

		It("should produce reproducible responses for one device", func() {
			a := newDevice(7)
			b := newDevice(7)
			for i := 0; i < 5; i++ {
				ra, err := a.NextResponse(context.Background(), 10000)
				Expect(err).NotTo(HaveOccurred())
				rb, err := b.NextResponse(context.Background(), 10000)
				Expect(err).NotTo(HaveOccurred())
				Expect(ra).To(Equal(rb))
				Expect(ra).To(BeNumerically("<", 1<<16))
			}
			Expect(a.Stats()).To(Equal(b.Stats()))
		})

		It("should wait at least the minimum race per bit", func() {
			p := newDevice(3)
			_, err := p.NextResponse(context.Background(), 10000)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Stats().Cycles).To(BeNumerically(">=", 16*4))
			Expect(p.Stats().Appends).To(Equal(uint64(16)))
		})
	})
})
