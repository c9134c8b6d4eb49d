package pipeline

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/sarchlab/ropuf/entropy"
	"github.com/sarchlab/ropuf/lfsr"
	"github.com/sarchlab/ropuf/pairs"
)

// ErrStalled is returned when a cycle budget runs out before a response is
// produced.
var ErrStalled = errors.New("no response within cycle budget")

// Statistics holds pipeline activity counters.
type Statistics struct {
	// Cycles is the total number of clock edges simulated.
	Cycles uint64
	// Resets is the number of edges with the global reset asserted.
	Resets uint64
	// SeedCaptures is the number of seeds loaded into the LFSR.
	SeedCaptures uint64
	// LFSRSteps is the number of LFSR advances.
	LFSRSteps uint64
	// Appends is the number of winner bits appended to the accumulator.
	Appends uint64
	// Responses is the number of response words captured.
	Responses uint64
	// WaitCycles is the number of OneBit cycles spent waiting for the
	// per-step comparator.
	WaitCycles uint64
}

// CyclesPerResponse returns the average number of cycles per response.
func (s Statistics) CyclesPerResponse() float64 {
	if s.Responses == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Responses)
}

// Pins are the pipeline's external inputs for one clock edge.
type Pins struct {
	// Reset is the raw global reset pin level. Its polarity is set by
	// Config.ResetActiveLow.
	Reset bool
}

// Outputs are the pipeline's external outputs after a clock edge.
type Outputs struct {
	// Response is the response register.
	Response uint64
	// Ready is high for the cycle a new response is captured.
	Ready bool
	// State is the FSM state of the new cycle.
	State State
}

// Response describes one captured response word.
type Response struct {
	// Value is the response word.
	Value uint64
	// Cycle is the edge count at which it was captured.
	Cycle uint64
	// Epoch is the number of seeds captured so far, from 1.
	Epoch uint64
	// Index counts responses since the last seed capture, from 0.
	Index uint64
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger. State transitions are logged at V(1) and
// every edge at V(2).
func WithLogger(logger logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithResponseHook registers a function called for every captured response.
func WithResponseHook(hook func(Response)) PipelineOption {
	return func(p *Pipeline) {
		p.onResponse = hook
	}
}

// Pipeline wires the FSM, LFSR, accumulator, output latch and the two
// comparators into one synchronous circuit. Each Tick is one clock edge.
//
// The seed comparator runs whenever the global reset is released. The
// per-step comparator is reset by the FSM's epoch reset and races only while
// the FSM asserts its step line; its ready pulse and winner bit are
// registered and consumed on the following edge.
type Pipeline struct {
	config Config

	fsm   *FSM
	lfsr  *lfsr.LFSR
	acc   *Accumulator
	latch *OutputLatch

	seedSource entropy.Source
	stepSource entropy.Source
	selector   entropy.PairSelector

	seedReg SeedRegister
	stepReg StepRegister
	pair    pairs.Pair

	epochIndex uint64
	stats      Statistics

	logger     logr.Logger
	onResponse func(Response)
}

// NewPipeline creates a pipeline. The seed source must report at least
// LFSRWidth result bits; the step source reports its winner on bit 0. If the
// step source implements entropy.PairSelector, it is routed the pair drawn
// from the LFSR on every edge.
func NewPipeline(
	config Config,
	seedSource, stepSource entropy.Source,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if seedSource == nil || stepSource == nil {
		panic("pipeline: nil entropy source")
	}

	config = config.Resolve()
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "failed to create pipeline")
	}

	reg, err := lfsr.New(config.LFSRWidth, config.Taps)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create pipeline")
	}

	p := &Pipeline{
		config:     config,
		fsm:        NewFSM(),
		lfsr:       reg,
		acc:        NewAccumulator(config.ResponseWidth),
		latch:      &OutputLatch{},
		seedSource: seedSource,
		stepSource: stepSource,
		logger:     logr.Discard(),
	}
	p.selector, _ = stepSource.(entropy.PairSelector)

	for _, opt := range opts {
		opt(p)
	}

	p.resetCircuit()
	return p, nil
}

// Config returns the resolved configuration.
func (p *Pipeline) Config() Config {
	return p.config
}

// State returns the FSM state of the current cycle.
func (p *Pipeline) State() State {
	return p.fsm.State()
}

// LFSRValue returns the LFSR contents.
func (p *Pipeline) LFSRValue() uint64 {
	return p.lfsr.Value()
}

// Pair returns the pair currently routed to the per-step comparator.
func (p *Pipeline) Pair() pairs.Pair {
	return p.pair
}

// AccumulatorCount returns the number of bits in the accumulator.
func (p *Pipeline) AccumulatorCount() uint {
	return p.acc.Count()
}

// AccumulatorValue returns the accumulator contents.
func (p *Pipeline) AccumulatorValue() uint64 {
	return p.acc.Value()
}

// Response returns the response register.
func (p *Pipeline) Response() uint64 {
	return p.latch.Response()
}

// Ready reports whether a response is being captured this cycle.
func (p *Pipeline) Ready() bool {
	return p.latch.Ready()
}

// Stats returns the pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Tick applies one clock edge with the given pin levels.
func (p *Pipeline) Tick(pins Pins) Outputs {
	p.stats.Cycles++

	if p.config.resetAsserted(pins.Reset) {
		p.stats.Resets++
		if p.fsm.State() != StateIdle {
			p.logger.V(1).Info("global reset", "cycle", p.stats.Cycles, "state", p.fsm.State())
		}
		p.resetCircuit()
		return p.outputs()
	}

	in := Inputs{SeedReady: p.seedReg.Ready, StepReady: p.stepReg.Ready}
	ctl := p.fsm.Controls(in)
	consumed := p.stepReg
	from := p.fsm.State()

	p.tickLFSR(ctl)
	p.tickSeed(ctl)
	p.tickStep(ctl)
	p.tickAccumulator(ctl, consumed)

	in.Full = p.acc.IsFull()
	p.fsm.Tick(in)

	if ctl.StepReset && !consumed.Ready {
		p.stats.WaitCycles++
	}

	next := p.fsm.Controls(Inputs{SeedReady: p.seedReg.Ready, StepReady: p.stepReg.Ready})
	p.latch.Observe(next.Capture, p.acc.Value())

	to := p.fsm.State()
	if from != to {
		p.logger.V(1).Info("state transition", "cycle", p.stats.Cycles, "from", from, "to", to)
	}
	p.logger.V(2).Info("edge", "cycle", p.stats.Cycles, "state", to,
		"lfsr", p.lfsr.Value(), "pair", p.pair, "count", p.acc.Count())

	if p.latch.Captured() {
		p.recordResponse()
	}

	return p.outputs()
}

// tickSeed updates the seed register. The seed comparator runs on every
// edge out of reset; clearing the auxiliary path wins over a new seed. A
// registered seed is held until the auxiliary reset, so the value loaded
// in RegisterSeed is the one whose ready left Idle.
func (p *Pipeline) tickSeed(ctl Controls) {
	bits, ok := p.seedSource.Poll()
	if ctl.AuxReset {
		p.seedReg.Clear()
		return
	}
	if p.seedReg.Ready || !ok {
		return
	}
	p.seedReg.Ready = true
	p.seedReg.Value = uint64(bits)
}

// tickLFSR applies the LFSR enables. A seed load wins over a step.
func (p *Pipeline) tickLFSR(ctl Controls) {
	switch {
	case ctl.LoadSeed:
		p.lfsr.Reset(p.seedReg.Value)
		p.stats.SeedCaptures++
		p.epochIndex = 0
		p.logger.V(1).Info("seed captured", "cycle", p.stats.Cycles, "seed", p.lfsr.Value())
	case ctl.Advance:
		p.lfsr.Step()
		p.stats.LFSRSteps++
	}
}

// tickStep routes the freshly drawn pair and clocks the per-step
// comparator. The comparator is cleared by the epoch reset and held cleared
// while the step line is deasserted.
func (p *Pipeline) tickStep(ctl Controls) {
	p.pair = pairs.Map(p.lfsr.Value(), p.config.Oscillators)
	if p.selector != nil {
		p.selector.Select(p.pair)
	}

	if ctl.CmpReset || !ctl.StepReset {
		p.stepSource.Reset()
		p.stepReg.Clear()
		return
	}

	bits, ok := p.stepSource.Poll()
	p.stepReg.Latch(bits, ok)
}

// tickAccumulator applies the accumulator enables using the step register
// as it was before this edge. A reset wins over an append.
func (p *Pipeline) tickAccumulator(ctl Controls, consumed StepRegister) {
	switch {
	case ctl.AccReset:
		p.acc.Reset()
	case ctl.Append:
		if p.acc.Append(consumed.Bit) {
			p.stats.Appends++
		}
	}
}

func (p *Pipeline) recordResponse() {
	r := Response{
		Value: p.latch.Response(),
		Cycle: p.stats.Cycles,
		Epoch: p.stats.SeedCaptures,
		Index: p.epochIndex,
	}
	p.stats.Responses++
	p.epochIndex++

	p.logger.V(1).Info("response captured",
		"cycle", r.Cycle, "epoch", r.Epoch, "index", r.Index, "value", r.Value)
	if p.onResponse != nil {
		p.onResponse(r)
	}
}

func (p *Pipeline) outputs() Outputs {
	return Outputs{
		Response: p.latch.Response(),
		Ready:    p.latch.Ready(),
		State:    p.fsm.State(),
	}
}

// resetCircuit clears every register and both comparators.
func (p *Pipeline) resetCircuit() {
	p.fsm.Reset()
	p.lfsr.Reset(0)
	p.acc.Reset()
	p.latch.Reset()
	p.seedReg.Clear()
	p.stepReg.Clear()
	p.seedSource.Reset()
	p.stepSource.Reset()
	p.pair = pairs.Map(0, p.config.Oscillators)
	p.epochIndex = 0
}

// Step applies one clock edge with the global reset released.
func (p *Pipeline) Step() Outputs {
	return p.Tick(Pins{Reset: p.config.resetIdle()})
}

// Restart applies one clock edge with the global reset asserted.
func (p *Pipeline) Restart() Outputs {
	return p.Tick(Pins{Reset: !p.config.resetIdle()})
}

// RunCycles applies the given number of edges with the global reset
// released and returns the responses captured meanwhile.
func (p *Pipeline) RunCycles(cycles uint64) []uint64 {
	var responses []uint64
	for i := uint64(0); i < cycles; i++ {
		if out := p.Step(); out.Ready {
			responses = append(responses, out.Response)
		}
	}
	return responses
}

// NextResponse clocks the pipeline until the next response is captured and
// returns it. maxCycles bounds the wait; zero waits as long as ctx allows.
func (p *Pipeline) NextResponse(ctx context.Context, maxCycles uint64) (uint64, error) {
	for n := uint64(0); maxCycles == 0 || n < maxCycles; n++ {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "waiting for response")
		}
		if out := p.Step(); out.Ready {
			return out.Response, nil
		}
	}
	return 0, errors.Wrapf(ErrStalled, "after %d cycles", maxCycles)
}

// Reset clears all circuit state and statistics.
func (p *Pipeline) Reset() {
	p.resetCircuit()
	p.stats = Statistics{}
}
