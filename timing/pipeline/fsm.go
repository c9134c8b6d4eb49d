package pipeline

// State is the FSM's current state.
type State uint8

const (
	// StateIdle waits for the seed comparator.
	StateIdle State = iota
	// StateRegisterSeed loads the seed into the LFSR.
	StateRegisterSeed
	// StateSeedReady clears the accumulator and the per-step comparator.
	StateSeedReady
	// StateOneBit advances the LFSR and waits for one winner bit.
	StateOneBit
	// StateRegisterFifo captures the accumulator into the response register.
	StateRegisterFifo
)

var stateNames = [...]string{
	StateIdle:         "Idle",
	StateRegisterSeed: "RegisterSeed",
	StateSeedReady:    "SeedReady",
	StateOneBit:       "OneBit",
	StateRegisterFifo: "RegisterFifo",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Inputs are the status flags the FSM samples each cycle.
type Inputs struct {
	// Reset is the global reset, already resolved for polarity.
	Reset bool

	// SeedReady is the seed comparator's registered ready flag.
	SeedReady bool

	// StepReady is the per-step comparator's registered ready flag.
	StepReady bool

	// Full is the accumulator's full flag after this edge's append.
	// It only affects the next state.
	Full bool
}

// Controls are the enables and resets the FSM drives during a cycle.
type Controls struct {
	LoadSeed bool // RegisterSeed: load the seed register into the LFSR
	AccReset bool // SeedReady: empty the accumulator
	AuxReset bool // SeedReady: clear the LFSR's seed input path
	CmpReset bool // SeedReady: epoch reset of the per-step comparator

	// StepReset drives the per-step comparator's step line. It is asserted
	// for the whole dwell in OneBit; the comparator races only while it is
	// asserted. A low step line and CmpReset both clear the comparator and
	// its register; the lines differ only in that the step line also gates
	// racing.
	StepReset bool

	Advance bool // OneBit: step the LFSR (first cycle of each bit)
	Append  bool // OneBit: append the registered winner bit
	Capture bool // RegisterFifo: capture the accumulator
}

// FSM sequences the harvesting pipeline. Outputs are decided from the
// current state and inputs; the state changes on the next edge.
type FSM struct {
	state State

	// advance is set when the next OneBit cycle starts a new bit.
	advance bool
}

// NewFSM creates an FSM in StateIdle.
func NewFSM() *FSM {
	return &FSM{}
}

// State returns the current state.
func (f *FSM) State() State {
	return f.state
}

// Reset returns the FSM to StateIdle.
func (f *FSM) Reset() {
	f.state = StateIdle
	f.advance = false
}

// Controls returns the controls driven during the current cycle.
func (f *FSM) Controls(in Inputs) Controls {
	if in.Reset {
		return Controls{}
	}

	switch f.state {
	case StateRegisterSeed:
		return Controls{LoadSeed: true}
	case StateSeedReady:
		return Controls{AccReset: true, AuxReset: true, CmpReset: true}
	case StateOneBit:
		return Controls{
			StepReset: true,
			Advance:   f.advance,
			Append:    in.StepReady,
		}
	case StateRegisterFifo:
		return Controls{Capture: true}
	default:
		return Controls{}
	}
}

// Tick applies one clock edge and returns the controls that were in effect
// during the cycle it ends.
func (f *FSM) Tick(in Inputs) Controls {
	c := f.Controls(in)
	if in.Reset {
		f.Reset()
		return c
	}

	switch f.state {
	case StateIdle:
		if in.SeedReady {
			f.state = StateRegisterSeed
		}
	case StateRegisterSeed:
		f.state = StateSeedReady
	case StateSeedReady:
		f.state = StateOneBit
		f.advance = true
	case StateOneBit:
		f.advance = false
		if in.StepReady {
			if in.Full {
				f.state = StateRegisterFifo
			} else {
				f.advance = true
			}
		}
	case StateRegisterFifo:
		f.state = StateSeedReady
	}

	return c
}
