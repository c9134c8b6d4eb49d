// Package enroll provides a bounded challenge/response store using Akita
// cache components.
//
// A verifier enrolls the responses a device produces for a set of
// challenges and later checks fresh responses against them by Hamming
// distance. When the store is full the least recently used enrollment is
// evicted.
package enroll

import (
	"math/bits"

	"github.com/pkg/errors"
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/ropuf/timing/pipeline"
)

// entryBytes is the size of one directory block. One block holds one
// response word.
const entryBytes = 1

// ErrInvalidConfig is the cause of every store configuration fault.
var ErrInvalidConfig = errors.New("invalid enrollment store configuration")

// Config holds store geometry.
type Config struct {
	// Sets is the number of directory sets.
	Sets int `json:"sets" env:"SETS"`
	// Ways is the associativity of each set.
	Ways int `json:"ways" env:"WAYS"`
}

// DefaultConfig returns a store holding 256 enrollments.
func DefaultConfig() Config {
	return Config{
		Sets: 64,
		Ways: 4,
	}
}

// Capacity returns the maximum number of enrollments.
func (c Config) Capacity() int {
	return c.Sets * c.Ways
}

// Validate checks the store geometry.
func (c Config) Validate() error {
	if c.Sets < 1 || c.Ways < 1 {
		return errors.Wrapf(ErrInvalidConfig,
			"sets (%d) and ways (%d) must be >= 1", c.Sets, c.Ways)
	}
	return nil
}

// Challenge names one response of a device: the seed epoch it was harvested
// in and its position within that epoch.
type Challenge struct {
	Epoch uint32
	Index uint32
}

// ChallengeOf returns the challenge a captured pipeline response answers.
func ChallengeOf(r pipeline.Response) Challenge {
	return Challenge{Epoch: uint32(r.Epoch), Index: uint32(r.Index)}
}

// Address returns the directory address of the challenge.
func (c Challenge) Address() uint64 {
	return (uint64(c.Epoch)<<32 | uint64(c.Index)) * entryBytes
}

func challengeAt(addr uint64) Challenge {
	addr /= entryBytes
	return Challenge{Epoch: uint32(addr >> 32), Index: uint32(addr)}
}

// Result is the outcome of a verification.
type Result struct {
	// Found is false if the challenge was never enrolled or was evicted.
	Found bool
	// Distance is the Hamming distance between the enrolled and the
	// presented response.
	Distance int
	// Accepted is true if Found and Distance is within the threshold.
	Accepted bool
}

// Statistics holds store activity counters.
type Statistics struct {
	Enrolls   uint64
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Accepts   uint64
	Rejects   uint64
}

// Store is a bounded challenge/response store.
type Store struct {
	config Config

	// Akita cache directory for tag/LRU management
	directory *akitacache.DirectoryImpl

	// Responses - indexed by (setID * ways + wayID)
	responses []uint64

	stats Statistics
}

// New creates an empty store with the given geometry.
func New(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Store{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			entryBytes,
			akitacache.NewLRUVictimFinder(),
		),
		responses: make([]uint64, config.Capacity()),
	}, nil
}

// Config returns the store geometry.
func (s *Store) Config() Config {
	return s.config
}

// Stats returns store statistics.
func (s *Store) Stats() Statistics {
	return s.stats
}

func (s *Store) slot(block *akitacache.Block) int {
	return block.SetID*s.config.Ways + block.WayID
}

func (s *Store) find(ch Challenge) *akitacache.Block {
	block := s.directory.Lookup(0, ch.Address())
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Enroll records resp as the reference response for ch, replacing an
// earlier enrollment of the same challenge. If another enrollment had to be
// evicted it is returned with evicted set.
func (s *Store) Enroll(ch Challenge, resp uint64) (victim Challenge, evicted bool) {
	s.stats.Enrolls++

	block := s.find(ch)
	if block == nil {
		addr := ch.Address()
		block = s.directory.FindVictim(addr)
		if block.IsValid {
			s.stats.Evictions++
			victim, evicted = challengeAt(block.Tag), true
		}
		block.Tag = addr
		block.IsValid = true
	}

	s.responses[s.slot(block)] = resp
	s.directory.Visit(block)

	return victim, evicted
}

// Record enrolls a captured pipeline response. It has the signature of a
// pipeline response hook.
func (s *Store) Record(r pipeline.Response) {
	s.Enroll(ChallengeOf(r), r.Value)
}

// Lookup returns the enrolled response for ch.
func (s *Store) Lookup(ch Challenge) (uint64, bool) {
	s.stats.Lookups++

	block := s.find(ch)
	if block == nil {
		s.stats.Misses++
		return 0, false
	}

	s.stats.Hits++
	s.directory.Visit(block)
	return s.responses[s.slot(block)], true
}

// Verify compares resp against the enrolled response for ch. The response
// is accepted if at most maxDistance bits differ.
func (s *Store) Verify(ch Challenge, resp uint64, maxDistance int) Result {
	enrolled, ok := s.Lookup(ch)
	if !ok {
		s.stats.Rejects++
		return Result{}
	}

	r := Result{Found: true, Distance: bits.OnesCount64(enrolled ^ resp)}
	r.Accepted = r.Distance <= maxDistance
	if r.Accepted {
		s.stats.Accepts++
	} else {
		s.stats.Rejects++
	}
	return r
}

// Invalidate removes the enrollment of ch. It returns false if ch was not
// enrolled.
func (s *Store) Invalidate(ch Challenge) bool {
	block := s.find(ch)
	if block == nil {
		return false
	}
	block.IsValid = false
	s.responses[s.slot(block)] = 0
	return true
}

// Len returns the number of enrollments held.
func (s *Store) Len() int {
	n := 0
	for _, set := range s.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Reset removes every enrollment and clears statistics.
func (s *Store) Reset() {
	s.directory.Reset()
	clear(s.responses)
	s.stats = Statistics{}
}
