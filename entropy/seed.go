package entropy

import (
	crand "crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
)

// NewSeed returns a 64-bit seed read from crypto/rand, for sources that
// should not be reproducible across runs.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, errors.Wrap(err, "read random seed")
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}
