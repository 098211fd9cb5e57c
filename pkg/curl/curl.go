// Package curl implements the Curl sponge function over a 729-trit state.
package curl

import (
	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/trinary"
)

const (
	// HashLength is the length of the rate region and of one hash in trits.
	HashLength = 243
	// StateLength is the full sponge state length in trits.
	StateLength = 3 * HashLength

	// NumRoundsP27 is the round count used for all operations except address masking.
	NumRoundsP27 = 27
	// NumRoundsP81 is the round count used for address masking.
	NumRoundsP81 = 81
)

// ErrInvalidRounds is returned when the round count is neither 27 nor 81.
var ErrInvalidRounds = errors.New("invalid number of rounds")

// truthTable drives the Curl round function, indexed by a + (b << 2) + 5.
var truthTable = [11]int8{1, 0, -1, 2, 1, -1, 0, 2, -1, 1, 0}

// Curl is a sponge with a 729-trit state and a 243-trit rate.
// The zero state is the reset state; instances are stack-local and must not
// be shared between operations.
type Curl struct {
	state  [StateLength]int8
	rounds int
}

// NewCurl creates a sponge with the given round count (27 or 81).
func NewCurl(rounds int) (*Curl, error) {
	if rounds != NumRoundsP27 && rounds != NumRoundsP81 {
		return nil, errors.Wrapf(ErrInvalidRounds, "%d", rounds)
	}
	return &Curl{rounds: rounds}, nil
}

// NewCurlP27 creates a sponge with 27 rounds.
func NewCurlP27() *Curl {
	return &Curl{rounds: NumRoundsP27}
}

// NewCurlP81 creates a sponge with 81 rounds.
func NewCurlP81() *Curl {
	return &Curl{rounds: NumRoundsP81}
}

// Reset zeroes the state.
func (c *Curl) Reset() {
	c.state = [StateLength]int8{}
}

// Absorb mixes the input into the state in chunks of up to HashLength trits,
// permuting after every chunk.
func (c *Curl) Absorb(in trinary.Trits) {
	for offset := 0; offset < len(in); offset += HashLength {
		end := offset + HashLength
		if end > len(in) {
			end = len(in)
		}
		copy(c.state[:end-offset], in[offset:end])
		c.transform()
	}
}

// Squeeze produces length trits, permuting after every copied rate block.
func (c *Curl) Squeeze(length int) trinary.Trits {
	out := make(trinary.Trits, length)
	for offset := 0; offset < length; offset += HashLength {
		end := offset + HashLength
		if end > length {
			end = length
		}
		copy(out[offset:end], c.state[:end-offset])
		c.transform()
	}
	return out
}

// Rate returns a copy of the first length trits of the state without
// advancing the sponge. length must not exceed StateLength.
func (c *Curl) Rate(length int) trinary.Trits {
	out := make(trinary.Trits, length)
	copy(out, c.state[:length])
	return out
}

// Clone returns an independent copy of the sponge.
func (c *Curl) Clone() *Curl {
	clone := &Curl{rounds: c.rounds}
	clone.state = c.state
	return clone
}

// transform applies the round function. The scanning index is threaded
// across all output positions and rounds.
func (c *Curl) transform() {
	var scratch [StateLength]int8
	idx := 0
	for round := 0; round < c.rounds; round++ {
		scratch = c.state
		for i := 0; i < StateLength; i++ {
			a := scratch[idx]
			if idx < 365 {
				idx += 364
			} else {
				idx -= 365
			}
			b := scratch[idx]
			c.state[i] = truthTable[a+(b<<2)+5]
		}
	}
}
