// Package pascal implements the self-delimiting signed integer encoding
// used in message headers: a balanced ternary body followed by a tryte-level
// sign word that makes the encoding prefix-free.
package pascal

import (
	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/trinary"
)

var (
	// ErrShortBuffer is returned when a decode consumes past the end of the buffer.
	ErrShortBuffer = errors.New("pascal: short buffer")
)

// encodedZero is the canonical encoding of the value zero.
var encodedZero = trinary.Trits{1, 0, 0, -1}

// EncodedLen returns the number of trits Encode produces for value.
func EncodedLen(value int64) int {
	if value == 0 {
		return len(encodedZero)
	}
	length := roundThird(trinary.MinTrits(value))
	return length + length/trinary.TritsPerTryte
}

// Encode returns the self-delimiting encoding of value.
//
// The first length trits hold the balanced ternary body. Every body tryte
// with a non-negative value is negated, except the last, which is negated
// when negative; the bitmask of negated trytes follows the body in balanced
// ternary. Decoders locate the end of the body at the first tryte with a
// positive value.
func Encode(value int64) trinary.Trits {
	if value == 0 {
		out := make(trinary.Trits, len(encodedZero))
		copy(out, encodedZero)
		return out
	}

	length := roundThird(trinary.MinTrits(value))
	out := make(trinary.Trits, length+length/trinary.TritsPerTryte)
	trinary.PutInt(out[:length], value)

	encoding := int64(0)
	numChunks := length / trinary.TritsPerTryte
	for i := 0; i < numChunks-1; i++ {
		chunk := out[i*trinary.TritsPerTryte : (i+1)*trinary.TritsPerTryte]
		if trinary.TritsToInt(chunk) >= 0 {
			negate(chunk)
			encoding |= 1 << i
		}
	}
	last := out[(numChunks-1)*trinary.TritsPerTryte : length]
	if trinary.TritsToInt(last) < 0 {
		negate(last)
		encoding |= 1 << (numChunks - 1)
	}

	trinary.PutInt(out[length:], encoding)
	return out
}

// Decode reads a value encoded by Encode from the start of the buffer and
// returns it together with the number of trits consumed.
func Decode(in trinary.Trits) (value int64, end int, err error) {
	if len(in) >= len(encodedZero) && isEncodedZero(in) {
		return 0, len(encodedZero), nil
	}

	// the body ends at the first tryte with a positive value
	length := 0
	for {
		if length+trinary.TritsPerTryte > len(in) {
			return 0, 0, errors.Wrap(ErrShortBuffer, "unterminated body")
		}
		chunkValue := trinary.TritsToInt(in[length : length+trinary.TritsPerTryte])
		length += trinary.TritsPerTryte
		if chunkValue > 0 {
			break
		}
	}

	tail := length / trinary.TritsPerTryte
	if length+tail > len(in) {
		return 0, 0, errors.Wrap(ErrShortBuffer, "missing sign word")
	}
	encoding := trinary.TritsToInt(in[length : length+tail])

	for i := 0; i < length/trinary.TritsPerTryte; i++ {
		chunkValue := trinary.TritsToInt(in[i*trinary.TritsPerTryte : (i+1)*trinary.TritsPerTryte])
		if encoding&(1<<i) != 0 {
			chunkValue = -chunkValue
		}
		value += chunkValue * pow27(i)
	}
	return value, length + tail, nil
}

func isEncodedZero(in trinary.Trits) bool {
	for i, t := range encodedZero {
		if in[i] != t {
			return false
		}
	}
	return true
}

func negate(trits trinary.Trits) {
	for i := range trits {
		trits[i] = -trits[i]
	}
}

func roundThird(length int) int {
	rem := length % trinary.TritsPerTryte
	if rem == 0 {
		return length
	}
	return length + trinary.TritsPerTryte - rem
}

func pow27(n int) int64 {
	value := int64(1)
	for i := 0; i < n; i++ {
		value *= 27
	}
	return value
}
