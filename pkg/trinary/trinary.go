// Package trinary implements balanced ternary trit buffers and the
// tryte <-> trit codec used by all cryptographic operations.
package trinary

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	// Radix of the balanced ternary number system.
	Radix = 3
	// TritsPerTryte is the number of trits in one tryte.
	TritsPerTryte = 3
	// TryteAlphabet are all valid tryte characters, '9' encodes the value zero.
	TryteAlphabet = "9ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// MinTryteValue is the minimum value of a tryte.
	MinTryteValue = -13
	// MaxTryteValue is the maximum value of a tryte.
	MaxTryteValue = 13
)

var (
	ErrInvalidTrit         = errors.New("invalid trit")
	ErrInvalidTritsLength  = errors.New("invalid trits length")
	ErrInvalidTrytes       = errors.New("invalid trytes")
	ErrInvalidTrytesLength = errors.New("invalid trytes length")
)

// Trits is a slice of trits, each restricted to {-1, 0, 1}.
type Trits = []int8

// Trytes is a string of tryte alphabet characters.
type Trytes = string

// tryteValueToTrits holds the trit triple for every tryte value, indexed by value+13.
var tryteValueToTrits [27][TritsPerTryte]int8

// tryteToTryteValue maps an alphabet character (by byte) to its tryte value.
var tryteToTryteValue ['Z' + 1]int8

func init() {
	for i := 0; i < len(TryteAlphabet); i++ {
		v := int8(i)
		if v > MaxTryteValue {
			v -= 27
		}
		tryteToTryteValue[TryteAlphabet[i]] = v
	}
	for v := MinTryteValue; v <= MaxTryteValue; v++ {
		rem := int8(v)
		for j := 0; j < TritsPerTryte; j++ {
			t := rem % Radix
			rem /= Radix
			if t == 2 {
				t = -1
				rem++
			} else if t == -2 {
				t = 1
				rem--
			}
			tryteValueToTrits[v-MinTryteValue][j] = t
		}
	}
}

// ValidTrit returns true if t is a trit.
func ValidTrit(t int8) bool {
	return t >= -1 && t <= 1
}

// ValidTrits checks whether all values are trits.
func ValidTrits(trits Trits) error {
	for i, t := range trits {
		if !ValidTrit(t) {
			return errors.Wrapf(ErrInvalidTrit, "at index %d", i)
		}
	}
	return nil
}

// ValidTrytes checks whether the string consists of tryte alphabet characters only.
func ValidTrytes(trytes Trytes) error {
	for _, c := range trytes {
		if (c < 'A' || c > 'Z') && c != '9' {
			return ErrInvalidTrytes
		}
	}
	return nil
}

// TryteValue returns the balanced value of a single tryte character.
func TryteValue(tryte byte) int8 {
	return tryteToTryteValue[tryte]
}

// TrytesToTrits converts trytes to a trit buffer of three trits per tryte.
func TrytesToTrits(trytes Trytes) (Trits, error) {
	if err := ValidTrytes(trytes); err != nil {
		return nil, err
	}
	trits := make(Trits, len(trytes)*TritsPerTryte)
	for i := 0; i < len(trytes); i++ {
		copy(trits[i*TritsPerTryte:], tryteValueToTrits[TryteValue(trytes[i])-MinTryteValue][:])
	}
	return trits, nil
}

// MustTrytesToTrits converts trytes to trits and panics on invalid input.
func MustTrytesToTrits(trytes Trytes) Trits {
	trits, err := TrytesToTrits(trytes)
	if err != nil {
		panic(err)
	}
	return trits
}

// TritsToTrytes converts a trit buffer to trytes. The length must be a multiple of three.
func TritsToTrytes(trits Trits) (Trytes, error) {
	if len(trits)%TritsPerTryte != 0 {
		return "", ErrInvalidTritsLength
	}
	if err := ValidTrits(trits); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(trits) / TritsPerTryte)
	for i := 0; i < len(trits); i += TritsPerTryte {
		v := trits[i] + trits[i+1]*3 + trits[i+2]*9
		if v < 0 {
			v += 27
		}
		sb.WriteByte(TryteAlphabet[v])
	}
	return sb.String(), nil
}

// MustTritsToTrytes converts trits to trytes and panics on invalid input.
func MustTritsToTrytes(trits Trits) Trytes {
	trytes, err := TritsToTrytes(trits)
	if err != nil {
		panic(err)
	}
	return trytes
}

// TritsToInt interprets the buffer as a little-endian balanced ternary number.
func TritsToInt(trits Trits) int64 {
	var value int64
	for i := len(trits) - 1; i >= 0; i-- {
		value = value*Radix + int64(trits[i])
	}
	return value
}

// PutInt writes the balanced ternary representation of value into the whole
// buffer, zero-filling the unused most significant trits. The buffer must be
// large enough to hold the value.
func PutInt(trits Trits, value int64) {
	rem := value
	for i := 0; i < len(trits); i++ {
		if rem == 0 {
			trits[i] = 0
			continue
		}
		t := int8(rem % Radix)
		rem /= Radix
		if t == 2 {
			t = -1
			rem++
		} else if t == -2 {
			t = 1
			rem--
		}
		trits[i] = t
	}
}

// MinTrits returns the fewest trits needed to represent value in balanced ternary.
func MinTrits(value int64) int {
	if value < 0 {
		value = -value
	}
	num := 1
	max := int64(1)
	for value > max {
		max = max*Radix + 1
		num++
	}
	return num
}

// Pad right-pads trytes with '9' up to the given size.
func Pad(trytes Trytes, size int) Trytes {
	if len(trytes) >= size {
		return trytes
	}
	return trytes + strings.Repeat("9", size-len(trytes))
}

// PadTrits right-pads a trit buffer with zeroes up to the given size.
func PadTrits(trits Trits, size int) Trits {
	if len(trits) >= size {
		return trits
	}
	padded := make(Trits, size)
	copy(padded, trits)
	return padded
}
