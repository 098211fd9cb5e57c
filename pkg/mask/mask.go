// Package mask implements the trit stream cipher that encrypts message
// payloads with the keystream of a running sponge.
package mask

import (
	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/trinary"
)

// Sum adds two trits in balanced ternary, wrapping on saturation.
// Sum(a, b) is inverted by Sum(sum, -b).
func Sum(a, b int8) int8 {
	s := a + b
	switch s {
	case 2:
		return -1
	case -2:
		return 1
	default:
		return s
	}
}

// Mask encrypts the payload in place with the keystream of the sponge and
// returns it. The sponge absorbs the plaintext chunk by chunk, so masking
// advances the caller's sponge state.
func Mask(payload trinary.Trits, sponge *curl.Curl) trinary.Trits {
	keyChunk := sponge.Rate(curl.HashLength)
	for offset := 0; offset < len(payload); offset += curl.HashLength {
		end := offset + curl.HashLength
		if end > len(payload) {
			end = len(payload)
		}
		sponge.Absorb(payload[offset:end])
		state := sponge.Rate(curl.HashLength)
		for i := 0; i < end-offset; i++ {
			payload[offset+i] = Sum(payload[offset+i], keyChunk[i])
			keyChunk[i] = state[i]
		}
	}
	return payload
}

// Unmask decrypts the payload in place and returns it. The sponge absorbs
// the recovered plaintext, mirroring Mask.
func Unmask(payload trinary.Trits, sponge *curl.Curl) trinary.Trits {
	keyChunk := sponge.Rate(curl.HashLength)
	for offset := 0; offset < len(payload); offset += curl.HashLength {
		end := offset + curl.HashLength
		if end > len(payload) {
			end = len(payload)
		}
		for i := 0; i < end-offset; i++ {
			payload[offset+i] = Sum(payload[offset+i], -keyChunk[i])
		}
		sponge.Absorb(payload[offset:end])
		state := sponge.Rate(curl.HashLength)
		copy(keyChunk[:end-offset], state)
	}
	return payload
}

// Hash derives the masked address of a channel root with an 81-round sponge.
func Hash(keyTrits trinary.Trits) trinary.Trits {
	sponge := curl.NewCurlP81()
	sponge.Absorb(keyTrits)
	return sponge.Squeeze(curl.HashLength)
}
