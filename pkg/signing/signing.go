// Package signing implements the hash-chain one-time signature scheme over
// trytes: subseed derivation, private key expansion, digest and address
// derivation, signing and signature recovery.
package signing

import (
	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/trinary"
)

const (
	// FragmentChunks is the number of hash-sized chunks per key fragment.
	FragmentChunks = 27
	// FragmentLength is the length of one key fragment in trits.
	FragmentLength = FragmentChunks * curl.HashLength
	// chainRounds is the length of one hash chain, covering every tryte value.
	chainRounds = trinary.MaxTryteValue - trinary.MinTryteValue + 1
)

// SecurityLevel is the number of key fragments used for one signature.
type SecurityLevel int

const (
	// SecurityLevelLow signs with one key fragment.
	SecurityLevelLow SecurityLevel = 1
	// SecurityLevelMedium signs with two key fragments.
	SecurityLevelMedium SecurityLevel = 2
	// SecurityLevelHigh signs with three key fragments.
	SecurityLevelHigh SecurityLevel = 3
)

var (
	ErrInvalidSeedLength     = errors.New("seed must be one hash of trits")
	ErrInvalidSecurityLevel  = errors.New("security level must be 1, 2 or 3")
	ErrInvalidHashLength     = errors.New("hash must be one hash of trits")
	ErrInvalidKeyLength      = errors.New("key length must be a multiple of the fragment length")
	ErrInvalidSignatureValue = errors.New("signature length must be a multiple of the hash length")
)

// Valid returns whether the security level is in the supported range.
func (s SecurityLevel) Valid() bool {
	return s >= SecurityLevelLow && s <= SecurityLevelHigh
}

// Subseed derives the subseed of the given index: the seed is incremented
// index times in balanced ternary and hashed.
func Subseed(seed trinary.Trits, index uint32) (trinary.Trits, error) {
	if len(seed) != curl.HashLength {
		return nil, ErrInvalidSeedLength
	}
	subseed := make(trinary.Trits, curl.HashLength)
	copy(subseed, seed)
	for i := uint32(0); i < index; i++ {
		incrementTrits(subseed)
	}
	sponge := curl.NewCurlP27()
	sponge.Absorb(subseed)
	return sponge.Squeeze(curl.HashLength), nil
}

// incrementTrits adds one in balanced ternary, carrying on wrap.
func incrementTrits(trits trinary.Trits) {
	for i := range trits {
		trits[i]++
		if trits[i] <= 1 {
			break
		}
		trits[i] = -1
	}
}

// Key expands a subseed into a private key of security many fragments.
func Key(subseed trinary.Trits, security SecurityLevel) (trinary.Trits, error) {
	if len(subseed) != curl.HashLength {
		return nil, ErrInvalidSeedLength
	}
	if !security.Valid() {
		return nil, ErrInvalidSecurityLevel
	}

	sponge := curl.NewCurlP27()
	sponge.Absorb(subseed)
	key := sponge.Squeeze(int(security) * FragmentLength)

	chunk := curl.NewCurlP27()
	for offset := 0; offset < len(key); offset += curl.HashLength {
		chunk.Reset()
		chunk.Absorb(key[offset : offset+curl.HashLength])
		copy(key[offset:offset+curl.HashLength], chunk.Rate(curl.HashLength))
	}
	return key, nil
}

// DigestFromSubseed computes the key digest directly from a subseed, without
// materialising the private key.
func DigestFromSubseed(subseed trinary.Trits, security SecurityLevel) (trinary.Trits, error) {
	if len(subseed) != curl.HashLength {
		return nil, ErrInvalidSeedLength
	}
	if !security.Valid() {
		return nil, ErrInvalidSecurityLevel
	}

	sponge := curl.NewCurlP27()
	sponge.Absorb(subseed)
	buffer := sponge.Squeeze(int(security) * FragmentLength)

	chunk := curl.NewCurlP27()
	digest := curl.NewCurlP27()
	for offset := 0; offset < len(buffer); offset += curl.HashLength {
		block := buffer[offset : offset+curl.HashLength]
		for round := 0; round < chainRounds; round++ {
			chunk.Reset()
			chunk.Absorb(block)
			copy(block, chunk.Squeeze(curl.HashLength))
		}
		digest.Absorb(block)
	}
	return digest.Squeeze(curl.HashLength), nil
}

// Address hashes a digest into the public address.
func Address(digest trinary.Trits) (trinary.Trits, error) {
	if len(digest) != curl.HashLength {
		return nil, ErrInvalidHashLength
	}
	sponge := curl.NewCurlP27()
	sponge.Absorb(digest)
	return sponge.Squeeze(curl.HashLength), nil
}

// Signature signs hash with the private key: every key chunk is iterated
// down the hash chain by the distance encoded in the corresponding tryte of
// the hash.
func Signature(hash trinary.Trits, key trinary.Trits) (trinary.Trits, error) {
	if len(hash) != curl.HashLength {
		return nil, ErrInvalidHashLength
	}
	if len(key) == 0 || len(key)%FragmentLength != 0 {
		return nil, ErrInvalidKeyLength
	}

	signature := make(trinary.Trits, len(key))
	copy(signature, key)

	chunk := curl.NewCurlP27()
	for i := 0; i < len(signature)/curl.HashLength; i++ {
		buffer := signature[i*curl.HashLength : (i+1)*curl.HashLength]
		for round := trinary.MaxTryteValue - hashTryteValue(hash, i); round > 0; round-- {
			chunk.Reset()
			chunk.Absorb(buffer)
			copy(buffer, chunk.Squeeze(curl.HashLength))
		}
	}
	return signature, nil
}

// DigestFromSignature recovers the key digest committed to by a signature
// over hash. It iterates every signature chunk up the remaining distance of
// its hash chain.
func DigestFromSignature(hash trinary.Trits, signature trinary.Trits) (trinary.Trits, error) {
	if len(hash) != curl.HashLength {
		return nil, ErrInvalidHashLength
	}
	if len(signature) == 0 || len(signature)%curl.HashLength != 0 {
		return nil, ErrInvalidSignatureValue
	}

	buffer := make(trinary.Trits, len(signature))
	copy(buffer, signature)

	chunk := curl.NewCurlP27()
	for i := 0; i < len(buffer)/curl.HashLength; i++ {
		block := buffer[i*curl.HashLength : (i+1)*curl.HashLength]
		for round := hashTryteValue(hash, i) - trinary.MinTryteValue; round > 0; round-- {
			chunk.Reset()
			chunk.Absorb(block)
			copy(block, chunk.Squeeze(curl.HashLength))
		}
	}

	digest := curl.NewCurlP27()
	digest.Absorb(buffer)
	return digest.Squeeze(curl.HashLength), nil
}

// ChecksumSecurity returns the smallest security level whose prefix of the
// hash sums to zero, or 0 if no prefix does.
func ChecksumSecurity(hash trinary.Trits) SecurityLevel {
	if len(hash) != curl.HashLength {
		return 0
	}
	third := curl.HashLength / 3
	sum := 0
	for level := 1; level <= 3; level++ {
		for i := (level - 1) * third; i < level*third; i++ {
			sum += int(hash[i])
		}
		if sum == 0 {
			return SecurityLevel(level)
		}
	}
	return 0
}

// hashTryteValue reads the i-th tryte value of a hash.
func hashTryteValue(hash trinary.Trits, i int) int8 {
	return hash[i*3] + hash[i*3+1]*3 + hash[i*3+2]*9
}
