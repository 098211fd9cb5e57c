package mam

import (
	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/mask"
	"github.com/gohornet/mam/pkg/merkle"
	"github.com/gohornet/mam/pkg/metrics"
	"github.com/gohornet/mam/pkg/pascal"
	"github.com/gohornet/mam/pkg/pow"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

var (
	// ErrInvalidPayload is returned when the payload framing cannot be decoded.
	ErrInvalidPayload = errors.New("invalid message payload")
	// ErrInvalidRoot is returned when the root is not 81 trytes.
	ErrInvalidRoot = errors.New("root must be 81 trytes")
	// ErrInvalidHammingWeight is returned when the message hash has no
	// vanishing third, i.e. the proof of work does not check out.
	ErrInvalidHammingWeight = errors.New("message hash has no hamming weight of zero")
	// ErrRootMismatch is returned when the signature does not lead back to
	// the expected root.
	ErrRootMismatch = errors.New("signature does not match the root")
)

// ParsedMessage is an authenticated message recovered from a payload.
type ParsedMessage struct {
	Message  trinary.Trytes
	NextRoot trinary.Trytes
}

// ParseMessage authenticates and decrypts a payload fetched from the
// channel root's address. The side key must be the channel side key for
// restricted channels and empty otherwise. Apart from counting parsed and
// rejected messages in the shared metrics, parsing has no side effects.
func ParseMessage(payload trinary.Trytes, root trinary.Trytes, sideKey trinary.Trytes) (*ParsedMessage, error) {
	msg, err := parseMessage(payload, root, sideKey)
	if err != nil {
		metrics.SharedMetrics.InvalidMessages.Inc()
		return nil, err
	}
	metrics.SharedMetrics.ParsedMessages.Inc()
	return msg, nil
}

func parseMessage(payload trinary.Trytes, root trinary.Trytes, sideKey trinary.Trytes) (*ParsedMessage, error) {
	if len(root) != SeedTrytesLength || trinary.ValidTrytes(root) != nil {
		return nil, ErrInvalidRoot
	}
	if len(sideKey) > SideKeyTrytesLength || trinary.ValidTrytes(sideKey) != nil {
		return nil, ErrInvalidSideKey
	}
	if trinary.ValidTrytes(payload) != nil {
		return nil, errors.Wrap(ErrInvalidPayload, "payload must be trytes")
	}

	payloadTrits := trinary.MustTrytesToTrits(payload)
	rootTrits := trinary.MustTrytesToTrits(root)
	sideKeyTrits := trinary.MustTrytesToTrits(trinary.Pad(sideKey, SideKeyTrytesLength))

	index, indexEnd, err := pascal.Decode(payloadTrits)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if index < 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "negative index")
	}
	messageLength, lengthEnd, err := pascal.Decode(payloadTrits[indexEnd:])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if messageLength < 0 || messageLength%trinary.TritsPerTryte != 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "invalid message length")
	}

	nextRootStart := indexEnd + lengthEnd
	messageStart := nextRootStart + curl.HashLength
	messageEnd := messageStart + int(messageLength)
	if messageEnd+pow.NonceLength > len(payloadTrits) {
		return nil, errors.Wrap(ErrInvalidPayload, "payload too short")
	}

	sponge := curl.NewCurlP27()
	sponge.Absorb(sideKeyTrits)
	sponge.Absorb(rootTrits)
	sponge.Absorb(payloadTrits[:nextRootStart])

	nextRoot := mask.Unmask(payloadTrits[nextRootStart:messageStart], sponge)
	message := mask.Unmask(payloadTrits[messageStart:messageEnd], sponge)
	mask.Unmask(payloadTrits[messageEnd:messageEnd+pow.NonceLength], sponge)

	hmac := sponge.Rate(curl.HashLength)
	security := signing.ChecksumSecurity(hmac)
	if security == 0 {
		return nil, ErrInvalidHammingWeight
	}

	meta := mask.Unmask(payloadTrits[messageEnd+pow.NonceLength:], sponge)
	sponge.Reset()

	fragmentsLength := int(security) * signing.FragmentLength
	if len(meta) < fragmentsLength {
		return nil, errors.Wrap(ErrInvalidPayload, "signature truncated")
	}
	digest, err := signing.DigestFromSignature(hmac, meta[:fragmentsLength])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	sponge.Absorb(digest)

	siblingsCount, siblingsEnd, err := pascal.Decode(meta[fragmentsLength:])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	siblingsStart := fragmentsLength + siblingsEnd
	if siblingsCount < 0 || siblingsStart+int(siblingsCount)*curl.HashLength > len(meta) {
		return nil, errors.Wrap(ErrInvalidPayload, "siblings truncated")
	}

	recomputedRoot := sponge.Rate(curl.HashLength)
	if siblingsCount != 0 {
		siblings := make([]trinary.Trits, siblingsCount)
		for i := range siblings {
			siblings[i] = meta[siblingsStart+i*curl.HashLength : siblingsStart+(i+1)*curl.HashLength]
		}
		recomputedRoot = merkle.RootFromSiblings(recomputedRoot, siblings, uint32(index))
	}
	if trinary.MustTritsToTrytes(recomputedRoot) != root {
		return nil, ErrRootMismatch
	}

	return &ParsedMessage{
		Message:  trinary.MustTritsToTrytes(message),
		NextRoot: trinary.MustTritsToTrytes(nextRoot),
	}, nil
}
