// Package mamlog defines the capability boundary between the MAM core and
// the external append-only log, plus a kvstore-backed reference store used
// for testing and local pipelines. Anything that can publish and list
// payloads at an index can carry a channel; the core prescribes nothing
// beyond these interfaces.
package mamlog

import (
	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/trinary"
)

// MessageID identifies one stored payload within the log.
type MessageID []byte

// Publisher appends a payload at an index.
type Publisher interface {
	Publish(index []byte, data []byte) error
}

// Reader lists and fetches payloads at an index.
type Reader interface {
	List(index []byte) ([]MessageID, error)
	Get(id MessageID) ([]byte, error)
}

const maxTagLength = 255

var (
	// ErrInvalidTag is returned when an envelope tag exceeds one length byte.
	ErrInvalidTag = errors.New("tag must be at most 255 bytes")
	// ErrInvalidEnvelope is returned when envelope framing cannot be decoded.
	ErrInvalidEnvelope = errors.New("invalid envelope")
)

// AddressKey derives the log index bytes for a message address.
func AddressKey(address trinary.Trytes) []byte {
	return []byte(address)
}

// Envelope wraps a payload with a short ASCII tag for the log:
// one length byte, the tag, then the payload as ASCII trytes.
func Envelope(tag string, payload trinary.Trytes) ([]byte, error) {
	if len(tag) > maxTagLength {
		return nil, ErrInvalidTag
	}
	data := make([]byte, 0, 1+len(tag)+len(payload))
	data = append(data, byte(len(tag)))
	data = append(data, tag...)
	data = append(data, payload...)
	return data, nil
}

// OpenEnvelope splits envelope data back into tag and payload.
func OpenEnvelope(data []byte) (string, trinary.Trytes, error) {
	if len(data) < 1 {
		return "", "", ErrInvalidEnvelope
	}
	tagLength := int(data[0])
	if len(data) < 1+tagLength {
		return "", "", ErrInvalidEnvelope
	}
	tag := string(data[1 : 1+tagLength])
	payload := trinary.Trytes(data[1+tagLength:])
	if err := trinary.ValidTrytes(payload); err != nil {
		return "", "", errors.Wrap(ErrInvalidEnvelope, err.Error())
	}
	return tag, payload, nil
}
