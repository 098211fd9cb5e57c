// Package mam implements masked authenticated messaging channels: an
// append-only, authenticated, optionally encrypted sequence of messages
// published at addresses derived from Merkle trees of one-time signing keys.
package mam

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/syncutils"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/merkle"
	"github.com/gohornet/mam/pkg/metrics"
	"github.com/gohornet/mam/pkg/pow"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

// Mode determines how the address of a message is derived from the channel
// root and whether the payload is protected by a side key.
type Mode string

const (
	// ModePublic publishes at the channel root itself.
	ModePublic Mode = "public"
	// ModePrivate publishes at the hashed channel root.
	ModePrivate Mode = "private"
	// ModeRestricted publishes at the hashed channel root and masks with a side key.
	ModeRestricted Mode = "restricted"
)

const (
	// SeedTrytesLength is the length of a channel seed in trytes.
	SeedTrytesLength = curl.HashLength / trinary.TritsPerTryte
	// SideKeyTrytesLength is the padded side key length in trytes.
	SideKeyTrytesLength = SeedTrytesLength
)

var (
	ErrInvalidSeed       = errors.New("seed must be 81 trytes")
	ErrInvalidMode       = errors.New("mode must be public, private or restricted")
	ErrMissingSideKey    = errors.New("restricted mode requires a side key")
	ErrUnexpectedSideKey = errors.New("only restricted mode takes a side key")
	ErrInvalidSideKey    = errors.New("side key must be at most 81 trytes")
	ErrInvalidMessage    = errors.New("message must be trytes")
)

// Valid returns whether the mode is one of the known tags.
func (m Mode) Valid() bool {
	return m == ModePublic || m == ModePrivate || m == ModeRestricted
}

// Channel is the publisher side of a MAM channel. It owns the seed and the
// position inside the current Merkle window. A channel must not be used
// concurrently for publishing; independent channels may.
type Channel struct {
	mu syncutils.RWMutex

	seed      trinary.Trytes
	seedTrits trinary.Trits
	mode      Mode
	sideKey   trinary.Trytes
	security  signing.SecurityLevel

	start     uint32
	count     uint32
	nextCount uint32
	index     uint32
	nextRoot  trinary.Trytes

	powHandler *pow.Handler
	metrics    *metrics.Metrics
	treeOpts   []merkle.Option
}

// ChannelOption alters a channel's machinery without touching its state.
type ChannelOption func(*Channel)

// WithPoWHandler replaces the nonce search handler.
func WithPoWHandler(handler *pow.Handler) ChannelOption {
	return func(c *Channel) {
		c.powHandler = handler
	}
}

// WithMetrics attaches publisher counters.
func WithMetrics(m *metrics.Metrics) ChannelOption {
	return func(c *Channel) {
		c.metrics = m
	}
}

// WithTreeOptions forwards options to the Merkle tree construction.
func WithTreeOptions(opts ...merkle.Option) ChannelOption {
	return func(c *Channel) {
		c.treeOpts = opts
	}
}

// NewChannel creates a channel for the given seed, security level and mode.
// Restricted mode requires a side key of up to 81 trytes, which is padded to
// 81 trytes internally; the other modes forbid one.
func NewChannel(seed trinary.Trytes, security signing.SecurityLevel, mode Mode, sideKey trinary.Trytes, opts ...ChannelOption) (*Channel, error) {
	if len(seed) != SeedTrytesLength || trinary.ValidTrytes(seed) != nil {
		return nil, ErrInvalidSeed
	}
	if !security.Valid() {
		return nil, signing.ErrInvalidSecurityLevel
	}
	if !mode.Valid() {
		return nil, errors.Wrapf(ErrInvalidMode, "%q", mode)
	}
	if mode == ModeRestricted {
		if sideKey == "" {
			return nil, ErrMissingSideKey
		}
		if len(sideKey) > SideKeyTrytesLength || trinary.ValidTrytes(sideKey) != nil {
			return nil, ErrInvalidSideKey
		}
		sideKey = trinary.Pad(sideKey, SideKeyTrytesLength)
	} else if sideKey != "" {
		return nil, ErrUnexpectedSideKey
	}

	c := &Channel{
		seed:       seed,
		seedTrits:  trinary.MustTrytesToTrits(seed),
		mode:       mode,
		sideKey:    sideKey,
		security:   security,
		start:      0,
		count:      1,
		nextCount:  1,
		index:      0,
		powHandler: pow.New(),
		metrics:    metrics.SharedMetrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the root address of the current Merkle window as trytes.
func (c *Channel) Root() (trinary.Trytes, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tree, err := merkle.NewTree(c.seedTrits, c.start, c.count, c.security, c.treeOpts...)
	if err != nil {
		return "", err
	}
	return trinary.MustTritsToTrytes(tree.Root()), nil
}

// SetNextCount sets the leaf count of the next Merkle window. It applies to
// windows announced from the next message on; the current window keeps its
// size.
func (c *Channel) SetNextCount(count uint32) error {
	if count < 1 {
		return merkle.ErrInvalidLeafCount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextCount = count
	return nil
}

// Mode returns the channel mode.
func (c *Channel) Mode() Mode {
	return c.mode
}

// Security returns the channel security level.
func (c *Channel) Security() signing.SecurityLevel {
	return c.security
}

// SideKey returns the padded side key, or an empty string outside
// restricted mode.
func (c *Channel) SideKey() trinary.Trytes {
	return c.sideKey
}

// Start returns the first leaf index of the current window.
func (c *Channel) Start() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start
}

// Count returns the leaf count of the current window.
func (c *Channel) Count() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// NextCount returns the leaf count of the next window.
func (c *Channel) NextCount() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextCount
}

// Index returns the leaf index the next message will be signed with.
func (c *Channel) Index() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// NextRoot returns the next window root announced by the last created
// message. It is advisory: the core writes it on publish but never reads it.
func (c *Channel) NextRoot() trinary.Trytes {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextRoot
}

// sideKeyTrits returns the padded side key as trits, or 81 nines worth of
// zero trits outside restricted mode.
func (c *Channel) sideKeyTrits() trinary.Trits {
	if c.sideKey == "" {
		return make(trinary.Trits, curl.HashLength)
	}
	return trinary.MustTrytesToTrits(c.sideKey)
}
