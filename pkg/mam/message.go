package mam

import (
	"context"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/mask"
	"github.com/gohornet/mam/pkg/merkle"
	"github.com/gohornet/mam/pkg/pascal"
	"github.com/gohornet/mam/pkg/pow"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

// Message is a created MAM message ready for publishing. The address equals
// the root in public mode and the masked root otherwise.
type Message struct {
	Payload trinary.Trytes
	Root    trinary.Trytes
	Address trinary.Trytes
}

// CreateMessage assembles a signed, masked message carrying the given tryte
// message and advances the channel state. The channel state is left
// untouched when an error occurs, so a cancelled nonce search can be
// retried.
func (c *Channel) CreateMessage(ctx context.Context, message trinary.Trytes) (*Message, error) {
	if trinary.ValidTrytes(message) != nil {
		return nil, ErrInvalidMessage
	}
	messageTrits := trinary.MustTrytesToTrits(message)

	c.mu.Lock()
	defer c.mu.Unlock()

	tree, err := merkle.NewTree(c.seedTrits, c.start, c.count, c.security, c.treeOpts...)
	if err != nil {
		return nil, err
	}
	nextTree, err := merkle.NewTree(c.seedTrits, c.start+c.count, c.nextCount, c.security, c.treeOpts...)
	if err != nil {
		return nil, err
	}

	rootTrits := tree.Root()
	nextRootTrits := nextTree.Root()

	subtree, err := tree.Subtree(c.index)
	if err != nil {
		return nil, err
	}

	indexTrits := pascal.Encode(int64(c.index))
	lengthTrits := pascal.Encode(int64(len(messageTrits)))

	sponge := curl.NewCurlP27()
	sponge.Absorb(c.sideKeyTrits())
	sponge.Absorb(rootTrits)

	payload := make(trinary.Trits, 0, len(indexTrits)+len(lengthTrits)+curl.HashLength+len(messageTrits)+pow.NonceLength+len(subtree.Key)+len(subtree.Siblings)*curl.HashLength+16)
	payload = append(payload, indexTrits...)
	payload = append(payload, lengthTrits...)
	sponge.Absorb(payload)

	// the next root and the message body travel encrypted
	sealed := make(trinary.Trits, 0, curl.HashLength+len(messageTrits))
	sealed = append(sealed, nextRootTrits...)
	sealed = append(sealed, messageTrits...)
	payload = append(payload, mask.Mask(sealed, sponge)...)

	nonce, err := c.powHandler.Search(ctx, sponge.Rate(curl.StateLength), c.security, pow.NonceLength, 0)
	if err != nil {
		return nil, err
	}
	payload = append(payload, mask.Mask(nonce, sponge)...)

	signature, err := signing.Signature(sponge.Rate(curl.HashLength), subtree.Key)
	if err != nil {
		return nil, err
	}
	meta := make(trinary.Trits, 0, len(signature)+8+len(subtree.Siblings)*curl.HashLength)
	meta = append(meta, signature...)
	meta = append(meta, pascal.Encode(int64(len(subtree.Siblings)))...)
	for _, sibling := range subtree.Siblings {
		meta = append(meta, sibling...)
	}
	payload = append(payload, mask.Mask(meta, sponge)...)

	if rem := len(payload) % trinary.TritsPerTryte; rem != 0 {
		payload = append(payload, make(trinary.Trits, trinary.TritsPerTryte-rem)...)
	}

	root := trinary.MustTritsToTrytes(rootTrits)
	address := root
	if c.mode != ModePublic {
		address = trinary.MustTritsToTrytes(mask.Hash(rootTrits))
	}

	// the window advances only on success
	if c.index == c.count-1 {
		c.start += c.count
		c.count = c.nextCount
		c.index = 0
	} else {
		c.index++
	}
	c.nextRoot = trinary.MustTritsToTrytes(nextRootTrits)
	c.metrics.CreatedMessages.Inc()

	return &Message{
		Payload: trinary.MustTritsToTrytes(payload),
		Root:    root,
		Address: address,
	}, nil
}
