// Package merkle builds the Merkle tree of one-time signing leaves that
// authenticates a channel window, extracts per-leaf authentication paths and
// recomputes the root from a path.
package merkle

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

var (
	ErrInvalidLeafCount    = errors.New("count must be at least 1")
	ErrLeafIndexOutOfRange = errors.New("leaf index out of range")
)

// node is a tree node. Leaves carry the private key of their one-time
// signing key; internal nodes only aggregate addresses.
type node struct {
	left    *node
	right   *node
	address trinary.Trits
	key     trinary.Trits
	size    int
}

// Tree is the Merkle tree over the window [start, start+count) of leaves.
type Tree struct {
	root *node
}

// Subtree is the authentication material of one leaf: its private key and
// the sibling addresses ordered leaf-ward to root-ward.
type Subtree struct {
	Key      trinary.Trits
	Siblings []trinary.Trits
}

// Option alters the tree construction.
type Option func(*options)

type options struct {
	parallelism int
}

// Parallelism bounds the number of goroutines deriving leaves.
func Parallelism(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.parallelism = workers
		}
	}
}

// NewTree derives count leaves starting at index start and builds the tree
// bottom-up. Consecutive nodes are paired; an unpaired node propagates its
// address upward unchanged.
func NewTree(seed trinary.Trits, start uint32, count uint32, security signing.SecurityLevel, opts ...Option) (*Tree, error) {
	if count < 1 {
		return nil, ErrInvalidLeafCount
	}
	if len(seed) != curl.HashLength {
		return nil, signing.ErrInvalidSeedLength
	}
	if !security.Valid() {
		return nil, signing.ErrInvalidSecurityLevel
	}

	o := &options{parallelism: runtime.NumCPU()}
	for _, opt := range opts {
		opt(o)
	}

	leaves, err := generateLeaves(seed, start, count, security, o.parallelism)
	if err != nil {
		return nil, err
	}
	return &Tree{root: buildTree(leaves)}, nil
}

// Root returns the root address of the tree.
func (t *Tree) Root() trinary.Trits {
	root := make(trinary.Trits, curl.HashLength)
	copy(root, t.root.address)
	return root
}

// Count returns the number of leaves.
func (t *Tree) Count() int {
	return t.root.size
}

// Subtree returns the private key of the indexed leaf together with the
// sibling addresses needed to recompute the root.
func (t *Tree) Subtree(index uint32) (*Subtree, error) {
	if int(index) >= t.root.size {
		return nil, errors.Wrapf(ErrLeafIndexOutOfRange, "index %d, count %d", index, t.root.size)
	}

	if t.root.size == 1 {
		subtree := &Subtree{}
		if t.root.left != nil {
			subtree.Key = t.root.left.key
		}
		return subtree, nil
	}

	var siblings []trinary.Trits
	var key trinary.Trits
	remaining := int(index)
	current := t.root
	for current != nil {
		if current.left == nil {
			key = current.key
			break
		}
		size := current.left.size
		if remaining < size {
			if current.right != nil {
				siblings = append(siblings, current.right.address)
			} else {
				siblings = append(siblings, current.left.address)
			}
			current = current.left
		} else {
			siblings = append(siblings, current.left.address)
			remaining -= size
			current = current.right
		}
	}

	// reverse to leaf-ward first
	for i, j := 0, len(siblings)-1; i < j; i, j = i+1, j-1 {
		siblings[i], siblings[j] = siblings[j], siblings[i]
	}
	return &Subtree{Key: key, Siblings: siblings}, nil
}

// RootFromSiblings recomputes the root address from a leaf address and its
// sibling path. The index selects the absorb order at every level.
func RootFromSiblings(leafAddress trinary.Trits, siblings []trinary.Trits, index uint32) trinary.Trits {
	rate := leafAddress
	sponge := curl.NewCurlP27()
	cursor := uint32(1)
	for _, sibling := range siblings {
		sponge.Reset()
		if cursor&index == 0 {
			sponge.Absorb(rate)
			sponge.Absorb(sibling)
		} else {
			sponge.Absorb(sibling)
			sponge.Absorb(rate)
		}
		rate = sponge.Rate(curl.HashLength)
		cursor <<= 1
	}
	return rate
}

// generateLeaves derives the leaf nodes, fanning the subseed and key
// derivation out across a bounded set of workers.
func generateLeaves(seed trinary.Trits, start, count uint32, security signing.SecurityLevel, parallelism int) ([]*node, error) {
	leaves := make([]*node, count)
	errs := make([]error, count)

	workers := parallelism
	if workers > int(count) {
		workers = int(count)
	}

	indexes := make(chan uint32, count)
	for i := uint32(0); i < count; i++ {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				leaves[i], errs[i] = generateLeaf(seed, start+i, security)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return leaves, nil
}

func generateLeaf(seed trinary.Trits, index uint32, security signing.SecurityLevel) (*node, error) {
	subseed, err := signing.Subseed(seed, index)
	if err != nil {
		return nil, err
	}
	key, err := signing.Key(subseed, security)
	if err != nil {
		return nil, err
	}
	digest, err := signing.DigestFromSubseed(subseed, security)
	if err != nil {
		return nil, err
	}
	address, err := signing.Address(digest)
	if err != nil {
		return nil, err
	}
	return &node{address: address, key: key, size: 1}, nil
}

// buildTree pairs consecutive nodes level by level until a single root
// remains. The lowest level always gets wrapped, so a 1-leaf tree has an
// internal root above its leaf.
func buildTree(level []*node) *node {
	parents := make([]*node, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		left := level[i]
		var right *node
		if i+1 < len(level) {
			right = level[i+1]
		}

		parent := &node{left: left, right: right, size: left.size}
		if right != nil {
			parent.size += right.size
			sponge := curl.NewCurlP27()
			sponge.Absorb(left.address)
			sponge.Absorb(right.address)
			parent.address = sponge.Squeeze(curl.HashLength)
		} else {
			parent.address = left.address
		}
		parents = append(parents, parent)
	}

	if len(parents) == 1 {
		return parents[0]
	}
	return buildTree(parents)
}
