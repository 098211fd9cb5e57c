package mam

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/kvstore"

	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

// ErrInvalidStoredState is returned when a persisted channel state does not
// pass the channel validation rules.
var ErrInvalidStoredState = errors.New("invalid stored channel state")

var (
	stateKeySeed      = []byte("seed")
	stateKeyMode      = []byte("mode")
	stateKeySideKey   = []byte("sideKey")
	stateKeySecurity  = []byte("security")
	stateKeyStart     = []byte("start")
	stateKeyCount     = []byte("count")
	stateKeyNextCount = []byte("nextCount")
	stateKeyIndex     = []byte("index")
	stateKeyNextRoot  = []byte("nextRoot")
)

// StoreState writes the channel state as plaintext key/value pairs into the
// given store. The caller chooses the backend and realm.
func (c *Channel) StoreState(store kvstore.KVStore) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pairs := map[string][]byte{
		string(stateKeySeed):      []byte(c.seed),
		string(stateKeyMode):      []byte(c.mode),
		string(stateKeySideKey):   []byte(c.sideKey),
		string(stateKeySecurity):  formatUint(uint32(c.security)),
		string(stateKeyStart):     formatUint(c.start),
		string(stateKeyCount):     formatUint(c.count),
		string(stateKeyNextCount): formatUint(c.nextCount),
		string(stateKeyIndex):     formatUint(c.index),
		string(stateKeyNextRoot):  []byte(c.nextRoot),
	}
	for key, value := range pairs {
		if err := store.Set([]byte(key), value); err != nil {
			return err
		}
	}
	return store.Flush()
}

// LoadChannel restores a channel from a store written by StoreState.
func LoadChannel(store kvstore.KVStore, opts ...ChannelOption) (*Channel, error) {
	seed, err := store.Get(stateKeySeed)
	if err != nil {
		return nil, err
	}
	mode, err := store.Get(stateKeyMode)
	if err != nil {
		return nil, err
	}
	sideKey, err := store.Get(stateKeySideKey)
	if err != nil {
		return nil, err
	}
	security, err := parseUint(store, stateKeySecurity)
	if err != nil {
		return nil, err
	}

	channel, err := NewChannel(trinary.Trytes(seed), signing.SecurityLevel(security), Mode(mode), trinary.Trytes(sideKey), opts...)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidStoredState, err.Error())
	}

	if channel.start, err = parseUint(store, stateKeyStart); err != nil {
		return nil, err
	}
	if channel.count, err = parseUint(store, stateKeyCount); err != nil {
		return nil, err
	}
	if channel.nextCount, err = parseUint(store, stateKeyNextCount); err != nil {
		return nil, err
	}
	if channel.index, err = parseUint(store, stateKeyIndex); err != nil {
		return nil, err
	}
	if channel.count < 1 || channel.nextCount < 1 || channel.index >= channel.count {
		return nil, ErrInvalidStoredState
	}

	nextRoot, err := store.Get(stateKeyNextRoot)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, err
	}
	channel.nextRoot = trinary.Trytes(nextRoot)

	return channel, nil
}

func formatUint(value uint32) []byte {
	return []byte(strconv.FormatUint(uint64(value), 10))
}

func parseUint(store kvstore.KVStore, key []byte) (uint32, error) {
	raw, err := store.Get(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, errors.Wrap(ErrInvalidStoredState, err.Error())
	}
	return uint32(value), nil
}
