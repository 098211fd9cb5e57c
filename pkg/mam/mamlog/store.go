package mamlog

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/syncutils"

	"github.com/gohornet/mam/pkg/metrics"
)

var (
	storePrefixMessages = []byte{0}
	storePrefixCounters = []byte{1}
)

// StoreEvents are fired by the reference store.
type StoreEvents struct {
	// MessagePublished is triggered with the index and message id of every
	// appended payload.
	MessagePublished *events.Event
}

func messagePublishedCaller(handler interface{}, params ...interface{}) {
	handler.(func(index []byte, id MessageID))(params[0].([]byte), params[1].(MessageID))
}

// Store is an append-only log over a hive.go kvstore. It keeps one sequence
// counter per index; message ids are the index followed by the big-endian
// sequence number, so listing needs no iteration order from the backend.
type Store struct {
	mu syncutils.Mutex

	messages kvstore.KVStore
	counters kvstore.KVStore
	log      *logger.Logger
	metrics  *metrics.Metrics

	Events StoreEvents
}

// StoreOption alters the store configuration.
type StoreOption func(*Store)

// WithLogger attaches a component logger.
func WithLogger(log *logger.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// WithStoreMetrics attaches payload counters.
func WithStoreMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a log over the given kvstore backend.
func NewStore(db kvstore.KVStore, opts ...StoreOption) (*Store, error) {
	messages := db.WithRealm(storePrefixMessages)
	counters := db.WithRealm(storePrefixCounters)

	s := &Store{
		messages: messages,
		counters: counters,
		metrics:  metrics.SharedMetrics,
		Events: StoreEvents{
			MessagePublished: events.NewEvent(messagePublishedCaller),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewInMemoryStore creates a log over an in-memory map backend.
func NewInMemoryStore(opts ...StoreOption) (*Store, error) {
	return NewStore(mapdb.NewMapDB(), opts...)
}

// Publish appends data at index and fires MessagePublished.
func (s *Store) Publish(index []byte, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.counter(index)
	if err != nil {
		return err
	}

	id := messageID(index, seq)
	if err := s.messages.Set(id, data); err != nil {
		return err
	}
	if err := s.setCounter(index, seq+1); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.PublishedPayloads.Inc()
	}
	if s.log != nil {
		s.log.Debugf("published payload %d at index %x", seq, index)
	}
	s.Events.MessagePublished.Trigger(index, MessageID(id))
	return nil
}

// List returns the ids of all payloads appended at index, oldest first.
func (s *Store) List(index []byte) ([]MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.counter(index)
	if err != nil {
		return nil, err
	}
	ids := make([]MessageID, seq)
	for i := uint64(0); i < seq; i++ {
		ids[i] = messageID(index, i)
	}
	return ids, nil
}

// Get fetches the payload with the given id.
func (s *Store) Get(id MessageID) ([]byte, error) {
	data, err := s.messages.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FetchedPayloads.Inc()
	}
	return data, nil
}

func (s *Store) counter(index []byte) (uint64, error) {
	raw, err := s.counters.Get(index)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *Store) setCounter(index []byte, value uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return s.counters.Set(index, raw)
}

func messageID(index []byte, seq uint64) []byte {
	id := make([]byte, len(index)+8)
	copy(id, index)
	binary.BigEndian.PutUint64(id[len(index):], seq)
	return id
}
