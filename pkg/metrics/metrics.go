package metrics

import (
	"go.uber.org/atomic"
)

var (
	SharedMetrics = &Metrics{}
)

// Metrics defines counters over the entire runtime of a publisher.
type Metrics struct {
	// The number of created messages.
	CreatedMessages atomic.Uint64
	// The number of parsed messages.
	ParsedMessages atomic.Uint64
	// The number of messages rejected by the parser.
	InvalidMessages atomic.Uint64
	// The number of nonces found by the search.
	NoncesFound atomic.Uint64
	// The number of cancelled nonce searches.
	SearchesCancelled atomic.Uint64
	// The number of payloads written to the external log.
	PublishedPayloads atomic.Uint64
	// The number of payloads fetched from the external log.
	FetchedPayloads atomic.Uint64
}
