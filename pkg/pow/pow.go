package pow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gohornet/mam/pkg/curl"
	"github.com/gohornet/mam/pkg/metrics"
	"github.com/gohornet/mam/pkg/signing"
	"github.com/gohornet/mam/pkg/trinary"
)

var (
	// ErrCancelled is returned when the nonce search was aborted by the context.
	ErrCancelled = errors.New("nonce search cancelled")
	// ErrInvalidLength is returned when the nonce does not fit into the rate.
	ErrInvalidLength = errors.New("nonce length out of range")
)

// Handler runs nonce searches with cooperative cancellation and optional
// parallelism. Workers scan disjoint counter ranges, so more workers never
// try the same nonce twice.
type Handler struct {
	parallelism int
	metrics     *metrics.Metrics
}

// Option alters the handler configuration.
type Option func(*Handler)

// Parallelism sets the number of search workers.
func Parallelism(workers int) Option {
	return func(h *Handler) {
		if workers > 0 {
			h.parallelism = workers
		}
	}
}

// WithMetrics attaches search counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a new nonce search handler. Searches run on a single worker
// unless Parallelism is given.
func New(opts ...Option) *Handler {
	h := &Handler{parallelism: 1}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Search finds a nonce for the given full sponge state and security level.
// Every worker polls the context at its loop head; once the context is done
// the search returns ErrCancelled without a nonce.
func (h *Handler) Search(ctx context.Context, state trinary.Trits, security signing.SecurityLevel, length, offset int) (trinary.Trits, error) {
	if offset < 0 || length <= offset || length > curl.HashLength {
		return nil, errors.Wrapf(ErrInvalidLength, "length %d, offset %d", length, offset)
	}
	if err := returnErrIfCtxDone(ctx, ErrCancelled); err != nil {
		return nil, err
	}

	searchCtx, searchCancel := context.WithCancel(ctx)
	defer searchCancel()

	type result struct {
		nonce trinary.Trits
		err   error
	}
	results := make(chan result, h.parallelism)

	for w := 0; w < h.parallelism; w++ {
		go func(worker int) {
			nonce, err := searchWithPoll(state, security, length, offset, worker, h.parallelism, func() error {
				return returnErrIfCtxDone(searchCtx, ErrCancelled)
			})
			results <- result{nonce: nonce, err: err}
		}(w)
	}

	for i := 0; i < h.parallelism; i++ {
		r := <-results
		if r.err != nil {
			continue
		}
		// first worker wins, the deferred cancel stops the others
		searchCancel()
		if h.metrics != nil {
			h.metrics.NoncesFound.Inc()
		}
		return r.nonce, nil
	}

	if h.metrics != nil {
		h.metrics.SearchesCancelled.Inc()
	}
	return nil, ErrCancelled
}
