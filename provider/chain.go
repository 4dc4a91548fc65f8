package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/qiqiMagicCity/tradefolio"
)

// Chain walks the sources in trust order, stopping at the first success or
// the first definitive no-data answer. All fetches in the process go through
// one mutex and one rate limiter: callers queue, the vendors see a steady
// serialized request stream.
type Chain struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	sources    []Source
	lastResort Source // consulted only after every vendor failed, may be nil
	retries    int
	backoff    time.Duration
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithInterval sets the minimum spacing between any two provider requests.
func WithInterval(d time.Duration) ChainOption {
	return func(c *Chain) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithRetries sets the per-source retry budget for transport errors.
func WithRetries(n int) ChainOption {
	return func(c *Chain) { c.retries = n }
}

// WithBackoff sets the base backoff between retries; it doubles per attempt.
func WithBackoff(d time.Duration) ChainOption {
	return func(c *Chain) { c.backoff = d }
}

// WithLastResort installs the transaction-derived dirty source.
func WithLastResort(s Source) ChainOption {
	return func(c *Chain) { c.lastResort = s }
}

// NewChain builds a fetch chain over sources, ordered most trusted first.
func NewChain(sources []Source, opts ...ChainOption) *Chain {
	c := &Chain{
		limiter: rate.NewLimiter(rate.Every(1200*time.Millisecond), 1),
		sources: sources,
		retries: 3,
		backoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchClose attempts the sources in trust order. It returns the provider
// that answered alongside the quote. ErrNoData is definitive: the most
// trusted vendor that covers the instrument reported an empty day, and no
// lower-trust data may contradict it. Any other error means every vendor
// failed and the last resort (if any) had nothing either.
func (c *Chain) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, tradefolio.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for _, src := range c.sources {
		q, err := c.fetchWithRetry(ctx, src, sym, day)
		switch {
		case err == nil:
			return q, src.Name(), nil
		case errors.Is(err, ErrNoData):
			return Quote{}, src.Name(), ErrNoData
		case ctx.Err() != nil:
			return Quote{}, "", ctx.Err()
		default:
			lastErr = err
		}
	}

	// every vendor exhausted its budget: last resort, flagged dirty
	if c.lastResort != nil {
		if q, err := c.lastResort.FetchClose(ctx, sym, day); err == nil {
			return q, c.lastResort.Name(), nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no source configured for %s", sym.Canon)
	}
	return Quote{}, "", lastErr
}

// fetchWithRetry runs one source with the retry budget, pacing every attempt
// through the shared limiter. Transport errors back off and retry; anything
// definitive returns immediately.
func (c *Chain) fetchWithRetry(ctx context.Context, src Source, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Quote{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return Quote{}, err
		}
		q, err := src.FetchClose(ctx, sym, day)
		if err == nil {
			if !q.Close.IsPositive() {
				return Quote{}, ErrNoData
			}
			return q, nil
		}
		if !Retryable(err) {
			return Quote{}, err
		}
		lastErr = err
	}
	return Quote{}, lastErr
}
