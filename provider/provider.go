// Package provider retrieves official close prices from external vendors.
//
// Sources are consulted in the fixed trust order, behind one process-wide
// rate gate: concurrent callers are queued, never rejected. Transport
// failures are retried with backoff; a definitive "no data" answer is not
// an error and stops the fallback chain.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// Quote is one close price as returned by a source.
type Quote struct {
	Symbol string // canonical spelling
	Day    tradefolio.Date
	Close  decimal.Decimal
}

// ErrNoData is the definitive "no data, not an error" answer: the vendor
// covers the instrument but has no close for the day (no liquidity, or the
// instrument did not trade).
var ErrNoData = errors.New("provider: no data")

// TransportError wraps a retryable failure: network trouble, timeouts,
// unexpected responses.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the error is worth another attempt.
func Retryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Source is a single external price vendor.
type Source interface {
	// Name identifies the source in the provider trust order.
	Name() tradefolio.Provider
	// FetchClose returns the official close of a symbol on a trading day.
	// It returns ErrNoData for a definitive empty answer, and a
	// TransportError for anything retryable.
	FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error)
}
