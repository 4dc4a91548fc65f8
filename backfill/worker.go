package backfill

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
	"github.com/qiqiMagicCity/tradefolio/provider"
)

// Fetcher resolves one (symbol, trading day) pair to a close price. It is
// the provider chain in production, a fake in tests.
type Fetcher interface {
	FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (provider.Quote, tradefolio.Provider, error)
}

// DefaultMaxAttempts is how many failed fetches a request survives before it
// is parked in error state.
const DefaultMaxAttempts = 3

// Sweeper drains the backfill queue: claim, fetch, complete. Several
// sweepers may run against the same store, across processes; exclusivity
// comes from the queued to in_progress claim transition alone.
type Sweeper struct {
	Store   *eodstore.Store
	Fetcher Fetcher
	Log     *logrus.Logger

	// Batch is how many requests are pulled per queue poll. Zero means 50.
	Batch int
	// MaxAttempts caps retries per request. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// SweepResult summarizes one run.
type SweepResult struct {
	Done   int // requests completed, price or no-liquidity
	Failed int // requests that recorded a failed attempt
}

// Run drains the queue until it is empty or the context is canceled.
// Cancellation between units is clean: the in-flight claim is released back
// to queued, nothing is left stuck in_progress.
func (s *Sweeper) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	for {
		reqs, err := s.Store.NextQueued(s.batch())
		if err != nil {
			return res, err
		}
		if len(reqs) == 0 {
			return res, nil
		}
		for _, req := range reqs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			claimed, err := s.Store.Claim(req.Key)
			if err != nil {
				return res, err
			}
			if !claimed {
				continue
			}
			if err := s.sweepOne(ctx, req, &res); err != nil {
				return res, err
			}
		}
	}
}

// sweepOne fetches a claimed request and records the outcome. Only a
// canceled context propagates as an error; fetch failures go through Fail
// and the sweep moves on.
func (s *Sweeper) sweepOne(ctx context.Context, req eodstore.Request, res *SweepResult) error {
	sym := tradefolio.Canonicalize(req.Symbol)
	quote, prov, err := s.Fetcher.FetchClose(ctx, sym, req.Day)

	switch {
	case err == nil:
		rec := eodstore.CloseRecord{
			Symbol:   sym.Canon,
			Day:      req.Day,
			Close:    quote.Close,
			Status:   eodstore.StatusOK,
			Provider: prov,
			// ledger-derived prices are flagged, never passed off as official
			Estimated: prov == tradefolio.ProviderViaTx,
		}
		return s.complete(req, rec, res)

	case errors.Is(err, provider.ErrNoData):
		rec := eodstore.CloseRecord{
			Symbol:   sym.Canon,
			Day:      req.Day,
			Close:    decimal.Zero,
			Status:   eodstore.StatusNoLiquidity,
			Provider: prov,
		}
		return s.complete(req, rec, res)

	case ctx.Err() != nil:
		if rerr := s.Store.Release(req.Key); rerr != nil {
			s.log().WithField("key", req.Key).WithError(rerr).Error("cannot release claim")
		}
		return ctx.Err()

	default:
		s.log().WithField("key", req.Key).WithError(err).Warn("fetch failed")
		if ferr := s.Store.Fail(req.Key, err.Error(), s.maxAttempts()); ferr != nil {
			return ferr
		}
		res.Failed++
		return nil
	}
}

func (s *Sweeper) complete(req eodstore.Request, rec eodstore.CloseRecord, res *SweepResult) error {
	err := s.Store.CompleteWithClose(req.Key, rec)
	var conflict *eodstore.TrustConflictError
	if errors.As(err, &conflict) {
		s.log().WithField("key", req.Key).Warn(conflict.Error())
		err = nil
	}
	if err != nil {
		return err
	}
	res.Done++
	s.log().WithFields(logrus.Fields{
		"key":      req.Key,
		"status":   string(rec.Status),
		"provider": string(rec.Provider),
	}).Info("backfilled")
	return nil
}

func (s *Sweeper) batch() int {
	if s.Batch > 0 {
		return s.Batch
	}
	return 50
}

func (s *Sweeper) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (s *Sweeper) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
