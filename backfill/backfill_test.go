package backfill

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
	"github.com/qiqiMagicCity/tradefolio/provider"
)

func openTestStore(t *testing.T) *eodstore.Store {
	t.Helper()
	s, err := eodstore.Open(filepath.Join(t.TempDir(), "eod.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func trade(user, symbol string, asset tradefolio.AssetType, side tradefolio.Side, qty float64, price float64, day string) tradefolio.Transaction {
	at, err := time.Parse(time.RFC3339, day+"T15:00:00Z")
	if err != nil {
		panic(err)
	}
	return tradefolio.NewTransaction(day+"-"+symbol, user, symbol, asset, side,
		tradefolio.Q(qty), tradefolio.M(price, "USD"), at)
}

func TestPlan_EnqueuesHeldDays(t *testing.T) {
	store := openTestStore(t)
	ledger := tradefolio.NewLedger()
	ledger.Append(trade("u1", "AAPL", tradefolio.AssetStock, tradefolio.SideBuy, 10, 150, "2026-01-05"))

	p := &Planner{Ledger: ledger, Store: store}
	res, err := p.Plan(tradefolio.NewRange(
		tradefolio.MustParseDate("2026-01-01"),
		tradefolio.MustParseDate("2026-01-09")))
	if err != nil {
		t.Fatal(err)
	}

	// Mon Jan 5 through Fri Jan 9: five trading days held, nothing before
	// the first trade.
	if res.Enqueued != 5 {
		t.Errorf("enqueued = %d, want 5", res.Enqueued)
	}
	reqs, err := store.Requests(eodstore.RequestQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 5 {
		t.Fatalf("queued = %d, want 5", len(reqs))
	}
	if got, want := reqs[0].Key, "2026-01-05_AAPL"; got != want {
		t.Errorf("first key = %q, want %q", got, want)
	}
}

func TestPlan_SkipsCoveredDays(t *testing.T) {
	store := openTestStore(t)
	ledger := tradefolio.NewLedger()
	ledger.Append(trade("u1", "AAPL", tradefolio.AssetStock, tradefolio.SideBuy, 10, 150, "2026-01-05"))

	rec := eodstore.CloseRecord{
		Symbol: "AAPL", Day: tradefolio.MustParseDate("2026-01-05"),
		Close: decimal.NewFromInt(151), Status: eodstore.StatusOK,
		Provider: tradefolio.ProviderEODHD,
	}
	if err := store.UpsertClose(rec, false); err != nil {
		t.Fatal(err)
	}

	p := &Planner{Ledger: ledger, Store: store}
	res, err := p.Plan(tradefolio.NewRange(
		tradefolio.MustParseDate("2026-01-05"),
		tradefolio.MustParseDate("2026-01-06")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Covered != 1 || res.Enqueued != 1 {
		t.Errorf("covered = %d enqueued = %d, want 1 and 1", res.Covered, res.Enqueued)
	}
}

func TestPlan_OptionOutsideWindowIsSkipped(t *testing.T) {
	store := openTestStore(t)
	ledger := tradefolio.NewLedger()
	// an option trade far older than any plausible coverage window
	ledger.Append(trade("u1", "NIO210618P3.5", tradefolio.AssetOption, tradefolio.SideBuy, 2, 1.2, "2021-03-01"))

	p := &Planner{Ledger: ledger, Store: store}
	res, err := p.Plan(tradefolio.NewRange(
		tradefolio.MustParseDate("2021-03-01"),
		tradefolio.MustParseDate("2021-03-02")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 2 || res.Enqueued != 0 {
		t.Errorf("skipped = %d enqueued = %d, want 2 and 0", res.Skipped, res.Enqueued)
	}
	reqs, err := store.Requests(eodstore.RequestSkipped)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 {
		t.Fatalf("skipped requests = %d, want 2", len(reqs))
	}
	if got, want := reqs[0].Symbol, "NIO210618P00003500"; got != want {
		t.Errorf("skipped symbol = %q, want canonical %q", got, want)
	}
}

func TestPlan_MalformedSymbolIgnored(t *testing.T) {
	store := openTestStore(t)
	ledger := tradefolio.NewLedger()
	ledger.Append(trade("u1", "???", tradefolio.AssetStock, tradefolio.SideBuy, 1, 1, "2026-01-05"))

	p := &Planner{Ledger: ledger, Store: store}
	res, err := p.Plan(tradefolio.NewRange(
		tradefolio.MustParseDate("2026-01-05"),
		tradefolio.MustParseDate("2026-01-05")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Enqueued != 0 {
		t.Errorf("enqueued = %d, want 0 for malformed-only ledger", res.Enqueued)
	}
}

// scriptedFetcher answers from a fixed table; unknown keys are transport errors.
type scriptedFetcher struct {
	closes map[string]float64 // key -> close; negative marks no-data
	calls  int
}

func (f *scriptedFetcher) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (provider.Quote, tradefolio.Provider, error) {
	f.calls++
	c, ok := f.closes[sym.CloseKey(day)]
	if !ok {
		return provider.Quote{}, "", &provider.TransportError{Source: "fake", Err: errors.New("down")}
	}
	if c < 0 {
		return provider.Quote{}, tradefolio.ProviderEODHD, provider.ErrNoData
	}
	return provider.Quote{Symbol: sym.Canon, Day: day, Close: decimal.NewFromFloat(c)},
		tradefolio.ProviderEODHD, nil
}

func TestSweep_CompletesQueuedRequests(t *testing.T) {
	store := openTestStore(t)
	day := tradefolio.MustParseDate("2026-01-05")
	if err := store.Enqueue("AAPL", day); err != nil {
		t.Fatal(err)
	}
	if err := store.Enqueue("MSFT", day); err != nil {
		t.Fatal(err)
	}

	fetcher := &scriptedFetcher{closes: map[string]float64{
		"2026-01-05_AAPL": 151.25,
		"2026-01-05_MSFT": -1, // definitive no data
	}}
	sw := &Sweeper{Store: store, Fetcher: fetcher, Log: quietLog()}

	res, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Done != 2 || res.Failed != 0 {
		t.Fatalf("done = %d failed = %d, want 2 and 0", res.Done, res.Failed)
	}

	rec, err := store.ReadClose("AAPL", day)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Close.Equal(decimal.NewFromFloat(151.25)) || rec.Status != eodstore.StatusOK {
		t.Errorf("AAPL close = %s %s, want 151.25 ok", rec.Close, rec.Status)
	}
	rec, err = store.ReadClose("MSFT", day)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != eodstore.StatusNoLiquidity {
		t.Errorf("MSFT status = %s, want no_liquidity", rec.Status)
	}
	if rev, _ := store.Revision("AAPL"); rev != 1 {
		t.Errorf("AAPL revision = %d, want 1", rev)
	}
}

func TestSweep_FailureGoesBackToQueue(t *testing.T) {
	store := openTestStore(t)
	day := tradefolio.MustParseDate("2026-01-05")
	if err := store.Enqueue("AAPL", day); err != nil {
		t.Fatal(err)
	}

	fetcher := &scriptedFetcher{closes: map[string]float64{}}
	sw := &Sweeper{Store: store, Fetcher: fetcher, Log: quietLog(), MaxAttempts: 3}

	// one run keeps re-claiming the requeued request until it exhausts
	res, err := sw.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 3 {
		t.Fatalf("failed = %d, want 3 recorded attempts", res.Failed)
	}
	reqs, reqErr := store.Requests(eodstore.RequestError)
	if reqErr != nil {
		t.Fatal(reqErr)
	}
	if len(reqs) != 1 || reqs[0].Attempts != 3 {
		t.Fatalf("error requests = %+v, want one with 3 attempts", reqs)
	}
}

func TestSweep_CancellationReleasesClaim(t *testing.T) {
	store := openTestStore(t)
	day := tradefolio.MustParseDate("2026-01-05")
	if err := store.Enqueue("AAPL", day); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	blocking := fetchFunc(func(fctx context.Context, sym tradefolio.Symbol, d tradefolio.Date) (provider.Quote, tradefolio.Provider, error) {
		cancel()
		return provider.Quote{}, "", fctx.Err()
	})
	sw := &Sweeper{Store: store, Fetcher: blocking, Log: quietLog()}

	_, err := sw.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	reqs, err := store.Requests(eodstore.RequestQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 {
		t.Fatalf("queued after interruption = %d, want the claim released", len(reqs))
	}
}

type fetchFunc func(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (provider.Quote, tradefolio.Provider, error)

func (f fetchFunc) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (provider.Quote, tradefolio.Provider, error) {
	return f(ctx, sym, day)
}
