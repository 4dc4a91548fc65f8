package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// fakeSource scripts a sequence of answers, one per call.
type fakeSource struct {
	name  tradefolio.Provider
	calls int
	// script[i] is returned for call i; past the end, the last entry repeats.
	script []fakeAnswer
}

type fakeAnswer struct {
	close float64
	err   error
}

func (f *fakeSource) Name() tradefolio.Provider { return f.name }

func (f *fakeSource) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error) {
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	a := f.script[i]
	if a.err != nil {
		return Quote{}, a.err
	}
	return Quote{Symbol: sym.Canon, Day: day, Close: decimal.NewFromFloat(a.close)}, nil
}

func transport(name string) error {
	return &TransportError{Source: name, Err: errors.New("boom")}
}

func fastChain(sources []Source, opts ...ChainOption) *Chain {
	base := []ChainOption{
		WithInterval(time.Microsecond),
		WithBackoff(time.Microsecond),
		WithRetries(2),
	}
	return NewChain(sources, append(base, opts...)...)
}

func TestChain_RetriesThenSucceeds(t *testing.T) {
	src := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{err: transport("eodhd")},
		{err: transport("eodhd")},
		{close: 101.5},
	}}
	c := fastChain([]Source{src})

	q, p, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if err != nil {
		t.Fatalf("FetchClose: %v", err)
	}
	if p != tradefolio.ProviderEODHD {
		t.Errorf("provider = %q, want eodhd", p)
	}
	if !q.Close.Equal(decimal.NewFromFloat(101.5)) {
		t.Errorf("close = %s, want 101.5", q.Close)
	}
	if src.calls != 3 {
		t.Errorf("calls = %d, want 3", src.calls)
	}
}

func TestChain_FallsBackAfterExhaustion(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{err: transport("eodhd")},
	}}
	secondary := &fakeSource{name: tradefolio.ProviderYahoo, script: []fakeAnswer{
		{close: 42},
	}}
	c := fastChain([]Source{primary, secondary})

	q, p, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if err != nil {
		t.Fatalf("FetchClose: %v", err)
	}
	if p != tradefolio.ProviderYahoo {
		t.Errorf("provider = %q, want yahoo", p)
	}
	if !q.Close.Equal(decimal.NewFromInt(42)) {
		t.Errorf("close = %s, want 42", q.Close)
	}
	if primary.calls != 3 { // 1 + 2 retries
		t.Errorf("primary calls = %d, want 3", primary.calls)
	}
}

func TestChain_NoDataIsDefinitive(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{err: ErrNoData},
	}}
	secondary := &fakeSource{name: tradefolio.ProviderYahoo, script: []fakeAnswer{
		{close: 42},
	}}
	c := fastChain([]Source{primary, secondary})

	_, p, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if p != tradefolio.ProviderEODHD {
		t.Errorf("provider = %q, want eodhd", p)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary consulted after a definitive no-data answer")
	}
}

func TestChain_LastResortOnlyAfterAllFail(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{err: transport("eodhd")},
	}}
	dirty := &fakeSource{name: tradefolio.ProviderViaTx, script: []fakeAnswer{
		{close: 3.5},
	}}
	c := fastChain([]Source{primary}, WithLastResort(dirty))

	q, p, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("NIO260618P3.5"), tradefolio.MustParseDate("2026-01-05"))
	if err != nil {
		t.Fatalf("FetchClose: %v", err)
	}
	if p != tradefolio.ProviderViaTx {
		t.Errorf("provider = %q, want via_tx", p)
	}
	if !q.Close.Equal(decimal.NewFromFloat(3.5)) {
		t.Errorf("close = %s, want 3.5", q.Close)
	}
}

func TestChain_LastResortSkippedOnSuccess(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{close: 10},
	}}
	dirty := &fakeSource{name: tradefolio.ProviderViaTx, script: []fakeAnswer{
		{close: 3.5},
	}}
	c := fastChain([]Source{primary}, WithLastResort(dirty))

	_, p, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if err != nil {
		t.Fatalf("FetchClose: %v", err)
	}
	if p != tradefolio.ProviderEODHD {
		t.Errorf("provider = %q, want eodhd", p)
	}
	if dirty.calls != 0 {
		t.Errorf("last resort consulted despite vendor success")
	}
}

func TestChain_ErrorWhenAllExhausted(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{err: transport("eodhd")},
	}}
	c := fastChain([]Source{primary})

	_, _, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if err == nil {
		t.Fatal("want error after exhausting every source")
	}
	if !Retryable(err) {
		t.Errorf("err = %v, want the last transport error", err)
	}
}

func TestChain_ZeroCloseIsNoData(t *testing.T) {
	primary := &fakeSource{name: tradefolio.ProviderEODHD, script: []fakeAnswer{
		{close: 0},
	}}
	c := fastChain([]Source{primary})

	_, _, err := c.FetchClose(context.Background(), tradefolio.Canonicalize("AAPL"), tradefolio.MustParseDate("2026-01-05"))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData for a nonpositive close", err)
	}
}
