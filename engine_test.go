package tradefolio

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func usd(v float64) Money { return M(v, "USD") }

func trade(t *testing.T, day string, symbol string, side Side, qty float64, price float64) Transaction {
	t.Helper()
	at, err := time.Parse(time.RFC3339, day+"T18:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	asset := AssetStock
	if Canonicalize(symbol).Option {
		asset = AssetOption
	}
	return NewTransaction(day+"_"+symbol+"_"+string(side), "u1", symbol, asset, side, Q(qty), usd(price), at)
}

func TestReplay_FIFO(t *testing.T) {
	// buy 100 @150, buy 50 @160, sell 120 @170:
	// realized = 100*(170-150) + 20*(170-160) = 2200, remaining lot 30 @160.
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "AAPL", SideBuy, 100, 150))
	l.Append(trade(t, "2025-01-07", "AAPL", SideBuy, 50, 160))
	l.Append(trade(t, "2025-01-08", "AAPL", SideSell, 120, 170))

	p := Replay("u1", l, nil)

	if got := p.RealizedTotal(); !got.Equal(usd(2200)) {
		t.Errorf("realized total = %s, want %s", got, usd(2200))
	}
	if len(p.Realized()) != 2 {
		t.Fatalf("realized events = %d, want 2", len(p.Realized()))
	}
	lots := p.Lots("AAPL")
	if len(lots) != 1 {
		t.Fatalf("open lots = %d, want 1", len(lots))
	}
	if !lots[0].Quantity.Equal(Q(30)) {
		t.Errorf("remaining quantity = %s, want 30", lots[0].Quantity)
	}
	if !lots[0].CostPerUnit.Equal(usd(160)) {
		t.Errorf("remaining cost = %s, want %s", lots[0].CostPerUnit, usd(160))
	}
}

func TestReplay_ShortCover(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-02-03", "TSLA", SideShort, 10, 200))
	l.Append(trade(t, "2025-02-05", "TSLA", SideCover, 10, 180))

	p := Replay("u1", l, nil)

	// short pnl = (entry - exit) * qty = (200-180)*10 = 200
	if got := p.RealizedTotal(); !got.Equal(usd(200)) {
		t.Errorf("realized total = %s, want %s", got, usd(200))
	}
	if len(p.Lots("TSLA")) != 0 {
		t.Errorf("lots remain after full cover: %v", p.Lots("TSLA"))
	}
}

func TestReplay_DirectionReversal(t *testing.T) {
	// Selling more than held closes the long and opens a short for the
	// remainder: a realized-close event plus a fresh opposite lot.
	l := NewLedger()
	l.Append(trade(t, "2025-03-03", "NIO", SideBuy, 100, 5))
	l.Append(trade(t, "2025-03-04", "NIO", SideSell, 150, 6))

	p := Replay("u1", l, nil)

	if got := p.RealizedTotal(); !got.Equal(usd(100)) {
		t.Errorf("realized total = %s, want %s", got, usd(100))
	}
	lots := p.Lots("NIO")
	if len(lots) != 1 {
		t.Fatalf("open lots = %d, want 1", len(lots))
	}
	if !lots[0].Short {
		t.Error("reversal lot should be short")
	}
	if !lots[0].Quantity.Equal(Q(50)) {
		t.Errorf("reversal quantity = %s, want 50", lots[0].Quantity)
	}
	if got := p.Position("NIO"); !got.Equal(Q(-50)) {
		t.Errorf("position = %s, want -50", got)
	}
}

func TestReplay_OptionMultiplier(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-04-07", "NIO260618P3.5", SideBuy, 2, 0.50))
	l.Append(trade(t, "2025-04-09", "NIO260618P3.5", SideSell, 2, 0.80))

	p := Replay("u1", l, nil)

	// (0.80-0.50) * 2 contracts * 100 = 60
	if got := p.RealizedTotal(); !got.Equal(usd(60)) {
		t.Errorf("realized total = %s, want %s", got, usd(60))
	}
}

func TestReplay_MalformedExcluded(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "AAPL", SideBuy, 100, 150))
	bad := trade(t, "2025-01-07", "AAPL", SideBuy, 0, 150) // zero quantity
	l.Append(bad)
	l.Append(trade(t, "2025-01-08", "GOOG", SideBuy, 10, 100))

	p := Replay("u1", l, nil)

	if len(p.Excluded()) != 1 {
		t.Fatalf("excluded = %d, want 1", len(p.Excluded()))
	}
	if p.Excluded()[0].Err == nil {
		t.Error("excluded transaction carries no reason")
	}
	// the bad record must not abort the replay of other symbols
	if got := p.Position("GOOG"); !got.Equal(Q(10)) {
		t.Errorf("GOOG position = %s, want 10", got)
	}
	if got := p.Position("AAPL"); !got.Equal(Q(100)) {
		t.Errorf("AAPL position = %s, want 100", got)
	}
}

func TestReplay_SplitRetroactive(t *testing.T) {
	// A 10-for-1 split applied to a pre-split lot of qty=10 cost=100
	// yields qty=100 cost=10; post-split transactions are unaffected.
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "XYZ", SideBuy, 10, 100))
	l.Append(trade(t, "2025-06-02", "XYZ", SideBuy, 5, 12))

	split := NewSplit("XYZ", MustParseDate("2025-03-03"), decimal.NewFromInt(10))
	p := Replay("u1", l, []Split{split})

	lots := p.Lots("XYZ")
	if len(lots) != 2 {
		t.Fatalf("open lots = %d, want 2", len(lots))
	}
	if !lots[0].Quantity.Equal(Q(100)) || !lots[0].CostPerUnit.Equal(usd(10)) {
		t.Errorf("pre-split lot = %s @ %s, want 100 @ %s", lots[0].Quantity, lots[0].CostPerUnit, usd(10))
	}
	if !lots[1].Quantity.Equal(Q(5)) || !lots[1].CostPerUnit.Equal(usd(12)) {
		t.Errorf("post-split lot = %s @ %s, want 5 @ %s", lots[1].Quantity, lots[1].CostPerUnit, usd(12))
	}
	if !p.HasApplied(split.Key()) {
		t.Error("split marker not recorded")
	}
}

func TestApplySplit_Idempotent(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "XYZ", SideBuy, 10, 100))
	p := Replay("u1", l, nil)

	split := NewSplit("XYZ", MustParseDate("2025-03-03"), decimal.NewFromInt(10))
	p.ApplySplit(split)
	p.ApplySplit(split) // reapplying must be a no-op

	lots := p.Lots("XYZ")
	if !lots[0].Quantity.Equal(Q(100)) || !lots[0].CostPerUnit.Equal(usd(10)) {
		t.Errorf("lot after double apply = %s @ %s, want 100 @ %s", lots[0].Quantity, lots[0].CostPerUnit, usd(10))
	}
}

func TestSplitKey(t *testing.T) {
	split := NewSplit("aapl", MustParseDate("2020-08-31"), decimal.NewFromInt(4))
	if got, want := split.Key(), "SPLIT_AAPL_2020-08-31"; got != want {
		t.Errorf("split key = %q, want %q", got, want)
	}
}

func TestReplay_Deterministic(t *testing.T) {
	build := func() *Portfolio {
		l := NewLedger()
		l.Append(trade(t, "2025-01-06", "AAPL", SideBuy, 100, 150))
		l.Append(trade(t, "2025-01-07", "AAPL", SideBuy, 50, 160))
		l.Append(trade(t, "2025-01-08", "AAPL", SideSell, 120, 170))
		l.Append(trade(t, "2025-01-09", "NIO260618P3.5", SideBuy, 2, 0.5))
		return Replay("u1", l, nil)
	}
	a, err := build().MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	b, err := build().MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("two replays of the same ledger differ:\n%s\n%s", a, b)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "AAPL", SideBuy, 100, 150))
	l.Append(trade(t, "2025-01-08", "AAPL", SideSell, 40, 170))
	p := Replay("u1", l, []Split{NewSplit("XYZ", MustParseDate("2025-03-03"), decimal.NewFromInt(10))})

	file := t.TempDir() + "/snapshot.json"
	if err := SaveSnapshot(file, p); err != nil {
		t.Fatal(err)
	}
	q, err := LoadSnapshot(file)
	if err != nil {
		t.Fatal(err)
	}

	if q.UserID() != "u1" {
		t.Errorf("user = %q, want u1", q.UserID())
	}
	if !reflect.DeepEqual(p.Lots("AAPL"), q.Lots("AAPL")) {
		t.Errorf("lots differ after reload:\n%v\n%v", p.Lots("AAPL"), q.Lots("AAPL"))
	}
	if !q.RealizedTotal().Equal(p.RealizedTotal()) {
		t.Errorf("realized total differs after reload: %s vs %s", q.RealizedTotal(), p.RealizedTotal())
	}
	if !q.HasApplied("SPLIT_XYZ_2025-03-03") {
		t.Error("applied markers lost in snapshot")
	}
}

type fakeQuotes map[string]Quote

func (f fakeQuotes) LatestCloseOn(canon string, on Date) (Quote, bool, error) {
	q, ok := f[canon]
	return q, ok, nil
}

func TestValuate(t *testing.T) {
	l := NewLedger()
	l.Append(trade(t, "2025-01-06", "AAPL", SideBuy, 10, 150))
	l.Append(trade(t, "2025-01-06", "GOOG", SideBuy, 5, 100))
	p := Replay("u1", l, nil)

	quotes := fakeQuotes{
		"AAPL": {Symbol: "AAPL", Day: MustParseDate("2025-01-10"), Close: decimal.NewFromInt(160), Provider: ProviderEODHD},
	}
	v := p.Valuate(MustParseDate("2025-01-10"), quotes)

	if len(v.Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(v.Positions))
	}
	var aapl, goog PositionValue
	for _, pos := range v.Positions {
		switch pos.Symbol {
		case "AAPL":
			aapl = pos
		case "GOOG":
			goog = pos
		}
	}
	if aapl.Stale {
		t.Error("AAPL wrongly stale")
	}
	if !aapl.Unrealized.Equal(usd(100)) {
		t.Errorf("AAPL unrealized = %s, want %s", aapl.Unrealized, usd(100))
	}
	if !aapl.Market.Equal(usd(1600)) {
		t.Errorf("AAPL market = %s, want %s", aapl.Market, usd(1600))
	}
	// no close for GOOG: position is pending, never valued at zero
	if !goog.Stale {
		t.Error("GOOG should be stale")
	}
	if got := v.Stale(); len(got) != 1 || got[0] != "GOOG" {
		t.Errorf("stale symbols = %v, want [GOOG]", got)
	}
}
