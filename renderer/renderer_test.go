package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixedQuotes map[string]tradefolio.Quote

func (f fixedQuotes) LatestCloseOn(canon string, on tradefolio.Date) (tradefolio.Quote, bool, error) {
	q, ok := f[canon]
	return q, ok, nil
}

func replayOne(t *testing.T) *tradefolio.Portfolio {
	t.Helper()
	at, _ := time.Parse(time.RFC3339, "2026-01-05T15:00:00Z")
	ledger := tradefolio.NewLedger()
	ledger.Append(tradefolio.NewTransaction("t1", "u1", "AAPL",
		tradefolio.AssetStock, tradefolio.SideBuy,
		tradefolio.Q(10), tradefolio.M(150, "USD"), at))
	ledger.Append(tradefolio.NewTransaction("t2", "u1", "AAPL",
		tradefolio.AssetStock, tradefolio.SideSell,
		tradefolio.Q(4), tradefolio.M(160, "USD"), at.Add(time.Hour)))
	ledger.Append(tradefolio.NewTransaction("t3", "u1", "GOOG",
		tradefolio.AssetStock, tradefolio.SideBuy,
		tradefolio.Q(2), tradefolio.M(180, "USD"), at))
	return tradefolio.Replay("u1", ledger, nil)
}

func TestHoldingMarkdown(t *testing.T) {
	p := replayOne(t)
	quotes := fixedQuotes{
		"AAPL": {Symbol: "AAPL", Day: tradefolio.MustParseDate("2026-01-05"), Close: dec(155)},
	}
	v := p.Valuate(tradefolio.MustParseDate("2026-01-05"), quotes)

	out := HoldingMarkdown("u1", v)
	for _, want := range []string{"Holding for u1", "AAPL", "GOOG", "pending", "Pending Marks"} {
		if !strings.Contains(out, want) {
			t.Errorf("holding markdown missing %q:\n%s", want, out)
		}
	}
}

func TestRealizedMarkdown(t *testing.T) {
	out := RealizedMarkdown(replayOne(t))
	for _, want := range []string{"Realized P&L for u1", "AAPL", "Total:"} {
		if !strings.Contains(out, want) {
			t.Errorf("realized markdown missing %q:\n%s", want, out)
		}
	}
}

func TestRequestsMarkdown(t *testing.T) {
	reqs := []eodstore.Request{{
		Key:    "2026-01-05_AAPL",
		Symbol: "AAPL",
		Day:    tradefolio.MustParseDate("2026-01-05"),
		Status: eodstore.RequestQueued,
	}}
	out := RequestsMarkdown(reqs)
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "queued") {
		t.Errorf("requests markdown:\n%s", out)
	}

	empty := RequestsMarkdown(nil)
	if !strings.Contains(empty, "empty") {
		t.Errorf("empty queue rendering:\n%s", empty)
	}
}
