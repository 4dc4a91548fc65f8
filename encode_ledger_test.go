package tradefolio

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLedger_EncodeDecodeRoundTrip(t *testing.T) {
	l := NewLedger()
	at := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	l.Append(NewTransaction("t1", "u1", "AAPL", AssetStock, SideBuy, Q(100), M(150, "USD"), at))
	l.Append(NewTransaction("t2", "u1", "NIO 260618 P 3.5", AssetOption, SideBuy, Q(2), M(0.5, "USD"), at.Add(time.Hour)))

	var buf bytes.Buffer
	if err := EncodeLedger(&buf, l); err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeLedger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Len() != 2 {
		t.Fatalf("decoded %d transactions, want 2", decoded.Len())
	}

	var got []Transaction
	for tx := range decoded.All() {
		got = append(got, tx)
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("order lost: %s, %s", got[0].ID, got[1].ID)
	}
	// the canonical spelling is re-derived on read, never trusted from disk
	if got[1].Symbol.Canon != "NIO260618P00003500" {
		t.Errorf("canonical symbol = %q, want NIO260618P00003500", got[1].Symbol.Canon)
	}
	if got[1].RawSymbol != "NIO 260618 P 3.5" {
		t.Errorf("raw spelling not preserved: %q", got[1].RawSymbol)
	}
	if !got[0].Price.Equal(M(150, "USD")) {
		t.Errorf("price = %s, want %s", got[0].Price, M(150, "USD"))
	}
}

func TestDecodeLedger_QuarantinesBadLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"ok1","symbol":"AAPL","assetType":"stock","side":"buy","quantity":10,"price":150,"currency":"USD","multiplier":1,"time":"2025-01-06T18:00:00Z","day":"2025-01-06"}`,
		`{not json`,
		`{"id":"bad2","symbol":"AAPL","assetType":"stock","side":"buy","quantity":0,"price":150,"currency":"USD","multiplier":1,"time":"2025-01-07T18:00:00Z","day":"2025-01-07"}`,
		`{"id":"ok2","symbol":"GOOG","assetType":"stock","side":"buy","quantity":5,"price":100,"currency":"USD","multiplier":1,"time":"2025-01-08T18:00:00Z","day":"2025-01-08"}`,
	}, "\n")

	l, err := DecodeLedger(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 2 {
		t.Errorf("valid transactions = %d, want 2", l.Len())
	}
	if len(l.Malformed()) != 2 {
		t.Fatalf("quarantined = %d, want 2", len(l.Malformed()))
	}
	for _, m := range l.Malformed() {
		if m.Err == nil {
			t.Error("quarantined record carries no reason")
		}
	}
}

func TestLedger_Position(t *testing.T) {
	l := NewLedger()
	at := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	l.Append(NewTransaction("t1", "u1", "AAPL", AssetStock, SideBuy, Q(100), M(150, "USD"), at))
	l.Append(NewTransaction("t2", "u1", "AAPL", AssetStock, SideSell, Q(25), M(160, "USD"), at.AddDate(0, 0, 2)))
	l.Append(NewTransaction("t3", "u1", "TSLA", AssetStock, SideShort, Q(10), M(200, "USD"), at.AddDate(0, 0, 2)))

	testCases := []struct {
		name  string
		canon string
		on    string
		want  int
	}{
		{"before first trade", "AAPL", "2025-01-05", 0},
		{"on buy day", "AAPL", "2025-01-06", 100},
		{"after sell", "AAPL", "2025-01-09", 75},
		{"short is negative", "TSLA", "2025-01-09", -10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := l.Position(tc.canon, MustParseDate(tc.on)); !got.Equal(Q(tc.want)) {
				t.Errorf("Position(%s, %s) = %s, want %d", tc.canon, tc.on, got, tc.want)
			}
		})
	}
}

func TestLedger_ForUser(t *testing.T) {
	l := NewLedger()
	at := time.Date(2025, 1, 6, 18, 0, 0, 0, time.UTC)
	l.Append(NewTransaction("t1", "alice", "AAPL", AssetStock, SideBuy, Q(10), M(150, "USD"), at))
	l.Append(NewTransaction("t2", "bob", "GOOG", AssetStock, SideBuy, Q(5), M(100, "USD"), at))

	if got := l.Users(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Users() = %v", got)
	}
	if got := l.ForUser("alice").Len(); got != 1 {
		t.Errorf("alice has %d transactions, want 1", got)
	}
}
