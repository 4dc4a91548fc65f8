// Package repair audits the EOD store for gaps, suspicious jumps, and
// inconsistent queue state, and forward-fills gaps on explicit request.
// Audits only report; the store is never patched behind the operator's back.
package repair

import (
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

// Gap is a trading day a held or traded symbol has no usable close for.
type Gap struct {
	Symbol string
	Day    tradefolio.Date
}

// Jump is a day-over-day price move beyond the audit threshold on a record
// written by a low-trust provider. Vendor-sourced moves are taken at face
// value; only repaired or transaction-derived prices are suspect.
type Jump struct {
	Symbol   string
	Prev     tradefolio.Date
	Day      tradefolio.Date
	From     decimal.Decimal
	To       decimal.Decimal
	Change   decimal.Decimal // relative, 0.12 means +12%
	Provider tradefolio.Provider
}

// Report is the outcome of one audit pass.
type Report struct {
	Range        tradefolio.Range
	Gaps         []Gap
	Jumps        []Jump
	Inconsistent []string // request keys marked done with no close behind them
}

// Empty reports whether the audit found nothing to flag.
func (r Report) Empty() bool {
	return len(r.Gaps) == 0 && len(r.Jumps) == 0 && len(r.Inconsistent) == 0
}

// DefaultJumpThreshold flags day-over-day moves beyond ten percent.
var DefaultJumpThreshold = decimal.NewFromFloat(0.10)

// Auditor scans the store against the ledger's holdings.
type Auditor struct {
	Ledger *tradefolio.Ledger
	Store  *eodstore.Store

	// JumpThreshold overrides DefaultJumpThreshold when positive.
	JumpThreshold decimal.Decimal
}

// AuditRange inspects every ledger symbol over the range. A gap is a held or
// traded trading day with no ok close; a definitive no-liquidity answer is
// not a gap. Jumps are only flagged on low-trust records.
func (a *Auditor) AuditRange(rng tradefolio.Range) (Report, error) {
	report := Report{Range: rng}

	for _, sym := range a.Ledger.Symbols() {
		if sym.Malformed {
			continue
		}
		recs, err := a.Store.Closes(sym.Canon, rng)
		if err != nil {
			return report, err
		}
		byDay := make(map[tradefolio.Date]eodstore.CloseRecord, len(recs))
		for _, rec := range recs {
			byDay[rec.Day] = rec
		}

		first, ok := a.Ledger.FirstTrade(sym.Canon)
		if !ok {
			continue
		}
		from := rng.From
		if first.After(from) {
			from = first
		}
		for day := range tradefolio.NewRange(from, rng.To).TradingDays() {
			if a.Ledger.Position(sym.Canon, day).IsZero() && !a.Ledger.TradedOn(sym.Canon, day) {
				continue
			}
			rec, ok := byDay[day]
			if !ok || rec.Status == eodstore.StatusError || rec.Status == eodstore.StatusMissingVendor {
				report.Gaps = append(report.Gaps, Gap{Symbol: sym.Canon, Day: day})
			}
		}

		report.Jumps = append(report.Jumps, a.jumps(sym.Canon, recs)...)
	}

	inconsistent, err := a.Store.InconsistentDone()
	if err != nil {
		return report, err
	}
	report.Inconsistent = inconsistent
	return report, nil
}

// jumps walks the ok-status series of one symbol in day order and flags
// low-trust records that moved too far from the previous close.
func (a *Auditor) jumps(symbol string, recs []eodstore.CloseRecord) []Jump {
	threshold := a.JumpThreshold
	if !threshold.IsPositive() {
		threshold = DefaultJumpThreshold
	}

	var jumps []Jump
	var prev *eodstore.CloseRecord
	for i := range recs {
		rec := &recs[i]
		if rec.Status != eodstore.StatusOK {
			continue
		}
		if prev != nil && rec.Provider.LowTrust() && prev.Close.IsPositive() {
			change := rec.Close.Sub(prev.Close).Div(prev.Close)
			if change.Abs().GreaterThan(threshold) {
				jumps = append(jumps, Jump{
					Symbol:   symbol,
					Prev:     prev.Day,
					Day:      rec.Day,
					From:     prev.Close,
					To:       rec.Close,
					Change:   change,
					Provider: rec.Provider,
				})
			}
		}
		prev = rec
	}
	return jumps
}

// ReopenInconsistent puts every done-without-close request back in the
// queue. It returns how many were re-opened.
func ReopenInconsistent(store *eodstore.Store) (int, error) {
	keys, err := store.InconsistentDone()
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if err := store.Reopen(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
