// Package backfill plans and executes the price backfill sweep: it derives
// the (trading day, symbol) pairs the ledger needs a close for, enqueues
// them, and drains the queue through the provider chain.
package backfill

import (
	"errors"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

// DefaultOptionWindow bounds option coverage to roughly two years before
// today. Vendors prune expired-option history, so older requests would only
// burn the retry budget.
const DefaultOptionWindow = 730 // calendar days

// Planner derives backfill requests from the ledger. A pair needs a price
// when the symbol was held or traded on that trading day and the store has
// no record for it yet.
type Planner struct {
	Ledger *tradefolio.Ledger
	Store  *eodstore.Store

	// OptionWindow is the option coverage bound in calendar days relative
	// to today. Zero means DefaultOptionWindow.
	OptionWindow int
}

// PlanResult summarizes one planning pass.
type PlanResult struct {
	Enqueued int // new or re-opened requests
	Skipped  int // option pairs outside the coverage window
	Covered  int // pairs the store already answers
}

// Plan walks every ledger symbol over the range and enqueues the pairs that
// still need a price. Stocks are planned from their first trade; options
// additionally honor the coverage window. Plan is idempotent: pairs already
// requested or already priced are left alone.
func (p *Planner) Plan(rng tradefolio.Range) (PlanResult, error) {
	var res PlanResult
	horizon := tradefolio.Today().Add(-p.optionWindow())

	for _, sym := range p.Ledger.Symbols() {
		if sym.Malformed {
			continue
		}
		first, ok := p.Ledger.FirstTrade(sym.Canon)
		if !ok {
			continue
		}
		from := rng.From
		if first.After(from) {
			from = first
		}
		for day := range tradefolio.NewRange(from, rng.To).TradingDays() {
			if !p.needs(sym.Canon, day) {
				continue
			}
			if _, err := p.Store.ReadClose(sym.Canon, day); err == nil {
				res.Covered++
				continue
			} else if !errors.Is(err, eodstore.ErrNotFound) {
				return res, err
			}
			if sym.Option && day.Before(horizon) {
				if err := p.Store.Skip(sym.Canon, day, "outside option coverage window"); err != nil {
					return res, err
				}
				res.Skipped++
				continue
			}
			if err := p.Store.Enqueue(sym.Canon, day); err != nil {
				return res, err
			}
			res.Enqueued++
		}
	}
	return res, nil
}

// needs reports whether the symbol requires a close on the day: it was
// either held overnight or traded intraday.
func (p *Planner) needs(canon string, day tradefolio.Date) bool {
	if !p.Ledger.Position(canon, day).IsZero() {
		return true
	}
	return p.Ledger.TradedOn(canon, day)
}

func (p *Planner) optionWindow() int {
	if p.OptionWindow > 0 {
		return p.OptionWindow
	}
	return DefaultOptionWindow
}
