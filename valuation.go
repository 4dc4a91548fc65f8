package tradefolio

import (
	"github.com/shopspring/decimal"
)

// Quote is a close price as exposed to the valuation engine.
type Quote struct {
	Symbol    string
	Day       Date
	Close     decimal.Decimal
	Provider  Provider
	Estimated bool
}

// QuoteReader is the read side of the EOD store the engine marks against.
// LatestCloseOn returns the most recent authoritative close on or before the
// given day; ok is false when none exists.
type QuoteReader interface {
	LatestCloseOn(canon string, on Date) (q Quote, ok bool, err error)
}

// PositionValue is the mark-to-market of one open position.
type PositionValue struct {
	Symbol   string
	Display  string
	Quantity Quantity // signed: negative for short positions
	// CostBasis is the total entry cost of the open lots (multiplier included).
	CostBasis Money
	// Market and Unrealized are meaningful only when Stale is false.
	Market     Money
	Unrealized Money
	Quote      Quote
	// Stale marks a position with no usable close: it is reported as
	// pending, never valued at zero or a fabricated price.
	Stale bool
}

// Valuation is the mark-to-market of a portfolio on a day.
type Valuation struct {
	On            Date
	Positions     []PositionValue
	RealizedTotal Money
}

// Return is the unrealized gain relative to the cost basis. It is zero for
// stale positions and positions with no cost basis.
func (p PositionValue) Return() Percent {
	if p.Stale || p.CostBasis.IsZero() {
		return 0
	}
	ratio, _ := p.Unrealized.Decimal().Div(p.CostBasis.Decimal().Abs()).Float64()
	return Percent(ratio * 100)
}

// Stale returns the canonical symbols that could not be marked.
func (v *Valuation) Stale() []string {
	var stale []string
	for _, p := range v.Positions {
		if p.Stale {
			stale = append(stale, p.Symbol)
		}
	}
	return stale
}

// Valuate marks every open position against the latest available close on or
// before the given day. A position with no close is flagged stale; a store
// failure on one symbol does not prevent marking the others.
func (p *Portfolio) Valuate(on Date, src QuoteReader) *Valuation {
	v := &Valuation{On: on, RealizedTotal: p.RealizedTotal()}
	for _, canon := range p.OpenSymbols() {
		queue := p.lots[canon]
		sym := p.symbols[canon]
		mult := Q(queue[0].Multiplier)

		pos := PositionValue{
			Symbol:   canon,
			Display:  sym.Display,
			Quantity: p.Position(canon),
		}
		for _, l := range queue {
			pos.CostBasis = pos.CostBasis.Add(l.CostPerUnit.Mul(l.Quantity).Mul(mult))
		}

		quote, ok, err := src.LatestCloseOn(canon, on)
		if err != nil || !ok {
			pos.Stale = true
			v.Positions = append(v.Positions, pos)
			continue
		}
		pos.Quote = quote

		currency := queue[0].CostPerUnit.Currency()
		close := M(quote.Close, currency)
		for _, l := range queue {
			perUnit := close.Sub(l.CostPerUnit)
			if l.Short {
				perUnit = l.CostPerUnit.Sub(close)
			}
			pos.Market = pos.Market.Add(close.Mul(l.Quantity).Mul(mult))
			pos.Unrealized = pos.Unrealized.Add(perUnit.Mul(l.Quantity).Mul(mult))
		}
		v.Positions = append(v.Positions, pos)
	}
	return v
}
