package tradefolio

import (
	"sort"
)

// Portfolio is the state built by a FIFO replay of the ledger: open lots per
// symbol, the realized P&L log, the quarantined transactions, and markers for
// corporate actions already applied.
//
// The replay is a pure, single-threaded fold over the time-ordered transaction
// stream: replaying the same ledger twice yields identical state. It may be
// parallelized across users, never across transactions of one symbol.
type Portfolio struct {
	userID   string
	lots     map[string]lotQueue
	symbols  map[string]Symbol // representative symbol per canonical key
	realized []Realized
	excluded []MalformedTransaction
	applied  map[string]bool // corporate-action keys already folded in
}

// NewPortfolio returns an empty portfolio for a user.
func NewPortfolio(userID string) *Portfolio {
	return &Portfolio{
		userID:  userID,
		lots:    make(map[string]lotQueue),
		symbols: make(map[string]Symbol),
		applied: make(map[string]bool),
	}
}

// Replay folds a ledger into a fresh portfolio, applying the given corporate
// actions to every transaction dated strictly before their effective date.
// Malformed transactions are excluded and reported; they never abort the
// replay of other symbols.
func Replay(userID string, l *Ledger, splits []Split) *Portfolio {
	p := NewPortfolio(userID)
	p.excluded = append(p.excluded, l.Malformed()...)
	for tx := range l.All() {
		for _, s := range splits {
			tx = s.adjust(tx)
		}
		p.apply(tx)
	}
	for _, s := range splits {
		p.applied[s.Key()] = true
	}
	return p
}

// apply folds one transaction into the per-symbol lot queue. Same-direction
// trades push a lot; opposite-direction trades consume FIFO. A trade
// exceeding the open quantity closes the position fully and opens a new lot
// in the opposite direction for the remainder: one realized-close plus one
// new-open, never merged.
func (p *Portfolio) apply(tx Transaction) {
	canon := tx.Symbol.Canon
	if _, ok := p.symbols[canon]; !ok {
		p.symbols[canon] = tx.Symbol
	}
	queue := p.lots[canon]
	incomingShort := tx.Side.Sign() < 0

	if len(queue) == 0 || queue.short() == incomingShort {
		p.lots[canon] = append(queue, Lot{
			Symbol:      canon,
			Opened:      tx.Day,
			Quantity:    tx.Quantity,
			CostPerUnit: tx.Price,
			Multiplier:  tx.Multiplier,
			Short:       incomingShort,
		})
		return
	}

	remaining, events, leftover := queue.consume(tx.Quantity, tx.Price, tx.Day, tx.Symbol.Display)
	p.realized = append(p.realized, events...)
	if leftover.IsPositive() {
		// Direction reversal: the remainder opens a fresh lot the other way.
		remaining = append(remaining, Lot{
			Symbol:      canon,
			Opened:      tx.Day,
			Quantity:    leftover,
			CostPerUnit: tx.Price,
			Multiplier:  tx.Multiplier,
			Short:       incomingShort,
		})
	}
	if len(remaining) == 0 {
		delete(p.lots, canon)
	} else {
		p.lots[canon] = remaining
	}
}

// UserID returns the owner of the portfolio.
func (p *Portfolio) UserID() string { return p.userID }

// Realized returns the realized P&L log in replay order.
func (p *Portfolio) Realized() []Realized { return p.realized }

// Excluded returns the transactions excluded from the replay, with reasons.
func (p *Portfolio) Excluded() []MalformedTransaction { return p.excluded }

// RealizedTotal sums the realized P&L log.
func (p *Portfolio) RealizedTotal() Money {
	var total Money
	for _, r := range p.realized {
		total = total.Add(r.PnL)
	}
	return total
}

// Lots returns the open lots of a symbol, oldest first.
func (p *Portfolio) Lots(canon string) []Lot {
	return append([]Lot(nil), p.lots[canon]...)
}

// OpenSymbols returns the canonical keys with open lots, sorted.
func (p *Portfolio) OpenSymbols() []string {
	keys := make([]string, 0, len(p.lots))
	for k := range p.lots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Position returns the signed open quantity of a symbol.
func (p *Portfolio) Position(canon string) Quantity {
	q := p.lots[canon]
	total := q.quantity()
	if q.short() {
		return total.Neg()
	}
	return total
}

// HasApplied reports whether a corporate action was already folded in.
func (p *Portfolio) HasApplied(key string) bool { return p.applied[key] }

// ApplySplit adjusts the already-built lots for a corporate action. It is a
// no-op when the action was already applied, so reapplying on snapshot reload
// is safe. Realized history is unaffected: a split preserves every
// quantity-times-price product.
func (p *Portfolio) ApplySplit(s Split) {
	if p.applied[s.Key()] {
		return
	}
	ratio := Q(s.Ratio)
	queue := p.lots[s.Symbol]
	for i, l := range queue {
		if !l.Opened.Before(s.Effective) {
			continue
		}
		l.Quantity = l.Quantity.Mul(ratio)
		l.CostPerUnit = l.CostPerUnit.Div(ratio)
		queue[i] = l
	}
	p.applied[s.Key()] = true
}
