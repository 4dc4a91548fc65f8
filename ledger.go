package tradefolio

import (
	"iter"
	"slices"
	"sort"
)

// MalformedTransaction pairs an excluded record with the reason it was
// excluded. Malformed records are reported individually, never silently
// dropped and never allowed to abort processing of other symbols.
type MalformedTransaction struct {
	Tx  Transaction
	Err error
}

// Ledger is the append-only list of transactions, kept in chronological
// order. It is the single source the valuation engine and the backfill
// planner fold over.
type Ledger struct {
	transactions []Transaction
	malformed    []MalformedTransaction
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append validates and inserts a transaction, preserving chronological order.
// A malformed transaction is quarantined instead, and reported by Malformed.
func (l *Ledger) Append(tx Transaction) {
	if err := tx.Validate(); err != nil {
		l.malformed = append(l.malformed, MalformedTransaction{Tx: tx, Err: err})
		return
	}
	i := sort.Search(len(l.transactions), func(i int) bool {
		return l.transactions[i].Time.After(tx.Time)
	})
	l.transactions = slices.Insert(l.transactions, i, tx)
}

// Len returns the number of valid transactions.
func (l *Ledger) Len() int { return len(l.transactions) }

// Malformed returns the quarantined records.
func (l *Ledger) Malformed() []MalformedTransaction { return l.malformed }

// All iterates over valid transactions in chronological order.
func (l *Ledger) All() iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for _, tx := range l.transactions {
			if !yield(tx) {
				return
			}
		}
	}
}

// BySymbol iterates over the valid transactions of one canonical symbol,
// in chronological order.
func (l *Ledger) BySymbol(canon string) iter.Seq[Transaction] {
	return func(yield func(Transaction) bool) {
		for _, tx := range l.transactions {
			if tx.Symbol.Canon != canon {
				continue
			}
			if !yield(tx) {
				return
			}
		}
	}
}

// Users returns the distinct user IDs present in the ledger, sorted.
func (l *Ledger) Users() []string {
	seen := make(map[string]struct{})
	for _, tx := range l.transactions {
		seen[tx.UserID] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// ForUser returns a view of the ledger restricted to one user.
// Malformed records are carried over so reports stay complete.
func (l *Ledger) ForUser(userID string) *Ledger {
	sub := NewLedger()
	for _, tx := range l.transactions {
		if tx.UserID == userID {
			sub.transactions = append(sub.transactions, tx)
		}
	}
	for _, m := range l.malformed {
		if m.Tx.UserID == userID {
			sub.malformed = append(sub.malformed, m)
		}
	}
	return sub
}

// Symbols returns one representative Symbol per canonical key, sorted by key.
func (l *Ledger) Symbols() []Symbol {
	seen := make(map[string]Symbol)
	for _, tx := range l.transactions {
		if _, ok := seen[tx.Symbol.Canon]; !ok {
			seen[tx.Symbol.Canon] = tx.Symbol
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	symbols := make([]Symbol, 0, len(keys))
	for _, k := range keys {
		symbols = append(symbols, seen[k])
	}
	return symbols
}

// FirstTrade returns the trading day of the first transaction of a symbol.
func (l *Ledger) FirstTrade(canon string) (Date, bool) {
	for tx := range l.BySymbol(canon) {
		return tx.Day, true
	}
	return Date{}, false
}

// Position returns the signed net position of a symbol at the close of the
// given day: buys and covers add, sells and shorts subtract.
func (l *Ledger) Position(canon string, on Date) Quantity {
	var pos Quantity
	for tx := range l.BySymbol(canon) {
		if tx.Day.After(on) {
			break
		}
		delta := tx.Quantity
		if tx.Side.Sign() < 0 {
			delta = delta.Neg()
		}
		pos = pos.Add(delta)
	}
	return pos
}

// TradedOn reports whether the symbol traded on the given day.
func (l *Ledger) TradedOn(canon string, on Date) bool {
	for tx := range l.BySymbol(canon) {
		if tx.Day == on {
			return true
		}
		if tx.Day.After(on) {
			break
		}
	}
	return false
}

// LastTradePrice returns the price of the last trade of a symbol on or
// before the given day. It backs the lowest-trust price fallback.
func (l *Ledger) LastTradePrice(canon string, on Date) (Money, Date, bool) {
	var price Money
	var day Date
	found := false
	for tx := range l.BySymbol(canon) {
		if tx.Day.After(on) {
			break
		}
		price, day, found = tx.Price, tx.Day, true
	}
	return price, day, found
}
