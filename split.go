package tradefolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Split is a retroactive corporate action: every transaction and lot of the
// symbol dated strictly before the effective date has its quantity multiplied
// by Ratio and its price divided by Ratio. Application is idempotent: the
// portfolio snapshot carries a marker per applied key.
type Split struct {
	Symbol    string // canonical stock symbol
	Effective Date
	Ratio     decimal.Decimal // e.g. 10 for a 10-for-1 split
}

// NewSplit builds a split for a symbol in any spelling.
func NewSplit(symbol string, effective Date, ratio decimal.Decimal) Split {
	return Split{Symbol: Canonicalize(symbol).Canon, Effective: effective, Ratio: ratio}
}

// Key renders the persisted corporate-action key: SPLIT_{SYMBOL}_{YYYY-MM-DD}.
func (s Split) Key() string {
	return fmt.Sprintf("SPLIT_%s_%s", s.Symbol, s.Effective)
}

// Validate checks the split invariants.
func (s Split) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("split symbol is missing")
	}
	if s.Effective.IsZero() {
		return fmt.Errorf("split effective date is missing")
	}
	if !s.Ratio.IsPositive() {
		return fmt.Errorf("split ratio %s must be positive", s.Ratio)
	}
	return nil
}

// adjust applies the split to a transaction when it matches the symbol and
// predates the effective date. Post-split transactions are untouched.
func (s Split) adjust(tx Transaction) Transaction {
	if tx.Symbol.Canon != s.Symbol || !tx.Day.Before(s.Effective) {
		return tx
	}
	ratio := Q(s.Ratio)
	tx.Quantity = tx.Quantity.Mul(ratio)
	tx.Price = tx.Price.Div(ratio)
	return tx
}
