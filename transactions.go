package tradefolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType distinguishes stock transactions from option contracts.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetOption AssetType = "option"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy   Side = "buy"
	SideSell  Side = "sell"
	SideShort Side = "short"
	SideCover Side = "cover"
)

// Sign returns the effect of the side on the position: +1 for buy and cover,
// -1 for sell and short.
func (s Side) Sign() int {
	switch s {
	case SideBuy, SideCover:
		return 1
	case SideSell, SideShort:
		return -1
	default:
		return 0
	}
}

// Opening reports whether the side nominally opens a position.
func (s Side) Opening() bool { return s == SideBuy || s == SideShort }

// Transaction is one immutable record of the append-only trade ledger.
// Once settled it is never mutated, except for symbol-normalization
// corrections which only touch the stored spelling, never the identity.
type Transaction struct {
	ID         string
	UserID     string
	RawSymbol  string // symbol as entered or imported, preserved for display
	Symbol     Symbol // canonical identity, derived from RawSymbol
	Asset      AssetType
	Side       Side
	Quantity   Quantity // always positive; direction is carried by Side
	Price      Money    // per unit, before multiplier
	Multiplier int64    // 100 for options, 1 for stock
	Time       time.Time
	Day        Date // New York trading day
}

// NewTransaction builds a validated transaction from raw user input.
func NewTransaction(id, userID, rawSymbol string, asset AssetType, side Side, qty Quantity, price Money, at time.Time) Transaction {
	tx := Transaction{
		ID:        id,
		UserID:    userID,
		RawSymbol: rawSymbol,
		Symbol:    Canonicalize(rawSymbol),
		Asset:     asset,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Time:      at.UTC(),
		Day:       TradingDayOf(at),
	}
	if asset == AssetOption {
		tx.Multiplier = 100
	} else {
		tx.Multiplier = 1
	}
	return tx
}

// Validate checks the record for the defects that exclude it from replay:
// missing symbol, non-positive quantity, negative price, unknown side.
// A zero price is legal (options can expire or trade worthless).
func (t Transaction) Validate() error {
	var errs []error
	if t.Symbol.Canon == "" {
		errs = append(errs, errors.New("symbol is missing"))
	}
	if t.Symbol.Malformed {
		errs = append(errs, fmt.Errorf("symbol %q is malformed", t.RawSymbol))
	}
	if !t.Quantity.IsPositive() {
		errs = append(errs, fmt.Errorf("quantity %s is not positive", t.Quantity))
	}
	if t.Price.IsNegative() {
		errs = append(errs, fmt.Errorf("price %s is negative", t.Price))
	}
	if t.Side.Sign() == 0 {
		errs = append(errs, fmt.Errorf("unknown side %q", t.Side))
	}
	if t.Asset != AssetStock && t.Asset != AssetOption {
		errs = append(errs, fmt.Errorf("unknown asset type %q", t.Asset))
	}
	if t.Multiplier <= 0 {
		errs = append(errs, fmt.Errorf("multiplier %d is not positive", t.Multiplier))
	}
	if t.Day.IsZero() {
		errs = append(errs, errors.New("trading day is missing"))
	}
	return errors.Join(errs...)
}

// MarshalJSON writes the record with a stable field order.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", t.ID)
	w.Optional("user", t.UserID)
	w.Append("symbol", t.RawSymbol)
	w.Append("assetType", t.Asset)
	w.Append("side", t.Side)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price.Decimal())
	w.Optional("currency", t.Price.Currency())
	w.Append("multiplier", t.Multiplier)
	w.Append("time", t.Time.UTC().Format(time.RFC3339))
	w.Append("day", t.Day)
	return w.MarshalJSON()
}

// UnmarshalJSON reads the persisted form and re-derives the canonical symbol,
// so the ledger never trusts a stored canonical spelling.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var temp struct {
		ID         string          `json:"id"`
		User       string          `json:"user"`
		Symbol     string          `json:"symbol"`
		AssetType  AssetType       `json:"assetType"`
		Side       Side            `json:"side"`
		Quantity   Quantity        `json:"quantity"`
		Price      decimal.Decimal `json:"price"`
		Currency   string          `json:"currency"`
		Multiplier int64           `json:"multiplier"`
		Time       string          `json:"time"`
		Day        Date            `json:"day"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	currency := temp.Currency
	if currency == "" {
		currency = "USD"
	}
	at, err := time.Parse(time.RFC3339, temp.Time)
	if err != nil && temp.Time != "" {
		return fmt.Errorf("invalid transaction time %q: %w", temp.Time, err)
	}
	*t = Transaction{
		ID:         temp.ID,
		UserID:     temp.User,
		RawSymbol:  temp.Symbol,
		Symbol:     Canonicalize(temp.Symbol),
		Asset:      temp.AssetType,
		Side:       temp.Side,
		Quantity:   temp.Quantity,
		Price:      M(temp.Price, currency),
		Multiplier: temp.Multiplier,
		Time:       at,
		Day:        temp.Day,
	}
	if t.Day.IsZero() && !at.IsZero() {
		t.Day = TradingDayOf(at)
	}
	return nil
}
