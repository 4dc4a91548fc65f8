package eodstore

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// PutAction records a corporate action under its SPLIT_{SYMBOL}_{DATE} key.
// Re-recording an existing action is a no-op, never an error.
func (s *Store) PutAction(split tradefolio.Split) error {
	if err := split.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO corporate_action (key, symbol, effective, ratio)
		VALUES (?, ?, ?, ?) ON CONFLICT(key) DO NOTHING`,
		split.Key(), split.Symbol, split.Effective.String(), split.Ratio.String())
	return err
}

// Actions returns all recorded corporate actions, ordered by symbol then
// effective date. With a symbol argument the list is restricted to it.
func (s *Store) Actions(symbol string) ([]tradefolio.Split, error) {
	query := `SELECT symbol, effective, ratio FROM corporate_action`
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY symbol, effective`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []tradefolio.Split
	for rows.Next() {
		var sym, effective, ratio string
		if err := rows.Scan(&sym, &effective, &ratio); err != nil {
			return nil, err
		}
		day, err := tradefolio.ParseDate(effective)
		if err != nil {
			return nil, err
		}
		r, err := decimal.NewFromString(ratio)
		if err != nil {
			return nil, fmt.Errorf("eodstore: corrupt ratio %q: %w", ratio, err)
		}
		splits = append(splits, tradefolio.Split{Symbol: sym, Effective: day, Ratio: r})
	}
	return splits, rows.Err()
}
