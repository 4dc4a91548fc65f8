package tradefolio

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// The portfolio snapshot persists the result of a replay so that valuation
// does not re-fold the full ledger on every request. The snapshot carries the
// applied corporate-action markers, which is what makes split application
// idempotent across reloads.

// MarshalJSON writes the snapshot with fully deterministic ordering.
func (p *Portfolio) MarshalJSON() ([]byte, error) {
	applied := make([]string, 0, len(p.applied))
	for k := range p.applied {
		applied = append(applied, k)
	}
	sort.Strings(applied)

	lots := make([]Lot, 0)
	for _, canon := range p.OpenSymbols() {
		lots = append(lots, p.lots[canon]...)
	}

	var w jsonObjectWriter
	w.Optional("user", p.userID)
	w.Append("applied", applied)
	w.Append("lots", lots)
	w.Append("realized", p.realized)
	return w.MarshalJSON()
}

// UnmarshalJSON restores a snapshot written by MarshalJSON.
func (p *Portfolio) UnmarshalJSON(data []byte) error {
	var temp struct {
		User     string   `json:"user"`
		Applied  []string `json:"applied"`
		Lots     []Lot    `json:"lots"`
		Realized []struct {
			Symbol     string   `json:"symbol"`
			Display    string   `json:"display"`
			Day        Date     `json:"day"`
			Opened     Date     `json:"opened"`
			Quantity   Quantity `json:"quantity"`
			Entry      Money    `json:"entry"`
			Exit       Money    `json:"exit"`
			Multiplier int64    `json:"multiplier"`
			Short      bool     `json:"short"`
			PnL        Money    `json:"pnl"`
		} `json:"realized"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	*p = *NewPortfolio(temp.User)
	for _, l := range temp.Lots {
		p.lots[l.Symbol] = append(p.lots[l.Symbol], l)
		if _, ok := p.symbols[l.Symbol]; !ok {
			p.symbols[l.Symbol] = Canonicalize(l.Symbol)
		}
	}
	for _, k := range temp.Applied {
		p.applied[k] = true
	}
	for _, r := range temp.Realized {
		p.realized = append(p.realized, Realized{
			Symbol:     r.Symbol,
			Display:    r.Display,
			Day:        r.Day,
			Opened:     r.Opened,
			Quantity:   r.Quantity,
			Entry:      r.Entry,
			Exit:       r.Exit,
			Multiplier: r.Multiplier,
			Short:      r.Short,
			PnL:        r.PnL,
		})
	}
	return nil
}

// SaveSnapshot writes the portfolio snapshot to a file.
func SaveSnapshot(filename string, p *Portfolio) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

// LoadSnapshot reads a portfolio snapshot from a file.
func LoadSnapshot(filename string) (*Portfolio, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	p := NewPortfolio("")
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("cannot decode snapshot %q: %w", filename, err)
	}
	return p, nil
}
