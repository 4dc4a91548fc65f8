// Package renderer turns engine and store reports into markdown.
package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"github.com/qiqiMagicCity/tradefolio"
)

// HoldingMarkdown renders a portfolio valuation: one row per open position,
// stale positions listed but never valued.
func HoldingMarkdown(userID string, v *tradefolio.Valuation) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Holding for %s on %s", userID, v.On))

	if len(v.Positions) == 0 {
		doc.PlainText("No open positions.")
	} else {
		table := md.TableSet{
			Alignment: []md.TableAlignment{
				md.AlignLeft,
				md.AlignRight,
				md.AlignRight,
				md.AlignRight,
				md.AlignRight,
				md.AlignRight,
				md.AlignLeft,
			},
			Header: []string{"Symbol", "Quantity", "Cost Basis", "Market", "Unrealized", "Return", "Marked"},
			Rows:   [][]string{},
		}
		for _, pos := range v.Positions {
			row := []string{
				pos.Display,
				pos.Quantity.String(),
				pos.CostBasis.String(),
			}
			if pos.Stale {
				row = append(row, "pending", "pending", "-", "no close available")
			} else {
				marked := pos.Quote.Day.String()
				if pos.Quote.Estimated {
					marked += " (estimated)"
				}
				row = append(row, pos.Market.String(), pos.Unrealized.SignedString(),
					pos.Return().SignedString(), marked)
			}
			table.Rows = append(table.Rows, row)
		}
		doc.Table(table)
	}

	if !v.RealizedTotal.IsZero() {
		doc.H2("Realized")
		doc.PlainText(fmt.Sprintf("Total realized P&L: %s", v.RealizedTotal.SignedString()))
	}

	if stale := v.Stale(); len(stale) > 0 {
		doc.H2("Pending Marks")
		doc.PlainText("These positions have no usable close yet; run a backfill sweep.")
		doc.BulletList(stale...)
	}

	return doc.String()
}

// RealizedMarkdown renders the realized P&L log of a replayed portfolio.
func RealizedMarkdown(p *tradefolio.Portfolio) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Realized P&L for %s", p.UserID()))

	events := p.Realized()
	if len(events) == 0 {
		doc.PlainText("No closed lots.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Symbol", "Closed", "Quantity", "Entry", "Exit", "P&L"},
		Rows:   [][]string{},
	}
	for _, ev := range events {
		table.Rows = append(table.Rows, []string{
			ev.Display,
			ev.Day.String(),
			ev.Quantity.String(),
			ev.Entry.String(),
			ev.Exit.String(),
			ev.PnL.SignedString(),
		})
	}
	doc.Table(table)
	doc.PlainText(fmt.Sprintf("Total: %s", p.RealizedTotal().SignedString()))

	if excluded := p.Excluded(); len(excluded) > 0 {
		doc.H2(fmt.Sprintf("Excluded Transactions (%d)", len(excluded)))
		var lines []string
		for _, m := range excluded {
			lines = append(lines, fmt.Sprintf("%s %q: %v", m.Tx.ID, m.Tx.RawSymbol, m.Err))
		}
		doc.BulletList(lines...)
	}

	return doc.String()
}
