package repair

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"github.com/qiqiMagicCity/tradefolio"
)

// Markdown renders an audit report for terminal or file output.
func Markdown(r Report) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Price Audit %s to %s", r.Range.From, r.Range.To))

	if r.Empty() {
		doc.PlainText("No gaps, no suspicious jumps, no inconsistent requests.")
		return doc.String()
	}

	if len(r.Gaps) > 0 {
		doc.H2(fmt.Sprintf("Gaps (%d)", len(r.Gaps)))
		table := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft},
			Header:    []string{"Symbol", "Day"},
			Rows:      [][]string{},
		}
		for _, gap := range r.Gaps {
			table.Rows = append(table.Rows, []string{gap.Symbol, gap.Day.String()})
		}
		doc.Table(table)
	}

	if len(r.Jumps) > 0 {
		doc.H2(fmt.Sprintf("Suspicious Jumps (%d)", len(r.Jumps)))
		table := md.TableSet{
			Alignment: []md.TableAlignment{
				md.AlignLeft,
				md.AlignLeft,
				md.AlignRight,
				md.AlignRight,
				md.AlignRight,
				md.AlignLeft,
			},
			Header: []string{"Symbol", "Day", "Prev Close", "Close", "Change", "Provider"},
			Rows:   [][]string{},
		}
		for _, j := range r.Jumps {
			table.Rows = append(table.Rows, []string{
				j.Symbol,
				j.Day.String(),
				j.From.String(),
				j.To.String(),
				changePercent(j).SignedString(),
				string(j.Provider),
			})
		}
		doc.Table(table)
	}

	if len(r.Inconsistent) > 0 {
		doc.H2(fmt.Sprintf("Inconsistent Requests (%d)", len(r.Inconsistent)))
		doc.PlainText("Marked done with no close recorded; re-open and re-sweep.")
		doc.BulletList(r.Inconsistent...)
	}

	return doc.String()
}

func changePercent(j Jump) tradefolio.Percent {
	f, _ := j.Change.Float64()
	return tradefolio.Percent(f * 100)
}
