package renderer

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"

	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

// RequestsMarkdown renders the backfill queue status feed.
func RequestsMarkdown(reqs []eodstore.Request) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Backfill Requests (%d)", len(reqs)))

	if len(reqs) == 0 {
		doc.PlainText("The queue is empty.")
		return doc.String()
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignLeft,
		},
		Header: []string{"Day", "Symbol", "Status", "Attempts", "Last Error"},
		Rows:   [][]string{},
	}
	for _, r := range reqs {
		table.Rows = append(table.Rows, []string{
			r.Day.String(),
			r.Symbol,
			string(r.Status),
			fmt.Sprintf("%d", r.Attempts),
			r.LastError,
		})
	}
	doc.Table(table)
	return doc.String()
}
