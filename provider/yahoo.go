package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// Yahoo is the secondary vendor, consulted when the primary fails.
type Yahoo struct {
	client *http.Client
}

// NewYahoo builds the secondary source with the daily disk-cached client.
func NewYahoo() *Yahoo {
	return &Yahoo{client: newCachingClient()}
}

func (y *Yahoo) Name() tradefolio.Provider { return tradefolio.ProviderYahoo }

// FetchClose queries the chart endpoint for the single day.
//
// The response nests the closes deep in an untyped structure:
//
//	{"chart":{"result":[{"timestamp":[...],
//	  "indicators":{"quote":[{"close":[150.9]}]}}],"error":null}}
//
// A jsonpath query keeps us from modelling the whole payload.
func (y *Yahoo) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	addr := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		sym.Canon, start.Unix(), end.Unix())

	var jobj any
	if err := jwget(ctx, y.client, addr, &jobj); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Quote{}, ErrNoData
		}
		return Quote{}, &TransportError{Source: string(y.Name()), Err: err}
	}

	path := "$.chart.result[0].indicators.quote[0].close[0]"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		// a well-formed payload without the close is the vendor saying
		// "nothing traded"
		return Quote{}, ErrNoData
	}
	// jsonpath is never clear about whether it returns a list of one
	// answer or a single answer; keep the first one if any.
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	val, ok := jval.(float64)
	if !ok || val <= 0 {
		return Quote{}, ErrNoData
	}
	return Quote{Symbol: sym.Canon, Day: day, Close: decimal.NewFromFloat(val)}, nil
}
