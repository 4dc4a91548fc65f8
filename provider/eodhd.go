package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// EODHD is the primary market-data vendor.
type EODHD struct {
	apiKey string
	client *http.Client
}

// NewEODHD builds the primary source with the daily disk-cached client.
func NewEODHD(apiKey string) *EODHD {
	return &EODHD{apiKey: apiKey, client: newCachingClient()}
}

func (e *EODHD) Name() tradefolio.Provider { return tradefolio.ProviderEODHD }

// FetchClose queries the eod endpoint for exactly one day.
//
// https://eodhd.com/api/eod/AAPL.US?fmt=json&from=2025-01-06&to=2025-01-06
// responds with a list of daily bars:
//
//	[{"date":"2025-01-06","open":150.1,"close":150.9,...}]
//
// An empty list for a valid instrument is the definitive no-data answer.
func (e *EODHD) FetchClose(ctx context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error) {
	addr := fmt.Sprintf("https://eodhd.com/api/eod/%s.US?fmt=json&api_token=%s&from=%s&to=%s",
		sym.Canon, e.apiKey, day, day)

	type bar struct {
		Date  tradefolio.Date `json:"date"`
		Close decimal.Decimal `json:"close"`
	}
	bars := make([]bar, 0)
	if err := jwget(ctx, e.client, addr, &bars); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			// the vendor does not know the instrument at all
			return Quote{}, ErrNoData
		}
		return Quote{}, &TransportError{Source: string(e.Name()), Err: err}
	}

	for _, b := range bars {
		if b.Date == day && b.Close.IsPositive() {
			return Quote{Symbol: sym.Canon, Day: day, Close: b.Close}, nil
		}
	}
	return Quote{}, ErrNoData
}
