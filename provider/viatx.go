package provider

import (
	"context"

	"github.com/qiqiMagicCity/tradefolio"
)

// ViaTx derives a pseudo-close from the user's own transaction prices. It is
// the lowest-trust source, flagged dirty downstream, and is only consulted
// as a last resort after every vendor exhausted its retry budget for an
// instrument inside its coverage window.
type ViaTx struct {
	ledger *tradefolio.Ledger
}

// NewViaTx builds the last-resort source over a ledger.
func NewViaTx(ledger *tradefolio.Ledger) *ViaTx {
	return &ViaTx{ledger: ledger}
}

func (v *ViaTx) Name() tradefolio.Provider { return tradefolio.ProviderViaTx }

// FetchClose returns the price of the symbol's own trade on that exact day.
// Older trades are not carried forward here; fabricating history is the
// repair engine's decision, not this source's.
func (v *ViaTx) FetchClose(_ context.Context, sym tradefolio.Symbol, day tradefolio.Date) (Quote, error) {
	price, on, ok := v.ledger.LastTradePrice(sym.Canon, day)
	if !ok || on != day {
		return Quote{}, ErrNoData
	}
	return Quote{Symbol: sym.Canon, Day: day, Close: price.Decimal()}, nil
}
