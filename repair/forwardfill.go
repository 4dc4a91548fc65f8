package repair

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

// DefaultLookback bounds how many calendar days the forward-fill walks back
// looking for a reference close.
const DefaultLookback = 10

// ErrNoReference means no ok close exists within the lookback bound. The
// gap stays open; a price is never fabricated from nothing.
var ErrNoReference = errors.New("repair: no reference close within lookback")

// Filler forward-fills audited gaps. It only runs when an operator invokes
// it; the audit itself never writes.
type Filler struct {
	Store *eodstore.Store
	Log   *logrus.Logger

	// Lookback overrides DefaultLookback when positive.
	Lookback int
}

// Fill patches one gap: it walks backward from the gap day, takes the first
// ok close found within the bound, and writes it as an estimated repair
// record. The write goes through the normal trust check and bumps the
// underlying's revision.
func (f *Filler) Fill(symbol string, day tradefolio.Date) (eodstore.CloseRecord, error) {
	ref, err := f.reference(symbol, day)
	if err != nil {
		return eodstore.CloseRecord{}, err
	}

	rec := eodstore.CloseRecord{
		Symbol:    symbol,
		Day:       day,
		Close:     ref.Close,
		Status:    eodstore.StatusOK,
		Provider:  tradefolio.ProviderRepair,
		Estimated: true,
	}
	if err := f.Store.UpsertClose(rec, false); err != nil {
		return eodstore.CloseRecord{}, err
	}
	f.log().WithFields(logrus.Fields{
		"key":   rec.Key(),
		"close": rec.Close.String(),
		"from":  ref.Day.String(),
	}).Info("gap forward-filled")
	return rec, nil
}

// FillReport patches every gap in the report, returning the records written.
// Gaps with no reference are collected, not fatal.
func (f *Filler) FillReport(report Report) (filled []eodstore.CloseRecord, open []Gap, err error) {
	for _, gap := range report.Gaps {
		rec, err := f.Fill(gap.Symbol, gap.Day)
		if errors.Is(err, ErrNoReference) {
			open = append(open, gap)
			continue
		}
		if err != nil {
			return filled, open, err
		}
		filled = append(filled, rec)
	}
	return filled, open, nil
}

// reference walks backward day by day until it finds an ok close or
// exhausts the bound.
func (f *Filler) reference(symbol string, day tradefolio.Date) (eodstore.CloseRecord, error) {
	bound := f.Lookback
	if bound <= 0 {
		bound = DefaultLookback
	}
	for back := 1; back <= bound; back++ {
		rec, err := f.Store.ReadClose(symbol, day.Add(-back))
		if errors.Is(err, eodstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return eodstore.CloseRecord{}, err
		}
		if rec.Status == eodstore.StatusOK {
			return rec, nil
		}
	}
	return eodstore.CloseRecord{}, fmt.Errorf("%w: %s on %s", ErrNoReference, symbol, day)
}

func (f *Filler) log() *logrus.Logger {
	if f.Log != nil {
		return f.Log
	}
	return logrus.StandardLogger()
}
