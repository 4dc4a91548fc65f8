// Package tradefolio implements the end-of-day price reconciliation pipeline
// and the FIFO portfolio valuation engine behind a personal trading dashboard.
//
// The root package holds the domain core: canonical symbol spellings, the
// append-only transaction ledger, corporate actions, and the FIFO replay that
// turns the ledger into lots, realized P&L and a mark-to-market valuation.
// Subpackages provide the authoritative EOD store with its revision
// propagator (eodstore), the rate-limited multi-provider fetch chain
// (provider), the idempotent backfill queue sweep (backfill), and the
// gap/outlier repair engine (repair).
//
// One rule runs through all of it: every persisted price and every backfill
// request is keyed by {YYYY-MM-DD}_{canonical symbol}, and the canonical
// spelling is computed in exactly one place, Canonicalize.
package tradefolio
