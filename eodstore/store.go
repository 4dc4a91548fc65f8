// Package eodstore persists the authoritative end-of-day close per
// (trading day, canonical symbol), the backfill request queue, the
// corporate-action table, and one revision counter per underlying symbol.
//
// Every accepted close write bumps the underlying's revision in the same
// SQL transaction; consumers use the counter, not the price value, as the
// cache-invalidation signal.
package eodstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/qiqiMagicCity/tradefolio"
)

// Status of an official close record.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNoLiquidity   Status = "no_liquidity"
	StatusMissingVendor Status = "missing_vendor"
	StatusError         Status = "error"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("eodstore: not found")

// TrustConflictError reports a rejected write: an existing record of
// equal-or-higher provider trust holds a materially different price.
// It is logged by callers, never fatal.
type TrustConflictError struct {
	Key      string
	Existing tradefolio.Provider
	Incoming tradefolio.Provider
	Current  decimal.Decimal
	Proposed decimal.Decimal
}

func (e *TrustConflictError) Error() string {
	return fmt.Sprintf("eodstore: write to %s rejected: %s holds %s, %s proposed %s",
		e.Key, e.Existing, e.Current, e.Incoming, e.Proposed)
}

// CloseRecord is one authoritative close price.
type CloseRecord struct {
	Symbol    string // canonical spelling, the only one ever persisted
	Day       tradefolio.Date
	Close     decimal.Decimal
	Status    Status
	Provider  tradefolio.Provider
	Estimated bool
	UpdatedAt time.Time
}

// Key renders the composite key {YYYY-MM-DD}_{symbol}.
func (r CloseRecord) Key() string { return tradefolio.CloseKey(r.Day, r.Symbol) }

const schema = `
CREATE TABLE IF NOT EXISTS official_close (
	key        TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	day        TEXT NOT NULL,
	close      TEXT NOT NULL,
	status     TEXT NOT NULL,
	provider   TEXT NOT NULL,
	estimated  INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_close_symbol_day ON official_close(symbol, day);

CREATE TABLE IF NOT EXISTS symbol_revision (
	symbol TEXT PRIMARY KEY,
	rev    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backfill_request (
	key        TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	day        TEXT NOT NULL,
	status     TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_status ON backfill_request(status, day);

CREATE TABLE IF NOT EXISTS corporate_action (
	key       TEXT PRIMARY KEY,
	symbol    TEXT NOT NULL,
	effective TEXT NOT NULL,
	ratio     TEXT NOT NULL
);
`

// Store is the SQLite-backed EOD store. It is safe for use by multiple
// workers: queue claims rely on compare-and-swap status transitions, and
// close writes are transactional with their revision bumps.
type Store struct {
	db    *sql.DB
	cache *gocache.Cache
}

// Open opens (creating if needed) the store at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eodstore: cannot open %q: %w", path, err)
	}
	// busy_timeout makes concurrent claimers wait instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("eodstore: cannot create schema: %w", err)
	}
	return &Store{
		db:    db,
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// relTol and absTol define "materially different": more than 0.1% apart,
// with an absolute floor for near-zero prices.
var (
	relTol = decimal.NewFromFloat(0.001)
	absTol = decimal.NewFromFloat(0.001)
)

func materiallyDifferent(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return false
	}
	tol := a.Abs().Mul(relTol)
	if tol.LessThan(absTol) {
		tol = absTol
	}
	return diff.GreaterThan(tol)
}

func (r CloseRecord) validate() error {
	if r.Symbol == "" {
		return errors.New("eodstore: close record has no symbol")
	}
	if r.Day.IsZero() {
		return errors.New("eodstore: close record has no day")
	}
	if r.Status == StatusOK && !r.Close.IsPositive() {
		return fmt.Errorf("eodstore: ok close for %s must be positive, got %s", r.Key(), r.Close)
	}
	if r.Provider == "" {
		return errors.New("eodstore: close record has no provider")
	}
	return nil
}

// UpsertClose writes an official close, enforcing the provider-trust order:
// without override, a write is rejected when an existing ok record of
// equal-or-higher trust holds a materially different price. A vendor may
// always revise its own record. Accepted writes bump the underlying's
// revision atomically; identical rewrites are no-ops and bump nothing.
func (s *Store) UpsertClose(rec CloseRecord, override bool) error {
	if err := rec.validate(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	accepted, err := upsertCloseTx(tx, rec, override)
	if err != nil {
		return err
	}
	if !accepted {
		// identical record already present; nothing to commit
		return nil
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Delete(rec.Key())
	return nil
}

// upsertCloseTx performs the trust-checked write inside an open transaction,
// pairing the record write with the revision bump. It reports whether a row
// was actually written.
func upsertCloseTx(tx *sql.Tx, rec CloseRecord, override bool) (accepted bool, err error) {
	key := rec.Key()

	var existing CloseRecord
	var existingClose string
	row := tx.QueryRow(`SELECT close, status, provider, estimated FROM official_close WHERE key = ?`, key)
	switch err := row.Scan(&existingClose, &existing.Status, &existing.Provider, &existing.Estimated); {
	case err == sql.ErrNoRows:
		// first write for this key
	case err != nil:
		return false, err
	default:
		existing.Close, err = decimal.NewFromString(existingClose)
		if err != nil {
			return false, fmt.Errorf("eodstore: corrupt close %q for %s: %w", existingClose, key, err)
		}
		if existing.Provider == rec.Provider && existing.Status == rec.Status &&
			existing.Close.Equal(rec.Close) && existing.Estimated == rec.Estimated {
			return false, nil
		}
		if !override && existing.Status == StatusOK && existing.Provider != rec.Provider &&
			existing.Provider.Trust() >= rec.Provider.Trust() &&
			materiallyDifferent(existing.Close, rec.Close) {
			return false, &TrustConflictError{
				Key:      key,
				Existing: existing.Provider,
				Incoming: rec.Provider,
				Current:  existing.Close,
				Proposed: rec.Close,
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`INSERT INTO official_close (key, symbol, day, close, status, provider, estimated, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			close = excluded.close, status = excluded.status, provider = excluded.provider,
			estimated = excluded.estimated, updated_at = excluded.updated_at`,
		key, rec.Symbol, rec.Day.String(), rec.Close.String(), string(rec.Status),
		string(rec.Provider), boolInt(rec.Estimated), now)
	if err != nil {
		return false, err
	}

	underlying := tradefolio.Canonicalize(rec.Symbol).Underlying()
	_, err = tx.Exec(`INSERT INTO symbol_revision (symbol, rev) VALUES (?, 1)
		ON CONFLICT(symbol) DO UPDATE SET rev = rev + 1`, underlying)
	if err != nil {
		return false, err
	}
	return true, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadClose returns the close record for (symbol, day), or ErrNotFound.
func (s *Store) ReadClose(symbol string, day tradefolio.Date) (CloseRecord, error) {
	key := tradefolio.CloseKey(day, symbol)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(CloseRecord), nil
	}
	rec, err := s.scanClose(s.db.QueryRow(
		`SELECT symbol, day, close, status, provider, estimated, updated_at FROM official_close WHERE key = ?`, key))
	if err != nil {
		return CloseRecord{}, err
	}
	s.cache.SetDefault(key, rec)
	return rec, nil
}

// LatestClose returns the most recent ok close for the symbol on or before
// the given day.
func (s *Store) LatestClose(symbol string, on tradefolio.Date) (CloseRecord, error) {
	return s.scanClose(s.db.QueryRow(
		`SELECT symbol, day, close, status, provider, estimated, updated_at FROM official_close
		 WHERE symbol = ? AND day <= ? AND status = ? ORDER BY day DESC LIMIT 1`,
		symbol, on.String(), string(StatusOK)))
}

// DeleteClose removes a close record. It is a manual repair tool: the
// revision still bumps so consumers re-mark, but the queue is left alone.
func (s *Store) DeleteClose(symbol string, day tradefolio.Date) error {
	key := tradefolio.CloseKey(day, symbol)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.Exec(`DELETE FROM official_close WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	underlying := tradefolio.Canonicalize(symbol).Underlying()
	if _, err := tx.Exec(`INSERT INTO symbol_revision (symbol, rev) VALUES (?, 1)
		ON CONFLICT(symbol) DO UPDATE SET rev = rev + 1`, underlying); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

// Closes returns every close record of a symbol inside the range, oldest
// first. The repair engine audits over this series.
func (s *Store) Closes(symbol string, rng tradefolio.Range) ([]CloseRecord, error) {
	rows, err := s.db.Query(
		`SELECT symbol, day, close, status, provider, estimated, updated_at FROM official_close
		 WHERE symbol = ? AND day >= ? AND day <= ? ORDER BY day`,
		symbol, rng.From.String(), rng.To.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []CloseRecord
	for rows.Next() {
		rec, err := s.scanClose(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LatestCloseOn implements tradefolio.QuoteReader for the valuation engine.
func (s *Store) LatestCloseOn(canon string, on tradefolio.Date) (tradefolio.Quote, bool, error) {
	rec, err := s.LatestClose(canon, on)
	if errors.Is(err, ErrNotFound) {
		return tradefolio.Quote{}, false, nil
	}
	if err != nil {
		return tradefolio.Quote{}, false, err
	}
	return tradefolio.Quote{
		Symbol:    rec.Symbol,
		Day:       rec.Day,
		Close:     rec.Close,
		Provider:  rec.Provider,
		Estimated: rec.Estimated,
	}, true, nil
}

// Revision returns the revision counter of an underlying symbol. A symbol
// that never had an accepted write is at revision zero.
func (s *Store) Revision(underlying string) (int64, error) {
	var rev int64
	err := s.db.QueryRow(`SELECT rev FROM symbol_revision WHERE symbol = ?`, underlying).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rev, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanClose(row rowScanner) (CloseRecord, error) {
	var rec CloseRecord
	var day, close, updated string
	var estimated int
	err := row.Scan(&rec.Symbol, &day, &close, &rec.Status, &rec.Provider, &estimated, &updated)
	if err == sql.ErrNoRows {
		return CloseRecord{}, ErrNotFound
	}
	if err != nil {
		return CloseRecord{}, err
	}
	if rec.Day, err = tradefolio.ParseDate(day); err != nil {
		return CloseRecord{}, err
	}
	if rec.Close, err = decimal.NewFromString(close); err != nil {
		return CloseRecord{}, fmt.Errorf("eodstore: corrupt close %q: %w", close, err)
	}
	rec.Estimated = estimated != 0
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return CloseRecord{}, fmt.Errorf("eodstore: corrupt timestamp %q: %w", updated, err)
	}
	return rec, nil
}
