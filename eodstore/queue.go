package eodstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qiqiMagicCity/tradefolio"
)

// RequestStatus is the lifecycle state of a backfill request.
type RequestStatus string

const (
	RequestQueued     RequestStatus = "queued"
	RequestInProgress RequestStatus = "in_progress"
	RequestDone       RequestStatus = "done"
	RequestError      RequestStatus = "error"
	RequestSkipped    RequestStatus = "skipped"
)

// Request is one idempotent backfill job for a (trading day, symbol) pair.
// At most one request exists per key.
type Request struct {
	Key       string
	Symbol    string
	Day       tradefolio.Date
	Status    RequestStatus
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// Enqueue records that (symbol, day) needs a price. It is idempotent: an
// existing request is left untouched unless it previously exhausted its
// retries, in which case it is re-opened with a fresh attempt budget.
func (s *Store) Enqueue(symbol string, day tradefolio.Date) error {
	key := tradefolio.CloseKey(day, symbol)
	_, err := s.db.Exec(`INSERT INTO backfill_request (key, symbol, day, status, attempts, last_error, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?)
		ON CONFLICT(key) DO UPDATE SET status = ?, attempts = 0, last_error = '', updated_at = ?
		WHERE backfill_request.status = ?`,
		key, symbol, day.String(), string(RequestQueued), now(),
		string(RequestQueued), now(), string(RequestError))
	return err
}

// Skip records a (symbol, day) pair as permanently out of coverage, e.g. an
// option beyond the retention window. An existing done request is never
// downgraded.
func (s *Store) Skip(symbol string, day tradefolio.Date, reason string) error {
	key := tradefolio.CloseKey(day, symbol)
	_, err := s.db.Exec(`INSERT INTO backfill_request (key, symbol, day, status, attempts, last_error, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(key) DO UPDATE SET status = ?, last_error = ?, updated_at = ?
		WHERE backfill_request.status NOT IN (?, ?)`,
		key, symbol, day.String(), string(RequestSkipped), reason, now(),
		string(RequestSkipped), reason, now(), string(RequestDone), string(RequestSkipped))
	return err
}

// Claim atomically transitions a request from queued to in_progress. It
// reports false when another worker holds the claim (or the request moved
// on). This compare-and-swap is the sole correctness mechanism under
// concurrent claimers; no external locking is assumed.
func (s *Store) Claim(key string) (bool, error) {
	res, err := s.db.Exec(`UPDATE backfill_request SET status = ?, updated_at = ?
		WHERE key = ? AND status = ?`,
		string(RequestInProgress), now(), key, string(RequestQueued))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release reverts an in-progress claim back to queued, used when a sweep is
// interrupted so no request is left stuck in_progress.
func (s *Store) Release(key string) error {
	_, err := s.db.Exec(`UPDATE backfill_request SET status = ?, updated_at = ?
		WHERE key = ? AND status = ?`,
		string(RequestQueued), now(), key, string(RequestInProgress))
	return err
}

// CompleteWithClose finishes a claimed request and writes its close record in
// one transaction: both succeed or neither does. A trust conflict on the
// close is not a failure — the authoritative record already exists — the
// request is still marked done and the conflict is returned for logging.
func (s *Store) CompleteWithClose(key string, rec CloseRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var conflict *TrustConflictError
	accepted, err := upsertCloseTx(tx, rec, false)
	if err != nil && !errors.As(err, &conflict) {
		return err
	}

	res, err := tx.Exec(`UPDATE backfill_request SET status = ?, last_error = '', updated_at = ?
		WHERE key = ? AND status = ?`,
		string(RequestDone), now(), key, string(RequestInProgress))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("eodstore: request %s is not claimed, refusing to complete", key)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if accepted {
		s.cache.Delete(rec.Key())
	}
	if conflict != nil {
		return conflict
	}
	return nil
}

// Fail records a failed fetch attempt on a claimed request. The request goes
// back to queued until maxAttempts is exhausted, then to error.
func (s *Store) Fail(key string, cause string, maxAttempts int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var attempts int
	err = tx.QueryRow(`SELECT attempts FROM backfill_request WHERE key = ?`, key).Scan(&attempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	attempts++
	status := RequestQueued
	if attempts >= maxAttempts {
		status = RequestError
	}
	_, err = tx.Exec(`UPDATE backfill_request SET status = ?, attempts = ?, last_error = ?, updated_at = ?
		WHERE key = ?`, string(status), attempts, cause, now(), key)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// NextQueued returns up to limit queued requests, oldest trading day first.
func (s *Store) NextQueued(limit int) ([]Request, error) {
	rows, err := s.db.Query(`SELECT key, symbol, day, status, attempts, last_error, updated_at
		FROM backfill_request WHERE status = ? ORDER BY day, symbol LIMIT ?`,
		string(RequestQueued), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// Requests returns the operational status feed, optionally filtered by status.
func (s *Store) Requests(statuses ...RequestStatus) ([]Request, error) {
	query := `SELECT key, symbol, day, status, attempts, last_error, updated_at FROM backfill_request`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY day, symbol`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// InconsistentDone returns the keys of requests marked done with no close
// record behind them. This partial state is a defect the repair engine
// detects and re-opens.
func (s *Store) InconsistentDone() ([]string, error) {
	rows, err := s.db.Query(`SELECT r.key FROM backfill_request r
		LEFT JOIN official_close c ON c.key = r.key
		WHERE r.status = ? AND c.key IS NULL ORDER BY r.key`, string(RequestDone))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Reopen puts a done request back in the queue. Used by the repair engine on
// inconsistent requests.
func (s *Store) Reopen(key string) error {
	_, err := s.db.Exec(`UPDATE backfill_request SET status = ?, attempts = 0, updated_at = ?
		WHERE key = ? AND status = ?`,
		string(RequestQueued), now(), key, string(RequestDone))
	return err
}

func scanRequests(rows *sql.Rows) ([]Request, error) {
	var reqs []Request
	for rows.Next() {
		var r Request
		var day, updated string
		if err := rows.Scan(&r.Key, &r.Symbol, &day, &r.Status, &r.Attempts, &r.LastError, &updated); err != nil {
			return nil, err
		}
		var err error
		if r.Day, err = tradefolio.ParseDate(day); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
			return nil, fmt.Errorf("eodstore: corrupt timestamp %q: %w", updated, err)
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}
