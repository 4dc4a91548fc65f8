package tradefolio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// The ledger is persisted as a JSONL file, one transaction per line, in
// chronological order, so it is human-readable and diffs cleanly.

// EncodeLedger writes the ledger to w, one JSON transaction per line.
func EncodeLedger(w io.Writer, l *Ledger) error {
	enc := json.NewEncoder(w)
	for tx := range l.All() {
		if err := enc.Encode(tx); err != nil {
			return fmt.Errorf("cannot encode transaction %q: %w", tx.ID, err)
		}
	}
	return nil
}

// EncodeTransaction appends one transaction line to w.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("cannot encode transaction %q: %w", tx.ID, err)
	}
	return json.NewEncoder(w).Encode(tx)
}

// DecodeLedger reads a JSONL transaction stream. Unreadable lines and
// malformed transactions are quarantined in the returned ledger, not fatal:
// one bad record must not prevent the rest of the ledger from replaying.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	l := NewLedger()
	scanner := bufio.NewScanner(r)
	// some imports have very long payload lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var tx Transaction
		if err := json.Unmarshal([]byte(line), &tx); err != nil {
			l.malformed = append(l.malformed, MalformedTransaction{
				Err: fmt.Errorf("line %d: %w", n, err),
			})
			continue
		}
		l.Append(tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read ledger: %w", err)
	}
	return l, nil
}

// LoadLedger reads a ledger from a JSONL file.
func LoadLedger(filename string) (*Ledger, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeLedger(f)
}

// SaveLedger writes a ledger to a JSONL file, atomically via a rename.
func SaveLedger(filename string, l *Ledger) error {
	tmp := filename + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := EncodeLedger(f, l); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}
