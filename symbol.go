package tradefolio

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Symbol is the canonical identity of a tradable instrument. Two spellings of
// the same instrument always canonicalize to the same Canon string, which is
// the only spelling ever used in persisted composite keys.
type Symbol struct {
	// Canon is the canonical spelling: the bare ticker for stocks, the
	// OCC-padded form (ROOT+YYMMDD+C|P+8-digit strike in thousandths)
	// for options.
	Canon string
	// Display is a compact human-facing spelling, e.g. "NIO260618P3.5".
	Display string
	// Root is the underlying ticker for options, equal to Canon for stocks.
	Root string
	// Option reports whether the symbol denotes an option contract.
	Option bool
	// Expiry is the option expiration date; zero for stocks.
	Expiry Date
	// Right is 'C' or 'P' for options, 0 for stocks.
	Right byte
	// Strike is the option strike price in major units; zero for stocks.
	Strike decimal.Decimal
	// Malformed flags a best-effort canonicalization of input that did not
	// fully conform to any known spelling.
	Malformed bool
}

// optionPattern matches both the short display form (strike with optional
// decimals, e.g. NIO260618P3.5) and the OCC-padded form (8-digit strike in
// thousandths, e.g. NIO260618P00003500).
var optionPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]{0,5})(\d{6})([CP])(\d{1,8}(?:\.\d+)?)$`)

// stockPattern matches plain stock tickers, allowing class suffixes like BRK.B.
var stockPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(?:[.\-][A-Z0-9]+)*$`)

var thousand = decimal.NewFromInt(1000)

// Canonicalize normalizes any spelling of a stock or option symbol into its
// canonical form. It is pure and total: malformed input never fails, it yields
// a best-effort Symbol with Malformed set. Canonicalize is idempotent.
func Canonicalize(raw string) Symbol {
	// Unicode-normalize, strip all whitespace, uppercase.
	s := norm.NFKC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ToUpper(s)

	if s == "" {
		return Symbol{Malformed: true}
	}

	if m := optionPattern.FindStringSubmatch(s); m != nil {
		return canonicalizeOption(s, m[1], m[2], m[3][0], m[4])
	}

	if stockPattern.MatchString(s) {
		return Symbol{Canon: s, Display: s, Root: s}
	}

	// Nothing recognizable: keep the cleaned spelling as the key so that at
	// least identical misspellings still collapse together.
	return Symbol{Canon: s, Display: s, Root: s, Malformed: true}
}

func canonicalizeOption(clean, root, yymmdd string, right byte, rawStrike string) Symbol {
	sym := Symbol{Root: root, Option: true, Right: right}

	// The 8-digit integer form is the OCC convention: thousandths of a
	// dollar. Anything else is a strike in dollars, possibly fractional.
	var milli decimal.Decimal
	var perr error
	if len(rawStrike) == 8 && !strings.Contains(rawStrike, ".") {
		milli, perr = decimal.NewFromString(rawStrike)
	} else {
		var dollars decimal.Decimal
		dollars, perr = decimal.NewFromString(rawStrike)
		milli = dollars.Mul(thousand)
	}
	if perr != nil || !milli.IsInteger() || !milli.IsPositive() {
		sym.Malformed = true
		sym.Canon = clean
		sym.Display = clean
		return sym
	}
	sym.Strike = milli.Div(thousand)

	expiry, err := parseExpiry(yymmdd)
	if err != nil {
		sym.Malformed = true
	}
	sym.Expiry = expiry

	sym.Canon = fmt.Sprintf("%s%s%c%08d", root, yymmdd, right, milli.IntPart())
	sym.Display = fmt.Sprintf("%s%s%c%s", root, yymmdd, right, sym.Strike.String())
	return sym
}

// parseExpiry reads a YYMMDD option expiry. Two-digit years below 70 are in
// the 2000s, matching the OCC convention.
func parseExpiry(yymmdd string) (Date, error) {
	t, err := time.Parse("060102", yymmdd)
	if err != nil {
		return Date{}, fmt.Errorf("invalid option expiry %q: %w", yymmdd, err)
	}
	return NewDate(t.Date()), nil
}

// Underlying returns the symbol whose revision counter tracks this
// instrument: the option root, or the stock itself.
func (s Symbol) Underlying() string { return s.Root }

// CloseKey renders the composite key used for both OfficialClose and
// BackfillRequest records: {YYYY-MM-DD}_{canonical symbol}.
func (s Symbol) CloseKey(day Date) string { return CloseKey(day, s.Canon) }

// CloseKey renders the {YYYY-MM-DD}_{symbol} composite key from its parts.
func CloseKey(day Date, canon string) string { return day.String() + "_" + canon }

func (s Symbol) String() string { return s.Canon }

// Equal reports whether two symbols denote the same instrument.
func (s Symbol) Equal(o Symbol) bool { return s.Canon == o.Canon }
