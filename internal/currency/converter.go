// Package currency normalizes stated amounts into ESPEES, the portal's
// common reporting unit. Every rate is expressed as units of the currency
// per one US dollar; ESPEES is pegged 1:1 to USD.
package currency

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// Base is the unit all amounts normalize into.
	Base = "ESPEES"
	// Reference is the currency rates are quoted against.
	Reference = "USD"
)

// DefaultRates mirrors the portal's shipped conversion table.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"NGN":    decimal.NewFromInt(1750),
		"USD":    decimal.NewFromInt(1),
		"EUR":    decimal.RequireFromString("0.92"),
		"ESPEES": decimal.NewFromInt(1),
	}
}

// Warning reports a lenient-degrade conversion: the amount passed through
// unconverted because the currency or its rate was unusable. Malformed
// upload data must not abort a whole batch, so this is never an error.
type Warning struct {
	Currency string
	Reason   string
}

func (w Warning) String() string {
	return fmt.Sprintf("currency %q: %s", w.Currency, w.Reason)
}

// Table holds the process-wide exchange rates. It is read-mostly: lookups
// take a read lock, and mutation replaces the mapping wholesale via Reload
// or SetRates so normalization stays deterministic per call.
type Table struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewTable builds a table from the given rates, falling back to the shipped
// defaults when rates is nil.
func NewTable(rates map[string]decimal.Decimal) *Table {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Table{rates: rates}
}

// Normalize converts an amount in the given currency to ESPEES, rounded to
// two decimal places. A zero amount is zero in any currency. Unknown codes
// and non-positive rates fall back to the identity conversion and surface a
// Warning; the returned warning is nil on a clean conversion.
func (t *Table) Normalize(amount decimal.Decimal, code string) (decimal.Decimal, *Warning) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	// An empty code means the amount was stated in the base unit.
	if code == "" || code == Base || code == Reference {
		return amount.Round(2), nil
	}

	t.mu.RLock()
	rate, ok := t.rates[code]
	t.mu.RUnlock()

	if !ok {
		return amount.Round(2), &Warning{Currency: code, Reason: "unrecognized currency, amount passed through"}
	}
	if !rate.IsPositive() {
		return amount.Round(2), &Warning{Currency: code, Reason: "non-positive rate, amount passed through"}
	}
	return amount.Div(rate).Round(2), nil
}

// Rate returns the configured rate for a currency code.
func (t *Table) Rate(code string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.rates[code]
	return rate, ok
}

// Currencies lists the recognized currency codes, base first, the rest
// sorted. Used to populate selection widgets and validate uploads.
func (t *Table) Currencies() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	codes := make([]string, 0, len(t.rates)+1)
	for code := range t.rates {
		if code == Base {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return append([]string{Base}, codes...)
}

// Recognized reports whether a currency code has a configured rate or is
// the base unit.
func (t *Table) Recognized(code string) bool {
	if code == Base {
		return true
	}
	_, ok := t.Rate(code)
	return ok
}

// SetRates replaces the table contents wholesale.
func (t *Table) SetRates(rates map[string]decimal.Decimal) {
	next := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		next[code] = rate
	}
	t.mu.Lock()
	t.rates = next
	t.mu.Unlock()
}

// Reload merges rates from a JSON file of {"CODE": rate} over the current
// table. A missing file leaves the table untouched, matching the fallback
// to shipped defaults when no saved rates exist.
func (t *Table) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read rates file: %w", err)
	}

	var saved map[string]json.Number
	if err := json.Unmarshal(data, &saved); err != nil {
		return fmt.Errorf("parse rates file: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for code, raw := range saved {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil {
			return fmt.Errorf("rate for %s: %w", code, err)
		}
		t.rates[code] = rate
	}
	return nil
}

// Snapshot returns a copy of the current rates for display.
func (t *Table) Snapshot() map[string]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(t.rates))
	for code, rate := range t.rates {
		out[code] = rate
	}
	return out
}
