package currency

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalize(t *testing.T) {
	table := NewTable(nil)

	cases := []struct {
		name    string
		amount  string
		code    string
		want    string
		warning bool
	}{
		{"ngn to espees", "100", "NGN", "0.06", false},
		{"usd identity", "250.5", "USD", "250.5", false},
		{"espees identity", "42", "ESPEES", "42", false},
		{"eur", "92", "EUR", "100", false},
		{"zero is zero anywhere", "0", "XYZ", "0", false},
		{"unknown passes through", "17.239", "XYZ", "17.24", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, warn := table.Normalize(decimal.RequireFromString(tc.amount), tc.code)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
			if tc.warning && warn == nil {
				t.Fatalf("expected warning for %s", tc.code)
			}
			if !tc.warning && warn != nil {
				t.Fatalf("unexpected warning: %s", warn)
			}
		})
	}
}

func TestNormalizeNonPositiveRate(t *testing.T) {
	table := NewTable(map[string]decimal.Decimal{
		"BAD": decimal.Zero,
	})
	got, warn := table.Normalize(decimal.NewFromInt(10), "BAD")
	if warn == nil {
		t.Fatal("expected warning for zero rate")
	}
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected identity fallback, got %s", got)
	}
}

func TestNormalizeRounding(t *testing.T) {
	table := NewTable(nil)
	got, _ := table.Normalize(decimal.NewFromInt(1000), "NGN")
	// 1000/1750 = 0.5714..., rounds to 0.57
	if got.String() != "0.57" {
		t.Fatalf("got %s, want 0.57", got)
	}
}

func TestCurrencies(t *testing.T) {
	table := NewTable(nil)
	codes := table.Currencies()
	if len(codes) == 0 || codes[0] != Base {
		t.Fatalf("expected base first, got %v", codes)
	}
	for i := 2; i < len(codes); i++ {
		if codes[i-1] > codes[i] {
			t.Fatalf("codes not sorted after base: %v", codes)
		}
	}
}

func TestReload(t *testing.T) {
	t.Run("merges saved rates over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rates.json")
		if err := os.WriteFile(path, []byte(`{"NGN": 1800, "GHS": 15.5}`), 0644); err != nil {
			t.Fatal(err)
		}

		table := NewTable(nil)
		if err := table.Reload(path); err != nil {
			t.Fatalf("reload: %v", err)
		}

		rate, ok := table.Rate("NGN")
		if !ok || !rate.Equal(decimal.NewFromInt(1800)) {
			t.Fatalf("NGN rate not updated: %s", rate)
		}
		if !table.Recognized("GHS") {
			t.Fatal("GHS should be recognized after reload")
		}
		// Untouched defaults survive the merge.
		if !table.Recognized("EUR") {
			t.Fatal("EUR should still be recognized")
		}
	})

	t.Run("missing file is a no-op", func(t *testing.T) {
		table := NewTable(nil)
		if err := table.Reload(filepath.Join(t.TempDir(), "absent.json")); err != nil {
			t.Fatalf("missing file should not error: %v", err)
		}
		if !table.Recognized("NGN") {
			t.Fatal("defaults should survive")
		}
	})

	t.Run("malformed file errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rates.json")
		if err := os.WriteFile(path, []byte(`not json`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := NewTable(nil).Reload(path); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
