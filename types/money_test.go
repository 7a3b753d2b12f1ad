package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"EUR", EUR(2900), 2900, "eur", "€29.00"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"JPY", JPY(100), 100, "jpy", "¥100"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		value    string
		currency string
		want     Money
		wantErr  bool
	}{
		{"29.00", "EUR", EUR(2900), false},
		{"29", "EUR", EUR(2900), false},
		{"29.5", "eur", EUR(2950), false},
		{"0.01", "USD", USD(1), false},
		{".99", "EUR", EUR(99), false},
		{"-10.00", "EUR", EUR(-1000), false},
		{"100", "JPY", JPY(100), false},
		{"100.5", "JPY", Money{}, true},
		{"29.001", "EUR", Money{}, true},
		{"abc", "EUR", Money{}, true},
		{"", "EUR", Money{}, true},
		{"29.00", "", Money{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.value+"_"+tt.currency, func(t *testing.T) {
			got, err := ParseMajor(tt.value, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMajorFormatMajorAgree(t *testing.T) {
	for _, m := range []Money{EUR(2900), EUR(1), USD(-4950), JPY(12345)} {
		parsed, err := ParseMajor(m.FormatMajor(), m.CurrencyCode())
		if err != nil {
			t.Fatalf("ParseMajor(%q): %v", m.FormatMajor(), err)
		}
		if !parsed.Equal(m) {
			t.Errorf("got %+v, want %+v", parsed, m)
		}
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).LessThan(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Money
		less  bool
		equal bool
	}{
		{"Equal", EUR(100), EUR(100), false, true},
		{"Less", EUR(50), EUR(100), true, false},
		{"Greater", EUR(200), EUR(100), false, false},
		{"Zero equal", EUR(0), Zero("eur"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{EUR(2900), "29.00"},
		{USD(1), "0.01"},
		{USD(0), "0.00"},
		{USD(-4900), "-49.00"},
		{EUR(9999), "99.99"},
		{JPY(100), "100"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(EUR(2900))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":2900,"currency":"eur","display":"€29.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}
}

func TestCurrencySymbols(t *testing.T) {
	tests := []struct {
		currency string
		symbol   string
	}{
		{"eur", "€"},
		{"usd", "$"},
		{"EUR", "€"},
		{"unknown", "UNKNOWN "},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			if got := currencySymbol(tt.currency); got != tt.symbol {
				t.Errorf("Symbol for %s: got %s, want %s", tt.currency, got, tt.symbol)
			}
		})
	}
}

func TestEntityStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEntityAt(now)
	if e.IsStale(now.Add(time.Minute), time.Hour) {
		t.Error("entity touched a minute ago should not be stale")
	}
	if !e.IsStale(now.Add(2*time.Hour), time.Hour) {
		t.Error("entity untouched for two hours should be stale")
	}
	e.TouchAt(now.Add(2 * time.Hour))
	if !e.UpdatedAt.After(e.CreatedAt) {
		t.Error("TouchAt should advance UpdatedAt")
	}
}

func BenchmarkParseMajor(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ParseMajor("29.00", "EUR")
	}
}
