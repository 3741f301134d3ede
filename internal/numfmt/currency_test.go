package numfmt

import (
	"strings"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input  string
		want   Currency
		wantOK bool
	}{
		{"EUR", EUR, true},
		{"BRL", BRL, true},
		{"USD", Currency("USD"), false},
		{"", Currency(""), false},
		{"eur", Currency("eur"), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCurrency(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseCurrency(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseCurrency(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCurrency_Symbol(t *testing.T) {
	if EUR.Symbol() != "€" {
		t.Errorf("expected €, got %q", EUR.Symbol())
	}
	if BRL.Symbol() != "R$" {
		t.Errorf("expected R$, got %q", BRL.Symbol())
	}
}

func TestCurrency_Style(t *testing.T) {
	// Both display locales write decimals with a comma.
	if EUR.Style() != CommaDecimal {
		t.Error("EUR should use comma decimals")
	}
	if BRL.Style() != CommaDecimal {
		t.Error("BRL should use comma decimals")
	}
}

// Locale renderings vary in grouping characters, so these assertions stay
// structural: symbol present, digits present, no fraction digits on
// boundary amounts.
func TestFormatAmount(t *testing.T) {
	got := FormatAmount(1500, EUR)
	if !strings.HasPrefix(got, "€") {
		t.Errorf("expected € prefix, got %q", got)
	}
	if !strings.Contains(got, "500") {
		t.Errorf("expected digits in %q", got)
	}
	if strings.Contains(got, ",") && strings.HasSuffix(got, ",0") {
		t.Errorf("boundary amounts carry no fraction digits, got %q", got)
	}

	got = FormatAmount(250, BRL)
	if !strings.HasPrefix(got, "R$") {
		t.Errorf("expected R$ prefix, got %q", got)
	}
	if !strings.Contains(got, "250") {
		t.Errorf("expected digits in %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	got := FormatPercent(12.5, EUR)
	if !strings.HasSuffix(got, "%") {
		t.Errorf("expected %% suffix, got %q", got)
	}
	if !strings.Contains(got, "12") {
		t.Errorf("expected digits in %q", got)
	}
}

func TestFormatMoney(t *testing.T) {
	got := FormatMoney(99.9, EUR)
	if !strings.HasPrefix(got, "€") {
		t.Errorf("expected € prefix, got %q", got)
	}
	// Two fraction digits always.
	if !strings.Contains(got, "90") {
		t.Errorf("expected two fraction digits in %q", got)
	}
}

func TestCurrency_LocaleFallback(t *testing.T) {
	unknown := Currency("USD")
	if unknown.Valid() {
		t.Error("USD should not be valid")
	}
	if unknown.Locale() != EUR.Locale() {
		t.Error("unknown currencies should fall back to the EUR locale")
	}
}
