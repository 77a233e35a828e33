package fare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/guatepass/tolling/internal/domain"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		toll       string
		tier       domain.Tier
		surcharge  bool
		base       string
		multiplier string
		final      string
	}{
		{"tier 1 carretera norte", "carretera_norte", domain.TierUnregistered, true, "15.00", "1.50", "22.50"},
		{"tier 2 with surcharge", "carretera_norte", domain.TierRegistered, true, "15.00", "1.20", "18.00"},
		{"tier 2 without surcharge", "carretera_norte", domain.TierRegistered, false, "15.00", "1.00", "15.00"},
		{"tier 3 unknown toll", "peaje_zona10", domain.TierTag, true, "10.00", "1.00", "10.00"},
		{"tier 1 carretera sur", "carretera_sur", domain.TierUnregistered, true, "12.00", "1.50", "18.00"},
		{"display name normalized", "Anillo Periferico", domain.TierRegistered, true, "8.00", "1.20", "9.60"},
		{"unknown tier", "carretera_sur", domain.Tier(7), true, "12.00", "1.50", "18.00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calc := NewCalculator(nil, tc.surcharge)
			got := calc.Calculate(tc.toll, tc.tier)

			if !got.BaseFare.Equal(decimal.RequireFromString(tc.base)) {
				t.Errorf("base: expected %s, got %s", tc.base, got.BaseFare)
			}
			if !got.Multiplier.Equal(decimal.RequireFromString(tc.multiplier)) {
				t.Errorf("multiplier: expected %s, got %s", tc.multiplier, got.Multiplier)
			}
			if !got.FinalFare.Equal(decimal.RequireFromString(tc.final)) {
				t.Errorf("final: expected %s, got %s", tc.final, got.FinalFare)
			}
			if got.Currency != "GTQ" {
				t.Errorf("expected GTQ, got %s", got.Currency)
			}
			if got.Tier != tc.tier {
				t.Errorf("expected tier %d, got %d", tc.tier, got.Tier)
			}
		})
	}
}

func TestCalculateRoundsHalfUp(t *testing.T) {
	calc := NewCalculator(Rates{"odd": decimal.RequireFromString("10.05")}, true)
	got := calc.Calculate("odd", domain.TierUnregistered)
	// 10.05 * 1.5 = 15.075
	if !got.FinalFare.Equal(decimal.RequireFromString("15.08")) {
		t.Fatalf("expected 15.08, got %s", got.FinalFare)
	}
	if !calc.BaseFare("missing").Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("default rate must be filled in when the table lacks one")
	}
}

func TestNewCalculatorLeavesCallerTableUntouched(t *testing.T) {
	rates := Rates{"odd": decimal.RequireFromString("10.05")}
	calc := NewCalculator(rates, true)

	if _, ok := rates[defaultKey]; ok {
		t.Fatal("caller's table must not gain a default entry")
	}
	if len(rates) != 1 {
		t.Fatalf("expected caller's table to keep 1 entry, got %d", len(rates))
	}

	rates["odd"] = decimal.RequireFromString("99.00")
	if !calc.BaseFare("odd").Equal(decimal.RequireFromString("10.05")) {
		t.Fatalf("later writes to the caller's table must not reach the calculator, got %s", calc.BaseFare("odd"))
	}
}

func TestLoadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := "default: \"11.00\"\nrates:\n  Carretera Norte: \"16.50\"\n  ruta_nueva: \"5.00\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	rates, err := LoadRates(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	calc := NewCalculator(rates, true)

	if got := calc.BaseFare("carretera_norte"); !got.Equal(decimal.RequireFromString("16.50")) {
		t.Errorf("expected overridden 16.50, got %s", got)
	}
	if got := calc.BaseFare("carretera_sur"); !got.Equal(decimal.RequireFromString("12.00")) {
		t.Errorf("expected built-in 12.00, got %s", got)
	}
	if got := calc.BaseFare("ruta_nueva"); !got.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("expected 5.00, got %s", got)
	}
	if got := calc.BaseFare("nowhere"); !got.Equal(decimal.RequireFromString("11.00")) {
		t.Errorf("expected default 11.00, got %s", got)
	}
}

func TestLoadRatesRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("rates:\n  bad: \"-1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRates(path); err == nil {
		t.Fatal("expected error for negative rate")
	}
}
