package fare

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/guatepass/tolling/internal/currency"
	"github.com/guatepass/tolling/internal/domain"
)

const defaultKey = "default"

// Rates maps a normalized toll id to its base fare in GTQ. The "default"
// entry prices toll points that are not listed.
type Rates map[string]decimal.Decimal

// DefaultRates is the built-in base-fare table.
func DefaultRates() Rates {
	return Rates{
		"carretera_norte":   decimal.RequireFromString("15.00"),
		"carretera_sur":     decimal.RequireFromString("12.00"),
		"autopista_palín":   decimal.RequireFromString("10.00"),
		"anillo_periferico": decimal.RequireFromString("8.00"),
		defaultKey:          decimal.RequireFromString("10.00"),
	}
}

var (
	multiplierTier1   = decimal.RequireFromString("1.50")
	multiplierTier2   = decimal.RequireFromString("1.20")
	multiplierTier3   = decimal.RequireFromString("1.00")
	multiplierUnknown = multiplierTier1
)

type ratesFile struct {
	Default string            `yaml:"default"`
	Rates   map[string]string `yaml:"rates"`
}

// LoadRates reads a YAML rate table and overlays it on DefaultRates:
//
//	default: "10.00"
//	rates:
//	  carretera_norte: "15.00"
func LoadRates(path string) (Rates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates file: %w", err)
	}

	var file ratesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rates file %s: %w", path, err)
	}

	rates := DefaultRates()
	if file.Default != "" {
		d, err := parseRate(defaultKey, file.Default)
		if err != nil {
			return nil, err
		}
		rates[defaultKey] = d
	}
	for id, value := range file.Rates {
		d, err := parseRate(id, value)
		if err != nil {
			return nil, err
		}
		rates[NormalizeTollID(id)] = d
	}
	return rates, nil
}

func parseRate(id, value string) (decimal.Decimal, error) {
	d, err := currency.Parse(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate for %s: %w", id, err)
	}
	return d, nil
}

// NormalizeTollID lowercases a toll id and replaces spaces with underscores
// so "Carretera Norte" and "carretera_norte" price the same.
func NormalizeTollID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), " ", "_")
}

// Calculator prices a crossing from the toll point's base fare and the
// tier multiplier.
type Calculator struct {
	rates          Rates
	tier2Surcharge bool
}

// NewCalculator builds a calculator over rates. A nil table means
// DefaultRates. tier2Surcharge must be the same policy the resolver uses.
func NewCalculator(rates Rates, tier2Surcharge bool) *Calculator {
	if rates == nil {
		rates = DefaultRates()
	}
	table := make(Rates, len(rates)+1)
	for id, rate := range rates {
		table[id] = rate
	}
	if _, ok := table[defaultKey]; !ok {
		table[defaultKey] = DefaultRates()[defaultKey]
	}
	return &Calculator{rates: table, tier2Surcharge: tier2Surcharge}
}

// BaseFare returns the base fare for a toll point, falling back to the
// default rate.
func (c *Calculator) BaseFare(tollPointID string) decimal.Decimal {
	if rate, ok := c.rates[NormalizeTollID(tollPointID)]; ok {
		return rate
	}
	return c.rates[defaultKey]
}

// Multiplier returns the surcharge multiplier of a tier. Unknown tiers get
// the highest multiplier.
func (c *Calculator) Multiplier(tier domain.Tier) decimal.Decimal {
	switch tier {
	case domain.TierUnregistered:
		return multiplierTier1
	case domain.TierRegistered:
		if !c.tier2Surcharge {
			return multiplierTier3
		}
		return multiplierTier2
	case domain.TierTag:
		return multiplierTier3
	default:
		return multiplierUnknown
	}
}

// Calculate never fails: unknown toll points use the default rate.
func (c *Calculator) Calculate(tollPointID string, tier domain.Tier) domain.FareCalculation {
	base := c.BaseFare(tollPointID)
	multiplier := c.Multiplier(tier)

	return domain.FareCalculation{
		TollPointID: tollPointID,
		TollName:    tollPointID,
		Tier:        tier,
		BaseFare:    base,
		Multiplier:  multiplier,
		FinalFare:   currency.Round(base.Mul(multiplier)),
		Currency:    currency.Code,
	}
}
