package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// PricingDefaults is the platform price table seeded at startup
type PricingDefaults struct {
	Currency string                  `toml:"currency"`
	Services map[string]ServiceEntry `toml:"services"`
}

// ServiceEntry carries the price as a string so TOML floats never touch it
type ServiceEntry struct {
	Price       string `toml:"price"`
	Currency    string `toml:"currency"`
	Description string `toml:"description"`
}

// LoadPricingDefaults loads the platform price table from a TOML file
func LoadPricingDefaults(filename string) (*PricingDefaults, error) {
	defaults := &PricingDefaults{}
	if _, err := toml.DecodeFile(filename, defaults); err != nil {
		return nil, fmt.Errorf("failed to load pricing defaults: %w", err)
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return defaults, nil
}

// ParsePricingDefaults decodes an in-memory TOML document
func ParsePricingDefaults(data string) (*PricingDefaults, error) {
	defaults := &PricingDefaults{}
	if _, err := toml.Decode(data, defaults); err != nil {
		return nil, fmt.Errorf("failed to parse pricing defaults: %w", err)
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (p *PricingDefaults) Validate() error {
	for code, entry := range p.Services {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return fmt.Errorf("service %s: invalid price %q: %w", code, entry.Price, err)
		}
		if price.IsNegative() {
			return fmt.Errorf("service %s: price must not be negative", code)
		}
		if entry.Currency == "" && p.Currency == "" {
			return fmt.Errorf("service %s: currency is required", code)
		}
	}
	return nil
}

// PriceFor returns the parsed price and effective currency of one service
func (p *PricingDefaults) PriceFor(code string) (decimal.Decimal, string, bool) {
	entry, ok := p.Services[code]
	if !ok {
		return decimal.Zero, "", false
	}
	currency := entry.Currency
	if currency == "" {
		currency = p.Currency
	}
	return decimal.RequireFromString(entry.Price), currency, true
}
