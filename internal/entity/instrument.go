package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category classifies an instrument by market, which decides the provider
// chain used to price it and whether it is streamed or polled.
type Category string

const (
	CategoryCrypto  Category = "crypto"
	CategoryUSStock Category = "us-stock"
	CategoryUSETF   Category = "us-etf"
	CategoryTWStock Category = "tw-stock"
	CategoryTWETF   Category = "tw-etf"
	CategoryForex   Category = "forex"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryCrypto,
	CategoryUSStock,
	CategoryUSETF,
	CategoryTWStock,
	CategoryTWETF,
	CategoryForex,
}

// ParseCategory converts a config string into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown asset category: %s", s)
}

// TWDenominated reports whether prices for the category are quoted in TWD
// and need a USD/TWD rate to enter the USD total.
func (c Category) TWDenominated() bool {
	return c == CategoryTWStock || c == CategoryTWETF
}

// Instrument is one tracked holding. Instruments are immutable; the whole
// portfolio is replaced when holdings change.
type Instrument struct {
	Symbol   string
	Category Category
	Quantity decimal.Decimal
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s/%s", i.Category, i.Symbol)
}

// Portfolio is the full instrument list. Symbols are unique across the
// portfolio by construction (NewPortfolio rejects duplicates).
type Portfolio struct {
	instruments []Instrument
}

// NewPortfolio validates the instrument list and freezes it.
func NewPortfolio(instruments []Instrument) (*Portfolio, error) {
	seen := make(map[string]struct{}, len(instruments))
	for _, ins := range instruments {
		if ins.Symbol == "" {
			return nil, fmt.Errorf("instrument with empty symbol in category %s", ins.Category)
		}
		if _, ok := seen[ins.Symbol]; ok {
			return nil, fmt.Errorf("duplicate symbol in portfolio: %s", ins.Symbol)
		}
		seen[ins.Symbol] = struct{}{}
	}
	cp := make([]Instrument, len(instruments))
	copy(cp, instruments)
	return &Portfolio{instruments: cp}, nil
}

// Instruments returns the full list.
func (p *Portfolio) Instruments() []Instrument {
	return p.instruments
}

// ByCategory returns instruments belonging to any of the given categories.
func (p *Portfolio) ByCategory(categories ...Category) []Instrument {
	var out []Instrument
	for _, ins := range p.instruments {
		for _, c := range categories {
			if ins.Category == c {
				out = append(out, ins)
				break
			}
		}
	}
	return out
}

// Symbols returns the set of symbols in the portfolio.
func (p *Portfolio) Symbols() map[string]struct{} {
	out := make(map[string]struct{}, len(p.instruments))
	for _, ins := range p.instruments {
		out[ins.Symbol] = struct{}{}
	}
	return out
}

func (p *Portfolio) Len() int {
	return len(p.instruments)
}
