package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"folio/internal/entity"
)

// ParsePortfolio decodes a portfolio document: a mapping of category to
// {symbol: quantity}. The same format is accepted on the upload endpoint.
//
//	crypto:
//	  BTC: 0.5
//	tw-stock:
//	  "2330": 100
//	forex:
//	  USD/TWD: 0
func ParsePortfolio(raw []byte) (*entity.Portfolio, error) {
	var doc map[string]map[string]float64
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse portfolio yaml")
	}
	if len(doc) == 0 {
		return nil, errors.New("portfolio is empty")
	}

	var instruments []entity.Instrument
	for category, symbols := range doc {
		cat, err := entity.ParseCategory(category)
		if err != nil {
			return nil, err
		}
		for symbol, quantity := range symbols {
			instruments = append(instruments, entity.Instrument{
				Symbol:   symbol,
				Category: cat,
				Quantity: decimal.NewFromFloat(quantity),
			})
		}
	}

	return entity.NewPortfolio(instruments)
}

// LoadPortfolio reads and parses the portfolio file at path.
func LoadPortfolio(path string) (*entity.Portfolio, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read portfolio file")
	}
	return ParsePortfolio(raw)
}
