package broadcaster

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/entity"
)

// USDTWDSymbol is the rate entry used to bring TWD-quoted instruments into
// the USD total. It is tracked as a normal forex instrument.
const USDTWDSymbol = "USD/TWD"

// Build values a portfolio against one consistent price map. Instruments
// without a price contribute nothing to the totals; TWD-quoted instruments
// without a USD/TWD rate are excluded with a diagnostic instead of being
// silently treated as free.
func Build(portfolio *entity.Portfolio, prices map[string]decimal.Decimal, targetCurrency string) entity.Snapshot {
	snap := entity.Snapshot{
		TakenAt:        time.Now().UTC(),
		CategoryTotals: make(map[entity.Category]decimal.Decimal),
		TargetCurrency: targetCurrency,
	}
	if portfolio == nil {
		return snap
	}

	usdtwd, hasUSDTWD := prices[USDTWDSymbol]
	if hasUSDTWD && !usdtwd.IsPositive() {
		hasUSDTWD = false
	}

	total := decimal.Zero
	for _, ins := range portfolio.Instruments() {
		pos := entity.Position{
			Symbol:   ins.Symbol,
			Category: ins.Category,
			Quantity: ins.Quantity,
		}

		price, ok := prices[ins.Symbol]
		if !ok {
			snap.Positions = append(snap.Positions, pos)
			snap.Diagnostics = append(snap.Diagnostics,
				fmt.Sprintf("%s: price unknown, not counted", ins.Symbol))
			continue
		}

		pos.Priced = true
		pos.Price = price

		value := ins.Quantity.Mul(price)
		if ins.Category.TWDenominated() {
			if !hasUSDTWD {
				snap.Positions = append(snap.Positions, pos)
				snap.Diagnostics = append(snap.Diagnostics,
					fmt.Sprintf("%s: no %s rate, value excluded from totals", ins.Symbol, USDTWDSymbol))
				continue
			}
			value = value.Div(usdtwd)
		}

		pos.Value = value
		snap.Positions = append(snap.Positions, pos)
		snap.CategoryTotals[ins.Category] = snap.CategoryTotals[ins.Category].Add(value)
		total = total.Add(value)
	}

	sortPositions(snap.Positions)
	snap.TotalUSD = total

	if targetCurrency != "" && targetCurrency != "USD" {
		if rate, ok := prices["USD/"+targetCurrency]; ok && rate.IsPositive() {
			snap.TotalTarget = total.Mul(rate)
			snap.TargetRateKnown = true
		} else {
			snap.Diagnostics = append(snap.Diagnostics,
				fmt.Sprintf("USD/%s rate unknown, converted total unavailable", targetCurrency))
		}
	}

	return snap
}

var categoryOrder = func() map[entity.Category]int {
	m := make(map[entity.Category]int, len(entity.Categories))
	for i, c := range entity.Categories {
		m[c] = i
	}
	return m
}()

func sortPositions(positions []entity.Position) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Category != positions[j].Category {
			return categoryOrder[positions[i].Category] < categoryOrder[positions[j].Category]
		}
		return positions[i].Symbol < positions[j].Symbol
	})
}
