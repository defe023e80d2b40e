package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is one instrument valued at the latest known price.
// Priced is false when no provider has resolved the symbol yet; such
// positions carry zero Value and are excluded from totals.
type Position struct {
	Symbol   string          `json:"symbol"`
	Category Category        `json:"category"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Priced   bool            `json:"priced"`
}

// Snapshot is an immutable point-in-time valuation of the whole portfolio.
// It is the unit broadcast to observers; producers never mutate a snapshot
// after publishing it.
type Snapshot struct {
	TakenAt        time.Time                    `json:"taken_at"`
	Positions      []Position                   `json:"positions"`
	CategoryTotals map[Category]decimal.Decimal `json:"category_totals"`
	TotalUSD       decimal.Decimal              `json:"total_usd"`

	// Conversion of the grand total into the target currency, available
	// only while the USD/<target> rate is present in the store.
	TargetCurrency  string          `json:"target_currency,omitempty"`
	TotalTarget     decimal.Decimal `json:"total_target"`
	TargetRateKnown bool            `json:"target_rate_known"`

	// Diagnostics carries human-readable notes about instruments that
	// could not contribute to the totals (unknown price, missing rate).
	Diagnostics []string `json:"diagnostics,omitempty"`
}
