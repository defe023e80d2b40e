package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "crypto", want: CategoryCrypto},
		{in: "us-stock", want: CategoryUSStock},
		{in: "tw-etf", want: CategoryTWETF},
		{in: "forex", want: CategoryForex},
		{in: "bonds", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPortfolio(t *testing.T) {
	t.Run("rejects duplicate symbols", func(t *testing.T) {
		_, err := NewPortfolio([]Instrument{
			{Symbol: "BTC", Category: CategoryCrypto, Quantity: decimal.NewFromInt(1)},
			{Symbol: "BTC", Category: CategoryUSStock, Quantity: decimal.NewFromInt(2)},
		})
		assert.Error(t, err)
	})

	t.Run("rejects empty symbol", func(t *testing.T) {
		_, err := NewPortfolio([]Instrument{
			{Symbol: "", Category: CategoryCrypto, Quantity: decimal.NewFromInt(1)},
		})
		assert.Error(t, err)
	})

	t.Run("copies the input slice", func(t *testing.T) {
		src := []Instrument{
			{Symbol: "BTC", Category: CategoryCrypto, Quantity: decimal.NewFromInt(1)},
		}
		p, err := NewPortfolio(src)
		require.NoError(t, err)

		src[0].Symbol = "mutated"
		assert.Equal(t, "BTC", p.Instruments()[0].Symbol)
	})
}

func TestPortfolio_ByCategory(t *testing.T) {
	p, err := NewPortfolio([]Instrument{
		{Symbol: "BTC", Category: CategoryCrypto, Quantity: decimal.NewFromInt(1)},
		{Symbol: "AAPL", Category: CategoryUSStock, Quantity: decimal.NewFromInt(10)},
		{Symbol: "2330", Category: CategoryTWStock, Quantity: decimal.NewFromInt(100)},
		{Symbol: "0050", Category: CategoryTWETF, Quantity: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)

	tw := p.ByCategory(CategoryTWStock, CategoryTWETF)
	require.Len(t, tw, 2)
	assert.Equal(t, "2330", tw[0].Symbol)
	assert.Equal(t, "0050", tw[1].Symbol)

	assert.Empty(t, p.ByCategory(CategoryForex))
}

func TestCategory_TWDenominated(t *testing.T) {
	assert.True(t, CategoryTWStock.TWDenominated())
	assert.True(t, CategoryTWETF.TWDenominated())
	assert.False(t, CategoryCrypto.TWDenominated())
	assert.False(t, CategoryUSStock.TWDenominated())
}
