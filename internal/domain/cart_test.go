package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantKey(t *testing.T) {
	assert.Equal(t, "7", VariantKey(7, "", ""))
	assert.Equal(t, "7-M", VariantKey(7, "M", ""))
	assert.Equal(t, "7-red", VariantKey(7, "", "red"))
	assert.Equal(t, "7-M-red", VariantKey(7, "M", "red"))
}

func TestPrice_UnmarshalTolerant(t *testing.T) {
	var item CartItem
	err := json.Unmarshal([]byte(`{"id":1,"quantity":2,"price":"19.90","sale_price":"abc"}`), &item)
	require.NoError(t, err)

	assert.True(t, item.UnitPrice.Valid)
	assert.True(t, decimal.RequireFromString("19.90").Equal(item.UnitPrice.Amount))
	assert.False(t, item.SalePrice.Valid)

	err = json.Unmarshal([]byte(`{"id":1,"quantity":2,"price":null}`), &item)
	require.NoError(t, err)
	assert.False(t, item.UnitPrice.Valid)
	assert.True(t, item.EffectivePrice().IsZero())

	err = json.Unmarshal([]byte(`{"id":1,"quantity":2,"price":-4}`), &item)
	require.NoError(t, err)
	assert.False(t, item.UnitPrice.Valid)
}

func TestPrice_MarshalRoundTrip(t *testing.T) {
	item := CartItem{ProductID: 3, Quantity: 1, UnitPrice: PriceFromString("12.5")}
	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price":12.5`)
	assert.Contains(t, string(data), `"sale_price":null`)

	var decoded CartItem
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, item.UnitPrice.Amount.Equal(decoded.UnitPrice.Amount))
	assert.False(t, decoded.SalePrice.Valid)
}

func TestEffectivePrice(t *testing.T) {
	onSale := CartItem{UnitPrice: PriceFromFloat(10), SalePrice: PriceFromFloat(8), Quantity: 2}
	assert.True(t, decimal.NewFromInt(8).Equal(onSale.EffectivePrice()))
	assert.True(t, decimal.NewFromInt(16).Equal(onSale.LineTotal()))

	// a sale price above the unit price is ignored
	bogus := CartItem{UnitPrice: PriceFromFloat(10), SalePrice: PriceFromFloat(12), Quantity: 1}
	assert.True(t, decimal.NewFromInt(10).Equal(bogus.EffectivePrice()))
}

func TestMatches_IgnoresColor(t *testing.T) {
	item := CartItem{ProductID: 1, Size: "M", Color: "red"}
	assert.True(t, item.Matches(1, "M"))
	assert.False(t, item.Matches(1, "L"))
	assert.False(t, item.Matches(2, "M"))
}
