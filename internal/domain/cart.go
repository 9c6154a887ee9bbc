package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the subset of catalogue data the UI hands over when adding to cart.
type Product struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     Price  `json:"price"`
	SalePrice Price  `json:"sale_price"`
}

type CartItem struct {
	ProductID int64     `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	UnitPrice Price     `json:"price"`
	SalePrice Price     `json:"sale_price"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// VariantKey identifies a line item: product id plus the optional size and color.
func VariantKey(productID int64, size, color string) string {
	key := strconv.FormatInt(productID, 10)
	if size != "" {
		key += "-" + size
	}
	if color != "" {
		key += "-" + color
	}
	return key
}

func (i CartItem) VariantKey() string {
	return VariantKey(i.ProductID, i.Size, i.Color)
}

// EffectivePrice is the sale price when it is set and not above the unit price,
// otherwise the unit price.
func (i CartItem) EffectivePrice() decimal.Decimal {
	unit := i.UnitPrice.Value()
	if i.SalePrice.Valid && i.SalePrice.Amount.LessThanOrEqual(unit) {
		return i.SalePrice.Amount
	}
	return unit
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.EffectivePrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Matches reports whether the item belongs to productID and size. Color is
// deliberately not compared.
func (i CartItem) Matches(productID int64, size string) bool {
	return i.ProductID == productID && i.Size == size
}
