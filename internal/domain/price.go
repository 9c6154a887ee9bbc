package domain

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Price is a non-negative amount snapshotted from product data. A Price that
// failed to decode (missing, null, non-numeric or negative) is not Valid and
// counts as zero.
type Price struct {
	Amount decimal.Decimal
	Valid  bool
}

func NewPrice(amount decimal.Decimal) Price {
	if amount.IsNegative() {
		return Price{}
	}
	return Price{Amount: amount, Valid: true}
}

func PriceFromFloat(f float64) Price {
	return NewPrice(decimal.NewFromFloat(f))
}

func PriceFromString(s string) Price {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Price{}
	}
	return NewPrice(d)
}

// Value returns the amount, or zero for an invalid price.
func (p Price) Value() decimal.Decimal {
	if !p.Valid {
		return decimal.Zero
	}
	return p.Amount
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Amount.String()), nil
}

// UnmarshalJSON never fails: Django serializes decimals as strings, older
// cart entries hold numbers, and anything else becomes an invalid price.
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	*p = PriceFromString(string(raw))
	return nil
}
