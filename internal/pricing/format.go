package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes how minor units map to a displayed amount.
type Currency struct {
	Code  string
	Scale int32
}

// DefaultCurrency is the Tunisian dinar, which uses three decimal places.
var DefaultCurrency = Currency{Code: "TND", Scale: 3}

func (c Currency) scale() int32 {
	if c.Scale < 0 {
		return 0
	}
	return c.Scale
}

// Format renders minor units as a fixed-point amount followed by the currency code.
func (c Currency) Format(m Money) string {
	scale := c.scale()
	amount := decimal.New(m, -scale).StringFixed(scale)
	code := strings.TrimSpace(c.Code)
	if code == "" {
		return amount
	}
	return amount + " " + code
}

// ParseAmount converts a decimal string ("1250.5") into minor units. Amounts with
// more precision than the currency supports are rejected rather than rounded.
func (c Currency) ParseAmount(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("pricing: empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("pricing: parse amount %q: %w", value, err)
	}
	shifted := d.Shift(c.scale())
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("pricing: amount %q exceeds %d decimal places", value, c.scale())
	}
	return shifted.IntPart(), nil
}
