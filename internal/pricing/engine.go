package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed cart totals.
type Summary struct {
	Subtotal Money
	Discount Money
	Total    Money
}

// LineTotal returns unit price times quantity, treating non-positive quantities as empty.
func LineTotal(unitPrice Money, qty int) Money {
	if qty <= 0 {
		return 0
	}
	return unitPrice * Money(qty)
}

// Compute calculates cart totals. The discount is reported as given and the
// total never drops below zero.
func Compute(items []Item, discount Money) Summary {
	var subtotal Money
	for _, it := range items {
		subtotal += LineTotal(it.UnitPrice, it.Qty)
	}
	if discount < 0 {
		discount = 0
	}
	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Total:    total,
	}
}
