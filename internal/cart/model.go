package cart

import (
	"errors"
	"time"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

var (
	// ErrOutOfStock rejects an add when the candidate has no stock. The cart is unchanged.
	ErrOutOfStock = errors.New("cart: out of stock")
	// ErrLineNotFound is returned when a line id does not exist.
	ErrLineNotFound = errors.New("cart: line not found")
	// ErrInvalidQuantity rejects non-positive requested quantities on add.
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	// ErrInvalidDiscount rejects negative discounts.
	ErrInvalidDiscount = errors.New("cart: discount must not be negative")
	// ErrVariantRequired means the product has variants and none was chosen.
	ErrVariantRequired = errors.New("cart: variant required")
	// ErrVariantNotFound means the chosen variant does not belong to the product.
	ErrVariantNotFound = errors.New("cart: variant not found")
)

// Outcome describes how a mutation was applied.
type Outcome string

const (
	OutcomeAdded              Outcome = "ADDED"
	OutcomeMerged             Outcome = "MERGED"
	OutcomePartiallyFulfilled Outcome = "PARTIALLY_FULFILLED"
	OutcomeUpdated            Outcome = "UPDATED"
	OutcomeClamped            Outcome = "CLAMPED"
	OutcomeRemoved            Outcome = "REMOVED"
)

// VariantRef is the part of a variant option a line keeps.
type VariantRef struct {
	Name  string  `json:"name"`
	Value string  `json:"value"`
	Image *string `json:"image,omitempty"`
}

// Line is one cart entry. Stock is the available stock recorded when the line
// was last added to or revalidated.
type Line struct {
	ID            string              `json:"id"`
	ProductID     string              `json:"productId"`
	ProductType   catalog.ProductType `json:"productType"`
	Name          string              `json:"name"`
	Image         *string             `json:"image,omitempty"`
	UnitPrice     pricing.Money       `json:"unitPrice"`
	Quantity      int                 `json:"quantity"`
	Variant       *VariantRef         `json:"variant,omitempty"`
	CombinationID *string             `json:"combinationId,omitempty"`
	Stock         int                 `json:"stock"`
}

// Key is a line's identity. Two lines with equal keys never coexist.
type Key struct {
	ProductID     string
	ProductType   catalog.ProductType
	VariantValue  string
	CombinationID string
}

// Key returns the line identity.
func (l Line) Key() Key {
	k := Key{ProductID: l.ProductID, ProductType: l.ProductType}
	if l.Variant != nil {
		k.VariantValue = l.Variant.Value
	}
	if l.CombinationID != nil {
		k.CombinationID = *l.CombinationID
	}
	return k
}

// StockRef returns the catalog stock bucket the line draws from.
func (l Line) StockRef() catalog.StockRef {
	k := l.Key()
	return catalog.StockRef{
		ProductID:     k.ProductID,
		ProductType:   k.ProductType,
		VariantValue:  k.VariantValue,
		CombinationID: k.CombinationID,
	}
}

// Total is unit price times quantity.
func (l Line) Total() pricing.Money {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

// Candidate is a resolved product selection about to be added.
type Candidate struct {
	ProductID    string
	ProductType  catalog.ProductType
	Name         string
	Image        *string
	UnitPrice    pricing.Money
	Variant      *catalog.VariantOption
	Combination  *catalog.Combination
	ProductStock int
}

// Key returns the identity the candidate would have as a line.
func (c Candidate) Key() Key {
	k := Key{ProductID: c.ProductID, ProductType: c.ProductType}
	if c.Variant != nil {
		k.VariantValue = c.Variant.Value
	}
	if c.Combination != nil {
		k.CombinationID = c.Combination.ID
	}
	return k
}

// AvailableStock applies variant, then combination, then product precedence.
func (c Candidate) AvailableStock() int {
	switch {
	case c.Variant != nil:
		return c.Variant.Stock
	case c.Combination != nil:
		return c.Combination.Stock
	default:
		return c.ProductStock
	}
}

func (c Candidate) line(id string, qty, stock int) Line {
	l := Line{
		ID:          id,
		ProductID:   c.ProductID,
		ProductType: c.ProductType,
		Name:        c.Name,
		Image:       c.Image,
		UnitPrice:   c.UnitPrice,
		Quantity:    qty,
		Stock:       stock,
	}
	if c.Variant != nil {
		l.Variant = &VariantRef{Name: c.Variant.Name, Value: c.Variant.Value, Image: c.Variant.Image}
	}
	if c.Combination != nil {
		comboID := c.Combination.ID
		l.CombinationID = &comboID
	}
	return l
}

// AddResult reports what an add actually did. Applied is the quantity delta
// applied to the cart, which is smaller than Requested when clamped.
type AddResult struct {
	Line      Line    `json:"line"`
	Requested int     `json:"requested"`
	Applied   int     `json:"applied"`
	Outcome   Outcome `json:"outcome"`
}

// UpdateResult reports the quantity a line ended with.
type UpdateResult struct {
	Line      *Line   `json:"line,omitempty"`
	Requested int     `json:"requested"`
	Quantity  int     `json:"quantity"`
	Outcome   Outcome `json:"outcome"`
}

// Cart is a session's ordered collection of lines plus discount and notes.
type Cart struct {
	Lines     []Line        `json:"lines"`
	Discount  pricing.Money `json:"discount"`
	Notes     string        `json:"notes"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
