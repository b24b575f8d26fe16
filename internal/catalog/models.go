package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

// Money is an amount in minor currency units.
type Money = pricing.Money

// ErrNotFound is returned when a product, variant or combination does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ProductType distinguishes plain products from composite ("special") ones.
type ProductType string

const (
	ProductRegular ProductType = "regular"
	ProductSpecial ProductType = "special"
)

// ParseProductType validates a wire value.
func ParseProductType(value string) (ProductType, error) {
	switch ProductType(strings.ToLower(strings.TrimSpace(value))) {
	case ProductRegular:
		return ProductRegular, nil
	case ProductSpecial:
		return ProductSpecial, nil
	default:
		return "", fmt.Errorf("catalog: unknown product type %q", value)
	}
}

// VariantOption is one value of a product's variant dimension. Value is its identity.
type VariantOption struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Image      *string `json:"image,omitempty"`
	ExtraPrice Money   `json:"extraPrice"`
	Stock      int     `json:"stock"`
}

// Combination maps an (A, B) option pair of a composite product to a sellable outcome.
// IsAvailable is informational; Stock is authoritative.
type Combination struct {
	ID          string        `json:"id"`
	OptionA     VariantOption `json:"optionA"`
	OptionB     VariantOption `json:"optionB"`
	FinalImage  *string       `json:"finalImage,omitempty"`
	ExtraPrice  Money         `json:"extraPrice"`
	Stock       int           `json:"stock"`
	IsAvailable bool          `json:"isAvailable"`
}

// ProductRef names a base product of a composite.
type ProductRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	VariantName string `json:"variantName,omitempty"`
}

// CompositeProduct is a product assembled from two base products.
type CompositeProduct struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	BasePrice    Money         `json:"basePrice"`
	BaseProductA ProductRef    `json:"baseProductA"`
	BaseProductB ProductRef    `json:"baseProductB"`
	Combinations []Combination `json:"combinations"`
}

// Product is a regular product with at most one variant dimension.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       Money           `json:"price"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"image,omitempty"`
	VariantName string          `json:"variantName,omitempty"`
	Variants    []VariantOption `json:"variants"`
}

// Variant returns the variant with the given value.
func (p Product) Variant(value string) (VariantOption, bool) {
	for _, v := range p.Variants {
		if v.Value == value {
			return v, true
		}
	}
	return VariantOption{}, false
}

// StockRef identifies the stock bucket a cart line draws from.
type StockRef struct {
	ProductID     string      `json:"productId"`
	ProductType   ProductType `json:"productType"`
	VariantValue  string      `json:"variantValue,omitempty"`
	CombinationID string      `json:"combinationId,omitempty"`
}
