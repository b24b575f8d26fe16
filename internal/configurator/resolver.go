// Package configurator narrows a composite product's two option dimensions to a
// single combination. Every function is a pure query over catalog data.
package configurator

import (
	"errors"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
)

var (
	// ErrNotFound means no combination matches the chosen pair exactly.
	ErrNotFound = errors.New("configurator: combination not found")
	// ErrUnknownOption means a chosen value is not offered at that step.
	ErrUnknownOption = errors.New("configurator: option not offered")
	// ErrSelectionIncomplete means option A must be chosen first.
	ErrSelectionIncomplete = errors.New("configurator: selection incomplete")
)

// FirstChoices returns the distinct option A values that take part in at least
// one combination, in order of first appearance.
func FirstChoices(p *catalog.CompositeProduct) []catalog.VariantOption {
	if p == nil {
		return nil
	}
	out := make([]catalog.VariantOption, 0)
	seen := make(map[string]struct{})
	for _, c := range p.Combinations {
		if _, ok := seen[c.OptionA.Value]; ok {
			continue
		}
		seen[c.OptionA.Value] = struct{}{}
		out = append(out, c.OptionA)
	}
	return out
}

// SecondChoices returns the distinct option B values of combinations whose
// option A equals chosenA.
func SecondChoices(p *catalog.CompositeProduct, chosenA string) []catalog.VariantOption {
	if p == nil || chosenA == "" {
		return nil
	}
	out := make([]catalog.VariantOption, 0)
	seen := make(map[string]struct{})
	for _, c := range p.Combinations {
		if c.OptionA.Value != chosenA {
			continue
		}
		if _, ok := seen[c.OptionB.Value]; ok {
			continue
		}
		seen[c.OptionB.Value] = struct{}{}
		out = append(out, c.OptionB)
	}
	return out
}

// Resolve returns the combination matching both values exactly. The result
// points into p.Combinations, so equal inputs yield the same reference.
func Resolve(p *catalog.CompositeProduct, chosenA, chosenB string) (*catalog.Combination, error) {
	if p == nil || chosenA == "" || chosenB == "" {
		return nil, ErrNotFound
	}
	for i := range p.Combinations {
		c := &p.Combinations[i]
		if c.OptionA.Value == chosenA && c.OptionB.Value == chosenB {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// IsSellable reports whether the combination has stock. IsAvailable is ignored.
func IsSellable(c *catalog.Combination) bool {
	return c != nil && c.Stock > 0
}

// UnitPrice is the composite base price plus the combination surcharge.
func UnitPrice(p *catalog.CompositeProduct, c *catalog.Combination) catalog.Money {
	if p == nil {
		return 0
	}
	if c == nil {
		return p.BasePrice
	}
	return p.BasePrice + c.ExtraPrice
}

// VariantUnitPrice is a regular product's price plus the variant surcharge.
func VariantUnitPrice(p catalog.Product, v *catalog.VariantOption) catalog.Money {
	if v == nil {
		return p.Price
	}
	return p.Price + v.ExtraPrice
}

func contains(options []catalog.VariantOption, value string) bool {
	for _, o := range options {
		if o.Value == value {
			return true
		}
	}
	return false
}
