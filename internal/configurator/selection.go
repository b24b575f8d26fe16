package configurator

import "github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"

// Selection tracks one progressive configuration of a composite product.
// Changing option A always clears option B.
type Selection struct {
	product *catalog.CompositeProduct
	a, b    string
}

// NewSelection starts an empty selection for p.
func NewSelection(p *catalog.CompositeProduct) *Selection {
	return &Selection{product: p}
}

// ChooseA sets option A and resets option B.
func (s *Selection) ChooseA(value string) error {
	if !contains(FirstChoices(s.product), value) {
		return ErrUnknownOption
	}
	s.a = value
	s.b = ""
	return nil
}

// ChooseB sets option B. Option A must already be chosen.
func (s *Selection) ChooseB(value string) error {
	if s.a == "" {
		return ErrSelectionIncomplete
	}
	if !contains(SecondChoices(s.product, s.a), value) {
		return ErrUnknownOption
	}
	s.b = value
	return nil
}

// A returns the chosen option A value.
func (s *Selection) A() string { return s.a }

// B returns the chosen option B value.
func (s *Selection) B() string { return s.b }

// FirstChoices lists the selectable option A values.
func (s *Selection) FirstChoices() []catalog.VariantOption {
	return FirstChoices(s.product)
}

// SecondChoices lists option B values compatible with the current option A.
func (s *Selection) SecondChoices() []catalog.VariantOption {
	return SecondChoices(s.product, s.a)
}

// Combination resolves the current pair.
func (s *Selection) Combination() (*catalog.Combination, error) {
	if s.a == "" || s.b == "" {
		return nil, ErrSelectionIncomplete
	}
	return Resolve(s.product, s.a, s.b)
}
