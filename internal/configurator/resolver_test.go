package configurator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
)

func option(value string) catalog.VariantOption {
	return catalog.VariantOption{Name: value, Value: value, Stock: 5}
}

func sofa() *catalog.CompositeProduct {
	return &catalog.CompositeProduct{
		ID:        "sofa",
		Name:      "Modular sofa",
		BasePrice: 900_000,
		Combinations: []catalog.Combination{
			{ID: "k1", OptionA: option("oak"), OptionB: option("linen"), ExtraPrice: 50_000, Stock: 3, IsAvailable: true},
			{ID: "k2", OptionA: option("oak"), OptionB: option("velvet"), ExtraPrice: 80_000, Stock: 0, IsAvailable: true},
			{ID: "k3", OptionA: option("walnut"), OptionB: option("velvet"), Stock: 1, IsAvailable: false},
			{ID: "k4", OptionA: option("oak"), OptionB: option("linen"), Stock: 9},
		},
	}
}

func values(opts []catalog.VariantOption) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

func TestFirstChoicesAreDistinctParticipants(t *testing.T) {
	require.Equal(t, []string{"oak", "walnut"}, values(FirstChoices(sofa())))
	require.Empty(t, FirstChoices(&catalog.CompositeProduct{}))
	require.Nil(t, FirstChoices(nil))
}

func TestSecondChoicesFollowOptionA(t *testing.T) {
	p := sofa()
	require.Equal(t, []string{"linen", "velvet"}, values(SecondChoices(p, "oak")))
	require.Equal(t, []string{"velvet"}, values(SecondChoices(p, "walnut")))
	require.Empty(t, SecondChoices(p, "pine"))
	require.Nil(t, SecondChoices(p, ""))
}

func TestResolveIsExactAndStable(t *testing.T) {
	p := sofa()
	first, err := Resolve(p, "oak", "linen")
	require.NoError(t, err)
	require.Equal(t, "k1", first.ID)
	again, err := Resolve(p, "oak", "linen")
	require.NoError(t, err)
	require.Same(t, first, again)

	_, err = Resolve(p, "walnut", "linen")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = Resolve(p, "oak", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIsSellableIgnoresAvailabilityFlag(t *testing.T) {
	p := sofa()
	require.True(t, IsSellable(&p.Combinations[0]))
	require.False(t, IsSellable(&p.Combinations[1]))
	require.True(t, IsSellable(&p.Combinations[2]))
	require.False(t, IsSellable(nil))
}

func TestUnitPrices(t *testing.T) {
	p := sofa()
	require.Equal(t, catalog.Money(950_000), UnitPrice(p, &p.Combinations[0]))
	require.Equal(t, catalog.Money(900_000), UnitPrice(p, nil))

	chair := catalog.Product{Price: 120_000}
	require.Equal(t, catalog.Money(120_000), VariantUnitPrice(chair, nil))
	require.Equal(t, catalog.Money(135_000), VariantUnitPrice(chair, &catalog.VariantOption{ExtraPrice: 15_000}))
}

func TestSelectionResetsSecondChoice(t *testing.T) {
	sel := NewSelection(sofa())
	require.ErrorIs(t, sel.ChooseB("linen"), ErrSelectionIncomplete)
	require.ErrorIs(t, sel.ChooseA("pine"), ErrUnknownOption)

	require.NoError(t, sel.ChooseA("oak"))
	require.NoError(t, sel.ChooseB("velvet"))
	combo, err := sel.Combination()
	require.NoError(t, err)
	require.Equal(t, "k2", combo.ID)

	require.NoError(t, sel.ChooseA("walnut"))
	require.Empty(t, sel.B())
	_, err = sel.Combination()
	require.ErrorIs(t, err, ErrSelectionIncomplete)
	require.ErrorIs(t, sel.ChooseB("linen"), ErrUnknownOption)
	require.Equal(t, []string{"velvet"}, values(sel.SecondChoices()))
}
