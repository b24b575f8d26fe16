package cart

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/catalog"
	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func chairCandidate(variantStock int) Candidate {
	return Candidate{
		ProductID:    "chair",
		ProductType:  catalog.ProductRegular,
		Name:         "Dining chair",
		UnitPrice:    130_000,
		Variant:      &catalog.VariantOption{Name: "Finish", Value: "oak", Stock: variantStock},
		ProductStock: 50,
	}
}

func sofaCandidate(stock int) Candidate {
	return Candidate{
		ProductID:   "sofa",
		ProductType: catalog.ProductSpecial,
		Name:        "Modular sofa",
		UnitPrice:   950_000,
		Combination: &catalog.Combination{ID: "k1", Stock: stock},
	}
}

func TestAvailableStockPrecedence(t *testing.T) {
	require.Equal(t, 3, chairCandidate(3).AvailableStock())
	require.Equal(t, 2, sofaCandidate(2).AvailableStock())
	require.Equal(t, 7, Candidate{ProductStock: 7}.AvailableStock())
	require.Equal(t, 0, Candidate{ProductStock: 7, Variant: &catalog.VariantOption{Stock: 0}}.AvailableStock())
}

func TestAddLineInsertsAndMerges(t *testing.T) {
	var c Cart
	ids := sequentialIDs()

	res, err := c.AddLine(chairCandidate(5), 2, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdded, res.Outcome)
	require.Equal(t, 2, res.Applied)
	require.Equal(t, "line-1", res.Line.ID)

	res, err = c.AddLine(chairCandidate(5), 2, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomeMerged, res.Outcome)
	require.Equal(t, 2, res.Applied)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 4, c.Lines[0].Quantity)

	res, err = c.AddLine(sofaCandidate(1), 1, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdded, res.Outcome)
	require.Len(t, c.Lines, 2)
	require.Equal(t, "sofa", c.Lines[1].ProductID)
}

func TestAddLineClampsToStock(t *testing.T) {
	var c Cart
	ids := sequentialIDs()

	res, err := c.AddLine(chairCandidate(3), 5, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomePartiallyFulfilled, res.Outcome)
	require.Equal(t, 5, res.Requested)
	require.Equal(t, 3, res.Applied)

	res, err = c.AddLine(chairCandidate(3), 1, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomePartiallyFulfilled, res.Outcome)
	require.Equal(t, 0, res.Applied)
	require.Equal(t, 3, c.Lines[0].Quantity)
}

func TestAddLineRejectsWithoutStock(t *testing.T) {
	c := Cart{}
	_, err := c.AddLine(sofaCandidate(0), 1, sequentialIDs())
	require.ErrorIs(t, err, ErrOutOfStock)
	require.Empty(t, c.Lines)

	_, err = c.AddLine(chairCandidate(4), 0, sequentialIDs())
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Empty(t, c.Lines)
}

func TestVariantsAreDistinctLines(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	walnut := chairCandidate(4)
	walnut.Variant = &catalog.VariantOption{Value: "walnut", Stock: 4}
	_, err := c.AddLine(chairCandidate(4), 1, ids)
	require.NoError(t, err)
	_, err = c.AddLine(walnut, 1, ids)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	require.NotEqual(t, c.Lines[0].Key(), c.Lines[1].Key())
}

func TestUpdateQuantity(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, err := c.AddLine(chairCandidate(4), 1, ids)
	require.NoError(t, err)

	res, err := c.UpdateQuantity("line-1", 3)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Equal(t, 3, c.Lines[0].Quantity)

	res, err = c.UpdateQuantity("line-1", 10)
	require.NoError(t, err)
	require.Equal(t, OutcomeClamped, res.Outcome)
	require.Equal(t, 4, res.Quantity)

	res, err = c.UpdateQuantity("line-1", 0)
	require.NoError(t, err)
	require.Equal(t, OutcomeRemoved, res.Outcome)
	require.Empty(t, c.Lines)

	_, err = c.UpdateQuantity("line-1", 1)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, _ = c.AddLine(chairCandidate(4), 1, ids)
	_, _ = c.AddLine(sofaCandidate(4), 1, ids)
	require.NoError(t, c.SetDiscount(5_000))
	c.SetNotes("  deliver friday  ")
	require.Equal(t, "deliver friday", c.Notes)

	require.NoError(t, c.RemoveLine("line-1"))
	require.Len(t, c.Lines, 1)
	require.ErrorIs(t, c.RemoveLine("line-1"), ErrLineNotFound)

	c.Clear()
	require.Empty(t, c.Lines)
	require.Zero(t, c.Discount)
	require.Empty(t, c.Notes)
}

func TestTotals(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, _ = c.AddLine(chairCandidate(4), 2, ids)
	_, _ = c.AddLine(sofaCandidate(4), 1, ids)
	require.ErrorIs(t, c.SetDiscount(-1), ErrInvalidDiscount)
	require.NoError(t, c.SetDiscount(10_000))

	totals := c.Totals()
	require.Equal(t, int64(1_210_000), totals.Subtotal)
	require.Equal(t, int64(1_200_000), totals.Total)
	require.Equal(t, 3, c.ItemCount())

	require.NoError(t, c.SetDiscount(5_000_000))
	require.Zero(t, c.Totals().Total)
}

func TestApplyLiveStock(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, _ = c.AddLine(chairCandidate(5), 4, ids)
	_, _ = c.AddLine(sofaCandidate(5), 2, ids)

	prev, removed, changed := c.ApplyLiveStock("line-1", 9)
	require.False(t, changed)
	require.False(t, removed)
	require.Equal(t, 4, prev)
	require.Equal(t, 9, c.Lines[0].Stock)

	prev, removed, changed = c.ApplyLiveStock("line-1", 2)
	require.True(t, changed)
	require.False(t, removed)
	require.Equal(t, 4, prev)
	require.Equal(t, 2, c.Lines[0].Quantity)

	_, removed, changed = c.ApplyLiveStock("line-2", 0)
	require.True(t, changed)
	require.True(t, removed)
	require.Len(t, c.Lines, 1)
}

func TestNormalizeRepairsSnapshot(t *testing.T) {
	combo := "k1"
	c := Cart{
		Discount: -10,
		Lines: []Line{
			{ID: "a", ProductID: "chair", ProductType: catalog.ProductRegular, Quantity: 2, Stock: 3, Variant: &VariantRef{Value: "oak"}},
			{ID: "b", ProductID: "chair", ProductType: catalog.ProductRegular, Quantity: 0, Stock: 3},
			{ID: "c", ProductID: "chair", ProductType: catalog.ProductRegular, Quantity: 2, Stock: 3, Variant: &VariantRef{Value: "oak"}},
			{ID: "", ProductID: "sofa", ProductType: catalog.ProductSpecial, Quantity: 1, Stock: 1, CombinationID: &combo},
			{ID: "a", ProductID: "lamp", ProductType: catalog.ProductRegular, Quantity: 1, Stock: 0},
		},
	}
	c.Normalize(sequentialIDs())
	require.Len(t, c.Lines, 3)
	require.Equal(t, 3, c.Lines[0].Quantity)
	require.Equal(t, "line-1", c.Lines[1].ID)
	require.Equal(t, "line-2", c.Lines[2].ID)
	require.Equal(t, 1, c.Lines[2].Quantity)
	require.Equal(t, 1, c.Lines[2].Stock)
	require.Zero(t, c.Discount)

	res, err := c.UpdateQuantity("line-2", 1)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, res.Outcome)
	require.Len(t, c.Lines, 3)
}

func TestNormalizeClampsToRecordedStock(t *testing.T) {
	c := Cart{Lines: []Line{
		{ID: "a", ProductID: "table", ProductType: catalog.ProductRegular, Quantity: 6, Stock: 4},
		{ID: "b", ProductID: "lamp", ProductType: catalog.ProductRegular, Quantity: 2},
		{ID: "c", ProductID: "lamp", ProductType: catalog.ProductRegular, Quantity: 3},
	}}
	c.Normalize(sequentialIDs())
	require.Len(t, c.Lines, 2)
	require.Equal(t, 4, c.Lines[0].Quantity)
	require.Equal(t, 5, c.Lines[1].Quantity)
	require.Equal(t, 5, c.Lines[1].Stock)
	for _, line := range c.Lines {
		require.Greater(t, line.Quantity, 0)
		require.LessOrEqual(t, line.Quantity, line.Stock)
	}
}

func TestDeductKeepsLinesChangedAfterOrder(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, err := c.AddLine(sofaCandidate(5), 2, ids)
	require.NoError(t, err)
	_, err = c.AddLine(chairCandidate(6), 1, ids)
	require.NoError(t, err)
	require.NoError(t, c.SetDiscount(5_000))
	c.SetNotes("deliver friday")
	ordered := c.Clone()

	_, err = c.AddLine(chairCandidate(6), 2, ids)
	require.NoError(t, err)
	_, err = c.AddLine(Candidate{ProductID: "lamp", ProductType: catalog.ProductRegular, Name: "Floor lamp", UnitPrice: 96_500, ProductStock: 3}, 1, ids)
	require.NoError(t, err)
	c.SetNotes("deliver monday")

	c.Deduct(ordered)
	require.Len(t, c.Lines, 2)
	require.Equal(t, "chair", c.Lines[0].ProductID)
	require.Equal(t, 2, c.Lines[0].Quantity)
	require.Equal(t, "lamp", c.Lines[1].ProductID)
	require.Equal(t, 1, c.Lines[1].Quantity)
	require.Zero(t, c.Discount)
	require.Equal(t, "deliver monday", c.Notes)

	var unchanged Cart
	_, err = unchanged.AddLine(sofaCandidate(5), 2, sequentialIDs())
	require.NoError(t, err)
	unchanged.Deduct(unchanged.Clone())
	require.Empty(t, unchanged.Lines)
}

func TestMergeAfterStockDroppedBelowLine(t *testing.T) {
	var c Cart
	ids := sequentialIDs()
	_, err := c.AddLine(sofaCandidate(6), 5, ids)
	require.NoError(t, err)

	res, err := c.AddLine(sofaCandidate(3), 1, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomePartiallyFulfilled, res.Outcome)
	require.Equal(t, -2, res.Applied)
	require.Less(t, res.Applied, 0)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 3, c.Lines[0].Quantity)
	require.Equal(t, 3, c.Lines[0].Stock)
}

func TestCloneIsDeep(t *testing.T) {
	var c Cart
	_, _ = c.AddLine(sofaCandidate(3), 1, sequentialIDs())
	clone := c.Clone()
	clone.Lines[0].Quantity = 3
	*clone.Lines[0].CombinationID = "other"
	require.Equal(t, 1, c.Lines[0].Quantity)
	require.Equal(t, "k1", *c.Lines[0].CombinationID)
}

func TestMergeBeyondCombinationStock(t *testing.T) {
	var c Cart
	ids := sequentialIDs()

	res, err := c.AddLine(sofaCandidate(5), 3, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomeAdded, res.Outcome)

	res, err = c.AddLine(sofaCandidate(5), 4, ids)
	require.NoError(t, err)
	require.Equal(t, OutcomePartiallyFulfilled, res.Outcome)
	require.Equal(t, 2, res.Applied)
	require.Len(t, c.Lines, 1)
	require.Equal(t, 5, c.Lines[0].Quantity)
}

func TestRandomMutationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	candidates := []func(int) Candidate{
		chairCandidate,
		sofaCandidate,
		func(stock int) Candidate {
			return Candidate{ProductID: "lamp", ProductType: catalog.ProductRegular, Name: "Floor lamp", UnitPrice: 96_500, ProductStock: stock}
		},
	}
	var c Cart
	ids := sequentialIDs()
	for step := 0; step < 500; step++ {
		if len(c.Lines) > 0 && rng.IntN(3) == 0 {
			line := c.Lines[rng.IntN(len(c.Lines))]
			_, err := c.UpdateQuantity(line.ID, rng.IntN(10)-1)
			require.NoError(t, err)
		} else {
			cand := candidates[rng.IntN(len(candidates))](rng.IntN(8))
			_, err := c.AddLine(cand, rng.IntN(6)+1, ids)
			if err != nil {
				require.ErrorIs(t, err, ErrOutOfStock)
			}
		}

		seen := map[Key]bool{}
		for _, line := range c.Lines {
			require.False(t, seen[line.Key()], "duplicate identity at step %d", step)
			seen[line.Key()] = true
			require.Greater(t, line.Quantity, 0)
			require.LessOrEqual(t, line.Quantity, line.Stock)
		}
		totals := c.Totals()
		require.GreaterOrEqual(t, totals.Total, pricing.Money(0))
	}
}
