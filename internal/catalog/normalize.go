package catalog

// CombinationRow is a combination as read from storage, before its option
// values are resolved against the base products' variants.
type CombinationRow struct {
	ID          string
	OptionA     *VariantOption
	OptionB     *VariantOption
	FinalImage  *string
	ExtraPrice  Money
	Stock       int
	IsAvailable bool
}

// NormalizeCombinations resolves raw rows into combinations. Rows whose option A
// or B did not resolve are dropped, duplicate IDs keep their first occurrence and
// negative amounts are clamped to zero.
func NormalizeCombinations(rows []CombinationRow) []Combination {
	out := make([]Combination, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if row.ID == "" || row.OptionA == nil || row.OptionB == nil {
			continue
		}
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		out = append(out, Combination{
			ID:          row.ID,
			OptionA:     normalizeOption(*row.OptionA),
			OptionB:     normalizeOption(*row.OptionB),
			FinalImage:  row.FinalImage,
			ExtraPrice:  nonNegative(row.ExtraPrice),
			Stock:       nonNegativeInt(row.Stock),
			IsAvailable: row.IsAvailable,
		})
	}
	return out
}

// NormalizeVariants clamps amounts and drops variants without a value.
func NormalizeVariants(variants []VariantOption) []VariantOption {
	out := make([]VariantOption, 0, len(variants))
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Value == "" {
			continue
		}
		if _, dup := seen[v.Value]; dup {
			continue
		}
		seen[v.Value] = struct{}{}
		out = append(out, normalizeOption(v))
	}
	return out
}

func normalizeOption(v VariantOption) VariantOption {
	v.ExtraPrice = nonNegative(v.ExtraPrice)
	v.Stock = nonNegativeInt(v.Stock)
	return v
}

func nonNegative(m Money) Money {
	if m < 0 {
		return 0
	}
	return m
}

func nonNegativeInt(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
