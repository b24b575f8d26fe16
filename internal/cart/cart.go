package cart

import (
	"strings"
	"unicode/utf8"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/pricing"
)

const maxNotesLength = 2000

// AddLine merges the candidate into the cart, clamping to its available stock.
// newID supplies the id of a newly inserted line.
func (c *Cart) AddLine(cand Candidate, requested int, newID func() string) (AddResult, error) {
	if requested <= 0 {
		return AddResult{}, ErrInvalidQuantity
	}
	available := cand.AvailableStock()
	if available <= 0 {
		return AddResult{}, ErrOutOfStock
	}
	key := cand.Key()
	if idx := c.index(key); idx >= 0 {
		line := &c.Lines[idx]
		previous := line.Quantity
		total := min(previous+requested, available)
		line.Quantity = total
		line.Stock = available
		outcome := OutcomeMerged
		if total < previous+requested {
			outcome = OutcomePartiallyFulfilled
		}
		return AddResult{Line: *line, Requested: requested, Applied: total - previous, Outcome: outcome}, nil
	}
	qty := min(requested, available)
	line := cand.line(newID(), qty, available)
	c.Lines = append(c.Lines, line)
	outcome := OutcomeAdded
	if qty < requested {
		outcome = OutcomePartiallyFulfilled
	}
	return AddResult{Line: line, Requested: requested, Applied: qty, Outcome: outcome}, nil
}

// UpdateQuantity sets a line's quantity, clamped to its recorded stock. A
// quantity of zero or less removes the line.
func (c *Cart) UpdateQuantity(lineID string, qty int) (UpdateResult, error) {
	idx := c.find(lineID)
	if idx < 0 {
		return UpdateResult{}, ErrLineNotFound
	}
	applied := min(qty, c.Lines[idx].Stock)
	if applied <= 0 {
		c.removeAt(idx)
		return UpdateResult{Requested: qty, Quantity: 0, Outcome: OutcomeRemoved}, nil
	}
	line := &c.Lines[idx]
	line.Quantity = applied
	outcome := OutcomeUpdated
	if applied < qty {
		outcome = OutcomeClamped
	}
	updated := *line
	return UpdateResult{Line: &updated, Requested: qty, Quantity: applied, Outcome: outcome}, nil
}

// RemoveLine drops exactly one line.
func (c *Cart) RemoveLine(lineID string) error {
	idx := c.find(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.removeAt(idx)
	return nil
}

// Clear empties the cart and resets discount and notes.
func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.Discount = 0
	c.Notes = ""
}

// SetDiscount sets the cart-level discount in minor units.
func (c *Cart) SetDiscount(amount pricing.Money) error {
	if amount < 0 {
		return ErrInvalidDiscount
	}
	c.Discount = amount
	return nil
}

// SetNotes stores trimmed free-text notes, truncated to a bounded length.
func (c *Cart) SetNotes(notes string) {
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		notes = string([]rune(notes)[:maxNotesLength])
	}
	c.Notes = notes
}

// ApplyLiveStock records live stock on a line and clamps its quantity to it.
// A live stock of zero removes the line. It reports the previous quantity and
// whether anything changed.
func (c *Cart) ApplyLiveStock(lineID string, live int) (previous int, removed, changed bool) {
	idx := c.find(lineID)
	if idx < 0 {
		return 0, false, false
	}
	line := &c.Lines[idx]
	previous = line.Quantity
	if live < 0 {
		live = 0
	}
	if live >= line.Quantity {
		line.Stock = live
		return previous, false, false
	}
	if live == 0 {
		c.removeAt(idx)
		return previous, true, true
	}
	line.Quantity = live
	line.Stock = live
	return previous, false, true
}

// Totals derives subtotal and total from the lines and discount.
func (c Cart) Totals() pricing.Summary {
	items := make([]pricing.Item, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return pricing.Compute(items, c.Discount)
}

// ItemCount is the sum of line quantities.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns a copy of the line with the given id.
func (c Cart) Line(lineID string) (Line, bool) {
	if idx := c.find(lineID); idx >= 0 {
		return c.Lines[idx], true
	}
	return Line{}, false
}

// Clone returns a deep copy that shares no mutable state with c.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		if l.Variant != nil {
			v := *l.Variant
			l.Variant = &v
		}
		if l.CombinationID != nil {
			id := *l.CombinationID
			l.CombinationID = &id
		}
		out.Lines[i] = l
	}
	return out
}

// Normalize restores the cart invariants on a snapshot read from storage:
// non-positive quantities are dropped, duplicate identities are merged, missing
// ids are filled and a negative discount is reset. Quantities are clamped to
// the recorded stock; a line without a recorded stock takes its quantity as
// stock until checkout revalidates it.
func (c *Cart) Normalize(newID func() string) {
	lines := make([]Line, 0, len(c.Lines))
	positions := make(map[Key]int, len(c.Lines))
	ids := make(map[string]struct{}, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity <= 0 || l.ProductID == "" {
			continue
		}
		if l.Stock < 0 {
			l.Stock = 0
		}
		if pos, ok := positions[l.Key()]; ok {
			merged := &lines[pos]
			merged.Stock = max(merged.Stock, l.Stock)
			merged.Quantity += l.Quantity
			continue
		}
		if _, dup := ids[l.ID]; l.ID == "" || dup {
			l.ID = newID()
		}
		ids[l.ID] = struct{}{}
		positions[l.Key()] = len(lines)
		lines = append(lines, l)
	}
	for i := range lines {
		if lines[i].Stock == 0 {
			lines[i].Stock = lines[i].Quantity
			continue
		}
		lines[i].Quantity = min(lines[i].Quantity, lines[i].Stock)
	}
	c.Lines = lines
	if c.Discount < 0 {
		c.Discount = 0
	}
}

// Deduct removes what an accepted order took from the cart. Lines are matched
// by id; a line grown after the order was built keeps the difference, and
// lines added since are untouched. Discount and notes are reset only when they
// are still the ones the order carried.
func (c *Cart) Deduct(ordered Cart) {
	for _, o := range ordered.Lines {
		idx := c.find(o.ID)
		if idx < 0 {
			continue
		}
		if left := c.Lines[idx].Quantity - o.Quantity; left > 0 {
			c.Lines[idx].Quantity = left
			continue
		}
		c.removeAt(idx)
	}
	if c.Discount == ordered.Discount {
		c.Discount = 0
	}
	if c.Notes == ordered.Notes {
		c.Notes = ""
	}
}

func (c Cart) index(key Key) int {
	for i, l := range c.Lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func (c Cart) find(lineID string) int {
	for i, l := range c.Lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
}
