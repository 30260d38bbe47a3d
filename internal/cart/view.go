package cart

// Consolidate merges entries sharing a product id. Quantities are summed, the
// first occurrence supplies every other field and output keeps first-seen order.
// A missing or non-positive quantity counts as 1 and sums saturate at MaxQuantity.
func Consolidate(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[int]int, len(items))
	for _, it := range items {
		q := clampQuantity(it.Quantity)
		if i, ok := index[it.ID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, q)
			continue
		}
		it.Quantity = q
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// Rearrange applies a drag gesture to view: the item with activeID is moved to
// the index currently held by overID, items in between shift by one, and
// positions are restamped. It reports false, and returns nil, when the gesture
// has no destination, drops onto itself, or names an id not in view.
func Rearrange(view []LineItem, activeID int, overID *int) ([]LineItem, bool) {
	if overID == nil || *overID == activeID {
		return nil, false
	}
	from, to := -1, -1
	for i, it := range view {
		switch it.ID {
		case activeID:
			from = i
		case *overID:
			to = i
		}
	}
	if from < 0 || to < 0 {
		return nil, false
	}

	out := make([]LineItem, 0, len(view))
	moved := view[from]
	for i, it := range view {
		if i == from {
			continue
		}
		if i == to && from > to {
			out = append(out, moved)
		}
		out = append(out, it)
		if i == to && from < to {
			out = append(out, moved)
		}
	}
	restamp(out)
	return out, true
}

// isPermutation reports whether next holds exactly the ids of current, each once.
func isPermutation(current, next []LineItem) bool {
	if len(current) != len(next) {
		return false
	}
	want := make(map[int]struct{}, len(current))
	for _, it := range current {
		want[it.ID] = struct{}{}
	}
	if len(want) != len(current) {
		return false
	}
	for _, it := range next {
		if _, ok := want[it.ID]; !ok {
			return false
		}
		delete(want, it.ID)
	}
	return len(want) == 0
}
