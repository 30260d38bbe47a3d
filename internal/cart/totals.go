package cart

import "github.com/shopspring/decimal"

// totals sums quantities and price*quantity over items.
// Prices are summed as decimals so that 0.1+0.2 style drift never reaches the cart total.
func totals(items []LineItem) (int, float64) {
	count := 0
	sum := decimal.Zero
	for _, it := range items {
		count += it.Quantity
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return count, sum.InexactFloat64()
}

// restamp assigns dense zero-based positions in slice order.
func restamp(items []LineItem) {
	for i := range items {
		items[i].Position = i
	}
}

// withTotals returns s with positions restamped and totals recomputed.
func withTotals(s State) State {
	restamp(s.Items)
	s.TotalItems, s.TotalPrice = totals(s.Items)
	return s
}
