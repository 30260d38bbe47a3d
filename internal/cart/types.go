package cart

// MaxQuantity is the largest quantity a line can hold. Larger requests saturate to it.
const MaxQuantity = 999

// Rating is the catalog's aggregate review score for a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is a catalog entry as served by the catalog service. It is never mutated here.
type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// LineItem is a product in the cart. Its JSON form is the product's fields
// plus quantity and position.
type LineItem struct {
	Product
	Quantity int `json:"quantity"`
	Position int `json:"position"`
}

// State is the whole cart. Values returned by Cart are copies and safe to keep.
type State struct {
	Items      []LineItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

// Empty returns the state of a cart with no items.
func Empty() State {
	return State{Items: []LineItem{}}
}

func (s State) clone() State {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

func (s State) indexOf(id int) int {
	for i, it := range s.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// clampQuantity bounds q to [1, MaxQuantity].
func clampQuantity(q int) int {
	return min(max(1, q), MaxQuantity)
}

// addQuantity returns a+n saturated to MaxQuantity. a must already be clamped.
func addQuantity(a, n int) int {
	if n >= MaxQuantity-a {
		return MaxQuantity
	}
	return clampQuantity(a + n)
}
