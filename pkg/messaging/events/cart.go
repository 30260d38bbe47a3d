package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
)

// CartLine is one consolidated line of a CartUpdatedEvent.
type CartLine struct {
	ProductID int     `json:"product_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Position  int     `json:"position"`
}

type CartUpdatedEvent struct {
	Carrier    map[string]string `json:"carrier,omitempty"`
	TotalItems int               `json:"total_items"`
	TotalPrice float64           `json:"total_price"`
	LineItems  []CartLine        `json:"line_items"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (e CartUpdatedEvent) Subject() string {
	return messaging.CartUpdatedSubject
}

func (e CartUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
