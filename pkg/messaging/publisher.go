// Package messaging defines the event contract shared by publishers and consumers.
package messaging

import (
	"context"
)

// CartUpdatedSubject carries a snapshot of the cart after each effective mutation.
const CartUpdatedSubject = "storefront.cart.updated"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
