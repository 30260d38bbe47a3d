// Package service provides the cart operations exposed to the UI.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/storefront/internal/cart"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProductResolver looks up a catalog product by id.
type ProductResolver interface {
	// Product returns the catalog entry for id.
	// Returns ErrProductNotFound if the catalog has no such product.
	Product(ctx context.Context, id int) (cart.Product, error)
}

// CartService defines the cart operations available to the UI.
// Mutations that target a line not in the cart are no-ops and report false.
type CartService interface {
	// Get returns the current cart state.
	Get(ctx context.Context) cart.State

	// View returns the cart lines consolidated by product id.
	View(ctx context.Context) []cart.LineItem

	// AddProduct resolves productID through the catalog and adds quantity units of it.
	// Returns ErrProductNotFound or ErrCatalogUnavailable if the product cannot be resolved.
	AddProduct(ctx context.Context, productID, quantity int) (cart.State, error)

	// Remove deletes the line of productID.
	Remove(ctx context.Context, productID int) (cart.State, bool)

	// SetQuantity sets the quantity of productID, bounded to [1, cart.MaxQuantity].
	SetQuantity(ctx context.Context, productID, quantity int) (cart.State, bool)

	// Move drops activeID onto overID. A nil overID is a cancelled drag.
	Move(ctx context.Context, activeID int, overID *int) (cart.State, bool)

	// Clear empties the cart and forgets its snapshot.
	Clear(ctx context.Context) cart.State

	// Subscribe streams the cart state after every effective mutation.
	Subscribe() (<-chan cart.State, func())
}

// Service implements CartService on top of a cart aggregate and a catalog.
type Service struct {
	cart      *cart.Cart
	products  ProductResolver
	mutations metric.Int64Counter
	logger    *slog.Logger
}

var _ CartService = (*Service)(nil)

// NewService creates a Service for c that resolves products through products.
func NewService(c *cart.Cart, products ProductResolver, logger *slog.Logger) *Service {
	meter := otel.Meter("storefront-cart")
	mutations, err := meter.Int64Counter("cart_mutations", metric.WithDescription("Effective cart mutations by operation"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_mutations counter: %v", err))
	}
	return &Service{
		cart:      c,
		products:  products,
		mutations: mutations,
		logger:    logger.With("component", "cart-service"),
	}
}

func (s *Service) Get(_ context.Context) cart.State {
	return s.cart.Snapshot()
}

func (s *Service) View(_ context.Context) []cart.LineItem {
	return s.cart.View()
}

// AddProduct adds quantity units of the product in one mutation. A quantity below 1 adds one unit.
func (s *Service) AddProduct(ctx context.Context, productID, quantity int) (cart.State, error) {
	p, err := s.products.Product(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to add product to cart", "product_id", productID, "error", err)
		return s.cart.Snapshot(), err
	}
	st := s.cart.AddMany(ctx, p, quantity)
	s.count(ctx, "add")
	s.logger.InfoContext(ctx, "Product added to cart", "product_id", productID, "quantity", min(max(1, quantity), cart.MaxQuantity), "total_items", st.TotalItems)
	return st, nil
}

func (s *Service) Remove(ctx context.Context, productID int) (cart.State, bool) {
	st, ok := s.cart.Remove(ctx, productID)
	if ok {
		s.count(ctx, "remove")
		s.logger.InfoContext(ctx, "Product removed from cart", "product_id", productID)
	}
	return st, ok
}

func (s *Service) SetQuantity(ctx context.Context, productID, quantity int) (cart.State, bool) {
	st, ok := s.cart.SetQuantity(ctx, productID, quantity)
	if ok {
		s.count(ctx, "set_quantity")
	}
	return st, ok
}

func (s *Service) Move(ctx context.Context, activeID int, overID *int) (cart.State, bool) {
	st, ok := s.cart.Move(ctx, activeID, overID)
	if ok {
		s.count(ctx, "reorder")
	}
	return st, ok
}

func (s *Service) Clear(ctx context.Context) cart.State {
	st := s.cart.Clear(ctx)
	s.count(ctx, "clear")
	s.logger.InfoContext(ctx, "Cart cleared")
	return st
}

func (s *Service) Subscribe() (<-chan cart.State, func()) {
	return s.cart.Subscribe()
}

func (s *Service) count(ctx context.Context, op string) {
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
