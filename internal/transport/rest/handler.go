// Package rest provides the HTTP API of the storefront.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/abgdnv/storefront/internal/auth"
	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/service"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Catalog is the read side of the product catalog.
type Catalog interface {
	Categories(ctx context.Context) ([]string, error)
	ProductsByCategory(ctx context.Context, category string) ([]cart.Product, error)
	Products(ctx context.Context) ([]cart.Product, error)
	Product(ctx context.Context, id int) (cart.Product, error)
	Invalidate(tags ...string) int
}

// Session is the local sign-in state.
type Session interface {
	State() auth.State
	CheckAuthState(ctx context.Context) auth.State
	Register(ctx context.Context, in auth.RegisterInput) (auth.State, error)
	Login(ctx context.Context, in auth.LoginInput) (auth.State, error)
	Logout(ctx context.Context) auth.State
	ClearError() auth.State
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cart     service.CartService
	catalog  Catalog
	session  Session
	storage  Pinger
	validate *validator.Validate
	logger   *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandler creates a Handler serving the cart, catalog and session APIs.
func NewHandler(cartService service.CartService, catalog Catalog, session Session, storage Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		cart:     cartService,
		catalog:  catalog,
		session:  session,
		storage:  storage,
		validate: auth.NewValidator(),
		logger:   logger.With("component", "rest"),
		closing:  make(chan struct{}),
	}
}

// Close ends open event streams. Register it with http.Server.RegisterOnShutdown:
// Shutdown does not cancel the contexts of active requests.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// RegisterRoutes registers the HTTP routes of the storefront.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/view", h.ViewCart)
			r.Get("/events", h.CartEvents)
			r.Post("/reorder", h.Reorder)
			r.Post("/items", h.AddItem)
			r.Route("/items/{id}", func(r chi.Router) {
				r.Delete("/", h.RemoveItem)
				r.Put("/quantity", h.SetQuantity)
			})
		})

		r.Get("/categories", h.Categories)
		r.Get("/categories/{category}/products", h.ProductsByCategory)
		r.Get("/products", h.Products)
		r.Get("/products/{id}", h.Product)
		r.Post("/catalog/invalidate", h.InvalidateCatalog)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.CheckSession)
			r.Delete("/error", h.ClearAuthError)
		})

		r.Post("/contact", h.Contact)
	})
	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck reports 200 while the storage backend answers pings.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "Health check failed", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
