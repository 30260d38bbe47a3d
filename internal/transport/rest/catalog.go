package rest

import (
	"fmt"
	"net/http"

	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
)

// InvalidateRequest names the cache tags to drop, e.g. "Category", "Product:LIST" or "Product:3".
type InvalidateRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,dive,required"`
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.respondCatalogError(w, r, err, "Categories")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, categories)
}

func (h *Handler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	products, err := h.catalog.ProductsByCategory(r.Context(), category)
	if err != nil {
		h.respondCatalogError(w, r, err, fmt.Sprintf("Category %s", category))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, products)
}

// Products lists the catalog. An optional limit query parameter caps the result.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	limit, ok := web.ParseOptionalGte(r, w, h.logger, "limit", 1, 0)
	if !ok {
		return
	}
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		h.respondCatalogError(w, r, err, "Products")
		return
	}
	if limit > 0 && limit < len(products) {
		products = products[:limit]
	}
	web.RespondJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	product, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		h.respondCatalogError(w, r, err, fmt.Sprintf("Product with ID %d", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, product)
}

// InvalidateCatalog drops cached catalog responses carrying any of the given tags.
func (h *Handler) InvalidateCatalog(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	evicted := h.catalog.Invalidate(req.Tags...)
	h.logger.InfoContext(r.Context(), "Catalog cache invalidated", "tags", req.Tags, "evicted", evicted)
	web.RespondJSON(w, h.logger, http.StatusOK, map[string]int{"evicted": evicted})
}
