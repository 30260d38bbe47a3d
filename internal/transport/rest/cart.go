package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/web"
)

// AddItemRequest adds quantity units of a catalog product. Quantity defaults to 1.
// The max matches cart.MaxQuantity.
type AddItemRequest struct {
	ProductID int  `json:"productId" validate:"required,gt=0"`
	Quantity  *int `json:"quantity" validate:"omitempty,min=1,max=999"`
}

// SetQuantityRequest sets the quantity of a line. Values below 1 are raised to 1.
// The max matches cart.MaxQuantity.
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=999"`
}

// ReorderRequest is a finished drag gesture. A missing overId is a cancelled drag
// and an activeId not in the cart leaves it unchanged.
type ReorderRequest struct {
	ActiveID int  `json:"activeId"`
	OverID   *int `json:"overId"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.cart.Get(r.Context()))
}

func (h *Handler) ViewCart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.cart.View(r.Context()))
}

// AddItem resolves the product through the catalog and adds it to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	h.logger.DebugContext(r.Context(), "Received request to add product to cart", "product_id", req.ProductID, "quantity", quantity)
	st, err := h.cart.AddProduct(r.Context(), req.ProductID, quantity)
	if err != nil {
		h.respondCatalogError(w, r, err, fmt.Sprintf("Product with ID %d", req.ProductID))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

// RemoveItem deletes a line. Removing a product that is not in the cart returns the unchanged cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	st, _ := h.cart.Remove(r.Context(), id)
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var req SetQuantityRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	st, _ := h.cart.SetQuantity(r.Context(), id, *req.Quantity)
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

// Reorder applies a drag gesture to the consolidated cart.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	st, moved := h.cart.Move(r.Context(), req.ActiveID, req.OverID)
	if !moved {
		h.logger.DebugContext(r.Context(), "Reorder left the cart unchanged", "active_id", req.ActiveID)
	}
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.cart.Clear(r.Context()))
}

// CartEvents streams the cart as server-sent events: the current state first,
// then the state after every change, until the client disconnects or the
// handler is closed.
func (h *Handler) CartEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the stream outlives any server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	updates, cancel := h.cart.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.ErrorContext(r.Context(), "Streaming is not supported by the response writer", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(st)
			if err != nil {
				h.logger.ErrorContext(r.Context(), "Error encoding cart event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// respondCatalogError maps catalog failures to HTTP statuses. subject names the
// requested resource in the not-found message.
func (h *Handler) respondCatalogError(w http.ResponseWriter, r *http.Request, err error, subject string) {
	switch {
	case errors.Is(err, storeerrors.ErrProductNotFound):
		h.logger.WarnContext(r.Context(), "Catalog resource not found", "subject", subject)
		web.RespondError(w, h.logger, http.StatusNotFound, subject+" not found")
	case errors.Is(err, storeerrors.ErrCatalogUnavailable):
		h.logger.ErrorContext(r.Context(), "Catalog unavailable", "error", err)
		web.RespondError(w, h.logger, http.StatusBadGateway, "Catalog service unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "Catalog request failed", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Failed to fetch "+subject)
	}
}
