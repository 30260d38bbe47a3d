package rest

import (
	"net/http"

	"github.com/abgdnv/storefront/pkg/web"
)

// ContactRequest is a contact form submission.
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required,min=10"`
}

const contactAcknowledgement = "Message sent successfully! We will get back to you soon."

// Contact accepts a contact form. Messages are logged, nothing is sent.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &req) {
		return
	}
	h.logger.InfoContext(r.Context(), "Contact message received", "email", req.Email, "subject", req.Subject)
	web.RespondJSON(w, h.logger, http.StatusAccepted, map[string]string{"message": contactAcknowledgement})
}
