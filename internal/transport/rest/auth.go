package rest

import (
	"errors"
	"net/http"

	"github.com/abgdnv/storefront/internal/auth"
	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/web"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &in) {
		return
	}
	st, err := h.session.Register(r.Context(), in)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Registration failed", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Registration failed")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusCreated, st)
}

// Login signs in the stored user. A failed login answers 401 with the session's display message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if !web.DecodeAndValidate(w, r, h.logger, h.validate, &in) {
		return
	}
	st, err := h.session.Login(r.Context(), in)
	if err != nil {
		if errors.Is(err, storeerrors.ErrUserNotFound) || errors.Is(err, storeerrors.ErrInvalidCredentials) {
			h.logger.WarnContext(r.Context(), "Login rejected", "username", in.Username, "error", err)
			web.RespondError(w, h.logger, http.StatusUnauthorized, st.Error)
			return
		}
		h.logger.ErrorContext(r.Context(), "Login failed", "error", err)
		web.RespondError(w, h.logger, http.StatusInternalServerError, "Login failed")
		return
	}
	h.logger.InfoContext(r.Context(), "User logged in", "username", in.Username)
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.session.Logout(r.Context()))
}

// CheckSession restores a stored user on first use and returns the session.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	st := h.session.State()
	if !st.IsInitialized {
		st = h.session.CheckAuthState(r.Context())
	}
	web.RespondJSON(w, h.logger, http.StatusOK, st)
}

func (h *Handler) ClearAuthError(w http.ResponseWriter, _ *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.session.ClearError())
}
