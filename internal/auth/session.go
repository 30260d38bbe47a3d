// Package auth is a device-local mock of user registration and login.
// It performs no credential verification and must not be treated as a
// security boundary: any stored username logs in with any password.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/storage"
	"github.com/go-playground/validator/v10"
)

// UserKey is the storage key of the registered user profile.
const UserKey = "user"

// Messages surfaced through State.Error.
const (
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid username or password"
)

// User is the registered profile. The password is never part of it.
type User struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

// State is the session as seen by the UI.
type State struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsInitialized   bool   `json:"isInitialized"`
	Error           string `json:"error,omitempty"`
}

// RegisterInput is a registration form submission.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName"`
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Password  string `json:"password" validate:"required,password"`
	Address   string `json:"address"`
}

// LoginInput is a login form submission.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session holds the current auth state and the stored user profile.
type Session struct {
	mu       sync.Mutex
	kv       storage.KV
	state    State
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSession(kv storage.KV, logger *slog.Logger) *Session {
	return &Session{
		kv:       kv,
		validate: NewValidator(),
		logger:   logger.With("component", "auth"),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// CheckAuthState restores a stored user, if any, and marks the session initialized.
func (s *Session) CheckAuthState(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.loadUser(ctx)
	if err == nil {
		s.state.User = u
		s.state.IsAuthenticated = true
	} else if !errors.Is(err, storeerrors.ErrKeyNotFound) {
		s.logger.WarnContext(ctx, "Failed to restore stored user", "error", err)
	}
	s.state.IsInitialized = true
	return s.state.clone()
}

// Register stores the profile from in and signs the user in.
// Returns a validator.ValidationErrors if in breaks the registration rules.
func (s *Session) Register(ctx context.Context, in RegisterInput) (State, error) {
	if err := s.validate.Struct(in); err != nil {
		return s.State(), err
	}
	u := User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Username:  in.Username,
		Email:     in.Email,
		Address:   in.Address,
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return s.State(), fmt.Errorf("failed to encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{User: &u, IsAuthenticated: true, IsInitialized: true}
	wctx, cancel := storage.WriteContext(ctx)
	defer cancel()
	if err := s.kv.Set(wctx, UserKey, raw); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist user", "error", err)
	}
	s.logger.InfoContext(ctx, "User registered", "username", u.Username)
	return s.state.clone(), nil
}

// Login signs in the stored user when the username matches.
// Returns ErrUserNotFound if nobody is registered and ErrInvalidCredentials on a
// username mismatch. In both cases State.Error carries a display message.
func (s *Session) Login(ctx context.Context, in LoginInput) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsInitialized = true
	u, err := s.loadUser(ctx)
	if err != nil {
		if !errors.Is(err, storeerrors.ErrKeyNotFound) {
			s.logger.WarnContext(ctx, "Failed to read stored user", "error", err)
		}
		s.state.Error = msgUserNotFound
		return s.state.clone(), storeerrors.ErrUserNotFound
	}
	if u.Username != in.Username {
		s.state.Error = msgInvalidCredentials
		return s.state.clone(), storeerrors.ErrInvalidCredentials
	}
	s.state.User = u
	s.state.IsAuthenticated = true
	s.state.Error = ""
	return s.state.clone(), nil
}

// Logout signs out and forgets the stored profile.
func (s *Session) Logout(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.User = nil
	s.state.IsAuthenticated = false
	s.state.IsInitialized = true
	wctx, cancel := storage.WriteContext(ctx)
	defer cancel()
	if err := s.kv.Remove(wctx, UserKey); err != nil {
		s.logger.ErrorContext(ctx, "Failed to remove stored user", "error", err)
	}
	return s.state.clone()
}

// ClearError resets the last login error.
func (s *Session) ClearError() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
	return s.state.clone()
}

func (s *Session) loadUser(ctx context.Context) (*User, error) {
	raw, err := s.kv.Get(ctx, UserKey)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrMalformedSnapshot, err)
	}
	return &u, nil
}

func (st State) clone() State {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
