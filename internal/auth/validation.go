package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

const passwordSpecials = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// NewValidator returns a validator that knows the "password" rule: at least
// MinPasswordLength characters with an ASCII digit, an ASCII upper-case letter
// and one of the characters in passwordSpecials.
func NewValidator() *validator.Validate {
	v := validator.New()
	// registration of a fixed, well-formed rule cannot fail
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	return v
}

// StrongPassword reports whether p satisfies the registration password rule.
// Length is counted in characters, not bytes.
func StrongPassword(p string) bool {
	var length int
	var digit, upper, special bool
	for _, r := range p {
		length++
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return length >= MinPasswordLength && digit && upper && special
}
