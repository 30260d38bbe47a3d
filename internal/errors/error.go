// Package errors provides sentinel errors shared across the storefront packages.
package errors

import "errors"

var ErrKeyNotFound = errors.New("key not found")
var ErrStorageRead = errors.New("failed to read from storage")
var ErrStorageWrite = errors.New("failed to write to storage")
var ErrStorageRemove = errors.New("failed to remove from storage")

var ErrMalformedSnapshot = errors.New("malformed snapshot")

var ErrProductNotFound = errors.New("product not found")
var ErrCatalogUnavailable = errors.New("catalog service unavailable")

var ErrUserNotFound = errors.New("user not found")
var ErrInvalidCredentials = errors.New("invalid username or password")
