// services/errors.go
package services

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Error kinds surfaced by the core services. Handlers map these to HTTP
// status codes; nothing below the handler layer renders user-facing text.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMethodNotEligible = errors.New("unlock method not eligible")
	ErrAlreadyResolved   = errors.New("intent already resolved")
	ErrDuplicateIntent   = errors.New("duplicate pending intent")
	// ErrTransientStorage wraps storage conflicts and timeouts; safe to
	// retry with the same idempotency key.
	ErrTransientStorage = errors.New("transient storage error")
	ErrRateLimited      = errors.New("daily limit reached")
	ErrForbidden        = errors.New("caller not allowed")
	ErrInvalidInput     = errors.New("invalid input")
)

// maxTransientRetries bounds the internal retry loop for storage conflicts.
const maxTransientRetries = 3

// isTransientStorageErr reports whether a storage error is worth retrying
// with the same idempotency key (lock contention, serialization failures).
// Unique violations count: rerunning the transaction lets the idempotent
// re-check path pick up the row the concurrent winner committed.
func isTransientStorageErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// StatusForError maps service error kinds to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, ErrMethodNotEligible), errors.Is(err, ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrDuplicateIntent):
		return fiber.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrTransientStorage):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// FailJSON writes the standard JSON error body for a service error.
func FailJSON(c *fiber.Ctx, err error) error {
	return c.Status(StatusForError(err)).JSON(fiber.Map{"error": err.Error()})
}
