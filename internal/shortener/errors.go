package shortener

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("link not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("link unavailable")
	ErrPersistence      = errors.New("persistence failure")

	// ErrCodeTaken is returned by Repository.Create when the code is already stored.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrDuplicate is returned, wrapped in ErrValidation, when the owner
	// already holds a live link to the same URL.
	ErrDuplicate = errors.New("active link to this url already exists")
)

// Reason explains why an existing link cannot be followed.
type Reason int

const (
	ReasonExpired Reason = iota + 1
	ReasonQuotaExhausted
	ReasonDeactivated
)

func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonQuotaExhausted:
		return "quota exhausted"
	case ReasonDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// UnavailableError is returned when a link exists but fails CanBeAccessed.
// It matches ErrUnavailable with errors.Is.
type UnavailableError struct {
	Code   Code
	Reason Reason
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("link %s unavailable: %s", e.Code, e.Reason)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func validationError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrValidation, what)
	}

	return fmt.Errorf("%w: %s: %w", ErrValidation, what, err)
}
