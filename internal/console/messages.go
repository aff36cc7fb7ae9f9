package console

import (
	"errors"
	"strings"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/users"
)

// Describe renders err for the person at the prompt. Each error kind has
// one message; validation and duplicate errors append their detail.
func Describe(err error) string {
	var unavailable *shortener.UnavailableError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &unavailable):
		switch unavailable.Reason {
		case shortener.ReasonExpired:
			return "link " + string(unavailable.Code) + " has expired"
		case shortener.ReasonQuotaExhausted:
			return "link " + string(unavailable.Code) + " has used all of its clicks"
		default:
			return "link " + string(unavailable.Code) + " is no longer active"
		}
	case errors.Is(err, shortener.ErrDuplicate):
		return "you already have an active link to this URL: " + detail(err, shortener.ErrDuplicate)
	case errors.Is(err, shortener.ErrValidation):
		return "invalid input: " + detail(err, shortener.ErrValidation)
	case errors.Is(err, shortener.ErrNotFound):
		return "short link not found"
	case errors.Is(err, shortener.ErrPermissionDenied):
		return "only the owner of this link can change it"
	case errors.Is(err, shortener.ErrCodeTaken):
		return "could not allocate a free short code, please try again"
	case errors.Is(err, shortener.ErrPersistence):
		return "links could not be saved; changes are kept until restart"
	case errors.Is(err, users.ErrAmbiguous):
		return "several users match that id, type more characters"
	case errors.Is(err, users.ErrNotFound):
		return "user not found"
	case errors.Is(err, errUsage):
		return "wrong arguments, type 'help' for usage"
	default:
		return "unexpected error: " + err.Error()
	}
}

// detail returns the text following kind in a wrapped error message.
func detail(err, kind error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, kind.Error()); i >= 0 {
		msg = msg[i+len(kind.Error()):]
	}

	return strings.TrimLeft(msg, ": ")
}
