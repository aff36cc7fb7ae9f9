package shortener

import (
	"strings"

	"github.com/google/uuid"
)

// ShortIDLength is the number of leading hex characters forming a short id.
const ShortIDLength = 8

// UserID identifies the owner of links.
type UserID uuid.UUID

// NewUserID returns a random identifier.
func NewUserID() UserID {
	return UserID(uuid.New())
}

// ParseUserID accepts the canonical hyphenated form and the other forms
// understood by uuid.Parse.
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return UserID{}, validationError("user id", err)
	}

	return UserID(id), nil
}

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

// ShortID is the first eight lowercase hex characters of the canonical form.
func (u UserID) ShortID() string {
	return u.String()[:ShortIDLength]
}

// IsZero reports whether u is the zero identifier.
func (u UserID) IsZero() bool {
	return uuid.UUID(u) == uuid.Nil
}

// MatchesShortID reports whether prefix, at least ShortIDLength characters
// long, is a case-insensitive prefix of the canonical form.
func (u UserID) MatchesShortID(prefix string) bool {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < ShortIDLength {
		return false
	}

	return strings.HasPrefix(u.String(), prefix)
}
