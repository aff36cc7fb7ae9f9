package shortener

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	MinCodeLength = 3
	MaxCodeLength = 10
)

// Code is the alphanumeric identifier of a link.
type Code string

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func codeRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("code is required"),
		validation.Length(MinCodeLength, MaxCodeLength),
		validation.Match(alphanumeric).Error("code must be alphanumeric"),
	}
}

// NewCode validates a code typed by a user or produced by the generator.
func NewCode(raw string) (Code, error) {
	value := strings.TrimSpace(raw)
	if err := validation.Validate(value, codeRules()...); err != nil {
		return "", validationError("short code", err)
	}

	return Code(value), nil
}

// IsValidCode reports whether s could name a link, without trimming.
func IsValidCode(s string) bool {
	return validation.Validate(s, codeRules()...) == nil
}

// CodeFromShortURL extracts the code from a pasted short link such as
// "https://click.by/Ab3xY9?ref=mail". The scheme and base prefix are removed,
// then anything after the first path, query or fragment separator.
func CodeFromShortURL(shortURL, baseURL string) (Code, error) {
	value := stripScheme(strings.TrimSpace(shortURL))
	base := stripScheme(strings.TrimSpace(baseURL))

	if base != "" && len(value) >= len(base) && strings.EqualFold(value[:len(base)], base) {
		value = value[len(base):]
	}

	value = strings.TrimLeft(value, "/")
	if i := strings.IndexAny(value, "/?#"); i >= 0 {
		value = value[:i]
	}

	return NewCode(value)
}

func (c Code) String() string {
	return string(c)
}

func stripScheme(s string) string {
	if loc := schemePrefix.FindStringIndex(s); loc != nil {
		return s[loc[1]:]
	}

	return s
}
