package shortener

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxURLLength is the longest destination accepted after normalization.
const MaxURLLength = 2048

// URL is a normalized absolute destination.
type URL string

var (
	noiseChars   = regexp.MustCompile(`[\p{Cc}\s]+`)
	schemePrefix = regexp.MustCompile(`(?i)^(https?|ftp)://`)
)

// NewURL strips whitespace and control characters and prepends https:// when
// no supported scheme is present. Normalizing a normalized URL is a no-op.
func NewURL(raw string) (URL, error) {
	cleaned := noiseChars.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned != "" && !schemePrefix.MatchString(cleaned) {
		cleaned = "https://" + cleaned
	}

	err := validation.Validate(cleaned,
		validation.Required.Error("url is required"),
		validation.RuneLength(1, MaxURLLength).Error("url is too long"),
	)
	if err != nil {
		return "", validationError("url", err)
	}

	return URL(cleaned), nil
}

func (u URL) String() string {
	return string(u)
}

// ValidateDestination performs the structural checks applied before a link is
// created: supported scheme, a resolvable-looking host and a sane port.
func ValidateDestination(u URL) error {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return validationError("malformed url", err)
	}

	if err := validation.Validate(strings.ToLower(parsed.Scheme),
		validation.Required,
		validation.In("http", "https", "ftp").Error("scheme must be http, https or ftp"),
	); err != nil {
		return validationError("url scheme", err)
	}

	if err := validation.Validate(parsed.Hostname(),
		validation.Required.Error("host is required"),
		is.Host,
		validation.By(qualifiedHost),
	); err != nil {
		return validationError("url host", err)
	}

	if err := validation.Validate(parsed.Port(), is.Port); err != nil {
		return validationError("url port", err)
	}

	return nil
}

func qualifiedHost(value interface{}) error {
	host, _ := value.(string)
	if host == "localhost" || is.IP.Validate(host) == nil {
		return nil
	}

	dot := strings.LastIndexByte(host, '.')
	if dot <= 0 || dot == len(host)-1 {
		return errors.New("host must contain a top-level domain")
	}

	return nil
}
