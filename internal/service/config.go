package service

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/serroba/shortlink/internal/shortener"
)

// Config is the effective runtime configuration. It is built once at
// startup and never modified afterwards.
type Config struct {
	BaseURL              string
	DefaultTTL           time.Duration
	DefaultMaxClicks     int
	CodeLength           int
	MaxTTL               time.Duration
	HousekeepingInterval time.Duration
	StorageDriver        string
	StorageLocation      string
	AutoRedirect         bool
	DateFormat           string
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Hour)),
		validation.Field(&c.DefaultMaxClicks, validation.Required, validation.Min(1)),
		validation.Field(&c.CodeLength, validation.Required,
			validation.Min(shortener.MinGeneratedLength), validation.Max(shortener.MaxGeneratedLength)),
		validation.Field(&c.MaxTTL, validation.Required, validation.Min(c.DefaultTTL)),
		validation.Field(&c.HousekeepingInterval, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DateFormat, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: config: %w", shortener.ErrValidation, err)
	}

	return nil
}
