package container

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/serroba/shortlink/internal/service"
	"github.com/serroba/shortlink/internal/shortener"
)

const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"

	EventsMemory = "memory"
	EventsRedis  = "redis"

	LogConsole = "console"
	LogJSON    = "json"
)

// Options are read from flags and SERVICE_* environment variables.
type Options struct {
	BaseURL          string `default:"click.by/" help:"Prefix of generated short links"      short:"b"`
	DefaultTTLHours  int    `default:"24"        help:"Lifetime of links created without one"`
	DefaultMaxClicks int    `default:"100"       help:"Click quota of links created without one"`
	CodeLength       int    `default:"6"         help:"Length of generated short codes"     short:"c"`
	MaxTTLDays       int    `default:"365"       help:"Furthest allowed expiration, in days"`

	StorageDriver string `default:"file"                                              help:"Snapshot backend: file, redis or postgres" short:"s"`
	StorageFile   string `default:"data/url_shortener_data.json"                      help:"Snapshot file for the file backend"`
	RedisAddr     string `default:"localhost:6379"                                    help:"Redis server address"                      short:"r"`
	RedisKey      string `default:"shortlink:snapshot"                                help:"Redis key holding the snapshot"`
	DatabaseURL   string `default:"postgres://localhost:5432/shortlink?sslmode=disable" help:"PostgreSQL connection string"`

	EventsDriver string `default:"memory"            help:"Lifecycle event transport: memory or redis"`
	EventsGroup  string `default:"shortlink-console" help:"Redis stream consumer group"`

	HousekeepingMinutes int  `default:"60"    help:"Minutes between housekeeping sweeps"`
	EvictExpired        bool `default:"false" help:"Delete expired links during housekeeping"`

	AutoRedirect bool   `default:"true"             help:"Open the destination in a browser on go"`
	DateFormat   string `default:"2006-01-02 15:04" help:"Layout used to print and parse dates"`

	LogFormat string `default:"console" help:"Log encoding: console or json"`
	LogLevel  string `default:"warn"    help:"Minimum log level"`
}

// Validate rejects option combinations the application cannot start with.
func (o *Options) Validate() error {
	err := validation.ValidateStruct(o,
		validation.Field(&o.BaseURL, validation.Required),
		validation.Field(&o.DefaultTTLHours, validation.Required, validation.Min(1)),
		validation.Field(&o.DefaultMaxClicks, validation.Required, validation.Min(1)),
		validation.Field(&o.CodeLength, validation.Required,
			validation.Min(shortener.MinGeneratedLength), validation.Max(shortener.MaxGeneratedLength)),
		validation.Field(&o.MaxTTLDays, validation.Required, validation.Min(1)),
		validation.Field(&o.StorageDriver, validation.Required,
			validation.In(StorageFile, StorageRedis, StoragePostgres)),
		validation.Field(&o.StorageFile, validation.When(o.StorageDriver == StorageFile, validation.Required)),
		validation.Field(&o.RedisAddr, validation.When(
			o.StorageDriver == StorageRedis || o.EventsDriver == EventsRedis, validation.Required)),
		validation.Field(&o.DatabaseURL, validation.When(o.StorageDriver == StoragePostgres, validation.Required)),
		validation.Field(&o.EventsDriver, validation.Required, validation.In(EventsMemory, EventsRedis)),
		validation.Field(&o.EventsGroup, validation.When(o.EventsDriver == EventsRedis, validation.Required)),
		validation.Field(&o.HousekeepingMinutes, validation.Required, validation.Min(1)),
		validation.Field(&o.DateFormat, validation.Required),
		validation.Field(&o.LogFormat, validation.In(LogConsole, LogJSON)),
	)
	if err != nil {
		return fmt.Errorf("%w: options: %w", shortener.ErrValidation, err)
	}

	return o.ToConfig().Validate()
}

// ToConfig converts options into the services' configuration.
func (o *Options) ToConfig() service.Config {
	location := o.StorageFile

	switch o.StorageDriver {
	case StorageRedis:
		location = o.RedisAddr + "/" + o.RedisKey
	case StoragePostgres:
		location = o.DatabaseURL
	}

	return service.Config{
		BaseURL:              o.BaseURL,
		DefaultTTL:           time.Duration(o.DefaultTTLHours) * time.Hour,
		DefaultMaxClicks:     o.DefaultMaxClicks,
		CodeLength:           o.CodeLength,
		MaxTTL:               time.Duration(o.MaxTTLDays) * 24 * time.Hour,
		HousekeepingInterval: time.Duration(o.HousekeepingMinutes) * time.Minute,
		StorageDriver:        o.StorageDriver,
		StorageLocation:      location,
		AutoRedirect:         o.AutoRedirect,
		DateFormat:           o.DateFormat,
	}
}
