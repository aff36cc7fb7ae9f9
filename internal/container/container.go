package container

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/analytics/sink"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/housekeeping"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/service"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/serroba/shortlink/internal/users"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	pingTimeout    = 2 * time.Second
	sessionIDSize  = 12
)

// RedisConn owns the shared Redis client so the injector can close it.
type RedisConn struct {
	*redis.Client
}

func (c *RedisConn) Shutdown() error {
	return c.Close()
}

// PostgresConn owns the connection pool so the injector can close it.
type PostgresConn struct {
	*pgxpool.Pool
}

func (c *PostgresConn) Shutdown() error {
	c.Close()

	return nil
}

// Storage is the configured snapshot backend and its health probe.
type Storage struct {
	Snapshot store.Snapshotter
	Checker  health.Checker
}

// Register provides the options and every package an interactive process needs.
func Register(injector *do.Injector, options *Options) {
	do.ProvideValue(injector, options)
	LoggerPackage(injector)
	RedisPackage(injector)
	PostgresPackage(injector)
	StoragePackage(injector)
	EventsPackage(injector)
	ServicePackage(injector)
	HousekeepingPackage(injector)
	HealthPackage(injector)
	SinkPackage(injector)
	ConsumerGroupPackage(injector)
}

func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a console (development) or JSON (production) logger.
func NewLogger(format, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == LogConsole {
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}

		cfg.Level = lvl
	}

	return cfg.Build()
}

func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisConn, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisConn{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresConn, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		return &PostgresConn{Pool: pool}, nil
	})
}

// StoragePackage provides the snapshot backend chosen by --storage-driver
// and the link store loaded from it.
func StoragePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Storage, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.StorageDriver {
		case StorageRedis:
			conn := do.MustInvoke[*RedisConn](i)

			return &Storage{
				Snapshot: store.NewRedisSnapshot(conn.Client, opts.RedisKey),
				Checker:  health.NewRedisChecker(conn.Client),
			}, nil
		case StoragePostgres:
			conn := do.MustInvoke[*PostgresConn](i)
			snapshot := store.NewPostgresSnapshot(conn.Pool)

			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()

			if err := snapshot.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("postgres schema: %w", err)
			}

			return &Storage{Snapshot: snapshot, Checker: health.NewPostgresChecker(conn.Pool)}, nil
		default:
			snapshot := store.NewFileSnapshot(opts.StorageFile)

			return &Storage{Snapshot: snapshot, Checker: snapshot}, nil
		}
	})

	do.Provide(i, func(i *do.Injector) (*store.LinkStore, error) {
		storage := do.MustInvoke[*Storage](i)
		logger := do.MustInvoke[*zap.Logger](i)

		links := store.NewLinkStore(storage.Snapshot, logger.Named("store"))

		// An unreadable snapshot leaves the store empty; startup goes on.
		if _, err := links.Load(context.Background()); err != nil {
			logger.Warn("starting with an empty link store", zap.Error(err))
		}

		return links, nil
	})

	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		return do.Invoke[*store.LinkStore](i)
	})
}

// EventsPackage provides the lifecycle event publisher and subscriber for
// --events-driver. The memory driver shares one in-process channel.
func EventsPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		// Publishes wait for the sink, so notices print before the next
		// prompt. Sinks log their own failures instead of nacking.
		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, messaging.NewZapLogger(logger)), nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.EventsDriver != EventsRedis {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client:     do.MustInvoke[*RedisConn](i).Client,
			Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
		}, messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)))
		if err != nil {
			return nil, fmt.Errorf("redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (message.Subscriber, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.EventsDriver != EventsRedis {
			return do.MustInvoke[*gochannel.GoChannel](i), nil
		}

		return redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        do.MustInvoke[*RedisConn](i).Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: opts.EventsGroup,
		}, messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i)))
	})

	do.Provide(i, func(i *do.Injector) (analytics.Publishers, error) {
		return analytics.NewPublishers(do.MustInvoke[*messaging.PublisherGroup](i).Publisher()), nil
	})
}

func ServicePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (service.Config, error) {
		return do.MustInvoke[*Options](i).ToConfig(), nil
	})

	do.Provide(i, func(_ *do.Injector) (*users.Directory, error) {
		return users.NewDirectory(), nil
	})

	do.Provide(i, func(_ *do.Injector) (*shortener.Generator, error) {
		return shortener.NewGenerator(), nil
	})

	do.Provide(i, func(i *do.Injector) (*service.LinkService, error) {
		return service.NewLinkService(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[*users.Directory](i),
			do.MustInvoke[*shortener.Generator](i),
			do.MustInvoke[analytics.Publishers](i),
			do.MustInvoke[service.Config](i),
			do.MustInvoke[*zap.Logger](i).Named("links"),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*service.UserService, error) {
		sessionID, err := nanoid.Standard(sessionIDSize)
		if err != nil {
			return nil, err
		}

		svc := service.NewUserService(
			do.MustInvoke[*users.Directory](i),
			do.MustInvoke[shortener.Repository](i),
			sessionID,
			do.MustInvoke[*zap.Logger](i).Named("users"),
		)

		if _, err := svc.SyncFromLinks(context.Background()); err != nil {
			return nil, err
		}

		return svc, nil
	})

	do.Provide(i, func(i *do.Injector) (*service.StatsService, error) {
		return service.NewStatsService(
			do.MustInvoke[shortener.Repository](i),
			do.MustInvoke[*users.Directory](i),
			do.MustInvoke[service.Config](i),
		), nil
	})
}

func HousekeepingPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*housekeeping.Sweeper, error) {
		opts := do.MustInvoke[*Options](i)

		return housekeeping.NewSweeper(
			do.MustInvoke[*store.LinkStore](i),
			do.MustInvoke[*users.Directory](i),
			do.MustInvoke[analytics.Publishers](i),
			time.Duration(opts.HousekeepingMinutes)*time.Minute,
			opts.EvictExpired,
			do.MustInvoke[*zap.Logger](i).Named("housekeeping"),
		), nil
	})
}

func HealthPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*health.Monitor, error) {
		opts := do.MustInvoke[*Options](i)
		components := []health.Component{
			{Name: "storage", Checker: do.MustInvoke[*Storage](i).Checker},
		}

		if opts.EventsDriver == EventsRedis {
			components = append(components, health.Component{
				Name:    "events",
				Checker: health.NewRedisChecker(do.MustInvoke[*RedisConn](i).Client),
			})
		}

		return health.NewMonitor(pingTimeout, do.MustInvoke[*zap.Logger](i).Named("health"), components...), nil
	})
}

// SinkPackage provides the default event sink: log every event and print
// notices for links that stop working.
func SinkPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (analytics.Sink, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return sink.Fanout{
			sink.NewLogger(logger.Named("events")),
			sink.NewNotifier(os.Stdout, opts.BaseURL, logger.Named("notices")),
		}, nil
	})
}

// ConsumerGroupPackage provides the background group consuming lifecycle
// events into the registered analytics.Sink.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.Group, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		subscriber := do.MustInvoke[message.Subscriber](i)

		group := messaging.NewGroup(logger.Named("background"), subscriber)
		analytics.Register(group, subscriber, do.MustInvoke[analytics.Sink](i), logger.Named("consumer"))

		return group, nil
	})
}
