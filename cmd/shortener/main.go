package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/samber/do"
	"github.com/serroba/shortlink/internal/console"
	"github.com/serroba/shortlink/internal/container"
	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/housekeeping"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/service"
	"go.uber.org/zap"
)

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if err := options.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		injector := do.New()
		container.Register(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)
		ctx, cancel := context.WithCancel(context.Background())

		var once sync.Once

		stop := func() {
			once.Do(func() {
				cancel()

				if err := injector.Shutdown(); err != nil {
					logger.Error("service shutdown error", zap.Error(err))
				}

				logger.Info("shutdown complete")
				_ = logger.Sync()
			})
		}

		hooks.OnStart(func() {
			defer stop()

			group := do.MustInvoke[*messaging.Group](injector)
			group.Add(do.MustInvoke[*housekeeping.Sweeper](injector))

			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start background group", zap.Error(err))
			}

			cfg := do.MustInvoke[service.Config](injector)

			var opener console.Opener
			if cfg.AutoRedirect {
				opener = console.NewBrowser()
			}

			c := console.New(console.Services{
				Links:  do.MustInvoke[*service.LinkService](injector),
				Users:  do.MustInvoke[*service.UserService](injector),
				Stats:  do.MustInvoke[*service.StatsService](injector),
				Health: do.MustInvoke[*health.Monitor](injector),
			}, cfg, opener, os.Stdin, os.Stdout, logger.Named("console"))

			logger.Info("console starting",
				zap.String("storage", cfg.StorageDriver),
				zap.String("events", options.EventsDriver),
			)

			if err := c.Run(ctx); err != nil {
				logger.Error("console stopped", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			stop()
		})
	})

	cli.Run()
}
