package console

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

func (c *Console) list(ctx context.Context) error {
	links, err := c.links.List(ctx, c.session.User)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		c.println("you have no links yet, try: shorten <url>")

		return nil
	}

	now := c.now()
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "your links (%d)\n", len(links))
	_, _ = fmt.Fprintln(w, "SHORT LINK\tURL\tCLICKS\tSTATUS\tEXPIRES")

	for _, link := range links {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			c.links.ShortURL(link),
			truncate(string(link.URL()), 40),
			link.Clicks(), link.MaxClicks(),
			link.Status(now),
			c.formatTime(link.ExpiresAt()),
		)
	}

	return w.Flush()
}

func (c *Console) printLink(link *shortener.Link) {
	now := c.now()

	owner := link.Owner().ShortID()
	if link.IsOwnedBy(c.session.User) {
		owner += " (you)"
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(w, "short link\t%s\n", c.links.ShortURL(link))
	_, _ = fmt.Fprintf(w, "url\t%s\n", link.URL())
	_, _ = fmt.Fprintf(w, "created\t%s\n", c.formatTime(link.CreatedAt()))
	_, _ = fmt.Fprintf(w, "expires\t%s (%s left)\n",
		c.formatTime(link.ExpiresAt()), link.RemainingTime(now).Truncate(time.Minute))
	_, _ = fmt.Fprintf(w, "status\t%s\n", link.Status(now))
	_, _ = fmt.Fprintf(w, "clicks\t%d/%d (%d left)\n", link.Clicks(), link.MaxClicks(), link.RemainingClicks())
	_, _ = fmt.Fprintf(w, "owner\t%s\n", owner)
	_ = w.Flush()
}

func (c *Console) printStats(ctx context.Context) error {
	global, err := c.stats.Global(ctx)
	if err != nil {
		return err
	}

	mine, err := c.stats.ForUser(ctx, c.session.User)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	_, _ = fmt.Fprintln(w, "all links")
	_, _ = fmt.Fprintf(w, "  total\t%d\n", global.TotalLinks)
	_, _ = fmt.Fprintf(w, "  active\t%d\n", global.ActiveLinks)
	_, _ = fmt.Fprintf(w, "  expired\t%d\n", global.ExpiredLinks)
	_, _ = fmt.Fprintf(w, "  users\t%d\n", global.TotalUsers)
	_, _ = fmt.Fprintln(w, "your links")
	_, _ = fmt.Fprintf(w, "  total\t%d\n", mine.TotalLinks)
	_, _ = fmt.Fprintf(w, "  active\t%d\n", mine.ActiveLinks)
	_, _ = fmt.Fprintf(w, "  clicks\t%d\n", mine.TotalClicks)

	return w.Flush()
}

func (c *Console) printConfig() {
	cfg := c.stats.Config()

	w := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	_, _ = fmt.Fprintf(w, "base url\t%s\n", cfg.BaseURL)
	_, _ = fmt.Fprintf(w, "default lifetime\t%s\n", cfg.DefaultTTL)
	_, _ = fmt.Fprintf(w, "default clicks\t%d\n", cfg.DefaultMaxClicks)
	_, _ = fmt.Fprintf(w, "code length\t%d\n", cfg.CodeLength)
	_, _ = fmt.Fprintf(w, "max lifetime\t%d days\n", int(cfg.MaxTTL/(24*time.Hour)))
	_, _ = fmt.Fprintf(w, "housekeeping\tevery %s\n", cfg.HousekeepingInterval)
	_, _ = fmt.Fprintf(w, "storage\t%s (%s)\n", cfg.StorageDriver, cfg.StorageLocation)
	_, _ = fmt.Fprintf(w, "auto redirect\t%t\n", cfg.AutoRedirect)
	_ = w.Flush()
}

func (c *Console) printHealth(ctx context.Context) {
	if c.health == nil {
		c.println("no health checks configured")

		return
	}

	report := c.health.Check(ctx)

	names := make([]string, 0, len(report.Components))
	for name := range report.Components {
		names = append(names, name)
	}

	slices.Sort(names)

	c.printf("status %s\n", report.Status)

	for _, name := range names {
		c.printf("  %s: %s\n", name, report.Components[name])
	}
}

func (c *Console) printHelp() {
	c.println(`commands:
  shorten <url> [clicks]                  shorten with default lifetime
  shorten <url> <hours>h [clicks]         live for a number of hours
  shorten <url> <hours> <clicks>          hours and click limit
  shorten <url> <date> [time] [clicks]    expire at YYYY-MM-DD [HH:MM]
  go <code|short link>                    follow a link (counts a click)
  list                                    your links
  info <code|short link>                  link details
  edit <code> url <new url>               check a new destination (links keep theirs)
  edit <code> expires <date> [time]       change the expiration
  delete <code|short link>                delete one of your links
  switch <user id>                        act as another user
  newuser                                 start as a new user
  whoami                                  current user
  stats                                   usage statistics
  config                                  effective configuration
  health                                  storage and event backend status
  help                                    this text
  exit                                    quit`)
}
