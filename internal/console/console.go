package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/serroba/shortlink/internal/health"
	"github.com/serroba/shortlink/internal/service"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// Opener shows a destination to the user, typically in a browser.
type Opener interface {
	Open(url string) error
}

// Services are the use cases the console drives.
type Services struct {
	Links  *service.LinkService
	Users  *service.UserService
	Stats  *service.StatsService
	Health *health.Monitor
}

// Console is the interactive front end. It owns the session and is the only
// place where errors are turned into messages.
type Console struct {
	links  *service.LinkService
	users  *service.UserService
	stats  *service.StatsService
	health *health.Monitor
	opener Opener
	cfg    service.Config
	logger *zap.Logger

	in    *bufio.Scanner
	out   io.Writer
	now   func() time.Time
	loc   *time.Location
	dates dateParser

	session service.Session
}

// New creates a console reading commands from in and writing to out.
// A nil opener disables automatic redirects.
func New(
	svc Services,
	cfg service.Config,
	opener Opener,
	in io.Reader,
	out io.Writer,
	logger *zap.Logger,
) *Console {
	c := &Console{
		links:  svc.Links,
		users:  svc.Users,
		stats:  svc.Stats,
		health: svc.Health,
		opener: opener,
		cfg:    cfg,
		logger: logger,
		in:     bufio.NewScanner(in),
		out:    out,
	}

	return c.WithClock(time.Now, time.Local)
}

// WithClock sets the clock and zone used to read and print dates.
func (c *Console) WithClock(now func() time.Time, loc *time.Location) *Console {
	c.now = now
	c.loc = loc
	c.dates = dateParser{layout: c.cfg.DateFormat, loc: loc, now: now}

	return c
}

// Session returns the current session.
func (c *Console) Session() service.Session {
	return c.session
}

// Run logs the user in and processes commands until exit, end of input or
// ctx is done.
func (c *Console) Run(ctx context.Context) error {
	c.println("URL shortener. Links expire and stop after their click limit.")
	c.login()
	c.printHelp()

	for ctx.Err() == nil {
		c.printf("\n%s> ", c.session.User.ShortID())

		line, ok := c.readLine()
		if !ok {
			c.println("\nend of input, bye")

			return c.in.Err()
		}

		if c.Execute(ctx, line) {
			return nil
		}
	}

	return nil
}

func (c *Console) login() {
	c.println("1) continue as an existing user")
	c.println("2) start as a new user")
	c.printf("choose [1/2]: ")

	choice, _ := c.readLine()
	if strings.TrimSpace(choice) == "1" {
		c.printf("user id (full or first %d characters): ", shortener.ShortIDLength)

		input, _ := c.readLine()

		result, err := c.users.Resume(input)
		if err == nil {
			c.session = result.Session
			c.reportSwitch(input, result)

			return
		}

		c.printError(err)
	}

	c.session = c.users.NewSession()
	c.printf("new user %s, keep this id to come back to your links\n", c.session.User)
}

// Execute runs one command line. It reports whether the console should stop.
func (c *Console) Execute(ctx context.Context, line string) bool {
	cmd := Parse(line)

	var err error

	switch cmd.Name {
	case "":
		return false
	case "shorten":
		err = c.shorten(ctx, cmd)
	case "go":
		err = c.follow(ctx, cmd)
	case "list":
		err = c.list(ctx)
	case "info":
		err = c.info(ctx, cmd)
	case "edit":
		err = c.edit(ctx, cmd)
	case "delete":
		err = c.remove(ctx, cmd)
	case "switch":
		err = c.switchUser(cmd)
	case "newuser":
		c.newUser()
	case "whoami":
		c.whoami()
	case "stats":
		err = c.printStats(ctx)
	case "config":
		c.printConfig()
	case "health":
		c.printHealth(ctx)
	case "help":
		c.printHelp()
	case "exit":
		c.println("bye")

		return true
	default:
		c.printf("unknown command %q, type 'help' for the list\n", cmd.Name)
	}

	if err != nil {
		c.logger.Debug("command failed", zap.String("command", cmd.Name), zap.Error(err))
		c.printError(err)
	}

	return false
}

func (c *Console) shorten(ctx context.Context, cmd Command) error {
	req, err := parseShorten(cmd.Args, c.dates)
	if err != nil {
		return err
	}

	link, err := c.links.Shorten(ctx, c.session, service.CreateRequest(req))
	if err != nil {
		return err
	}

	c.printf("created %s\n", c.links.ShortURL(link))
	c.printf("  -> %s\n", link.URL())
	c.printf("  expires %s, %d clicks allowed\n", c.formatTime(link.ExpiresAt()), link.MaxClicks())

	return nil
}

func (c *Console) follow(ctx context.Context, cmd Command) error {
	code, err := c.code(cmd)
	if err != nil {
		return err
	}

	link, err := c.links.Redirect(ctx, code)
	if err != nil {
		return err
	}

	destination := string(link.URL())
	c.printf("redirecting to %s (%d clicks left)\n", truncate(destination, 60), link.RemainingClicks())

	if !c.cfg.AutoRedirect || c.opener == nil {
		c.printf("url: %s\n", destination)

		return nil
	}

	if err := c.opener.Open(destination); err != nil {
		c.logger.Warn("browser launch failed", zap.Error(err))
		c.printf("could not open a browser, copy the address: %s\n", destination)
	}

	return nil
}

func (c *Console) info(ctx context.Context, cmd Command) error {
	code, err := c.code(cmd)
	if err != nil {
		return err
	}

	link, err := c.links.Info(ctx, code)
	if err != nil {
		return err
	}

	c.printLink(link)

	return nil
}

func (c *Console) edit(ctx context.Context, cmd Command) error {
	req, err := parseEdit(cmd.Args, c.dates)
	if err != nil {
		return err
	}

	code, err := c.links.ResolveCode(req.Code)
	if err != nil {
		return err
	}

	result, err := c.links.Edit(ctx, code, c.session.User, service.EditRequest{
		URL:       req.URL,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return err
	}

	if req.URL != "" && !result.URLChanged {
		c.printf("destinations are fixed, %s still points to %s\n",
			c.links.ShortURL(result.Link), result.Link.URL())
	}

	if result.ExpirationChanged {
		c.printf("%s now expires %s\n", c.links.ShortURL(result.Link), c.formatTime(result.Link.ExpiresAt()))
	}

	return nil
}

func (c *Console) remove(ctx context.Context, cmd Command) error {
	code, err := c.code(cmd)
	if err != nil {
		return err
	}

	c.printf("delete %s? [y/N]: ", cmd.Arg(0))

	answer, _ := c.readLine()
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		c.println("deletion cancelled")

		return nil
	}

	if err := c.links.Delete(ctx, code, c.session.User); err != nil {
		return err
	}

	c.println("link deleted")

	return nil
}

func (c *Console) switchUser(cmd Command) error {
	if len(cmd.Args) == 0 {
		return errUsage
	}

	result, err := c.users.Switch(c.session, cmd.Arg(0))
	if err != nil {
		return err
	}

	c.session = result.Session
	c.reportSwitch(cmd.Arg(0), result)

	return nil
}

func (c *Console) reportSwitch(input string, result service.SwitchResult) {
	switch {
	case result.Fallback:
		c.printf("no user matches %q, started new user %s\n", strings.TrimSpace(input), result.User.ID)
	case result.Created:
		c.printf("switched to new user %s\n", result.User.ShortID())
	default:
		c.printf("switched to user %s (%d links)\n", result.User.ShortID(), result.User.LinkCount())
	}
}

func (c *Console) newUser() {
	u := c.users.CreateUser()
	c.session.User = u.ID

	c.printf("new user %s\n", u.ID)
	c.printf("short id %s, keep the full id to come back to your links\n", u.ShortID())
}

func (c *Console) whoami() {
	u := c.users.Current(c.session)

	c.printf("user     %s\n", u.ID)
	c.printf("short id %s\n", u.ShortID())
	c.printf("links    %d\n", u.LinkCount())
}

func (c *Console) code(cmd Command) (shortener.Code, error) {
	if len(cmd.Args) == 0 {
		return "", errUsage
	}

	return c.links.ResolveCode(cmd.Arg(0))
}

func (c *Console) readLine() (string, bool) {
	if !c.in.Scan() {
		return "", false
	}

	return c.in.Text(), true
}

func (c *Console) printError(err error) {
	c.printf("error: %s\n", Describe(err))
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

func (c *Console) formatTime(t time.Time) string {
	return t.In(c.loc).Format(c.cfg.DateFormat)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}

	return string(r[:limit-3]) + "..."
}
