package console

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

// Command is one parsed input line.
type Command struct {
	Name string
	Args []string
}

var aliases = map[string]string{
	"sh":   "shorten",
	"s":    "shorten",
	"ls":   "list",
	"rm":   "delete",
	"quit": "exit",
	"?":    "help",
}

// Parse splits a line on whitespace and lowercases the command name.
func Parse(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}

	name := strings.ToLower(fields[0])
	if alias, ok := aliases[name]; ok {
		name = alias
	}

	return Command{Name: name, Args: fields[1:]}
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}

	return ""
}

var (
	errUsage = errors.New("usage")

	digits    = regexp.MustCompile(`^\d+$`)
	hours     = regexp.MustCompile(`^(?i)(\d+)h$`)
	dateOnly  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockOnly = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// shortenRequest is the decoded form of "shorten <url> [limits]". Zero
// fields fall back to the configured defaults.
type shortenRequest struct {
	URL       string
	TTLHours  int
	ExpiresAt time.Time
	MaxClicks int
}

// parseShorten accepts:
//
//	shorten <url>
//	shorten <url> <clicks>
//	shorten <url> <hours>h [clicks]
//	shorten <url> <hours> <clicks>
//	shorten <url> <date> [time] [clicks]
func parseShorten(args []string, dates dateParser) (shortenRequest, error) {
	if len(args) == 0 {
		return shortenRequest{}, errUsage
	}

	req := shortenRequest{URL: args[0]}
	rest := args[1:]

	var err error

	switch {
	case len(rest) == 0:
		return req, nil
	case len(rest) == 1 && digits.MatchString(rest[0]):
		req.MaxClicks, err = positive(rest[0], "click limit")
	case hours.MatchString(rest[0]):
		req.TTLHours, err = positive(hours.FindStringSubmatch(rest[0])[1], "lifetime")
		if err == nil && len(rest) > 1 {
			req.MaxClicks, err = positive(rest[1], "click limit")
		}
	case len(rest) == 2 && digits.MatchString(rest[0]) && digits.MatchString(rest[1]):
		req.TTLHours, err = positive(rest[0], "lifetime")
		if err == nil {
			req.MaxClicks, err = positive(rest[1], "click limit")
		}
	default:
		req.ExpiresAt, rest, err = dates.parseLeading(rest)
		if err == nil && len(rest) > 0 {
			req.MaxClicks, err = positive(rest[0], "click limit")
		}
	}

	if err != nil {
		return shortenRequest{}, err
	}

	return req, nil
}

// editRequest is the decoded form of "edit <code> ...".
type editRequest struct {
	Code      string
	URL       string
	ExpiresAt time.Time
}

// parseEdit accepts an explicit field keyword or infers it:
//
//	edit <code> url <new-url>
//	edit <code> expires <date> [time]
//	edit <code> <http(s)://new-url> [date [time]]
//	edit <code> <date> [time]
func parseEdit(args []string, dates dateParser) (editRequest, error) {
	if len(args) < 2 {
		return editRequest{}, errUsage
	}

	req := editRequest{Code: args[0]}
	rest := args[1:]

	var err error

	switch strings.ToLower(rest[0]) {
	case "url":
		if len(rest) < 2 {
			return editRequest{}, errUsage
		}

		req.URL = rest[1]
	case "expires", "expiry", "date":
		req.ExpiresAt, _, err = dates.parseLeading(rest[1:])
	default:
		if schemeLike.MatchString(rest[0]) {
			req.URL = rest[0]
			if len(rest) > 1 {
				req.ExpiresAt, _, err = dates.parseLeading(rest[1:])
			}
		} else {
			req.ExpiresAt, _, err = dates.parseLeading(rest)
		}
	}

	if err != nil {
		return editRequest{}, err
	}

	return req, nil
}

var schemeLike = regexp.MustCompile(`(?i)^(https?|ftp)://.+`)

func positive(s, what string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive whole number", shortener.ErrValidation, what)
	}

	return n, nil
}

// dateParser reads dates typed at the prompt in the local zone.
type dateParser struct {
	layout string
	loc    *time.Location
	now    func() time.Time
}

// parseLeading consumes a date, optionally followed by a time, from the
// front of args and returns the remaining arguments. A bare date means the
// end of that day (23:59); a bare time means today.
func (p dateParser) parseLeading(args []string) (time.Time, []string, error) {
	if len(args) == 0 {
		return time.Time{}, nil, errUsage
	}

	if len(args) > 1 && dateOnly.MatchString(args[0]) && clockOnly.MatchString(args[1]) {
		t, err := p.parse(args[0] + " " + args[1])

		return t, args[2:], err
	}

	t, err := p.parse(args[0])

	return t, args[1:], err
}

func (p dateParser) parse(s string) (time.Time, error) {
	switch {
	case dateOnly.MatchString(s):
		return p.in("2006-01-02 15:04", s+" 23:59")
	case clockOnly.MatchString(s):
		t, err := p.in("15:04", s)
		if err != nil {
			return time.Time{}, err
		}

		today := p.now().In(p.loc)

		return time.Date(today.Year(), today.Month(), today.Day(), t.Hour(), t.Minute(), 0, 0, p.loc), nil
	}

	for _, layout := range []string{p.layout, "2006-01-02 15:04", "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if layout == "" {
			continue
		}

		if t, err := p.in(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unrecognized date %q, use YYYY-MM-DD HH:MM", shortener.ErrValidation, s)
}

func (p dateParser) in(layout, s string) (time.Time, error) {
	t, err := time.ParseInLocation(layout, s, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unrecognized date %q, use YYYY-MM-DD HH:MM", shortener.ErrValidation, s)
	}

	return t, nil
}
