package shortener

import (
	"strings"
	"time"
)

// Status is the display state of a link, derived on every read.
type Status int

const (
	StatusActive Status = iota
	StatusExpired
	StatusQuotaExhausted
	StatusDeactivated
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusQuotaExhausted:
		return "quota exhausted"
	case StatusDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// LinkState is the raw field set of a Link, used for persistence.
type LinkState struct {
	URL       URL
	Code      Code
	Owner     UserID
	CreatedAt time.Time
	ExpiresAt time.Time
	MaxClicks int
	Clicks    int
	Active    bool
}

// Link is a shortened URL together with its expiry and click quota.
// Expiry is never cached: every predicate takes the instant to evaluate at.
type Link struct {
	url       URL
	code      Code
	owner     UserID
	createdAt time.Time
	expiresAt time.Time
	maxClicks int
	clicks    int
	active    bool
}

// NewLink creates an active link. The expiry must lie strictly after now.
func NewLink(url URL, code Code, owner UserID, expiresAt time.Time, maxClicks int, now time.Time) (*Link, error) {
	if !expiresAt.After(now) {
		return nil, validationError("expiration must be in the future", nil)
	}

	link, err := RestoreLink(LinkState{
		URL:       url,
		Code:      code,
		Owner:     owner,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		MaxClicks: maxClicks,
		Active:    true,
	})
	if err != nil {
		return nil, err
	}

	return link, nil
}

// RestoreLink rebuilds a link from stored state. Only structural invariants
// are checked, so links that have already expired can be loaded.
func RestoreLink(s LinkState) (*Link, error) {
	switch {
	case s.URL == "":
		return nil, validationError("url is required", nil)
	case s.Code == "":
		return nil, validationError("code is required", nil)
	case s.Owner.IsZero():
		return nil, validationError("owner is required", nil)
	case s.CreatedAt.IsZero() || s.ExpiresAt.IsZero():
		return nil, validationError("timestamps are required", nil)
	case s.MaxClicks <= 0:
		return nil, validationError("click quota must be positive", nil)
	case s.Clicks < 0 || s.Clicks > s.MaxClicks:
		return nil, validationError("click counter out of range", nil)
	}

	return &Link{
		url:       s.URL,
		code:      s.Code,
		owner:     s.Owner,
		createdAt: s.CreatedAt,
		expiresAt: s.ExpiresAt,
		maxClicks: s.MaxClicks,
		clicks:    s.Clicks,
		active:    s.Active && s.Clicks < s.MaxClicks,
	}, nil
}

// State returns a copy of the link's fields.
func (l *Link) State() LinkState {
	return LinkState{
		URL:       l.url,
		Code:      l.code,
		Owner:     l.owner,
		CreatedAt: l.createdAt,
		ExpiresAt: l.expiresAt,
		MaxClicks: l.maxClicks,
		Clicks:    l.clicks,
		Active:    l.active,
	}
}

func (l *Link) URL() URL             { return l.url }
func (l *Link) Code() Code           { return l.code }
func (l *Link) Owner() UserID        { return l.owner }
func (l *Link) CreatedAt() time.Time { return l.createdAt }
func (l *Link) ExpiresAt() time.Time { return l.expiresAt }
func (l *Link) MaxClicks() int       { return l.maxClicks }
func (l *Link) Clicks() int          { return l.clicks }
func (l *Link) Active() bool         { return l.active }

// IsOwnedBy reports whether owner created the link.
func (l *Link) IsOwnedBy(owner UserID) bool {
	return l.owner == owner
}

func (l *Link) IsExpired(now time.Time) bool {
	return !now.Before(l.expiresAt)
}

func (l *Link) CanBeAccessed(now time.Time) bool {
	return l.active && !l.IsExpired(now) && l.clicks < l.maxClicks
}

// Status applies the precedence deactivated, expired, quota exhausted, active.
// A link switched off by reaching its quota reports quota exhausted.
func (l *Link) Status(now time.Time) Status {
	switch {
	case !l.active && l.clicks < l.maxClicks:
		return StatusDeactivated
	case l.IsExpired(now):
		return StatusExpired
	case l.clicks >= l.maxClicks:
		return StatusQuotaExhausted
	default:
		return StatusActive
	}
}

// Unavailability returns why the link cannot be followed at now, if it cannot.
func (l *Link) Unavailability(now time.Time) (Reason, bool) {
	switch {
	case l.IsExpired(now):
		return ReasonExpired, true
	case l.clicks >= l.maxClicks:
		return ReasonQuotaExhausted, true
	case !l.active:
		return ReasonDeactivated, true
	default:
		return 0, false
	}
}

// IncrementClicks records one redirect. Reaching the quota deactivates the
// link in the same call.
func (l *Link) IncrementClicks(now time.Time) error {
	if reason, blocked := l.Unavailability(now); blocked {
		return &UnavailableError{Code: l.code, Reason: reason}
	}

	l.clicks++
	if l.clicks >= l.maxClicks {
		l.active = false
	}

	return nil
}

// UpdateExpiration moves the expiry when it lies after now and not after
// ceiling. It reports whether the link changed.
func (l *Link) UpdateExpiration(expiresAt, ceiling, now time.Time) bool {
	if expiresAt.IsZero() || !expiresAt.After(now) || expiresAt.After(ceiling) {
		return false
	}

	l.expiresAt = expiresAt

	return true
}

// UpdateURL never changes the destination: a link's target is fixed once
// issued. It always reports false.
func (l *Link) UpdateURL(URL) bool {
	return false
}

// Deactivate switches the link off regardless of quota and expiry.
func (l *Link) Deactivate() {
	l.active = false
}

func (l *Link) RemainingClicks() int {
	return max(l.maxClicks-l.clicks, 0)
}

func (l *Link) RemainingTime(now time.Time) time.Duration {
	return max(l.expiresAt.Sub(now), 0)
}

// ShortURL joins the base prefix and the code, e.g. "click.by/Ab3xY9".
func (l *Link) ShortURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + string(l.code)
}
