package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/users"
	"go.uber.org/zap"
)

// createAttempts bounds regeneration when another owner already holds the
// generated code.
const createAttempts = 5

// LinkService implements the link use cases: create, redirect, inspect,
// edit, delete and list.
type LinkService struct {
	// createMu makes the duplicate guard and the insert one step.
	createMu sync.Mutex

	links     shortener.Repository
	users     *users.Directory
	generator *shortener.Generator
	events    analytics.Publishers
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger
}

// NewLinkService wires the link use cases.
func NewLinkService(
	links shortener.Repository,
	directory *users.Directory,
	generator *shortener.Generator,
	events analytics.Publishers,
	cfg Config,
	logger *zap.Logger,
) *LinkService {
	return &LinkService{
		links:     links,
		users:     directory,
		generator: generator,
		events:    events,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock overrides the service clock.
func (s *LinkService) WithClock(now func() time.Time) *LinkService {
	s.now = now

	return s
}

// CreateRequest describes a link to create. Zero limits fall back to the
// configured defaults; ExpiresAt wins over TTLHours.
type CreateRequest struct {
	URL       string
	TTLHours  int
	ExpiresAt time.Time
	MaxClicks int
}

// Shorten creates a link for the session's user.
func (s *LinkService) Shorten(ctx context.Context, session Session, req CreateRequest) (*shortener.Link, error) {
	resolve := after(s.cfg.DefaultTTL)

	switch {
	case !req.ExpiresAt.IsZero():
		resolve = at(req.ExpiresAt)
	case req.TTLHours != 0:
		resolve = s.afterHours(req.TTLHours)
	}

	maxClicks := req.MaxClicks
	if maxClicks == 0 {
		maxClicks = s.cfg.DefaultMaxClicks
	}

	return s.create(ctx, session.User, req.URL, resolve, maxClicks)
}

// ShortenDefault creates a link with the configured TTL and click quota.
func (s *LinkService) ShortenDefault(ctx context.Context, owner shortener.UserID, rawURL string) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, after(s.cfg.DefaultTTL), s.cfg.DefaultMaxClicks)
}

// ShortenWithTTL creates a link living ttlHours with the default quota.
func (s *LinkService) ShortenWithTTL(
	ctx context.Context, owner shortener.UserID, rawURL string, ttlHours int,
) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, s.afterHours(ttlHours), s.cfg.DefaultMaxClicks)
}

// ShortenWithTTLAndClicks creates a link living ttlHours with maxClicks.
func (s *LinkService) ShortenWithTTLAndClicks(
	ctx context.Context, owner shortener.UserID, rawURL string, ttlHours, maxClicks int,
) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, s.afterHours(ttlHours), maxClicks)
}

// ShortenWithClicks creates a link with the default TTL and maxClicks.
func (s *LinkService) ShortenWithClicks(
	ctx context.Context, owner shortener.UserID, rawURL string, maxClicks int,
) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, after(s.cfg.DefaultTTL), maxClicks)
}

// ShortenWithExpiration creates a link expiring at expiresAt with the default quota.
func (s *LinkService) ShortenWithExpiration(
	ctx context.Context, owner shortener.UserID, rawURL string, expiresAt time.Time,
) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, at(expiresAt), s.cfg.DefaultMaxClicks)
}

// ShortenWithExpirationAndClicks creates a link with both limits explicit.
func (s *LinkService) ShortenWithExpirationAndClicks(
	ctx context.Context, owner shortener.UserID, rawURL string, expiresAt time.Time, maxClicks int,
) (*shortener.Link, error) {
	return s.create(ctx, owner, rawURL, at(expiresAt), maxClicks)
}

// expiry resolves the expiration instant relative to the creation instant.
type expiry func(now time.Time) (time.Time, error)

func after(ttl time.Duration) expiry {
	return func(now time.Time) (time.Time, error) {
		return now.Add(ttl), nil
	}
}

func at(expiresAt time.Time) expiry {
	return func(time.Time) (time.Time, error) {
		return expiresAt, nil
	}
}

func (s *LinkService) afterHours(hours int) expiry {
	return func(now time.Time) (time.Time, error) {
		if err := s.validateTTL(hours); err != nil {
			return time.Time{}, err
		}

		return now.Add(time.Duration(hours) * time.Hour), nil
	}
}

// create checks, in order: destination, expiry window, quota, duplicates.
// Only then is a code generated and the link stored.
func (s *LinkService) create(
	ctx context.Context, owner shortener.UserID, rawURL string, resolve expiry, maxClicks int,
) (*shortener.Link, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner is required", shortener.ErrValidation)
	}

	url, err := shortener.NewURL(rawURL)
	if err != nil {
		return nil, err
	}

	if err := shortener.ValidateDestination(url); err != nil {
		return nil, err
	}

	now := s.now()

	expiresAt, err := resolve(now)
	if err != nil {
		return nil, err
	}

	if err := s.validateExpiry(expiresAt, now); err != nil {
		return nil, err
	}

	if maxClicks <= 0 {
		return nil, fmt.Errorf("%w: click limit must be positive", shortener.ErrValidation)
	}

	link, err := s.insertUnique(ctx, owner, url, expiresAt, maxClicks, now)
	if err != nil {
		return nil, err
	}

	s.users.AttachCode(owner, link.Code())

	s.logger.Info("link created",
		zap.String("code", string(link.Code())),
		zap.String("owner", owner.ShortID()),
		zap.Time("expiresAt", link.ExpiresAt()),
		zap.Int("maxClicks", link.MaxClicks()),
	)

	s.publish(analytics.TopicLinkCreated, s.events.LinkCreated(&analytics.LinkCreatedEvent{
		Code:        string(link.Code()),
		OriginalURL: string(link.URL()),
		OwnerID:     owner.String(),
		MaxClicks:   link.MaxClicks(),
		ExpiresAt:   link.ExpiresAt(),
		CreatedAt:   link.CreatedAt(),
	}))

	return link, nil
}

func (s *LinkService) insertUnique(
	ctx context.Context, owner shortener.UserID, url shortener.URL, expiresAt time.Time, maxClicks int, now time.Time,
) (*shortener.Link, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	if err := s.checkDuplicate(ctx, owner, url, now); err != nil {
		return nil, err
	}

	return s.store(ctx, owner, url, expiresAt, maxClicks, now)
}

func (s *LinkService) store(
	ctx context.Context, owner shortener.UserID, url shortener.URL, expiresAt time.Time, maxClicks int, now time.Time,
) (*shortener.Link, error) {
	for attempt := 1; ; attempt++ {
		owners, err := s.links.CodeOwners(ctx)
		if err != nil {
			return nil, err
		}

		code, err := s.generator.GenerateForUser(url, owner, s.cfg.CodeLength, owners)
		if err != nil {
			return nil, err
		}

		link, err := shortener.NewLink(url, code, owner, expiresAt, maxClicks, now)
		if err != nil {
			return nil, err
		}

		err = s.links.Create(ctx, link)

		switch {
		case err == nil:
			return link, nil
		case errors.Is(err, shortener.ErrPersistence):
			s.degraded("create", link.Code(), err)

			return link, nil
		case errors.Is(err, shortener.ErrCodeTaken) && attempt < createAttempts:
			s.logger.Debug("generated code already taken, regenerating",
				zap.String("code", string(code)),
				zap.Int("attempt", attempt),
			)
		default:
			return nil, err
		}
	}
}

// Redirect records a click on the link named by code and returns it.
// The returned link's URL is the destination.
func (s *LinkService) Redirect(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	now := s.now()

	link, err := s.links.Update(ctx, code, func(l *shortener.Link) error {
		return l.IncrementClicks(now)
	})
	if err != nil {
		if !errors.Is(err, shortener.ErrPersistence) {
			return nil, err
		}

		s.degraded("redirect", code, err)
	}

	s.publish(analytics.TopicLinkAccessed, s.events.LinkAccessed(&analytics.LinkAccessedEvent{
		Code:       string(code),
		OwnerID:    link.Owner().String(),
		Clicks:     link.Clicks(),
		MaxClicks:  link.MaxClicks(),
		AccessedAt: now,
	}))

	if link.Clicks() >= link.MaxClicks() {
		s.publish(analytics.TopicLinkExhausted, s.events.LinkExhausted(&analytics.LinkExhaustedEvent{
			Code:        string(code),
			OwnerID:     link.Owner().String(),
			MaxClicks:   link.MaxClicks(),
			ExhaustedAt: now,
		}))
	}

	return link, nil
}

// Info returns the link without counting a click.
func (s *LinkService) Info(ctx context.Context, code shortener.Code) (*shortener.Link, error) {
	return s.links.FindByCode(ctx, code)
}

// Delete removes a link owned by owner.
func (s *LinkService) Delete(ctx context.Context, code shortener.Code, owner shortener.UserID) error {
	link, err := s.owned(ctx, code, owner)
	if err != nil {
		return err
	}

	if err := s.links.Delete(ctx, code); err != nil {
		if !errors.Is(err, shortener.ErrPersistence) {
			return err
		}

		s.degraded("delete", code, err)
	}

	s.users.DetachCode(owner, code)

	s.logger.Info("link deleted", zap.String("code", string(code)), zap.String("owner", owner.ShortID()))

	s.publish(analytics.TopicLinkDeleted, s.events.LinkDeleted(&analytics.LinkDeletedEvent{
		Code:      string(link.Code()),
		OwnerID:   owner.String(),
		Reason:    analytics.DeleteReasonOwner,
		DeletedAt: s.now(),
	}))

	return nil
}

// EditRequest lists the changes to apply. Empty fields are left alone.
type EditRequest struct {
	URL       string
	ExpiresAt time.Time
}

// EditResult reports what an edit changed.
type EditResult struct {
	Link              *shortener.Link
	URLChanged        bool
	ExpirationChanged bool
}

// Edit applies req to a link owned by owner. Destinations are fixed once
// issued, so a URL change is validated and then reported as not applied.
func (s *LinkService) Edit(
	ctx context.Context, code shortener.Code, owner shortener.UserID, req EditRequest,
) (EditResult, error) {
	link, err := s.owned(ctx, code, owner)
	if err != nil {
		return EditResult{}, err
	}

	result := EditResult{Link: link}

	if req.URL != "" {
		url, err := shortener.NewURL(req.URL)
		if err != nil {
			return EditResult{}, err
		}

		if err := shortener.ValidateDestination(url); err != nil {
			return EditResult{}, err
		}

		result.URLChanged = link.UpdateURL(url)
	}

	if req.ExpiresAt.IsZero() {
		return result, nil
	}

	now := s.now()
	if err := s.validateExpiry(req.ExpiresAt, now); err != nil {
		return EditResult{}, err
	}

	updated, err := s.links.Update(ctx, code, func(l *shortener.Link) error {
		if !l.UpdateExpiration(req.ExpiresAt, now.Add(s.cfg.MaxTTL), now) {
			return fmt.Errorf("%w: expiration not accepted", shortener.ErrValidation)
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, shortener.ErrPersistence) {
			return EditResult{}, err
		}

		s.degraded("edit", code, err)
	}

	result.Link = updated
	result.ExpirationChanged = true

	s.logger.Info("link expiration changed",
		zap.String("code", string(code)),
		zap.Time("expiresAt", updated.ExpiresAt()),
	)

	return result, nil
}

// List returns the owner's links, newest first.
func (s *LinkService) List(ctx context.Context, owner shortener.UserID) ([]*shortener.Link, error) {
	return s.links.FindByOwner(ctx, owner)
}

func (s *LinkService) Exists(ctx context.Context, code shortener.Code) (bool, error) {
	return s.links.ExistsByCode(ctx, code)
}

// HasPermission reports whether owner may edit or delete the link.
// Unknown codes report false.
func (s *LinkService) HasPermission(ctx context.Context, code shortener.Code, owner shortener.UserID) (bool, error) {
	link, err := s.links.FindByCode(ctx, code)
	if errors.Is(err, shortener.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return link.IsOwnedBy(owner), nil
}

// ResolveCode accepts either a bare code or a pasted short link.
func (s *LinkService) ResolveCode(input string) (shortener.Code, error) {
	return shortener.CodeFromShortURL(input, s.cfg.BaseURL)
}

// ShortURL renders the public short link for a code.
func (s *LinkService) ShortURL(link *shortener.Link) string {
	return link.ShortURL(s.cfg.BaseURL)
}

func (s *LinkService) owned(ctx context.Context, code shortener.Code, owner shortener.UserID) (*shortener.Link, error) {
	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !link.IsOwnedBy(owner) {
		s.logger.Warn("permission denied",
			zap.String("code", string(code)),
			zap.String("user", owner.ShortID()),
		)

		return nil, shortener.ErrPermissionDenied
	}

	return link, nil
}

func (s *LinkService) validateTTL(hours int) error {
	maxHours := int(s.cfg.MaxTTL / time.Hour)
	if hours <= 0 || hours > maxHours {
		return fmt.Errorf("%w: lifetime must be between 1 and %d hours", shortener.ErrValidation, maxHours)
	}

	return nil
}

func (s *LinkService) validateExpiry(expiresAt, now time.Time) error {
	if !expiresAt.After(now) {
		return fmt.Errorf("%w: expiration must be in the future", shortener.ErrValidation)
	}

	if expiresAt.After(now.Add(s.cfg.MaxTTL)) {
		return fmt.Errorf("%w: expiration must be within %d days",
			shortener.ErrValidation, int(s.cfg.MaxTTL/(24*time.Hour)))
	}

	return nil
}

// checkDuplicate rejects a second live link from one owner to one URL.
func (s *LinkService) checkDuplicate(
	ctx context.Context, owner shortener.UserID, url shortener.URL, now time.Time,
) error {
	existing, err := s.links.FindByOwner(ctx, owner)
	if err != nil {
		return err
	}

	for _, link := range existing {
		if link.URL() == url && link.CanBeAccessed(now) {
			return fmt.Errorf("%w: %w: %s", shortener.ErrValidation, shortener.ErrDuplicate, link.Code())
		}
	}

	return nil
}

// degraded logs a persistence failure. The in-memory change stands.
func (s *LinkService) degraded(op string, code shortener.Code, err error) {
	s.logger.Warn("change kept in memory only",
		zap.String("op", op),
		zap.String("code", string(code)),
		zap.Error(err),
	)
}

// publish logs event delivery failures; they never fail the use case.
func (s *LinkService) publish(topic string, err error) {
	if err != nil {
		s.logger.Error("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
