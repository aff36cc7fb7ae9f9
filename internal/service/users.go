package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/users"
	"go.uber.org/zap"
)

// UserService manages users and the sessions acting on their behalf.
type UserService struct {
	directory *users.Directory
	links     shortener.Repository
	sessionID func() string
	logger    *zap.Logger
}

// NewUserService wires the user use cases. sessionID mints session ids.
func NewUserService(
	directory *users.Directory,
	links shortener.Repository,
	sessionID func() string,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		directory: directory,
		links:     links,
		sessionID: sessionID,
		logger:    logger,
	}
}

func (s *UserService) CreateUser() users.User {
	u := s.directory.Create()
	s.logger.Info("user created", zap.String("user", u.ShortID()))

	return u
}

func (s *UserService) FindUser(id shortener.UserID) (users.User, error) {
	return s.directory.FindByID(id)
}

func (s *UserService) FindUserByShortID(prefix string) (users.User, error) {
	return s.directory.FindByShortID(strings.TrimSpace(prefix))
}

// NewSession starts a session for a brand-new user.
func (s *UserService) NewSession() Session {
	return Session{ID: s.sessionID(), User: s.CreateUser().ID}
}

// Resume starts a session for the user named by input, with the same
// resolution rules as Switch.
func (s *UserService) Resume(input string) (SwitchResult, error) {
	return s.Switch(Session{ID: s.sessionID()}, input)
}

// Current returns the session's user, registering it if it is unknown.
func (s *UserService) Current(session Session) users.User {
	u, _ := s.directory.Ensure(session.User)

	return u
}

// SwitchResult describes the user a session switched to.
type SwitchResult struct {
	Session Session
	User    users.User
	// Created is set when no existing user matched and one was created.
	Created bool
	// Fallback is set when the input matched nothing and could not be
	// adopted as an id, so a fresh user was issued instead.
	Fallback bool
}

// Switch moves session to the user named by input: a full id is adopted
// (created if unknown), otherwise input is tried as a short-id prefix.
// When neither works a brand-new user is issued.
func (s *UserService) Switch(session Session, input string) (SwitchResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return SwitchResult{}, fmt.Errorf("%w: user id is required", shortener.ErrValidation)
	}

	if id, err := shortener.ParseUserID(input); err == nil {
		u, created := s.directory.Ensure(id)

		return s.switched(session, u, created, false), nil
	}

	u, err := s.directory.FindByShortID(input)
	if err == nil {
		return s.switched(session, u, false, false), nil
	}

	s.logger.Info("switch target not resolved, issuing a new user",
		zap.String("session", session.ID),
		zap.String("input", input),
		zap.Error(err),
	)

	return s.switched(session, s.directory.Create(), true, true), nil
}

func (s *UserService) switched(session Session, u users.User, created, fallback bool) SwitchResult {
	session.User = u.ID

	s.logger.Info("session switched user",
		zap.String("session", session.ID),
		zap.String("user", u.ShortID()),
		zap.Bool("created", created),
	)

	return SwitchResult{Session: session, User: u, Created: created, Fallback: fallback}
}

// SyncFromLinks registers every owner referenced by stored links and
// attaches their codes. It returns the number of users created.
func (s *UserService) SyncFromLinks(ctx context.Context) (int, error) {
	links, err := s.links.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	created := 0

	for _, link := range links {
		if _, isNew := s.directory.EnsureAt(link.Owner(), link.CreatedAt()); isNew {
			created++
		}

		s.directory.AttachCode(link.Owner(), link.Code())
	}

	s.logger.Info("users restored from links",
		zap.Int("links", len(links)),
		zap.Int("users", created),
	)

	return created, nil
}

// Count returns the number of known users.
func (s *UserService) Count() int {
	return s.directory.Count()
}
