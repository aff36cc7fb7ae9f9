package service

import (
	"context"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/users"
)

type GlobalStats struct {
	TotalLinks   int
	ActiveLinks  int
	ExpiredLinks int
	TotalUsers   int
}

type UserStats struct {
	TotalLinks  int
	TotalClicks int
	ActiveLinks int
}

// StatsService answers aggregate questions about links and users.
type StatsService struct {
	links     shortener.Repository
	directory *users.Directory
	cfg       Config
	now       func() time.Time
}

func NewStatsService(links shortener.Repository, directory *users.Directory, cfg Config) *StatsService {
	return &StatsService{links: links, directory: directory, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used to classify links.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now

	return s
}

func (s *StatsService) Global(ctx context.Context) (GlobalStats, error) {
	now := s.now()

	total, err := s.links.Count(ctx)
	if err != nil {
		return GlobalStats{}, err
	}

	active, err := s.links.CountActive(ctx, now)
	if err != nil {
		return GlobalStats{}, err
	}

	expired, err := s.links.CountExpired(ctx, now)
	if err != nil {
		return GlobalStats{}, err
	}

	return GlobalStats{
		TotalLinks:   total,
		ActiveLinks:  active,
		ExpiredLinks: expired,
		TotalUsers:   s.directory.Count(),
	}, nil
}

func (s *StatsService) ForUser(ctx context.Context, owner shortener.UserID) (UserStats, error) {
	links, err := s.links.FindByOwner(ctx, owner)
	if err != nil {
		return UserStats{}, err
	}

	now := s.now()
	stats := UserStats{TotalLinks: len(links)}

	for _, link := range links {
		stats.TotalClicks += link.Clicks()

		if link.CanBeAccessed(now) {
			stats.ActiveLinks++
		}
	}

	return stats, nil
}

// Config echoes the effective configuration.
func (s *StatsService) Config() Config {
	return s.cfg
}
