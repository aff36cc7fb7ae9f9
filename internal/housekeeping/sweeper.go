package housekeeping

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/messaging"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/users"
	"go.uber.org/zap"
)

// Store is the part of the link store the sweeper needs.
type Store interface {
	FindAll(ctx context.Context) ([]*shortener.Link, error)
	DeleteIf(ctx context.Context, code shortener.Code, cond func(*shortener.Link) bool) (bool, error)
	Flush(ctx context.Context) error
}

// Result summarizes one sweep.
type Result struct {
	// Expired counts links found expired when the pass started.
	Expired int
	// Evicted counts links actually removed; a link extended in the
	// meantime is kept.
	Evicted int
}

// Sweeper periodically inspects expired links, optionally removes them and
// resaves the snapshot.
type Sweeper struct {
	links     Store
	directory *users.Directory
	events    analytics.Publishers
	interval  time.Duration
	evict     bool
	now       func() time.Time
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper running every interval. With evict set,
// expired links are deleted and their owners detached.
func NewSweeper(
	links Store,
	directory *users.Directory,
	events analytics.Publishers,
	interval time.Duration,
	evict bool,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		links:     links,
		directory: directory,
		events:    events,
		interval:  interval,
		evict:     evict,
		now:       time.Now,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// WithClock overrides the clock used to decide expiry.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now

	return s
}

func (s *Sweeper) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Info("housekeeping started",
		zap.Duration("interval", s.interval),
		zap.Bool("evict", s.evict),
	)

	return nil
}

func (s *Sweeper) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	return nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("housekeeping sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one pass. Persistence failures are logged and do not stop the
// pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	links, err := s.links.FindAll(ctx)
	if err != nil {
		return Result{}, err
	}

	now := s.now()

	var result Result

	for _, link := range links {
		if !link.IsExpired(now) {
			continue
		}

		result.Expired++

		if !s.evict {
			continue
		}

		// The link may have been extended since FindAll; recheck under the store lock.
		removed, err := s.links.DeleteIf(ctx, link.Code(), func(current *shortener.Link) bool {
			return current.IsExpired(now)
		})
		if err != nil && !errors.Is(err, shortener.ErrPersistence) {
			s.logger.Warn("failed to evict expired link",
				zap.String("code", string(link.Code())),
				zap.Error(err),
			)

			continue
		}

		if !removed {
			s.logger.Debug("expired link changed before eviction, kept",
				zap.String("code", string(link.Code())),
			)

			continue
		}

		result.Evicted++

		s.directory.DetachCode(link.Owner(), link.Code())

		if err := s.events.LinkDeleted(&analytics.LinkDeletedEvent{
			Code:      string(link.Code()),
			OwnerID:   link.Owner().String(),
			Reason:    analytics.DeleteReasonExpired,
			DeletedAt: now,
		}); err != nil {
			s.logger.Error("failed to publish event",
				zap.String("topic", analytics.TopicLinkDeleted),
				zap.Error(err),
			)
		}
	}

	if err := s.links.Flush(ctx); err != nil {
		s.logger.Warn("housekeeping snapshot not saved", zap.Error(err))
	}

	s.logger.Info("housekeeping sweep finished",
		zap.Int("links", len(links)),
		zap.Int("expired", result.Expired),
		zap.Int("evicted", result.Evicted),
	)

	return result, nil
}

var _ messaging.Runnable = (*Sweeper)(nil)
