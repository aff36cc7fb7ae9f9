package messaging

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Runnable is a background component with a start/stop lifecycle.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// Group starts and stops runnables together. Consumers and periodic jobs
// such as the housekeeping sweeper share one group.
type Group struct {
	members []Runnable
	closers []io.Closer
	logger  *zap.Logger
}

// NewGroup creates a group. Closers, typically subscribers, are closed after
// every member has shut down.
func NewGroup(logger *zap.Logger, closers ...io.Closer) *Group {
	return &Group{
		closers: closers,
		logger:  logger,
	}
}

// Add registers a member.
func (g *Group) Add(member Runnable) {
	g.members = append(g.members, member)
}

// Len returns the number of registered members.
func (g *Group) Len() int {
	return len(g.members)
}

// Start starts members in order. If one fails, those already started are
// shut down in reverse order.
func (g *Group) Start(ctx context.Context) error {
	for i, member := range g.members {
		if err := member.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = g.members[j].Shutdown()
			}

			return fmt.Errorf("failed to start member %d: %w", i, err)
		}
	}

	g.logger.Info("background group started", zap.Int("count", len(g.members)))

	return nil
}

// Shutdown stops every member and closer, returning the first error.
func (g *Group) Shutdown() error {
	g.logger.Info("shutting down background group")

	var firstErr error

	for _, member := range g.members {
		if err := member.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, closer := range g.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
