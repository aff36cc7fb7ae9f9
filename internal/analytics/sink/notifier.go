package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/serroba/shortlink/internal/analytics"
	"go.uber.org/zap"
)

// Notifier tells the interactive user when one of their links dies:
// a click limit was reached or housekeeping evicted an expired link.
// Other events are ignored. A notice that cannot be written is logged and
// dropped; it never fails delivery.
type Notifier struct {
	mu      sync.Mutex
	out     io.Writer
	baseURL string
	logger  *zap.Logger
}

// NewNotifier writes notices to out. baseURL prefixes codes in messages.
func NewNotifier(out io.Writer, baseURL string, logger *zap.Logger) *Notifier {
	return &Notifier{out: out, baseURL: baseURL, logger: logger}
}

func (n *Notifier) LinkCreated(context.Context, *analytics.LinkCreatedEvent) error {
	return nil
}

func (n *Notifier) LinkAccessed(context.Context, *analytics.LinkAccessedEvent) error {
	return nil
}

func (n *Notifier) LinkExhausted(_ context.Context, event *analytics.LinkExhaustedEvent) error {
	return n.printf("notice: %s%s used all %d clicks and is now inactive\n",
		n.baseURL, event.Code, event.MaxClicks)
}

func (n *Notifier) LinkDeleted(_ context.Context, event *analytics.LinkDeletedEvent) error {
	if event.Reason != analytics.DeleteReasonExpired {
		return nil
	}

	return n.printf("notice: %s%s expired and was removed\n", n.baseURL, event.Code)
}

func (n *Notifier) printf(format string, args ...any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := fmt.Fprintf(n.out, format, args...); err != nil {
		n.logger.Warn("notice not shown", zap.Error(err))
	}

	return nil
}

// Compile-time check.
var _ analytics.Sink = (*Notifier)(nil)
