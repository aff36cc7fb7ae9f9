package sink

import (
	"context"
	"errors"

	"github.com/serroba/shortlink/internal/analytics"
)

// Fanout delivers each event to every sink and joins their errors.
type Fanout []analytics.Sink

func (f Fanout) LinkCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	return each(f, func(s analytics.Sink) error { return s.LinkCreated(ctx, event) })
}

func (f Fanout) LinkAccessed(ctx context.Context, event *analytics.LinkAccessedEvent) error {
	return each(f, func(s analytics.Sink) error { return s.LinkAccessed(ctx, event) })
}

func (f Fanout) LinkExhausted(ctx context.Context, event *analytics.LinkExhaustedEvent) error {
	return each(f, func(s analytics.Sink) error { return s.LinkExhausted(ctx, event) })
}

func (f Fanout) LinkDeleted(ctx context.Context, event *analytics.LinkDeletedEvent) error {
	return each(f, func(s analytics.Sink) error { return s.LinkDeleted(ctx, event) })
}

func each(sinks []analytics.Sink, fn func(analytics.Sink) error) error {
	var errs []error

	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Compile-time check.
var _ analytics.Sink = Fanout(nil)
