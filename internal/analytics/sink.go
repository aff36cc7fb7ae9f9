package analytics

import "context"

// Sink receives lifecycle events delivered by the consumers.
type Sink interface {
	LinkCreated(ctx context.Context, event *LinkCreatedEvent) error
	LinkAccessed(ctx context.Context, event *LinkAccessedEvent) error
	LinkExhausted(ctx context.Context, event *LinkExhaustedEvent) error
	LinkDeleted(ctx context.Context, event *LinkDeletedEvent) error
}
