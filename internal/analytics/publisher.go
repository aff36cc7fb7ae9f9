package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
)

// Publishers bundles the typed publish functions for link lifecycle events.
// A nil function drops its events.
type Publishers struct {
	Created   messaging.Publish[LinkCreatedEvent]
	Accessed  messaging.Publish[LinkAccessedEvent]
	Exhausted messaging.Publish[LinkExhaustedEvent]
	Deleted   messaging.Publish[LinkDeletedEvent]
}

// NewPublishers binds every lifecycle topic to publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		Created:   messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated),
		Accessed:  messaging.NewPublishFunc[LinkAccessedEvent](publisher, TopicLinkAccessed),
		Exhausted: messaging.NewPublishFunc[LinkExhaustedEvent](publisher, TopicLinkExhausted),
		Deleted:   messaging.NewPublishFunc[LinkDeletedEvent](publisher, TopicLinkDeleted),
	}
}

func (p Publishers) LinkCreated(event *LinkCreatedEvent) error {
	return publish(p.Created, event)
}

func (p Publishers) LinkAccessed(event *LinkAccessedEvent) error {
	return publish(p.Accessed, event)
}

func (p Publishers) LinkExhausted(event *LinkExhaustedEvent) error {
	return publish(p.Exhausted, event)
}

func (p Publishers) LinkDeleted(event *LinkDeletedEvent) error {
	return publish(p.Deleted, event)
}

func publish[T any](fn messaging.Publish[T], event *T) error {
	if fn == nil {
		return nil
	}

	return fn(event)
}
