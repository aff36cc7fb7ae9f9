package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortlink/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumers returns one consumer per lifecycle topic, all feeding sink.
func NewConsumers(subscriber message.Subscriber, sink Sink, logger *zap.Logger) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer[LinkCreatedEvent](subscriber, TopicLinkCreated, sink.LinkCreated, logger),
		messaging.NewConsumer[LinkAccessedEvent](subscriber, TopicLinkAccessed, sink.LinkAccessed, logger),
		messaging.NewConsumer[LinkExhaustedEvent](subscriber, TopicLinkExhausted, sink.LinkExhausted, logger),
		messaging.NewConsumer[LinkDeletedEvent](subscriber, TopicLinkDeleted, sink.LinkDeleted, logger),
	}
}

// Register adds the lifecycle consumers to group.
func Register(group *messaging.Group, subscriber message.Subscriber, sink Sink, logger *zap.Logger) {
	for _, consumer := range NewConsumers(subscriber, sink, logger) {
		group.Add(consumer)
	}
}
