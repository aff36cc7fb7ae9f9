package sink

import (
	"context"

	"github.com/serroba/shortlink/internal/analytics"
	"go.uber.org/zap"
)

// Logger writes every lifecycle event to a zap logger.
type Logger struct {
	logger *zap.Logger
}

// NewLogger creates a logging sink.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) LinkCreated(_ context.Context, event *analytics.LinkCreatedEvent) error {
	l.logger.Info("link created",
		zap.String("code", event.Code),
		zap.String("originalUrl", event.OriginalURL),
		zap.String("owner", event.OwnerID),
		zap.Int("maxClicks", event.MaxClicks),
		zap.Time("expiresAt", event.ExpiresAt),
	)

	return nil
}

func (l *Logger) LinkAccessed(_ context.Context, event *analytics.LinkAccessedEvent) error {
	l.logger.Info("link accessed",
		zap.String("code", event.Code),
		zap.Int("clicks", event.Clicks),
		zap.Int("maxClicks", event.MaxClicks),
		zap.Time("accessedAt", event.AccessedAt),
	)

	return nil
}

func (l *Logger) LinkExhausted(_ context.Context, event *analytics.LinkExhaustedEvent) error {
	l.logger.Warn("link reached its click limit",
		zap.String("code", event.Code),
		zap.String("owner", event.OwnerID),
		zap.Int("maxClicks", event.MaxClicks),
	)

	return nil
}

func (l *Logger) LinkDeleted(_ context.Context, event *analytics.LinkDeletedEvent) error {
	l.logger.Info("link deleted",
		zap.String("code", event.Code),
		zap.String("owner", event.OwnerID),
		zap.String("reason", event.Reason),
	)

	return nil
}

// Compile-time check.
var _ analytics.Sink = (*Logger)(nil)
