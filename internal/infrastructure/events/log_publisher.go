package events

import (
	"context"

	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// LogPublisher implements domain.EventPublisher by writing events to the service log.
// It is used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("audit")}
}

// Publish implements domain.EventPublisher
func (p *LogPublisher) Publish(_ context.Context, event *domain.AuditEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.Uint("user_id", event.UserID),
		zap.Bool("success", event.Success),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.ActorID != 0 {
		fields = append(fields, zap.Uint("actor_id", event.ActorID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session_id", event.SessionID))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip", event.IPAddress))
	}
	if event.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", string(event.ErrorCode)))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}
	p.logger.Info("audit event", fields...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var _ domain.EventPublisher = (*LogPublisher)(nil)
