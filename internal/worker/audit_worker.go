package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/DevDonal19/imparablesmujeres/internal/events"
)

// StartAuditWorker registers handlers that write auth events to the audit log.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := logger.Named("audit")

	dispatcher.Subscribe(events.EventLoginSucceeded, func(ctx context.Context, event events.Event) error {
		fields := []zap.Field{zap.String("event_id", event.ID), zap.String("subject", event.Subject)}
		if p, ok := event.Payload.(events.LoginSucceededPayload); ok {
			fields = append(fields, zap.String("role", string(p.Role)), zap.Time("expires_at", p.ExpiresAt))
		}
		audit.Info("login succeeded", fields...)
		return nil
	})

	dispatcher.Subscribe(events.EventLoginRejected, func(ctx context.Context, event events.Event) error {
		fields := []zap.Field{zap.String("event_id", event.ID)}
		if p, ok := event.Payload.(events.LoginRejectedPayload); ok {
			fields = append(fields, zap.String("email", p.Email), zap.String("reason", p.Reason))
		}
		audit.Warn("login rejected", fields...)
		return nil
	})

	dispatcher.Subscribe(events.EventAdminSeeded, func(ctx context.Context, event events.Event) error {
		audit.Info("admin seeded", zap.String("event_id", event.ID), zap.String("subject", event.Subject))
		return nil
	})
	userChanged := func(msg string) events.EventHandler {
		return func(ctx context.Context, event events.Event) error {
			fields := []zap.Field{zap.String("event_id", event.ID), zap.String("subject", event.Subject)}
			if p, ok := event.Payload.(events.UserChangedPayload); ok {
				fields = append(fields, zap.String("actor_id", p.ActorID), zap.Strings("fields", p.Fields))
			}
			audit.Info(msg, fields...)
			return nil
		}
	}
	dispatcher.Subscribe(events.EventUserCreated, userChanged("user created"))
	dispatcher.Subscribe(events.EventUserUpdated, userChanged("user updated"))
	dispatcher.Subscribe(events.EventUserDeleted, userChanged("user deleted"))
}
