package events

import (
	"context"
	"log/slog"
)

// Notifier delivers a human-facing notification for an event.
type Notifier interface {
	Notify(ctx context.Context, level NotificationLevel, title, message string) error
}

// NotificationLevel represents the severity of a notification.
type NotificationLevel string

const (
	NotificationLevelInfo    NotificationLevel = "info"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)

// LoggingHandler is a catch-all handler that logs all events.
type LoggingHandler struct {
	logger *slog.Logger
}

func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) Handle(ctx context.Context, event DomainEvent) error {
	h.logger.Debug("domain event",
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
		"aggregate_type", event.AggregateType(),
		"occurred_at", event.OccurredAt())
	return nil
}

func (h *LoggingHandler) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "LoggingHandler",
		Handler:    h.Handle,
		EventTypes: []string{AllEvents},
	}
}

// PlanNotificationHandler turns plan lifecycle events into notifications.
type PlanNotificationHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

func NewPlanNotificationHandler(notifier Notifier, logger *slog.Logger) *PlanNotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanNotificationHandler{notifier: notifier, logger: logger}
}

func (h *PlanNotificationHandler) Handle(ctx context.Context, event DomainEvent) error {
	if h.notifier == nil {
		return nil
	}
	base := AsBase(event)
	level := NotificationLevelInfo
	switch base.Type {
	case EventTypePlanRejected, EventTypePlanExpired:
		level = NotificationLevelWarning
	case EventTypeGenerationFailed:
		level = NotificationLevelError
	}
	if err := h.notifier.Notify(ctx, level, describe(base.Type), base.String()); err != nil {
		h.logger.Error("plan notification failed",
			"event_type", base.Type,
			"plan_id", base.AggregateID(),
			"error", err)
		return err
	}
	return nil
}

func (h *PlanNotificationHandler) Registration() HandlerRegistration {
	return HandlerRegistration{
		Name:       "PlanNotificationHandler",
		Handler:    h.Handle,
		EventTypes: append(append([]string(nil), NotifyEventTypes...), EventTypeGenerationFailed),
	}
}
