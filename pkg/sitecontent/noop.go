package sitecontent

import (
	"context"
	"errors"
	"log/slog"
)

// NoopInvalidator is a no-operation implementation of Invalidator
type NoopInvalidator struct{}

// NewNoopInvalidator creates a new no-operation invalidator
func NewNoopInvalidator() Invalidator {
	return &NoopInvalidator{}
}

// Invalidate does nothing and returns nil
func (n *NoopInvalidator) Invalidate(ctx context.Context, event InvalidationEvent) error {
	return nil
}

// LoggingInvalidator logs invalidation events but takes no other action.
// Useful for development and debugging.
type LoggingInvalidator struct {
	logger *slog.Logger
}

// NewLoggingInvalidator creates a new logging invalidator
func NewLoggingInvalidator(logger *slog.Logger) Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInvalidator{logger: logger}
}

// Invalidate logs the event
func (l *LoggingInvalidator) Invalidate(ctx context.Context, event InvalidationEvent) error {
	l.logger.InfoContext(ctx, "Views invalidated",
		"event_id", event.ID.String(),
		"document_key", event.DocumentKey,
		"views", event.Views,
		"sections", event.Sections,
	)
	return nil
}

// MultiInvalidator fans an event out to every invalidator, in order, and
// joins their errors.
type MultiInvalidator []Invalidator

// Invalidate calls every invalidator even if an earlier one fails
func (m MultiInvalidator) Invalidate(ctx context.Context, event InvalidationEvent) error {
	var errs []error
	for _, inv := range m {
		if err := inv.Invalidate(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
