package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/types"
)

// ErrInvalidInput wraps validation failures on caller-supplied data.
var ErrInvalidInput = errors.New("invalid input")

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event types.Event) (string, error)
}

// publish is best effort: a broker outage never fails the request that
// caused the event.
func publish(ctx context.Context, events EventPublisher, event types.Event) {
	if events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if _, err := events.PublishEvent(ctx, event); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "publish event failed",
			slog.String("event_type", event.Type),
			slog.Int("resource_id", event.ResourceID),
			slog.Any("err", err),
		)
	}
}
