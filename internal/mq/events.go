package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marquee/apiserver/types"
)

// AttrEventType is the attribute key carrying types.Event.Type.
const AttrEventType = "event_type"

// EventPublisher publishes domain events as JSON to a single channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

func NewEventPublisher(mq *MQ, channel string) *EventPublisher {
	return &EventPublisher{mq: mq, channel: channel}
}

// PublishEvent encodes event and publishes it. It returns the broker message ID.
func (p *EventPublisher) PublishEvent(ctx context.Context, event types.Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return p.mq.Publish(ctx, p.channel, data, map[string]string{
		AttrEventType:   event.Type,
		AttrContentType: "application/json",
	})
}

// ConsumeEvents decodes events from the channel and hands them to fn until
// ctx is done. Messages that fail to decode are dropped, not retried.
func (p *EventPublisher) ConsumeEvents(ctx context.Context, fn func(context.Context, types.Event) error) error {
	return p.mq.Subscribe(ctx, p.channel, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}
