package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marquee/apiserver/config"
	"github.com/marquee/apiserver/types"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type memoryBackend struct {
	published []published
	inbox     []Message
	handled   []error
	closed    bool
}

func (b *memoryBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.published = append(b.published, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (b *memoryBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range b.inbox {
		b.handled = append(b.handled, handler(ctx, msg))
	}
	return nil
}

func (b *memoryBackend) Close() error {
	b.closed = true
	return nil
}

func TestEventPublisher_PublishEvent(t *testing.T) {
	backend := &memoryBackend{}
	pub := NewEventPublisher(New(backend), "marquee.events")

	at := time.Unix(1_700_000_000, 0).UTC()
	id, err := pub.PublishEvent(context.Background(), types.Event{
		Type:       types.EventMovieCreated,
		Subject:    "3",
		ResourceID: 12,
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)

	require.Len(t, backend.published, 1)
	msg := backend.published[0]
	require.Equal(t, "marquee.events", msg.channel)
	require.Equal(t, types.EventMovieCreated, msg.attrs[AttrEventType])
	require.Equal(t, "application/json", msg.attrs[AttrContentType])

	var decoded types.Event
	require.NoError(t, json.Unmarshal(msg.data, &decoded))
	require.Equal(t, 12, decoded.ResourceID)
	require.True(t, decoded.OccurredAt.Equal(at))
}

func TestEventPublisher_ConsumeEvents(t *testing.T) {
	good, err := json.Marshal(types.Event{Type: types.EventUserCreated, ResourceID: 4})
	require.NoError(t, err)

	backend := &memoryBackend{inbox: []Message{
		{ID: "1", Data: good},
		{ID: "2", Data: []byte("{not json")},
		{ID: "3", Data: good},
	}}
	pub := NewEventPublisher(New(backend), "marquee.events")

	var seen []types.Event
	boom := errors.New("boom")
	err = pub.ConsumeEvents(context.Background(), func(_ context.Context, ev types.Event) error {
		seen = append(seen, ev)
		if len(seen) == 2 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	require.Equal(t, []error{nil, nil, boom}, backend.handled)
}

func TestOpen(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: config.BackendNone})
	require.NoError(t, err)
	require.Nil(t, m)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	require.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.BackendRabbitMQ})
	require.ErrorContains(t, err, "rabbitmq url is required")
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(map[string]any{
		"event_type": "movie.deleted",
		"raw":        []byte("bytes"),
		"count":      int32(3),
	})
	require.Equal(t, map[string]string{
		"event_type": "movie.deleted",
		"raw":        "bytes",
		"count":      "3",
	}, attrs)
	require.Nil(t, headersToAttributes(nil))
}
