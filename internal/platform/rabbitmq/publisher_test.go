package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/docindex/internal/domain"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	declareErr error
	publishErr error
	closed     bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	if durable {
		c.declared = append(c.declared, name)
	}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestEventPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newEventPublisher(func() (channel, error) { return ch, nil }, "")
	event := domain.IndexEvent{
		DocumentID: "d1",
		Status:     domain.DocumentStatusIndexed,
		ChunkCount: 3,
		Mode:       "faq",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	err := p.Publish(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, []string{DefaultQueue}, ch.declared)
	assert.Equal(t, []string{DefaultQueue}, ch.keys)
	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "document.indexed", msg.Type)

	var decoded domain.IndexEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, event, decoded)
	assert.True(t, ch.closed)
}

func TestEventPublisher_OpenError(t *testing.T) {
	p := newEventPublisher(func() (channel, error) { return nil, errors.New("connection closed") }, "q")

	err := p.Publish(context.Background(), domain.IndexEvent{DocumentID: "d1"})

	assert.ErrorContains(t, err, "open rabbitmq channel failed")
}

func TestEventPublisher_DeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	p := newEventPublisher(func() (channel, error) { return ch, nil }, "q")

	err := p.Publish(context.Background(), domain.IndexEvent{DocumentID: "d1"})

	assert.ErrorContains(t, err, "declare queue failed")
	assert.True(t, ch.closed)
}

func TestEventPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p := newEventPublisher(func() (channel, error) { return ch, nil }, "q")

	err := p.Publish(context.Background(), domain.IndexEvent{DocumentID: "d1"})

	assert.ErrorContains(t, err, "publish event failed")
}
