package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func sampleEvent() BookingEvent {
	start := time.Date(2030, 3, 14, 9, 0, 0, 0, time.UTC)
	return NewBookingEvent(BookingCreated, "evt-1", start.Add(-time.Hour), BookingFields{
		BookingID:  "b-1",
		ResourceID: "lab-1",
		UserID:     "u-1",
		Status:     "Confirmed",
		Date:       "2030-03-14",
		Start:      start,
		End:        start.Add(time.Hour),
	})
}

func TestKafkaPublish(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{writer: w, topic: "bookings"}

	require.NoError(t, k.Publish(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "lab-1", string(msg.Key))
	assert.Equal(t, "booking.created", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "booking.created", decoded["type"])
	assert.Equal(t, "b-1", decoded["booking_id"])
	assert.NotContains(t, decoded, "actor_id")

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublishError(t *testing.T) {
	boom := errors.New("broker down")
	k := &Kafka{writer: &fakeWriter{err: boom}, topic: "bookings"}
	assert.ErrorIs(t, k.Publish(context.Background(), sampleEvent()), boom)
}

func TestNewKafkaValidates(t *testing.T) {
	_, err := NewKafka(nil, "bookings")
	assert.Error(t, err)
	_, err = NewKafka([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}

func TestAMQPPublishRoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQP{ch: ch, exchange: "booking.events"}

	event := sampleEvent()
	event.Type = BookingCancelled
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "booking.events", ch.exchange)
	assert.Equal(t, "booking.cancelled", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, "evt-1", ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}
