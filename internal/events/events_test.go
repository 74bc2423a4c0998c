package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, "reminders", "comments:p1")
	h.Publish("comments:p1", "hello")
	h.Publish("comments:p2", "ignored")
	h.Publish("reminders", 42)

	ev := <-ch
	assert.Equal(t, "comments:p1", ev.Topic)
	assert.Equal(t, "hello", ev.Payload)
	assert.False(t, ev.At.IsZero())

	ev = <-ch
	assert.Equal(t, "reminders", ev.Topic)
	assert.Equal(t, 42, ev.Payload)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := NewHub(1)
	assert.NotPanics(t, func() { h.Publish("reminders", nil) })
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	h := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, "reminders")
	h.Publish("reminders", 1)
	h.Publish("reminders", 2)

	ev := <-ch
	assert.Equal(t, 1, ev.Payload)
	select {
	case ev := <-ch:
		t.Fatalf("лишнее событие: %v", ev)
	default:
	}
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	h := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())

	ch := h.Subscribe(ctx, "reminders")
	assert.Equal(t, 1, h.Subscribers("reminders"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("канал не закрыт после отмены подписки")
	}
	require.Eventually(t, func() bool { return h.Subscribers("reminders") == 0 }, time.Second, 10*time.Millisecond)
}
