// Package events раздаёт доменные события подписчикам по темам.
package events

import (
	"context"
	"sync"
	"time"
)

// Event - сообщение с темой и произвольной нагрузкой
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type subscriber struct {
	ch     chan Event
	topics []string
}

// Hub - канал на подписчика, публикация не блокируется: если буфер
// подписчика полон, событие для него теряется.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	buffer int
	now    func() time.Time
}

// NewHub создает Hub; buffer - размер очереди каждого подписчика
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe возвращает канал событий по темам. Канал закрывается после
// завершения ctx.
func (h *Hub) Subscribe(ctx context.Context, topics ...string) <-chan Event {
	sub := &subscriber{ch: make(chan Event, h.buffer), topics: topics}

	h.mu.Lock()
	for _, t := range topics {
		if h.topics[t] == nil {
			h.topics[t] = make(map[*subscriber]struct{})
		}
		h.topics[t][sub] = struct{}{}
	}
	h.mu.Unlock()

	// Очистка канала после завершения подписки
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		for _, t := range sub.topics {
			delete(h.topics[t], sub)
			if len(h.topics[t]) == 0 {
				delete(h.topics, t)
			}
		}
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch
}

// Publish рассылает событие подписчикам темы без блокировки
func (h *Hub) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, At: h.now()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Subscribers - число подписчиков темы.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
