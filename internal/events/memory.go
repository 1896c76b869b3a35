package events

import (
	"context"
	"encoding/json"
	"sync"
)

// Published is one event captured by a MemoryPublisher, stored as the JSON
// that would have gone on the wire.
type Published struct {
	Topic string
	Data  json.RawMessage
}

// MemoryPublisher records published events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

func (m *MemoryPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Published{Topic: topic, Data: data})
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.events...)
}

// Topics returns the topics published so far, in order.
func (m *MemoryPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Topic
	}
	return out
}
