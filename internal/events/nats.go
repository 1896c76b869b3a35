package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// clientName identifies tix connections in NATS monitoring.
	clientName = "tix"

	// subscriptionBuffer bounds how many payloads a slow reader may lag.
	subscriptionBuffer = 64

	closeFlushTimeout = 2 * time.Second
)

var errEmptyTopic = errors.New("empty topic")

// dial connects with the tix client name and unlimited reconnects; opts are
// applied after the defaults and may override them.
func dial(url string, opts []nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := dial(url, opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return errEmptyTopic
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered events before disconnecting. A flush failure is
// not reported; the connection is closed either way.
func (p *NATSPublisher) Close() error {
	if p.conn.IsConnected() {
		_ = p.conn.FlushTimeout(closeFlushTimeout)
	}
	p.conn.Close()
	return nil
}

// NATSSubscriber receives raw payloads from NATS subjects.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with automatic reconnection. Extra options
// (disconnect or reconnect handlers, for example) are appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := dial(url, opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// subscription fans one NATS subscription into a buffered channel. When the
// buffer is full the oldest payload is dropped: the NATS client never
// blocks on a slow reader and the newest notification always survives.
type subscription struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
	once   sync.Once
	sub    *nats.Subscription
}

func (s *subscription) deliver(msg *nats.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- msg.Data:
			return
		default:
		}
		// Only deliver sends, so after one receive there is room unless
		// the reader drained concurrently, in which case the retry sends.
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscription) cancel() {
	s.once.Do(func() {
		if s.sub != nil {
			_ = s.sub.Unsubscribe()
		}
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// Subscribe returns a channel of payloads for topic, which may use NATS
// wildcards such as TopicAll.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	if topic == "" {
		return nil, nil, errEmptyTopic
	}
	sub := &subscription{ch: make(chan []byte, subscriptionBuffer)}
	ns, err := s.conn.Subscribe(topic, sub.deliver)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	sub.sub = ns
	// The subscription must reach the server before we return, or events
	// published on another connection right after may be missed.
	if err := s.conn.Flush(); err != nil {
		sub.cancel()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}
	return sub.ch, sub.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
