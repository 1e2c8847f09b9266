package queue

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus fans change notifications out to every subscriber of a topic.
// Unlike Queue, each message is delivered to all listeners.
type Bus interface {
	Notify(ctx context.Context, topic, payload string) error
	Listen(ctx context.Context, topic string) (<-chan string, error)
}

// MemoryBus is an in-process Bus. Slow listeners drop notifications rather than
// block publishers.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan string]struct{}
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan string]struct{})}
}

// Notify delivers payload to current listeners of topic.
func (b *MemoryBus) Notify(ctx context.Context, topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
		}
	}
	return ctx.Err()
}

// Listen registers a listener until ctx is done.
func (b *MemoryBus) Listen(ctx context.Context, topic string) (<-chan string, error) {
	ch := make(chan string, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[chan string]struct{})
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[topic], ch)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// RedisBus uses Redis PUBLISH/SUBSCRIBE.
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus creates a bus whose channels are namespaced by prefix. The
// ":" separator is added when prefix lacks it.
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "rollcall:changes:"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) channel(topic string) string { return b.prefix + topic }

// Notify publishes payload on the topic channel.
func (b *RedisBus) Notify(ctx context.Context, topic, payload string) error {
	return b.client.Publish(ctx, b.channel(topic), payload).Err()
}

// Listen subscribes to the topic channel until ctx is done.
func (b *RedisBus) Listen(ctx context.Context, topic string) (<-chan string, error) {
	ps := b.client.Subscribe(ctx, b.channel(topic))
	// wait for the subscription confirmation so no notification is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
