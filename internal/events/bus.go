// Package events is the single fan-out point: a registry of live sessions
// per topic with non-blocking, at-most-once delivery.
package events

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Envelope is what subscribers and relays receive.
type Envelope struct {
	Event string    `json:"event"`
	Topic string    `json:"topic"`
	Data  any       `json:"data"`
	At    time.Time `json:"ts"`
}

// Subscriber is a live session handle.
type Subscriber interface {
	ID() string
	UserID() string
	// Deliver must not block; it returns false when the message was dropped.
	Deliver(Envelope) bool
}

// Relay mirrors published envelopes outside the process. Forward must not block.
type Relay interface {
	Forward(Envelope)
}

// Bus routes envelopes from topics to subscribers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber

	relay   Relay
	logger  logx.Logger
	dropped prometheus.Counter
	now     func() time.Time
}

// NewBus creates a Bus. relay and dropped may be nil.
func NewBus(logger logx.Logger, relay Relay, dropped prometheus.Counter) *Bus {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Bus{
		topics:  make(map[string]map[string]Subscriber),
		relay:   relay,
		logger:  logger,
		dropped: dropped,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe adds sub to topic. Subscribing twice is a no-op.
func (b *Bus) Subscribe(topic string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]Subscriber)
		b.topics[topic] = subs
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes the subscriber with subID from topic.
func (b *Bus) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(topic, subID)
}

// UnsubscribeAll removes subID from every topic.
func (b *Bus) UnsubscribeAll(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic := range b.topics {
		b.remove(topic, subID)
	}
}

func (b *Bus) remove(topic, subID string) {
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Retain keeps only the subscribers of topic for which keep returns true
// and reports how many were removed.
func (b *Bus) Retain(topic string, keep func(Subscriber) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, s := range b.topics[topic] {
		if !keep(s) {
			b.remove(topic, id)
			removed++
		}
	}
	return removed
}

// Subscribers returns the number of live sessions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Publish delivers event to every session on topic, skipping sessions of
// the accounts listed in except. It returns the number of deliveries.
func (b *Bus) Publish(topic, event string, data any, except ...string) int {
	env := Envelope{Event: event, Topic: topic, Data: data, At: b.now()}

	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.topics[topic]))
	for _, s := range b.topics[topic] {
		if !excluded(s.UserID(), except) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.Deliver(env) {
			delivered++
			continue
		}
		if b.dropped != nil {
			b.dropped.Inc()
		}
		b.logger.Warn("event dropped",
			logx.String("topic", topic),
			logx.String("event", event),
			logx.String("session_id", s.ID()),
		)
	}

	if b.relay != nil {
		b.relay.Forward(env)
	}
	return delivered
}

// PublishAll publishes the same event to each topic.
func (b *Bus) PublishAll(topics []string, event string, data any) int {
	n := 0
	for _, t := range topics {
		n += b.Publish(t, event, data)
	}
	return n
}

func excluded(userID string, except []string) bool {
	for _, e := range except {
		if e == userID {
			return true
		}
	}
	return false
}
