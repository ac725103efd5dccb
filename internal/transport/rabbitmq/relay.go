// Package rabbitmq mirrors dispatch events to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

const (
	defaultQueueSize = 1024
	publishTimeout   = 5 * time.Second
)

// channel is the subset of *amqp.Channel the relay uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var dial = func(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// Relay publishes envelopes from a bounded queue on a single goroutine.
type Relay struct {
	ch        channel
	closeConn func() error
	exchange  string
	logger    logx.Logger
	failures  prometheus.Counter

	queue chan events.Envelope
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRelay dials url and declares a durable topic exchange. failures may be nil.
func NewRelay(logger logx.Logger, url, exchange string, failures prometheus.Counter) (*Relay, error) {
	ch, closeConn, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	r, err := newRelay(ch, closeConn, exchange, logger, failures, defaultQueueSize)
	if err != nil {
		_ = ch.Close()
		_ = closeConn()
		return nil, err
	}
	return r, nil
}

func newRelay(ch channel, closeConn func() error, exchange string, logger logx.Logger, failures prometheus.Counter, queueSize int) (*Relay, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if closeConn == nil {
		closeConn = func() error { return nil }
	}
	r := &Relay{
		ch:        ch,
		closeConn: closeConn,
		exchange:  exchange,
		logger:    logger,
		failures:  failures,
		queue:     make(chan events.Envelope, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Forward queues env without blocking; a full queue drops it.
func (r *Relay) Forward(env events.Envelope) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- env:
	default:
		r.fail("relay queue full", env, nil)
	}
}

// Close publishes what is queued, then closes the channel and connection.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	chErr := r.ch.Close()
	if err := r.closeConn(); err != nil {
		return err
	}
	return chErr
}

func (r *Relay) run() {
	defer r.wg.Done()
	for env := range r.queue {
		body, err := json.Marshal(env)
		if err != nil {
			r.fail("relay marshal failed", env, err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = r.ch.PublishWithContext(ctx, r.exchange, RoutingKey(env), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    env.At,
			Type:         env.Event,
			Body:         body,
		})
		cancel()
		if err != nil {
			r.fail("relay publish failed", env, err)
		}
	}
}

// RoutingKey maps "order:o-1" + "order_cancelled" to "order.o-1.order_cancelled"
// so consumers can bind on patterns such as "order.#" or "*.*.driver_location".
func RoutingKey(env events.Envelope) string {
	return strings.ReplaceAll(env.Topic, ":", ".") + "." + env.Event
}

func (r *Relay) fail(msg string, env events.Envelope, err error) {
	if r.failures != nil {
		r.failures.Inc()
	}
	fields := []logx.Field{logx.String("event", env.Event), logx.String("topic", env.Topic)}
	if err != nil {
		fields = append(fields, logx.Err(err))
	}
	r.logger.Warn(msg, fields...)
}
