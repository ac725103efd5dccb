package kafka

import (
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

var newAsyncProducer = sarama.NewAsyncProducer

// Relay mirrors bus envelopes to a Kafka topic, keyed by bus topic so events
// of one order or user stay ordered within a partition.
type Relay struct {
	producer sarama.AsyncProducer
	topic    string
	logger   logx.Logger
	failures prometheus.Counter

	mu     sync.RWMutex
	closed bool
}

// NewRelay connects an async producer to brokers. failures may be nil.
func NewRelay(logger logx.Logger, brokers []string, topic string, failures prometheus.Counter) (*Relay, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.Compression = sarama.CompressionSnappy

	p, err := newAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return newRelay(p, topic, logger, failures), nil
}

func newRelay(p sarama.AsyncProducer, topic string, logger logx.Logger, failures prometheus.Counter) *Relay {
	if logger == nil {
		logger = logx.Nop()
	}
	r := &Relay{
		producer: p,
		topic:    topic,
		logger:   logger,
		failures: failures,
	}
	go r.drainErrors()
	return r
}

// Forward enqueues env without blocking. When the producer queue is full
// the envelope is dropped and counted.
func (r *Relay) Forward(env events.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		r.fail("relay marshal failed", env, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(env.Topic),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(env.Event)},
		},
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.producer.Input() <- msg:
	default:
		r.fail("relay queue full", env, nil)
	}
}

// Close flushes buffered messages and stops the producer.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.producer.Close()
}

func (r *Relay) drainErrors() {
	for perr := range r.producer.Errors() {
		if r.failures != nil {
			r.failures.Inc()
		}
		r.logger.Warn("relay publish failed",
			logx.String("kafka_topic", r.topic),
			logx.Err(perr.Err),
		)
	}
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
