package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/rufatasadov/sober-driver-backend/internal/config"
	"github.com/rufatasadov/sober-driver-backend/internal/events"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
	"github.com/rufatasadov/sober-driver-backend/internal/transport/kafka"
	"github.com/rufatasadov/sober-driver-backend/internal/transport/rabbitmq"
)

type relayCloser func() error

type relayIn struct {
	dig.In

	Config   *config.Config
	Logger   logx.Logger
	Failures prometheus.Counter `name:"event_relay_failures_total"`
}

type relayOut struct {
	dig.Out

	Relay  events.Relay
	Closer relayCloser
}

var (
	newKafkaRelay    = kafka.NewRelay
	newRabbitMQRelay = rabbitmq.NewRelay
)

// newRelay picks the outbound mirror for bus envelopes. RelayNone yields a
// nil Relay so the bus stays in-process.
func newRelay(in relayIn) (relayOut, error) {
	noop := relayOut{Closer: func() error { return nil }}
	rc := in.Config.Relay
	switch rc.Kind {
	case "", config.RelayNone:
		return noop, nil
	case config.RelayKafka:
		r, err := newKafkaRelay(in.Logger, rc.Brokers, rc.Topic, in.Failures)
		if err != nil {
			return relayOut{}, fmt.Errorf("kafka relay: %w", err)
		}
		return relayOut{Relay: r, Closer: r.Close}, nil
	case config.RelayAMQP:
		r, err := newRabbitMQRelay(in.Logger, rc.AMQPURL, rc.Exchange, in.Failures)
		if err != nil {
			return relayOut{}, fmt.Errorf("amqp relay: %w", err)
		}
		return relayOut{Relay: r, Closer: r.Close}, nil
	default:
		return relayOut{}, fmt.Errorf("unknown relay %q", rc.Kind)
	}
}
