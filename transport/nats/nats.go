// Package nats registers the NATS Core transport.
package nats

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/fixflow/transport"
)

const TransportName = "nats"

// DefaultClientName identifies the connection when the configuration names none.
const DefaultClientName = "fixflow"

var (
	PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return wmnats.NewPublisher(cfg, logger)
	}
	SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return wmnats.NewSubscriber(cfg, logger)
	}
)

func init() {
	transport.Register(TransportName, Build, transport.NATSCapabilities)
}

// Build connects with unlimited reconnects. JetStream stays disabled; FIX
// sessions keep their own sequence numbers for recovery.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return transport.Transport{}, errors.New("nats: url is required")
	}

	opts := ConnectOptions(cfg)
	marshaler := &wmnats.NATSMarshaler{}
	disabled := wmnats.JetStreamConfig{Disabled: true}

	pub, err := PublisherFactory(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		Marshaler:   marshaler,
		JetStream:   disabled,
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	sub, err := SubscriberFactory(wmnats.SubscriberConfig{
		URL:         url,
		NatsOptions: opts,
		Unmarshaler: marshaler,
		JetStream:   disabled,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// ConnectOptions returns the nats.go options used for both connections.
func ConnectOptions(cfg transport.Config) []nc.Option {
	name := cfg.GetNATSClientName()
	if name == "" {
		name = DefaultClientName
	}
	return []nc.Option{
		nc.Name(name),
		nc.MaxReconnects(-1),
		nc.RetryOnFailedConnect(true),
	}
}
