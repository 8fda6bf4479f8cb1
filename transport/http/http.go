// Package http registers the HTTP transport: publishing POSTs each message to
// HTTPPublisherURL+topic and subscribing serves topics on HTTPServerAddress.
package http

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/fixflow/transport"
)

const TransportName = "http"

var (
	PublisherFactory = func(cfg http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return http.NewPublisher(cfg, logger)
	}
	SubscriberFactory = func(addr string, cfg http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return http.NewSubscriber(addr, cfg, logger)
	}
)

func init() {
	transport.Register(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates the pair and starts the subscriber's server once its handlers
// are registered by Subscribe.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	base := cfg.GetHTTPPublisherURL()
	addr := cfg.GetHTTPServerAddress()
	if base == "" && addr == "" {
		return transport.Transport{}, errors.New("http: publisher url or server address is required")
	}

	pub, err := PublisherFactory(http.PublisherConfig{
		MarshalMessageFunc: TopicURL(base),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	sub, err := SubscriberFactory(addr, http.SubscriberConfig{
		UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return transport.Transport{}, err
	}

	if s, ok := sub.(*http.Subscriber); ok && addr != "" {
		go func() {
			if err := s.StartHTTPServer(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				logger.Error("http subscriber server stopped", err, watermill.LogFields{"addr": addr})
			}
		}()
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// TopicURL marshals a message into a POST to base+topic.
func TopicURL(base string) http.MarshalMessageFunc {
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		return http.DefaultMarshalMessageFunc(base+topic, msg)
	}
}
