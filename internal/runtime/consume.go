package runtime

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"

	codecpkg "github.com/drblury/fixflow/internal/runtime/codec"
	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
)

// InboundRegistration describes a topic whose frames are fed to the engine.
type InboundRegistration struct {
	Name  string // Defaults to "fixflow_inbound_<topic>".
	Topic string
	// Subscriber overrides the service subscriber.
	Subscriber message.Subscriber
	// Codec decodes frames without a codec header. Defaults to the service codec.
	Codec codecpkg.Codec
}

// ConsumeInbound feeds every frame on topic to the engine. Frames are routed by
// their direction header, so a captured stream of both directions replays
// into OnReceive and OnSend alike.
func (s *Service) ConsumeInbound(topic string) error {
	return s.RegisterInbound(InboundRegistration{Topic: topic})
}

// RegisterInbound adds a router handler for cfg.Topic. Topics this service
// publishes to are refused unless cfg brings its own subscriber.
func (s *Service) RegisterInbound(cfg InboundRegistration) error {
	if cfg.Topic == "" {
		return errspkg.ErrTopicRequired
	}
	if cfg.Subscriber == nil {
		// Consuming our own output would notify listeners twice per message.
		if cfg.Topic == s.Conf.ReceivedTopic || cfg.Topic == s.Conf.SentTopic {
			return fmt.Errorf("inbound topic %q is published by this service", cfg.Topic)
		}
		cfg.Subscriber = s.subscriber
	}
	if cfg.Codec == nil {
		cfg.Codec = s.codec
	}
	if cfg.Name == "" {
		cfg.Name = "fixflow_inbound_" + cfg.Topic
	}

	s.inboundMu.Lock()
	defer s.inboundMu.Unlock()
	if slices.Contains(s.inbound, cfg.Name) {
		return fmt.Errorf("inbound handler %q already registered", cfg.Name)
	}
	s.inbound = append(s.inbound, cfg.Name)

	s.router.AddNoPublisherHandler(cfg.Name, cfg.Topic, cfg.Subscriber, s.inboundHandler(cfg))
	s.Logger.Info("consuming inbound frames", loggingpkg.LogFields{"topic": cfg.Topic, "handler": cfg.Name})
	return nil
}

// Inbound lists the registered inbound handler names.
func (s *Service) Inbound() []string {
	s.inboundMu.Lock()
	defer s.inboundMu.Unlock()
	return slices.Clone(s.inbound)
}

// inboundHandler acks frames whose listeners panicked: the panic was already
// logged and redelivery would notify the healthy listeners twice.
func (s *Service) inboundHandler(cfg InboundRegistration) message.NoPublishHandlerFunc {
	return func(raw *message.Message) error {
		frame, err := DecodeFrame(raw, cfg.Codec)
		if err != nil {
			return err
		}

		ctx := raw.Context()
		if frame.Direction == Sent {
			err = s.engine.NotifySend(ctx, frame.Session, frame.Message)
		} else {
			err = s.engine.NotifyReceive(ctx, frame.Session, frame.Message)
		}

		var panicked *ListenerPanicError
		if errors.As(err, &panicked) {
			s.Logger.Error("inbound frame delivered with listener failures", err, loggingpkg.LogFields{
				"message_uuid": raw.UUID,
				"topic":        cfg.Topic,
			})
			return nil
		}
		return err
	}
}
