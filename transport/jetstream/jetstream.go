// Package jetstream registers a NATS JetStream transport. Unlike core NATS it
// persists frames and redelivers unacked ones, which suits drop-copy consumers
// that must not miss an execution report.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/fixflow/transport"
	natstransport "github.com/drblury/fixflow/transport/nats"
)

const TransportName = "nats-jetstream"

const (
	DefaultStreamName = "FIXFLOW"
	DefaultMaxDeliver = 5
	DefaultAckWait    = 30 * time.Second
	DefaultMaxAge     = 7 * 24 * time.Hour

	// HeaderUUID carries the Watermill message UUID; it doubles as the
	// JetStream de-duplication id.
	HeaderUUID = "Fixflow-Uuid"
)

var errClosed = errors.New("jetstream: transport is closed")

// Connect opens the NATS connection; tests replace it.
var Connect = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

func init() {
	transport.Register(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build connects to cfg's NATS URL and ensures the stream exists.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{URL: cfg.GetNATSURL(), ConnectOptions: natstransport.ConnectOptions(cfg)}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: t, Subscriber: t}, nil
}

// Config holds JetStream settings.
type Config struct {
	URL            string
	ConnectOptions []nats.Option

	StreamName string
	MaxDeliver int
	AckWait    time.Duration
	MaxAge     time.Duration
	Replicas   int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Transport publishes to and pull-consumes from one stream. Each topic maps to
// the subject <stream>.<topic> and a durable consumer with one message in
// flight, so frames are handled in stream order.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	subsMu sync.Mutex
	subs   []*nats.Subscription
	wg     sync.WaitGroup

	closeOnce sync.Once
	closing   chan struct{}
}

// New connects and ensures the stream exists.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	if cfg.URL == "" {
		return nil, errors.New("jetstream: url is required")
	}
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	conn, err := Connect(cfg.URL, cfg.ConnectOptions...)
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: context: %w", err)
	}

	t := &Transport{nc: conn, js: js, config: cfg, logger: logger, closing: make(chan struct{})}
	if err := t.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) ensureStream() error {
	streamCfg := StreamConfig(t.config)
	if _, err := t.js.StreamInfo(streamCfg.Name); err == nil {
		_, err = t.js.UpdateStream(streamCfg)
		return wrapStreamErr(streamCfg.Name, err)
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return wrapStreamErr(streamCfg.Name, err)
	}
	_, err := t.js.AddStream(streamCfg)
	return wrapStreamErr(streamCfg.Name, err)
}

func wrapStreamErr(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("jetstream: stream %s: %w", name, err)
}

// StreamConfig is the stream definition ensured at startup.
func StreamConfig(cfg Config) *nats.StreamConfig {
	cfg = cfg.withDefaults()
	return &nats.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.StreamName + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Replicas:   cfg.Replicas,
		Duplicates: 2 * time.Minute,
	}
}

// ConsumerConfig is the durable pull consumer for topic.
func ConsumerConfig(cfg Config, topic string) *nats.ConsumerConfig {
	cfg = cfg.withDefaults()
	return &nats.ConsumerConfig{
		Durable:       ConsumerName(topic),
		FilterSubject: Subject(cfg.StreamName, topic),
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: 1,
		DeliverPolicy: nats.DeliverAllPolicy,
	}
}

// Subject maps a topic to its stream subject. Dots in FIX topics such as
// "fix.received" stay as subject tokens.
func Subject(stream, topic string) string {
	return stream + "." + topic
}

// ConsumerName derives a durable name; durable names may not contain dots.
func ConsumerName(topic string) string {
	return "fixflow_" + strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(topic)
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closing:
		return true
	default:
		return false
	}
}

// Publish stores messages in order; a repeated UUID is dropped by the server
// within the stream's duplicate window.
func (t *Transport) Publish(topic string, messages ...*message.Message) error {
	if t.isClosed() {
		return errClosed
	}
	subject := Subject(t.config.StreamName, topic)
	for _, msg := range messages {
		if _, err := t.js.PublishMsg(ToNATS(subject, msg), nats.MsgId(msg.UUID)); err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", msg.UUID, err)
		}
	}
	return nil
}

// ToNATS copies payload and metadata into a NATS message.
func ToNATS(subject string, msg *message.Message) *nats.Msg {
	header := nats.Header{}
	for k, v := range msg.Metadata {
		header.Set(k, v)
	}
	header.Set(HeaderUUID, msg.UUID)
	return &nats.Msg{Subject: subject, Data: msg.Payload, Header: header}
}

// FromNATS rebuilds a Watermill message. Messages published without a UUID
// header are named after their stream sequence.
func FromNATS(m *nats.Msg) *message.Message {
	uuid := m.Header.Get(HeaderUUID)
	if uuid == "" {
		if meta, err := m.Metadata(); err == nil {
			uuid = strconv.FormatUint(meta.Sequence.Stream, 10)
		} else {
			uuid = watermill.NewULID()
		}
	}
	out := message.NewMessage(uuid, m.Data)
	for k, v := range m.Header {
		if k == HeaderUUID || len(v) == 0 {
			continue
		}
		out.Metadata.Set(k, v[0])
	}
	return out
}

// Subscribe creates or updates the durable consumer for topic.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if t.isClosed() {
		return nil, errClosed
	}
	consumer := ConsumerConfig(t.config, topic)
	if _, err := t.js.AddConsumer(t.config.StreamName, consumer); err != nil {
		if _, err = t.js.UpdateConsumer(t.config.StreamName, consumer); err != nil {
			return nil, fmt.Errorf("jetstream: consumer %s: %w", consumer.Durable, err)
		}
	}
	sub, err := t.js.PullSubscribe(consumer.FilterSubject, consumer.Durable, nats.Bind(t.config.StreamName, consumer.Durable))
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe %s: %w", topic, err)
	}

	t.subsMu.Lock()
	t.subs = append(t.subs, sub)
	t.subsMu.Unlock()

	out := make(chan *message.Message)
	t.wg.Add(1)
	go t.consume(ctx, sub, topic, out)
	return out, nil
}

func (t *Transport) consume(ctx context.Context, sub *nats.Subscription, topic string, out chan<- *message.Message) {
	defer t.wg.Done()
	defer close(out)
	logFields := watermill.LogFields{"topic": topic}

	for {
		if ctx.Err() != nil || t.isClosed() {
			return
		}
		batch, err := sub.Fetch(1, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if t.isClosed() {
				return
			}
			t.logger.Error("jetstream fetch failed", err, logFields)
			continue
		}
		for _, m := range batch {
			if !t.deliver(ctx, m, out, logFields) {
				return
			}
		}
	}
}

// deliver hands one message to the subscriber and mirrors its ack or nack.
func (t *Transport) deliver(ctx context.Context, m *nats.Msg, out chan<- *message.Message, logFields watermill.LogFields) bool {
	msg := FromNATS(m)
	msgCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	msg.SetContext(msgCtx)

	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-t.closing:
		return false
	}

	select {
	case <-msg.Acked():
		if err := m.Ack(); err != nil {
			t.logger.Error("jetstream ack failed", err, logFields.Add(watermill.LogFields{"message_uuid": msg.UUID}))
		}
	case <-msg.Nacked():
		if err := m.Nak(); err != nil {
			t.logger.Error("jetstream nak failed", err, logFields.Add(watermill.LogFields{"message_uuid": msg.UUID}))
		}
	case <-ctx.Done():
		return false
	case <-t.closing:
		return false
	}
	return true
}

// Close drains subscriptions and closes the connection. Unacked messages are
// redelivered after AckWait.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closing)
		t.subsMu.Lock()
		for _, sub := range t.subs {
			_ = sub.Unsubscribe()
		}
		t.subs = nil
		t.subsMu.Unlock()
		t.wg.Wait()
		t.nc.Close()
	})
	return nil
}
