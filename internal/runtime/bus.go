package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	codecpkg "github.com/drblury/fixflow/internal/runtime/codec"
	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	idspkg "github.com/drblury/fixflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	metadatapkg "github.com/drblury/fixflow/internal/runtime/metadata"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

// UnprocessableFrameError marks a bus message that can never be decoded.
// Retrying it is pointless; the poison queue middleware routes it aside.
type UnprocessableFrameError struct {
	UUID string
	Err  error
}

func (e *UnprocessableFrameError) Error() string {
	return fmt.Sprintf("unprocessable frame %s: %v", e.UUID, e.Err)
}

func (e *UnprocessableFrameError) Unwrap() error { return e.Err }

// Frame is a decoded bus message.
type Frame struct {
	Session   sessionpkg.ID
	Direction Direction
	Message   *messagepkg.Message
	Metadata  metadatapkg.Metadata
}

// NewFrame encodes msg for the bus. The session identity, direction and codec
// travel as headers; extra metadata is merged first so those headers win.
func NewFrame(c codecpkg.Codec, dir Direction, sid sessionpkg.ID, msg *messagepkg.Message, extra metadatapkg.Metadata) (*message.Message, error) {
	if msg == nil {
		return nil, errspkg.ErrMessageRequired
	}
	// Consumers reject frames without a complete session identity.
	if err := sid.Validate(); err != nil {
		return nil, fmt.Errorf("frame session: %w", err)
	}
	payload, err := c.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", c.Name(), err)
	}

	md := extra.Merge(sid.ToMetadata())
	md[metadatapkg.KeyDirection] = string(dir)
	md[metadatapkg.KeyCodec] = c.Name()
	md[metadatapkg.KeyContentType] = c.ContentType()

	frame := message.NewMessage(idspkg.New(), payload)
	frame.Metadata = metadatapkg.ToWatermill(md)
	return frame, nil
}

// DecodeFrame reverses NewFrame. The codec named in the headers is used when it
// is known; fallback covers frames published without one.
func DecodeFrame(raw *message.Message, fallback codecpkg.Codec) (Frame, error) {
	md := metadatapkg.FromWatermill(raw.Metadata)

	c := fallback
	if name := md[metadatapkg.KeyCodec]; name != "" && (c == nil || name != c.Name()) {
		named, err := codecpkg.ByName(name, nil)
		if err != nil {
			return Frame{}, &UnprocessableFrameError{UUID: raw.UUID, Err: err}
		}
		c = named
	}
	if c == nil {
		return Frame{}, &UnprocessableFrameError{UUID: raw.UUID, Err: fmt.Errorf("no codec for frame")}
	}

	sid, err := sessionpkg.FromMetadata(md)
	if err != nil {
		return Frame{}, &UnprocessableFrameError{UUID: raw.UUID, Err: err}
	}
	msg, err := c.Unmarshal(raw.Payload)
	if err != nil {
		return Frame{}, &UnprocessableFrameError{UUID: raw.UUID, Err: err}
	}

	dir := Direction(md[metadatapkg.KeyDirection])
	if dir == "" {
		dir = Received
	}
	return Frame{Session: sid, Direction: dir, Message: msg, Metadata: md}, nil
}

// PublishFrame encodes msg and publishes it to topic.
func PublishFrame(ctx context.Context, publisher message.Publisher, topic string, c codecpkg.Codec, dir Direction, sid sessionpkg.ID, msg *messagepkg.Message, extra metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}
	frame, err := NewFrame(c, dir, sid, msg, extra)
	if err != nil {
		return err
	}
	if ctx != nil {
		frame.SetContext(ctx)
		if cid, ok := correlationIDFrom(ctx); ok {
			frame.Metadata.Set(metadatapkg.KeyCorrelationID, cid)
		}
	}
	return publisher.Publish(topic, frame)
}

// BusListener mirrors every message an engine observes onto the bus: received
// messages go to ReceivedTopic, sent ones to SentTopic.
type BusListener struct {
	id            string
	publisher     message.Publisher
	codec         codecpkg.Codec
	receivedTopic string
	sentTopic     string
	logger        loggingpkg.ServiceLogger

	// OnError, when set, is called with every failed publish.
	OnError func(dir Direction, sid sessionpkg.ID, err error)
}

// DefaultBusListenerID is used when NewBusListener gets an empty id.
const DefaultBusListenerID = "fixflow.bus"

// NewBusListener validates the publisher and topics; a nil codec selects JSON.
func NewBusListener(id string, publisher message.Publisher, c codecpkg.Codec, receivedTopic, sentTopic string, logger loggingpkg.ServiceLogger) (*BusListener, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if receivedTopic == "" || sentTopic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if c == nil {
		c = codecpkg.NewJSON(nil)
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	if id == "" {
		id = DefaultBusListenerID
	}
	return &BusListener{
		id:            id,
		publisher:     publisher,
		codec:         c,
		receivedTopic: receivedTopic,
		sentTopic:     sentTopic,
		logger:        logger.With(loggingpkg.LogFields{"listener": id}),
	}, nil
}

func (b *BusListener) ID() string { return b.id }

func (b *BusListener) OnReceive(sid sessionpkg.ID, msg *messagepkg.Message) {
	b.report(Received, sid, b.Publish(context.Background(), Received, sid, msg))
}

func (b *BusListener) OnSend(sid sessionpkg.ID, msg *messagepkg.Message) {
	b.report(Sent, sid, b.Publish(context.Background(), Sent, sid, msg))
}

// Publish writes one frame to the topic for dir and returns the publish error.
func (b *BusListener) Publish(ctx context.Context, dir Direction, sid sessionpkg.ID, msg *messagepkg.Message) error {
	topic := b.receivedTopic
	if dir == Sent {
		topic = b.sentTopic
	}
	extra := metadatapkg.New(metadatapkg.KeyListener, b.id)
	return PublishFrame(ctx, b.publisher, topic, b.codec, dir, sid, msg, extra)
}

func (b *BusListener) report(dir Direction, sid sessionpkg.ID, err error) {
	if err == nil {
		return
	}
	b.logger.Error("bus publish failed", err, loggingpkg.LogFields{
		"direction": string(dir),
		"session":   sid.String(),
	})
	if b.OnError != nil {
		b.OnError(dir, sid, err)
	}
}
