package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codecpkg "github.com/drblury/fixflow/internal/runtime/codec"
	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	fieldspkg "github.com/drblury/fixflow/internal/runtime/fields"
	idspkg "github.com/drblury/fixflow/internal/runtime/ids"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	metadatapkg "github.com/drblury/fixflow/internal/runtime/metadata"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, c := range []codecpkg.Codec{codecpkg.NewJSON(fieldspkg.StandardDictionary()), codecpkg.Proto{}} {
		t.Run(c.Name(), func(t *testing.T) {
			sid := testSession(t)
			frame, err := NewFrame(c, Sent, sid, newOrder("ORD-7"), metadatapkg.New("desk", "fx"))
			require.NoError(t, err)

			_, err = idspkg.CreatedAt(frame.UUID)
			require.NoError(t, err, "frame uuid should be a ulid")
			assert.Equal(t, "sent", frame.Metadata.Get(metadatapkg.KeyDirection))
			assert.Equal(t, c.Name(), frame.Metadata.Get(metadatapkg.KeyCodec))
			assert.Equal(t, c.ContentType(), frame.Metadata.Get(metadatapkg.KeyContentType))
			assert.Equal(t, "fx", frame.Metadata.Get("desk"))
			assert.Equal(t, "BUYSIDE", frame.Metadata.Get(sessionpkg.MetadataKeySenderCompID))

			// The fallback differs from the header; the header wins.
			decoded, err := DecodeFrame(frame, otherCodec(c))
			require.NoError(t, err)
			assert.Equal(t, sid, decoded.Session)
			assert.Equal(t, Sent, decoded.Direction)

			id, err := messagepkg.Get(decoded.Message, clOrdID)
			require.NoError(t, err)
			assert.Equal(t, "ORD-7", id)
			qty, err := messagepkg.Get(decoded.Message, orderQty)
			require.NoError(t, err)
			assert.True(t, qty.Equal(fieldspkg.MustDecimal("100.5")))
		})
	}
}

func otherCodec(c codecpkg.Codec) codecpkg.Codec {
	if c.Name() == codecpkg.NameJSON {
		return codecpkg.Proto{}
	}
	return codecpkg.NewJSON(nil)
}

func TestDecodeFrameFailures(t *testing.T) {
	sid := testSession(t)
	good, err := NewFrame(codecpkg.Proto{}, Received, sid, newOrder("1"), nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame func() *message.Message
	}{
		{"unknown codec", func() *message.Message {
			m := good.Copy()
			m.Metadata.Set(metadatapkg.KeyCodec, "xml")
			return m
		}},
		{"missing session", func() *message.Message {
			return message.NewMessage("x", good.Payload)
		}},
		{"corrupt payload", func() *message.Message {
			m := good.Copy()
			m.Payload = []byte{0x0a, 0xff}
			return m
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.frame(), codecpkg.Proto{})
			require.Error(t, err)
			assert.True(t, IsUnprocessable(err))
		})
	}
}

func TestDecodeFrameDefaultsToReceived(t *testing.T) {
	sid := testSession(t)
	payload, err := codecpkg.NewJSON(nil).Marshal(newOrder("1"))
	require.NoError(t, err)
	raw := message.NewMessage("x", payload)
	raw.Metadata = metadatapkg.ToWatermill(sid.ToMetadata())

	frame, err := DecodeFrame(raw, codecpkg.NewJSON(nil))
	require.NoError(t, err)
	assert.Equal(t, Received, frame.Direction)
}

func TestPublishFrameValidation(t *testing.T) {
	sid := testSession(t)
	c := codecpkg.NewJSON(nil)
	assert.ErrorIs(t, PublishFrame(context.Background(), nil, "t", c, Sent, sid, newOrder("1"), nil), errspkg.ErrPublisherRequired)
	assert.ErrorIs(t, PublishFrame(context.Background(), &testPublisher{}, "", c, Sent, sid, newOrder("1"), nil), errspkg.ErrTopicRequired)
	assert.ErrorIs(t, PublishFrame(context.Background(), &testPublisher{}, "t", c, Sent, sid, nil, nil), errspkg.ErrMessageRequired)
}

func TestNewFrameRequiresCompleteSession(t *testing.T) {
	c := codecpkg.NewJSON(nil)

	_, err := NewFrame(c, Received, sessionpkg.ID{}, newOrder("1"), nil)
	assert.ErrorIs(t, err, errspkg.ErrBeginStringRequired)
	assert.ErrorIs(t, err, errspkg.ErrCompIDRequired)

	partial := testSession(t)
	partial.Target = sessionpkg.Communicator{}
	_, err = NewFrame(c, Sent, partial, newOrder("1"), nil)
	assert.ErrorIs(t, err, errspkg.ErrCompIDRequired)
	assert.ErrorContains(t, err, "target")

	pub := &testPublisher{}
	require.Error(t, PublishFrame(context.Background(), pub, "t", c, Sent, sessionpkg.ID{}, newOrder("1"), nil))
	topics, _ := pub.Published()
	assert.Empty(t, topics)
}

func TestPublishFrameCarriesCorrelationID(t *testing.T) {
	pub := &testPublisher{}
	ctx := WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, PublishFrame(ctx, pub, "t", codecpkg.Proto{}, Sent, testSession(t), newOrder("1"), nil))

	_, frames := pub.Published()
	require.Len(t, frames, 1)
	assert.Equal(t, "corr-1", frames[0].Metadata.Get(metadatapkg.KeyCorrelationID))
	assert.Equal(t, "corr-1", CorrelationID(frames[0].Context()))
}

func TestBusListenerPublishesByDirection(t *testing.T) {
	pub := &testPublisher{}
	bus, err := NewBusListener("", pub, nil, "fix.in", "fix.out", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBusListenerID, bus.ID())

	e := newTestEngine(t)
	require.NoError(t, e.AddListener(bus))
	sid := testSession(t)
	require.NoError(t, e.NotifyReceive(context.Background(), sid, newOrder("1")))
	require.NoError(t, e.NotifySend(context.Background(), sid, newOrder("2")))

	topics, frames := pub.Published()
	assert.Equal(t, []string{"fix.in", "fix.out"}, topics)
	assert.Equal(t, DefaultBusListenerID, frames[0].Metadata.Get(metadatapkg.KeyListener))
	assert.Equal(t, "received", frames[0].Metadata.Get(metadatapkg.KeyDirection))
	assert.Equal(t, "sent", frames[1].Metadata.Get(metadatapkg.KeyDirection))
}

func TestBusListenerReportsPublishErrors(t *testing.T) {
	boom := errors.New("broker down")
	bus, err := NewBusListener("mirror", &testPublisher{err: boom}, codecpkg.Proto{}, "a", "b", newTestLogger())
	require.NoError(t, err)

	var reported []error
	bus.OnError = func(dir Direction, _ sessionpkg.ID, err error) {
		assert.Equal(t, Sent, dir)
		reported = append(reported, err)
	}
	bus.OnSend(testSession(t), newOrder("1"))
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
}

func TestNewBusListenerValidation(t *testing.T) {
	_, err := NewBusListener("x", nil, nil, "a", "b", nil)
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
	_, err = NewBusListener("x", &testPublisher{}, nil, "", "b", nil)
	assert.ErrorIs(t, err, errspkg.ErrTopicRequired)
}
