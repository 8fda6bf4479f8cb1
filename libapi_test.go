package fixflow

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/fixflow/transport/channel"
)

var (
	clOrdID = NewStringField(11, "ClOrdID")
	price   = NewDecimalField(44, "Price")
	noAlloc = NewStringField(79, "AllocAccount")
)

func TestFacadeStoreAccess(t *testing.T) {
	b := NewBuilder()
	AddValue(b, MsgType, "D")
	AddValue(b, clOrdID, "ORD-1")
	AddValue(b, price, MustDecimal("1.2345"))
	AddValue(b, noAlloc, "ACC-A")
	AddValue(b, noAlloc, "ACC-B")
	msg := b.Freeze()

	id, err := Get(msg, clOrdID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", id)

	second, err := GetAt(msg, noAlloc, 1)
	require.NoError(t, err)
	assert.Equal(t, "ACC-B", second)

	all, err := GetAll(msg, noAlloc)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC-A", "ACC-B"}, all)

	_, ok, err := Find(msg, SenderCompID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Get(msg, TargetCompID)
	assert.ErrorIs(t, err, ErrTagAbsent)
	_, err = GetAt(msg, clOrdID, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = Get(msg, NewIntField(11, "ClOrdIDAsInt"))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, uint32(11), fe.Tag)
}

func TestFacadeEngineAndService(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewEngineMetrics(reg)
	require.NoError(t, metrics.Register())
	engine := NewEngine(NopLogger(), WithMetrics(metrics))

	var sent []string
	require.NoError(t, engine.AddListener(ListenerFuncs{
		Name: "audit",
		Send: func(_ SessionID, m *Message) {
			id, _ := Get(m, clOrdID)
			sent = append(sent, id)
		},
	}))

	assert.True(t, DefaultTransportRegistry.Has(channel.TransportName))

	svc, err := NewService(context.Background(), &Config{PubSubSystem: channel.TransportName}, NopLogger(), ServiceDependencies{
		Engine:     engine,
		Registerer: reg,
	})
	require.NoError(t, err)
	defer svc.Close()

	sid, err := NewSession("FIX.4.4", Communicator{CompID: "A"}, Communicator{CompID: "B"})
	require.NoError(t, err)
	msg := AddValue(NewBuilder(), clOrdID, "ORD-9").Freeze()
	require.NoError(t, svc.Publish(context.Background(), sid, msg))
	assert.Equal(t, []string{"ORD-9"}, sent)
}

func TestFacadeCodecs(t *testing.T) {
	for _, name := range []string{"json", "proto"} {
		c, err := CodecByName(name, StandardDictionary())
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := CodecByName("xml", nil)
	assert.Error(t, err)
}

func TestFacadeMetadata(t *testing.T) {
	md := NewMetadata(MetadataKeyCorrelationID, "c-1")
	assert.Equal(t, "c-1", md[MetadataKeyCorrelationID])
	assert.NotEmpty(t, NewULID())
}
