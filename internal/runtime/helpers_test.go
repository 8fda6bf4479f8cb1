package runtime

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	fieldspkg "github.com/drblury/fixflow/internal/runtime/fields"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	m := NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Register())
	return NewEngine(newTestLogger(), WithMetrics(m))
}

func testSession(t *testing.T) sessionpkg.ID {
	t.Helper()
	sid, err := sessionpkg.New("FIX.4.4",
		sessionpkg.Communicator{CompID: "BUYSIDE", SubID: "DESK1"},
		sessionpkg.Communicator{CompID: "SELLSIDE"})
	require.NoError(t, err)
	return sid
}

var (
	clOrdID  = fieldspkg.NewStringField(11, "ClOrdID")
	orderQty = fieldspkg.NewDecimalField(38, "OrderQty")
)

func newOrder(id string) *messagepkg.Message {
	b := messagepkg.NewBuilder()
	messagepkg.AddValue(b, fieldspkg.MsgType, "D")
	messagepkg.AddValue(b, clOrdID, id)
	messagepkg.AddValue(b, orderQty, fieldspkg.MustDecimal("100.5"))
	return b.Freeze()
}

type event struct {
	listener string
	dir      Direction
	session  sessionpkg.ID
	msg      *messagepkg.Message
}

// recorder appends one event per callback to a shared log so ordering across
// listeners can be asserted.
type recorder struct {
	id  string
	mu  *sync.Mutex
	log *[]event
}

func newRecorders(ids ...string) ([]*recorder, func() []event) {
	var mu sync.Mutex
	var log []event
	out := make([]*recorder, len(ids))
	for i, id := range ids {
		out[i] = &recorder{id: id, mu: &mu, log: &log}
	}
	return out, func() []event {
		mu.Lock()
		defer mu.Unlock()
		return append([]event(nil), log...)
	}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) OnReceive(sid sessionpkg.ID, msg *messagepkg.Message) {
	r.record(Received, sid, msg)
}

func (r *recorder) OnSend(sid sessionpkg.ID, msg *messagepkg.Message) {
	r.record(Sent, sid, msg)
}

func (r *recorder) record(dir Direction, sid sessionpkg.ID, msg *messagepkg.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, event{listener: r.id, dir: dir, session: sid, msg: msg})
}

type testPublisher struct {
	mu     sync.Mutex
	topics []string
	frames []*message.Message
	err    error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, m := range messages {
		p.topics = append(p.topics, topic)
		p.frames = append(p.frames, m)
	}
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Published() ([]string, []*message.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([]*message.Message(nil), p.frames...)
}
