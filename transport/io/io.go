// Package io registers a file transport. Every published message is appended
// to one line-delimited JSON journal; subscribers tail the journal and receive
// the lines whose topic matches. It is meant for local runs and for replaying
// captured FIX traffic.
package io

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"

	"github.com/drblury/fixflow/transport"
)

const TransportName = "io"

// DefaultFile is used when no journal path is configured.
const DefaultFile = "fixflow.journal"

// PollInterval is how long a subscriber waits at end of file before reading again.
var PollInterval = 50 * time.Millisecond

func init() {
	transport.Register(TransportName, Build, transport.IOCapabilities)
}

func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	path := cfg.GetIOFile()
	if path == "" {
		path = DefaultFile
	}
	return transport.Transport{
		Publisher:  NewPublisher(path),
		Subscriber: NewSubscriber(path, logger),
	}, nil
}

// Entry is one journal line.
type Entry struct {
	Topic    string            `json:"topic"`
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

var errClosed = errors.New("io: closed")

type Publisher struct {
	path   string
	mu     sync.Mutex
	closed bool
}

func NewPublisher(path string) *Publisher {
	return &Publisher{path: path}
}

// Publish appends messages in order with a single write.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	var buf bytes.Buffer
	for _, msg := range messages {
		line, err := sonic.Marshal(Entry{Topic: topic, UUID: msg.UUID, Metadata: msg.Metadata, Payload: msg.Payload})
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type Subscriber struct {
	path   string
	logger watermill.LoggerAdapter
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewSubscriber(path string, logger watermill.LoggerAdapter) *Subscriber {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Subscriber{path: path, logger: logger, done: make(chan struct{})}
}

// Subscribe reads the journal from the start. Delivery of the next line waits
// for the previous one to be acked; a nacked message is redelivered.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	select {
	case <-s.done:
		return nil, errClosed
	default:
	}
	f, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	out := make(chan *message.Message)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer f.Close()
		s.tail(ctx, f, topic, out)
	}()
	return out, nil
}

func (s *Subscriber) tail(ctx context.Context, f *os.File, topic string, out chan<- *message.Message) {
	reader := bufio.NewReader(f)
	var pending []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if errors.Is(err, io.EOF) {
			if !s.wait(ctx) {
				return
			}
			continue
		}
		if err != nil {
			s.logger.Error("journal read failed", err, watermill.LogFields{"path": s.path})
			return
		}

		line := pending
		pending = nil
		var e Entry
		if err := sonic.Unmarshal(line, &e); err != nil {
			s.logger.Error("skipping malformed journal line", err, watermill.LogFields{"path": s.path})
			continue
		}
		if e.Topic != topic {
			continue
		}
		if !s.deliver(ctx, e, out) {
			return
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, e Entry, out chan<- *message.Message) bool {
	for {
		msg := message.NewMessage(e.UUID, e.Payload)
		for k, v := range e.Metadata {
			msg.Metadata.Set(k, v)
		}
		msg.SetContext(ctx)

		select {
		case out <- msg:
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		}

		select {
		case <-msg.Acked():
			return true
		case <-msg.Nacked():
			s.logger.Debug("redelivering nacked message", watermill.LogFields{"uuid": e.UUID})
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		}
	}
}

func (s *Subscriber) wait(ctx context.Context) bool {
	t := time.NewTimer(PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

// Close stops every tailing goroutine and waits for them to exit.
func (s *Subscriber) Close() error {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}
