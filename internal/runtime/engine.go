package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

// Direction tells listeners which way a message travelled.
type Direction string

const (
	Received Direction = "received"
	Sent     Direction = "sent"
)

// Listener observes every message the engine receives or sends. Listeners are
// identified by ID; two registrations with the same ID are the same listener.
type Listener interface {
	ID() string
	OnReceive(sid sessionpkg.ID, msg *messagepkg.Message)
	OnSend(sid sessionpkg.ID, msg *messagepkg.Message)
}

// ListenerFuncs adapts plain functions to Listener. Nil callbacks are skipped.
type ListenerFuncs struct {
	Name    string
	Receive func(sessionpkg.ID, *messagepkg.Message)
	Send    func(sessionpkg.ID, *messagepkg.Message)
}

func (l ListenerFuncs) ID() string { return l.Name }

func (l ListenerFuncs) OnReceive(sid sessionpkg.ID, msg *messagepkg.Message) {
	if l.Receive != nil {
		l.Receive(sid, msg)
	}
}

func (l ListenerFuncs) OnSend(sid sessionpkg.ID, msg *messagepkg.Message) {
	if l.Send != nil {
		l.Send(sid, msg)
	}
}

// ListenerPanicError reports a listener that panicked during a notification.
type ListenerPanicError struct {
	ListenerID string
	Direction  Direction
	Value      any
}

func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener %q panicked on %s: %v", e.ListenerID, e.Direction, e.Value)
}

// Engine is the registry of listeners for one FIX engine. It replaces any
// process-wide listener list: create one per engine and pass it around.
type Engine struct {
	mu        sync.RWMutex
	listeners []Listener

	logger  loggingpkg.ServiceLogger
	metrics *EngineMetrics
	tracer  trace.Tracer
}

// EngineOption customises NewEngine.
type EngineOption func(*Engine)

// WithMetrics records notifications on m instead of a collector registered
// with the default Prometheus registerer.
func WithMetrics(m *EngineMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer records notification spans on t instead of the global provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine returns an empty registry. A nil logger discards output.
func NewEngine(logger loggingpkg.ServiceLogger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	e := &Engine{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewEngineMetrics(nil)
		if err := e.metrics.Register(); err != nil {
			logger.Error("engine metrics not registered", err, nil)
		}
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("fixflow/engine")
	}
	return e
}

// AddListener registers l after the existing listeners. A listener whose ID is
// already registered replaces the earlier entry and keeps its position.
func (e *Engine) AddListener(l Listener) error {
	if l == nil {
		return errspkg.ErrListenerRequired
	}
	id := l.ID()
	if id == "" {
		return errspkg.ErrListenerIDRequired
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(id); i >= 0 {
		e.listeners[i] = l
		e.logger.Debug("listener replaced", loggingpkg.LogFields{"listener": id})
		return nil
	}
	e.listeners = append(e.listeners, l)
	e.logger.Debug("listener added", loggingpkg.LogFields{"listener": id, "count": len(e.listeners)})
	return nil
}

// RemoveListener removes the listener registered under id and reports whether
// one was found.
func (e *Engine) RemoveListener(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexLocked(id)
	if i < 0 {
		return false
	}
	e.listeners = slices.Delete(e.listeners, i, i+1)
	e.logger.Debug("listener removed", loggingpkg.LogFields{"listener": id})
	return true
}

// Listeners returns the registered IDs in notification order.
func (e *Engine) Listeners() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, len(e.listeners))
	for i, l := range e.listeners {
		ids[i] = l.ID()
	}
	return ids
}

// Metrics returns the counters the engine records into.
func (e *Engine) Metrics() *EngineMetrics { return e.metrics }

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.listeners, func(l Listener) bool { return l.ID() == id })
}

// NotifyReceive calls OnReceive on every listener in registration order.
func (e *Engine) NotifyReceive(ctx context.Context, sid sessionpkg.ID, msg *messagepkg.Message) error {
	return e.notify(ctx, Received, sid, msg)
}

// NotifySend calls OnSend on every listener in registration order.
func (e *Engine) NotifySend(ctx context.Context, sid sessionpkg.ID, msg *messagepkg.Message) error {
	return e.notify(ctx, Sent, sid, msg)
}

// notify works on a snapshot, so listeners may add or remove listeners without
// deadlocking; changes apply from the next notification. A panicking listener
// does not stop delivery to the ones after it.
func (e *Engine) notify(ctx context.Context, dir Direction, sid sessionpkg.ID, msg *messagepkg.Message) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.RLock()
	snapshot := slices.Clone(e.listeners)
	e.mu.RUnlock()

	_, span := e.tracer.Start(ctx, "fixflow.notify."+string(dir), trace.WithAttributes(
		attribute.String("fix.session", sid.String()),
		attribute.Int("fix.fields", msg.Len()),
		attribute.Int("fixflow.listeners", len(snapshot)),
	))
	defer span.End()

	start := time.Now()
	var errs []error
	for _, l := range snapshot {
		if err := e.invoke(l, dir, sid, msg); err != nil {
			errs = append(errs, err)
		}
	}
	e.metrics.observe(dir, time.Since(start))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listener panicked")
	}
	return err
}

func (e *Engine) invoke(l Listener, dir Direction, sid sessionpkg.ID, msg *messagepkg.Message) (err error) {
	id := l.ID()
	defer func() {
		if r := recover(); r != nil {
			err = &ListenerPanicError{ListenerID: id, Direction: dir, Value: r}
			e.metrics.recordPanic(id, dir)
			e.logger.Error("listener panicked", err, loggingpkg.LogFields{
				"listener":  id,
				"direction": string(dir),
				"session":   sid.String(),
			})
		}
	}()
	if dir == Received {
		l.OnReceive(sid, msg)
	} else {
		l.OnSend(sid, msg)
	}
	e.metrics.recordDelivery(id, dir)
	return nil
}
