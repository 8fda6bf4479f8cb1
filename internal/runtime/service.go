package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	codecpkg "github.com/drblury/fixflow/internal/runtime/codec"
	configpkg "github.com/drblury/fixflow/internal/runtime/config"
	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	fieldspkg "github.com/drblury/fixflow/internal/runtime/fields"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
	"github.com/drblury/fixflow/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators of a Service. Zero
// values select the defaults.
type ServiceDependencies struct {
	// Engine receives inbound frames and outbound notifications. A new one is
	// created when nil.
	Engine *Engine
	// Dictionary labels fields in the JSON envelope.
	Dictionary *fieldspkg.Dictionary
	// Transports resolves Conf.PubSubSystem. Defaults to transport.DefaultRegistry.
	Transports *transport.Registry
	// Registerer receives router and engine metrics. Defaults to the global
	// Prometheus registerer; a *prometheus.Registry is also served on /metrics.
	Registerer prometheus.Registerer

	Middlewares               []MiddlewareRegistration // Appended after the default chain.
	DisableDefaultMiddlewares bool
	SignalsHandler            bool // Stop the router on SIGINT/SIGTERM.
}

// Service connects an Engine to the bus: messages the engine sees are
// published as frames, and frames consumed from the bus are delivered to the
// engine's listeners.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	engine       *Engine
	codec        codecpkg.Codec
	bus          *BusListener
	capabilities transport.Capabilities
	registerer   prometheus.Registerer

	transport  transport.Transport
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	inbound   []string
	inboundMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService builds the transport named by conf and the router. Register
// inbound topics before calling Start.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	normalized := conf.WithDefaults()
	conf = &normalized
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("creating fix bus service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	c, err := codecpkg.ByName(conf.Codec, deps.Dictionary)
	if err != nil {
		return nil, err
	}

	registry := deps.Transports
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	engine := deps.Engine
	if engine == nil {
		metrics := NewEngineMetrics(registerer)
		if err := metrics.Register(); err != nil {
			return nil, fmt.Errorf("register engine metrics: %w", err)
		}
		engine = NewEngine(log, WithMetrics(metrics))
	}

	tr, err := registry.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build %s transport: %w", conf.PubSubSystem, err)
	}

	s := &Service{
		Conf:         conf,
		Logger:       log,
		engine:       engine,
		codec:        c,
		capabilities: registry.Capabilities(conf.PubSubSystem),
		registerer:   registerer,
		transport:    tr,
		publisher:    tr.Publisher,
		subscriber:   tr.Subscriber,
	}
	if !s.capabilities.Ordered {
		log.Info("transport does not guarantee ordering; FIX sequence gaps may appear downstream",
			loggingpkg.LogFields{"pubsub_system": conf.PubSubSystem})
	}

	s.bus, err = NewBusListener(DefaultBusListenerID, tr.Publisher, c, conf.ReceivedTopic, conf.SentTopic, log)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	s.router, err = message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	if deps.SignalsHandler {
		s.router.AddPlugin(plugin.SignalsHandler)
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = tr.Close()
		return nil, err
	}
	if conf.InboundTopic != "" {
		if err := s.ConsumeInbound(conf.InboundTopic); err != nil {
			_ = tr.Close()
			return nil, err
		}
	}
	return s, nil
}

// Accessors for the collaborators built by NewService.
func (s *Service) Engine() *Engine                      { return s.engine }
func (s *Service) Codec() codecpkg.Codec                { return s.codec }
func (s *Service) Capabilities() transport.Capabilities { return s.capabilities }
func (s *Service) Publisher() message.Publisher         { return s.publisher }
func (s *Service) Subscriber() message.Subscriber       { return s.subscriber }
func (s *Service) Router() *message.Router              { return s.router }

// Receive records a message that arrived from a counterparty: it is published
// to the received topic and then delivered to OnReceive listeners. Listener
// panics are reported in the returned error after every listener ran.
func (s *Service) Receive(ctx context.Context, sid sessionpkg.ID, msg *messagepkg.Message) error {
	if err := s.bus.Publish(ctx, Received, sid, msg); err != nil {
		return err
	}
	return s.engine.NotifyReceive(ctx, sid, msg)
}

// Publish records a message sent to a counterparty: it is published to the
// sent topic and then delivered to OnSend listeners.
func (s *Service) Publish(ctx context.Context, sid sessionpkg.ID, msg *messagepkg.Message) error {
	if err := s.bus.Publish(ctx, Sent, sid, msg); err != nil {
		return err
	}
	return s.engine.NotifySend(ctx, sid, msg)
}

// Start runs the router until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	s.startAdmin()
	s.startHTTPServers(ctx)
	return routerRun(s.router, ctx)
}

// Running is closed once the router has started its handlers.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router and releases the transport.
func (s *Service) Close() error {
	return errors.Join(s.router.Close(), s.transport.Close())
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares(s.Conf)
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the server for port, started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers(ctx context.Context) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.Logger.Info("starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
}
