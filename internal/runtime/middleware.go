package runtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	configpkg "github.com/drblury/fixflow/internal/runtime/config"
	idspkg "github.com/drblury/fixflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/fixflow/internal/runtime/metadata"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

// MiddlewareBuilder constructs a handler middleware for a service. Returning a
// nil middleware skips registration.
type MiddlewareBuilder func(*Service) (message.HandlerMiddleware, error)

// MiddlewareRegistration names a middleware for the router chain.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

// RetryMiddlewareConfig customises the retry middleware.
type RetryMiddlewareConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryIf         func(error) bool
}

func (cfg RetryMiddlewareConfig) withDefaults() RetryMiddlewareConfig {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	return cfg
}

// DefaultMiddlewares returns the standard chain, outermost first. Retry
// settings come from conf, which may be nil.
func DefaultMiddlewares(conf *configpkg.Config) []MiddlewareRegistration {
	retry := RetryMiddlewareConfig{}
	if conf != nil {
		retry.MaxRetries = conf.RetryMaxRetries
		retry.InitialInterval = conf.RetryInitialInterval
		retry.MaxInterval = conf.RetryMaxInterval
	}
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		LogMessagesMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
		PoisonQueueMiddleware(nil),
		RetryMiddleware(retry),
		RecovererMiddleware(),
	}
}

// MetricsMiddleware records watermill router metrics and serves /metrics when
// metrics are enabled.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}
			builder := metrics.NewPrometheusMetricsBuilder(s.registerer, "fixflow", s.Conf.PubSubSystem)
			builder.AddPrometheusRouterMetrics(s.router)

			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", metricsHandler(s.registerer))
			}
			return builder.NewRouterMiddleware().Middleware, nil
		},
	}
}

func metricsHandler(reg prometheus.Registerer) http.Handler {
	if g, ok := reg.(prometheus.Gatherer); ok && reg != prometheus.DefaultRegisterer {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// CorrelationIDMiddleware ensures each frame carries a correlation id and
// exposes it on the message context.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "correlation_id",
		Middleware: correlationIDMiddleware,
	}
}

func correlationIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		cid := msg.Metadata.Get(metadatapkg.KeyCorrelationID)
		if cid == "" {
			cid = idspkg.New()
			msg.Metadata.Set(metadatapkg.KeyCorrelationID, cid)
		}
		msg.SetContext(WithCorrelationID(msg.Context(), cid))
		return h(msg)
	}
}

type correlationIDKey struct{}

// WithCorrelationID attaches id to ctx; frames published with ctx carry it.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func correlationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey{}).(string)
	return id, ok && id != ""
}

// CorrelationID returns the id attached by WithCorrelationID or the middleware.
func CorrelationID(ctx context.Context) string {
	id, _ := correlationIDFrom(ctx)
	return id
}

// LogMessagesMiddleware logs every handled frame at debug level. Payloads are
// not logged since they may carry order details.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("log messages middleware requires a logger")
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			logger.Debug("processing frame", loggingpkg.LogFields{
				"message_uuid":   msg.UUID,
				"payload_bytes":  len(msg.Payload),
				"direction":      msg.Metadata.Get(metadatapkg.KeyDirection),
				"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
			})
			return h(msg)
		}
	}
}

// TracerMiddleware wraps frame handling in an OpenTelemetry span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "tracer",
		Middleware: tracerMiddleware,
	}
}

func tracerMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx, span := otel.Tracer("fixflow/bus").Start(msg.Context(), "fixflow.consume")
		defer span.End()
		msg.SetContext(ctx)

		span.SetAttributes(
			attribute.String("messaging.message.id", msg.UUID),
			attribute.String("fix.direction", msg.Metadata.Get(metadatapkg.KeyDirection)),
			attribute.String("fix.begin_string", msg.Metadata.Get(sessionpkg.MetadataKeyBeginString)),
			attribute.String("fix.sender_comp_id", msg.Metadata.Get(sessionpkg.MetadataKeySenderCompID)),
			attribute.String("fix.target_comp_id", msg.Metadata.Get(sessionpkg.MetadataKeyTargetCompID)),
		)
		out, err := h(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	}
}

// RetryMiddleware retries failed handling with exponential backoff. Frames
// that cannot be decoded are never retried.
func RetryMiddleware(cfg RetryMiddlewareConfig) MiddlewareRegistration {
	normalized := cfg.withDefaults()
	return MiddlewareRegistration{
		Name: "retry",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			return middleware.Retry{
				MaxRetries:      normalized.MaxRetries,
				InitialInterval: normalized.InitialInterval,
				MaxInterval:     normalized.MaxInterval,
				Multiplier:      2,
				Logger:          loggingpkg.NewWatermillAdapter(s.Logger),
				ShouldRetry: func(params middleware.RetryParams) bool {
					if IsUnprocessable(params.Err) {
						return false
					}
					if normalized.RetryIf != nil {
						return normalized.RetryIf(params.Err)
					}
					return true
				},
			}.Middleware, nil
		},
	}
}

// PoisonQueueMiddleware publishes frames matching filter to Conf.PoisonTopic
// and acks them. The default filter matches undecodable frames. Without a
// poison topic the middleware is skipped.
func PoisonQueueMiddleware(filter func(error) bool) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "poison_queue",
		Builder: func(s *Service) (message.HandlerMiddleware, error) {
			if s.Conf.PoisonTopic == "" {
				return nil, nil
			}
			if s.publisher == nil {
				return nil, errors.New("publisher is required for poison queue middleware")
			}
			f := filter
			if f == nil {
				f = IsUnprocessable
			}
			return middleware.PoisonQueueWithFilter(s.publisher, s.Conf.PoisonTopic, f)
		},
	}
}

// IsUnprocessable reports whether err wraps an UnprocessableFrameError.
func IsUnprocessable(err error) bool {
	var target *UnprocessableFrameError
	return errors.As(err, &target)
}

// RecovererMiddleware turns handler panics into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

// RegisterMiddleware attaches cfg to the router.
func (s *Service) RegisterMiddleware(cfg MiddlewareRegistration) error {
	if s.router == nil {
		return errors.New("router is not initialised")
	}

	var mw message.HandlerMiddleware
	switch {
	case cfg.Middleware != nil:
		mw = cfg.Middleware
	case cfg.Builder != nil:
		var err error
		mw, err = cfg.Builder(s)
		if err != nil {
			return err
		}
	default:
		return errors.New("middleware registration requires Middleware or Builder")
	}

	if mw == nil {
		return nil
	}
	s.router.AddMiddleware(mw)
	return nil
}
