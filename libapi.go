package fixflow

import (
	runtimepkg "github.com/drblury/fixflow/internal/runtime"
	codecpkg "github.com/drblury/fixflow/internal/runtime/codec"
	configpkg "github.com/drblury/fixflow/internal/runtime/config"
	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	fieldspkg "github.com/drblury/fixflow/internal/runtime/fields"
	idspkg "github.com/drblury/fixflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/fixflow/internal/runtime/logging"
	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	metadatapkg "github.com/drblury/fixflow/internal/runtime/metadata"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
	"github.com/drblury/fixflow/transport"
)

type (
	Tag            = fieldspkg.Tag
	Kind           = fieldspkg.Kind
	Value          = fieldspkg.Value
	Decimal        = fieldspkg.Decimal
	Field[T any]   = fieldspkg.Field[T]
	Descriptor     = fieldspkg.Descriptor
	TagValue       = fieldspkg.TagValue
	Dictionary     = fieldspkg.Dictionary
	Builder        = messagepkg.Builder
	Message        = messagepkg.Message
	FieldError     = errspkg.FieldError
	DecodeError    = errspkg.DecodeError
	SessionID      = sessionpkg.ID
	Communicator   = sessionpkg.Communicator
	Codec          = codecpkg.Codec
	JSONCodec      = codecpkg.JSON
	ProtoCodec     = codecpkg.Proto
	Metadata       = metadatapkg.Metadata
	LogFields      = loggingpkg.LogFields
	ServiceLogger  = loggingpkg.ServiceLogger
	Config         = configpkg.Config
	TransportCaps  = transport.Capabilities
	TransportReg   = transport.Registry
	TransportBuild = transport.Builder

	Engine                = runtimepkg.Engine
	EngineOption          = runtimepkg.EngineOption
	EngineMetrics         = runtimepkg.EngineMetrics
	EngineMetricsSnapshot = runtimepkg.EngineMetricsSnapshot
	ListenerStats         = runtimepkg.ListenerStats
	Listener              = runtimepkg.Listener
	ListenerFuncs         = runtimepkg.ListenerFuncs
	ListenerPanicError    = runtimepkg.ListenerPanicError
	Direction             = runtimepkg.Direction

	Service                 = runtimepkg.Service
	ServiceDependencies     = runtimepkg.ServiceDependencies
	InboundRegistration     = runtimepkg.InboundRegistration
	BusListener             = runtimepkg.BusListener
	Frame                   = runtimepkg.Frame
	UnprocessableFrameError = runtimepkg.UnprocessableFrameError
	AdminStatus             = runtimepkg.AdminStatus

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	ConfigValidationError = errspkg.ConfigValidationError
)

const (
	KindString    = fieldspkg.KindString
	KindInt       = fieldspkg.KindInt
	KindDecimal   = fieldspkg.KindDecimal
	KindTimestamp = fieldspkg.KindTimestamp
	KindChar      = fieldspkg.KindChar
	KindBool      = fieldspkg.KindBool
	KindBytes     = fieldspkg.KindBytes

	Received = runtimepkg.Received
	Sent     = runtimepkg.Sent

	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyDirection     = metadatapkg.KeyDirection
	MetadataKeyCodec         = metadatapkg.KeyCodec
)

// Standard header descriptors.
var (
	BeginString      = fieldspkg.BeginString
	BodyLength       = fieldspkg.BodyLength
	CheckSum         = fieldspkg.CheckSum
	MsgSeqNum        = fieldspkg.MsgSeqNum
	MsgType          = fieldspkg.MsgType
	SenderCompID     = fieldspkg.SenderCompID
	SenderSubID      = fieldspkg.SenderSubID
	SendingTime      = fieldspkg.SendingTime
	TargetCompID     = fieldspkg.TargetCompID
	TargetSubID      = fieldspkg.TargetSubID
	SenderLocationID = fieldspkg.SenderLocationID
	TargetLocationID = fieldspkg.TargetLocationID
	PossDupFlag      = fieldspkg.PossDupFlag
)

var (
	NewStringField    = fieldspkg.NewStringField
	NewIntField       = fieldspkg.NewIntField
	NewDecimalField   = fieldspkg.NewDecimalField
	NewTimestampField = fieldspkg.NewTimestampField
	NewCharField      = fieldspkg.NewCharField
	NewBoolField      = fieldspkg.NewBoolField
	NewBytesField     = fieldspkg.NewBytesField

	StringValue    = fieldspkg.StringValue
	IntValue       = fieldspkg.IntValue
	DecimalValue   = fieldspkg.DecimalValue
	TimestampValue = fieldspkg.TimestampValue
	CharValue      = fieldspkg.CharValue
	BoolValue      = fieldspkg.BoolValue
	BytesValue     = fieldspkg.BytesValue

	ParseDecimal       = fieldspkg.ParseDecimal
	MustDecimal        = fieldspkg.MustDecimal
	NewDictionary      = fieldspkg.NewDictionary
	StandardDictionary = fieldspkg.StandardDictionary

	NewBuilder = messagepkg.NewBuilder

	NewSession         = sessionpkg.New
	SessionFromMessage = sessionpkg.FromMessage
	SessionFromMeta    = sessionpkg.FromMetadata

	NewJSONCodec = codecpkg.NewJSON
	CodecByName  = codecpkg.ByName

	NewEngine        = runtimepkg.NewEngine
	NewEngineMetrics = runtimepkg.NewEngineMetrics
	WithMetrics      = runtimepkg.WithMetrics
	WithTracer       = runtimepkg.WithTracer

	NewService        = runtimepkg.NewService
	NewBusListener    = runtimepkg.NewBusListener
	NewFrame          = runtimepkg.NewFrame
	DecodeFrame       = runtimepkg.DecodeFrame
	PublishFrame      = runtimepkg.PublishFrame
	IsUnprocessable   = runtimepkg.IsUnprocessable
	WithCorrelationID = runtimepkg.WithCorrelationID
	CorrelationID     = runtimepkg.CorrelationID

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	ValidateConfig = configpkg.ValidateConfig

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register
	BuildTransport           = transport.Build
	GetCapabilities          = transport.GetCapabilities

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New
	NewULID     = idspkg.New

	ErrTagAbsent           = errspkg.ErrTagAbsent
	ErrIndexOutOfRange     = errspkg.ErrIndexOutOfRange
	ErrTypeMismatch        = errspkg.ErrTypeMismatch
	ErrMalformedValue      = errspkg.ErrMalformedValue
	ErrMessageRequired     = errspkg.ErrMessageRequired
	ErrPublisherRequired   = errspkg.ErrPublisherRequired
	ErrTopicRequired       = errspkg.ErrTopicRequired
	ErrConfigRequired      = errspkg.ErrConfigRequired
	ErrLoggerRequired      = errspkg.ErrLoggerRequired
	ErrListenerRequired    = errspkg.ErrListenerRequired
	ErrListenerIDRequired  = errspkg.ErrListenerIDRequired
	ErrBeginStringRequired = errspkg.ErrBeginStringRequired
	ErrCompIDRequired      = errspkg.ErrCompIDRequired
)

func AddValue[T any](b *Builder, f Field[T], v T) *Builder {
	return messagepkg.AddValue(b, f, v)
}

func Get[T any](m *Message, f Field[T]) (T, error) {
	return messagepkg.Get(m, f)
}

func GetAt[T any](m *Message, f Field[T], index int) (T, error) {
	return messagepkg.GetAt(m, f, index)
}

func Find[T any](m *Message, f Field[T]) (T, bool, error) {
	return messagepkg.Find(m, f)
}

func GetAll[T any](m *Message, f Field[T]) ([]T, error) {
	return messagepkg.GetAll(m, f)
}
