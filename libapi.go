package servicemirror

import (
	runtimepkg "github.com/drblury/servicemirror/internal/runtime"
	configpkg "github.com/drblury/servicemirror/internal/runtime/config"
	"github.com/drblury/servicemirror/internal/runtime/decoder"
	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	idspkg "github.com/drblury/servicemirror/internal/runtime/ids"
	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	metadatapkg "github.com/drblury/servicemirror/internal/runtime/metadata"
	"github.com/drblury/servicemirror/internal/runtime/model"
	transportpkg "github.com/drblury/servicemirror/internal/runtime/transport"
	bus "github.com/drblury/servicemirror/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	Transport           = transportpkg.Transport
	TransportFactory    = transportpkg.Factory
	TransportFactoryFn  = transportpkg.FactoryFunc

	ServiceRecord = model.ServiceRecord
	EventType     = model.EventType
	CommentDraft  = model.CommentDraft
	CommentEvent  = model.CommentEvent
	Rating        = model.Rating

	ServiceRequest   = runtimepkg.ServiceRequest
	CommentPublisher = runtimepkg.CommentPublisher
	PipelineMetrics  = runtimepkg.PipelineMetrics
	PipelineSnapshot = runtimepkg.PipelineSnapshot

	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration
	MiddlewareBuilder          = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration     = runtimepkg.MiddlewareRegistration

	DecodeResult = decoder.Result

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	DomainError             = errspkg.DomainError
	RemoteError             = errspkg.RemoteError
	CorrelationTimeoutError = errspkg.CorrelationTimeoutError
	ConfigValidationError   = errspkg.ConfigValidationError

	// Transport capabilities
	Capabilities = bus.Capabilities

	TransportBuilder  = bus.Builder
	TransportConfig   = bus.Config
	TransportRegistry = bus.Registry
)

var (
	NewService     = runtimepkg.NewService
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	RegisterMessageHandler = runtimepkg.RegisterMessageHandler

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	NewMessageFromJSON = runtimepkg.NewMessageFromJSON
	PublishJSON        = runtimepkg.PublishJSON
	NewCommentEvent    = model.NewCommentEvent
	ShadowKey          = model.ShadowKey
	ParseEventType     = model.ParseEventType

	DecodePayload = decoder.DecodeWithInfo

	GetCapabilities = bus.GetCapabilities

	// Use RegisterTransport to plug in brokers beyond the built-in set.
	DefaultTransportRegistry = bus.DefaultRegistry
	RegisterTransport        = bus.Register
	BuildTransport           = bus.Build

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrServiceRequired      = errspkg.ErrServiceRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrConsumeQueueRequired = errspkg.ErrConsumeQueueRequired
	ErrHandlerNameRequired  = errspkg.ErrHandlerNameRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrTopicRequired        = errspkg.ErrTopicRequired
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrEventPayloadRequired = errspkg.ErrEventPayloadRequired

	ErrServiceNotFound    = errspkg.ErrServiceNotFound
	ErrServiceUnavailable = errspkg.ErrServiceUnavailable
	ErrServiceMismatch    = errspkg.ErrServiceMismatch
	ErrIdentityRequired   = errspkg.ErrIdentityRequired
	ErrCorrelationTimeout = errspkg.ErrCorrelationTimeout
	ErrUnknownTransport   = bus.ErrUnknownTransport

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewNopLogger              = loggingpkg.NewNopLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Metadata keys set on outbound messages.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyEventSchema   = metadatapkg.KeyEventSchema
	MetadataKeyServiceUUID   = metadatapkg.KeyServiceUUID
	MetadataKeyRequestID     = metadatapkg.KeyRequestID
	MetadataKeyContentType   = metadatapkg.KeyContentType
)

// Event types carried by service snapshots.
const (
	EventCreated = model.EventCreated
	EventUpdated = model.EventUpdated
	EventDeleted = model.EventDeleted
	EventUnknown = model.EventUnknown
)
