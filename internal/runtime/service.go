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

	configpkg "github.com/drblury/servicemirror/internal/runtime/config"
	"github.com/drblury/servicemirror/internal/runtime/correlation"
	"github.com/drblury/servicemirror/internal/runtime/ingest"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	transportpkg "github.com/drblury/servicemirror/internal/runtime/transport"
	"github.com/drblury/servicemirror/internal/runtime/view"
)

// IngestHandlerName is the router handler consuming Config.ServiceTopic.
const IngestHandlerName = "service-ingest"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds optional collaborators. Leave fields zero to use
// the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory
	// MetricsRegisterer receives the pipeline collectors when metrics are
	// enabled. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

// Service owns the view, the correlation bridge and the router that feeds
// them, plus the publisher for outbound comment events.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	view     *view.View
	bridge   *correlation.Bridge
	pipeline *ingest.Pipeline
	comments *CommentPublisher
	metrics  *PipelineMetrics

	capabilities transportpkg.Capabilities

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService builds the service for conf and registers the ingest handler on
// the service topic. It panics when the transport or router cannot be built.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	if conf == nil {
		panic("servicemirror: configuration is required")
	}
	if log == nil {
		panic("servicemirror: logger is required")
	}
	normalized := conf.WithDefaults()
	if err := normalized.Validate(); err != nil {
		panic(fmt.Sprintf("servicemirror: invalid configuration: %v", err))
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating service mirror",
		loggingpkg.LogFields{
			"pubsub_system": normalized.PubSubSystem,
			"config":        normalized,
		})

	s := &Service{
		Conf:    &normalized,
		Logger:  log,
		metrics: NewPipelineMetrics(deps.MetricsRegisterer),
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, s.Conf, wmLogger)
	if err != nil {
		panic(err)
	}
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber
	s.checkCapabilities()

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		panic(err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	s.wireComponents()
	s.registerConfiguredMiddlewares(deps)
	s.StartAdminServer()

	if err := s.registerHandler(handlerRegistration{
		Name:         IngestHandlerName,
		ConsumeQueue: s.Conf.ServiceTopic,
		Consumer:     s.pipeline.Handler(),
	}); err != nil {
		panic(err)
	}

	return s
}

func (s *Service) wireComponents() {
	s.view = view.New(view.WithSizeObserver(s.metrics.ViewSize))
	s.bridge = correlation.New(
		correlation.WithTimeout(s.Conf.CorrelationTimeout),
		correlation.WithRetention(s.Conf.CorrelationRetention),
		correlation.WithLogger(s.Logger.With(loggingpkg.LogFields{"component": "correlation"})),
		correlation.WithOutcomeObserver(s.metrics.CorrelationOutcome),
	)
	s.pipeline = ingest.New(s.view, s.bridge,
		ingest.WithLogger(s.Logger.With(loggingpkg.LogFields{"component": "ingest", "topic": s.Conf.ServiceTopic})),
		ingest.WithRecorder(s.metrics),
	)
	s.comments = NewCommentPublisher(s.publisher, s.Conf.CommentTopic, s.Logger, s.metrics)
}

func (s *Service) checkCapabilities() {
	s.capabilities = transportpkg.CapabilitiesFor(s.Conf.PubSubSystem)
	fields := loggingpkg.LogFields{"pubsub_system": s.Conf.PubSubSystem}
	if !s.capabilities.PreservesLastWrite() {
		s.Logger.Warn("Transport does not preserve publish order; a stale snapshot may replace a newer one", fields)
	}
	if !s.capabilities.Durable {
		s.Logger.Info("Transport is not durable; snapshots published while the mirror is down are lost", fields)
	}
}

// Start runs the router until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	stop := s.startHTTPServers()
	defer stop()
	return routerRun(s.router, ctx)
}

// Running is closed once the router consumes messages.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router and releases the transport. A router that never ran
// is left alone; closing it would block until the router close timeout.
func (s *Service) Close() error {
	var errs []error
	if s.routerStarted() {
		if err := s.router.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.subscriber != nil {
		if err := s.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) routerStarted() bool {
	select {
	case <-s.router.Running():
		return true
	default:
		return false
	}
}

// View exposes the materialized view.
func (s *Service) View() *view.View { return s.view }

// Bridge exposes the correlation bridge.
func (s *Service) Bridge() *correlation.Bridge { return s.bridge }

// Pipeline exposes the ingest pipeline, mostly for direct feeding in tests.
func (s *Service) Pipeline() *ingest.Pipeline { return s.pipeline }

// Comments returns the outbound comment publisher.
func (s *Service) Comments() *CommentPublisher { return s.comments }

// Metrics returns the pipeline counters.
func (s *Service) Metrics() *PipelineMetrics { return s.metrics }

// TransportCapabilities reports the delivery guarantees of the configured
// transport.
func (s *Service) TransportCapabilities() transportpkg.Capabilities { return s.capabilities }

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
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
			panic(fmt.Sprintf("failed to register middleware %s: %v", name, err))
		}
	}
}

// RegisterHTTPHandler mounts handler on the server for port. Servers start
// with Start.
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

func (s *Service) startHTTPServers() func() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	servers := make([]*http.Server, 0, len(s.httpServers))
	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		servers = append(servers, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server stopped", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(ctx)
		}
	}
}
