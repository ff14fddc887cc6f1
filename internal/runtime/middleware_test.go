package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/servicemirror/internal/runtime/config"
	idspkg "github.com/drblury/servicemirror/internal/runtime/ids"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	"github.com/drblury/servicemirror/internal/runtime/metadata"
)

func newBareService(t *testing.T, conf *configpkg.Config) *Service {
	t.Helper()
	log := newTestLogger()
	router, err := message.NewRouter(message.RouterConfig{}, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		t.Fatalf("router init failed: %v", err)
	}
	return &Service{
		Conf:    conf,
		Logger:  log,
		router:  router,
		metrics: NewPipelineMetrics(prometheus.NewRegistry()),
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	mw := svc.correlationIDMiddleware()

	t.Run("adds missing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		called := false
		_, err := mw(func(m *message.Message) ([]*message.Message, error) {
			called = true
			if m.Metadata.Get(metadata.KeyCorrelationID) == "" {
				t.Fatal("expected correlation id to be populated")
			}
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatal("handler not invoked")
		}
	})

	t.Run("keeps existing id", func(t *testing.T) {
		msg := message.NewMessage(idspkg.CreateULID(), nil)
		msg.Metadata.Set(metadata.KeyCorrelationID, "fixed")
		_, err := mw(func(m *message.Message) ([]*message.Message, error) {
			if m.Metadata.Get(metadata.KeyCorrelationID) != "fixed" {
				t.Fatal("expected correlation id to be preserved")
			}
			return nil, nil
		})(msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

type traceCapture struct {
	loggingpkg.ServiceLogger
	traced []string
}

func (c *traceCapture) Trace(msg string, fields loggingpkg.LogFields) {
	c.traced = append(c.traced, msg)
}

func TestLogMessagesMiddleware(t *testing.T) {
	t.Parallel()

	logger := &traceCapture{ServiceLogger: loggingpkg.NewNopLogger()}
	svc := &Service{}
	mw := svc.logMessagesMiddleware(logger)

	msg := message.NewMessage(idspkg.CreateULID(), []byte(`{"title":"x"}`))
	if _, err := mw(func(*message.Message) ([]*message.Message, error) { return nil, nil })(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.traced) != 1 || logger.traced[0] != "Processing message" {
		t.Fatalf("expected one trace entry, got %v", logger.traced)
	}
}

func TestLogMessagesMiddlewareValidations(t *testing.T) {
	t.Parallel()

	if _, err := LogMessagesMiddleware(nil).Builder(&Service{}); err == nil {
		t.Fatal("expected error when no logger is available")
	}
}

func TestTracerMiddleware(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	mw := svc.tracerMiddleware()
	msg := message.NewMessage(idspkg.CreateULID(), nil)
	msg.SetContext(context.Background())

	var observed trace.Span
	_, err := mw(func(m *message.Message) ([]*message.Message, error) {
		observed = trace.SpanFromContext(m.Context())
		return nil, nil
	})(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if observed == nil {
		t.Fatal("expected span to be attached to context")
	}
}

func TestRegisterMiddlewareValidations(t *testing.T) {
	t.Parallel()

	noop := func(h message.HandlerFunc) message.HandlerFunc { return h }

	t.Run("requires router", func(t *testing.T) {
		svc := &Service{}
		if err := svc.RegisterMiddleware(MiddlewareRegistration{Middleware: noop}); err == nil {
			t.Fatal("expected error without router")
		}
	})

	t.Run("requires middleware or builder", func(t *testing.T) {
		svc := newBareService(t, &configpkg.Config{})
		if err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "empty"}); err == nil {
			t.Fatal("expected error for empty registration")
		}
	})

	t.Run("invokes builder", func(t *testing.T) {
		svc := newBareService(t, &configpkg.Config{})
		called := false
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(s *Service) (message.HandlerMiddleware, error) {
				called = s == svc
				return noop, nil
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatal("builder not invoked with the service")
		}
	})

	t.Run("propagates builder error", func(t *testing.T) {
		svc := newBareService(t, &configpkg.Config{})
		boom := errors.New("boom")
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, boom },
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected builder error, got %v", err)
		}
	})

	t.Run("nil middleware from builder is skipped", func(t *testing.T) {
		svc := newBareService(t, &configpkg.Config{})
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, nil },
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestDefaultMiddlewaresNames(t *testing.T) {
	t.Parallel()

	want := []string{"correlation_id", "log_messages", "tracer", "metrics", "recoverer"}
	got := DefaultMiddlewares()
	if len(got) != len(want) {
		t.Fatalf("expected %d middlewares, got %d", len(want), len(got))
	}
	for i, reg := range got {
		if reg.Name != want[i] {
			t.Fatalf("middleware %d: expected %s, got %s", i, want[i], reg.Name)
		}
	}
}

func TestMetricsMiddlewareDisabled(t *testing.T) {
	t.Parallel()

	svc := newBareService(t, &configpkg.Config{MetricsEnabled: false})
	mw, err := MetricsMiddleware().Builder(svc)
	if err != nil {
		t.Fatal(err)
	}
	if mw != nil {
		t.Fatal("expected nil middleware when disabled")
	}
}

func TestMetricsMiddlewareEnabled(t *testing.T) {
	t.Parallel()

	svc := newBareService(t, &configpkg.Config{MetricsEnabled: true, MetricsPort: 9123, PubSubSystem: "channel"})
	mw, err := MetricsMiddleware().Builder(svc)
	if err != nil {
		t.Fatalf("unexpected error building metrics middleware: %v", err)
	}
	if mw != nil {
		t.Fatal("router metrics are installed on the router, not returned")
	}
	if !svc.metrics.registered {
		t.Fatal("expected pipeline metrics to be registered")
	}
	if _, ok := svc.httpServers[9123]; !ok {
		t.Fatal("expected /metrics to be mounted on the metrics port")
	}
}
