package runtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/servicemirror/internal/runtime/config"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	transportpkg "github.com/drblury/servicemirror/internal/runtime/transport"
)

type testPublisher struct {
	mu        sync.Mutex
	published []*message.Message
	topics    []string
	err       error
	closed    bool
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, msg := range messages {
		p.topics = append(p.topics, topic)
		p.published = append(p.published, msg)
	}
	return nil
}

func (p *testPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *testPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *testPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]string, len(p.topics))
	copy(clone, p.topics)
	return clone
}

func (p *testPublisher) Messages() []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.published))
	copy(clone, p.published)
	return clone
}

type testSubscriber struct {
	err    error
	closed atomic.Bool
}

func (s *testSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan *message.Message)
	close(ch)
	return ch, nil
}

func (s *testSubscriber) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: loggingpkg.LevelTrace}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

// capturingLogger records warning messages and forwards everything else.
type capturingLogger struct {
	loggingpkg.ServiceLogger
	warnings []string
}

func (l *capturingLogger) Warn(msg string, fields loggingpkg.LogFields) {
	l.warnings = append(l.warnings, msg)
	l.ServiceLogger.Warn(msg, fields)
}

func staticFactory(pub message.Publisher, sub message.Subscriber) transportpkg.Factory {
	return transportpkg.FactoryFunc(func(context.Context, *configpkg.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pub, Subscriber: sub}, nil
	})
}

// newTestService builds a service on stub transports that never deliver.
func newTestService(t *testing.T) (*Service, *testPublisher) {
	t.Helper()
	pub := &testPublisher{}
	cfg := configpkg.Default()
	svc := NewService(&cfg, newTestLogger(), context.Background(), ServiceDependencies{
		TransportFactory:  staticFactory(pub, &testSubscriber{}),
		MetricsRegisterer: prometheus.NewRegistry(),
	})
	return svc, pub
}

// newChannelService builds a service on an in-memory bus and runs its router
// until the test ends.
func newChannelService(t *testing.T, mutate func(*configpkg.Config)) (*Service, *gochannel.GoChannel) {
	t.Helper()
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	cfg := configpkg.Default()
	cfg.CorrelationTimeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	svc := NewService(&cfg, newTestLogger(), context.Background(), ServiceDependencies{
		TransportFactory:  staticFactory(bus, bus),
		MetricsRegisterer: prometheus.NewRegistry(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.Close()
	})

	select {
	case <-svc.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return svc, bus
}

func publishRaw(t *testing.T, pub message.Publisher, topic, payload string) {
	t.Helper()
	if err := pub.Publish(topic, message.NewMessage(watermill.NewUUID(), []byte(payload))); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}
