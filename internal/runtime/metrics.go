package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts what happens to inbound service messages, correlated
// replies and outbound comment events. It keeps its own totals so they can be
// inspected without scraping Prometheus.
type PipelineMetrics struct {
	mu       sync.RWMutex
	snapshot PipelineSnapshot

	ingestedTotal    *prometheus.CounterVec
	droppedTotal     *prometheus.CounterVec
	correlationTotal *prometheus.CounterVec
	publishedTotal   *prometheus.CounterVec
	viewSize         prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

// PipelineSnapshot is a point-in-time copy of the counters.
type PipelineSnapshot struct {
	Ingested        map[string]uint64 `json:"ingested"`
	Dropped         map[string]uint64 `json:"dropped"`
	Correlation     map[string]uint64 `json:"correlation"`
	PublishSuccess  uint64            `json:"publish_success"`
	PublishFailures uint64            `json:"publish_failures"`
	ViewSize        int               `json:"view_size"`
	CollectedAt     time.Time         `json:"collected_at"`
}

func newMirrorCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servicemirror",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewPipelineMetrics creates the collectors. Nothing is registered until
// Register is called.
func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PipelineMetrics{
		snapshot:         emptySnapshot(),
		registerer:       registerer,
		ingestedTotal:    newMirrorCounterVec("ingest", "messages_total", "Service messages applied to the view, by decode strategy", []string{"strategy"}),
		droppedTotal:     newMirrorCounterVec("ingest", "dropped_total", "Service messages dropped, by reason", []string{"reason"}),
		correlationTotal: newMirrorCounterVec("correlation", "outcomes_total", "Correlated reply outcomes", []string{"outcome"}),
		publishedTotal:   newMirrorCounterVec("publisher", "comments_total", "Comment events handed to the transport, by result", []string{"result"}),
		viewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "servicemirror",
			Subsystem: "view",
			Name:      "services",
			Help:      "Distinct services currently held in the view",
		}),
	}
}

func emptySnapshot() PipelineSnapshot {
	return PipelineSnapshot{
		Ingested:    map[string]uint64{},
		Dropped:     map[string]uint64{},
		Correlation: map[string]uint64{},
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *PipelineMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.ingestedTotal,
		m.droppedTotal,
		m.correlationTotal,
		m.publishedTotal,
		m.viewSize,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Ingested counts a message applied to the view.
func (m *PipelineMetrics) Ingested(strategy string) {
	m.mu.Lock()
	m.snapshot.Ingested[strategy]++
	m.mu.Unlock()
	m.ingestedTotal.WithLabelValues(strategy).Inc()
}

// Dropped counts a message that did not reach the view.
func (m *PipelineMetrics) Dropped(reason string) {
	m.mu.Lock()
	m.snapshot.Dropped[reason]++
	m.mu.Unlock()
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// CorrelationOutcome counts a delivery or expiry in the bridge.
func (m *PipelineMetrics) CorrelationOutcome(outcome string) {
	m.mu.Lock()
	m.snapshot.Correlation[outcome]++
	m.mu.Unlock()
	m.correlationTotal.WithLabelValues(outcome).Inc()
}

// Published counts an outbound comment event.
func (m *PipelineMetrics) Published(ok bool) {
	result := "success"
	m.mu.Lock()
	if ok {
		m.snapshot.PublishSuccess++
	} else {
		m.snapshot.PublishFailures++
		result = "failure"
	}
	m.mu.Unlock()
	m.publishedTotal.WithLabelValues(result).Inc()
}

// ViewSize records the current number of services in the view.
func (m *PipelineMetrics) ViewSize(n int) {
	m.mu.Lock()
	m.snapshot.ViewSize = n
	m.mu.Unlock()
	m.viewSize.Set(float64(n))
}

// Snapshot returns a copy of the counters.
func (m *PipelineMetrics) Snapshot() PipelineSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := emptySnapshot()
	for k, v := range m.snapshot.Ingested {
		out.Ingested[k] = v
	}
	for k, v := range m.snapshot.Dropped {
		out.Dropped[k] = v
	}
	for k, v := range m.snapshot.Correlation {
		out.Correlation[k] = v
	}
	out.PublishSuccess = m.snapshot.PublishSuccess
	out.PublishFailures = m.snapshot.PublishFailures
	out.ViewSize = m.snapshot.ViewSize
	out.CollectedAt = time.Now()
	return out
}

// Reset clears all counters.
func (m *PipelineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = emptySnapshot()
	m.ingestedTotal.Reset()
	m.droppedTotal.Reset()
	m.correlationTotal.Reset()
	m.publishedTotal.Reset()
	m.viewSize.Set(0)
}
