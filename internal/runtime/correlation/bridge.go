// Package correlation pairs replies arriving on the bus with the synchronous
// caller that asked for them.
//
// A caller registers a token, sends its request and awaits the handle. The
// ingest pipeline delivers every reply carrying a request id. Each token
// completes at most once: the first delivery wins, later ones are reported as
// duplicates, and deliveries after the deadline are reported as late.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/drblury/servicemirror/internal/runtime/config"
	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	"github.com/drblury/servicemirror/internal/runtime/ids"
	"github.com/drblury/servicemirror/internal/runtime/logging"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

var (
	ErrTokenRequired      = errspkg.ErrTokenRequired
	ErrTokenInUse         = errspkg.ErrTokenInUse
	ErrCorrelationTimeout = errspkg.ErrCorrelationTimeout
)

// DeliveryOutcome classifies a call to Deliver.
type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	Duplicate
	Late
	Unsolicited
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Duplicate:
		return "duplicate"
	case Late:
		return "late"
	case Unsolicited:
		return "unsolicited"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type terminalState int

const (
	stateDelivered terminalState = iota + 1
	stateTimedOut
)

// Handle is a registered, not yet completed request.
type Handle struct {
	token string
	reply chan model.ServiceRecord
}

// Token returns the correlation token of the handle.
func (h *Handle) Token() string {
	return h.token
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout sets the deadline used when Await is called without one.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithRetention sets how long completed tokens are remembered.
func WithRetention(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.retention = d
		}
	}
}

// WithLogger sets the logger for dropped deliveries and expirations.
func WithLogger(log logging.ServiceLogger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithOutcomeObserver registers fn to be called after every Deliver and every
// expiry.
func WithOutcomeObserver(fn func(outcome string)) Option {
	return func(b *Bridge) {
		b.observe = fn
	}
}

// Bridge is the pending-request table.
type Bridge struct {
	mu        sync.Mutex
	pending   map[string]*Handle
	completed *cache.Cache

	timeout   time.Duration
	retention time.Duration
	log       logging.ServiceLogger
	observe   func(string)
}

// New creates an empty bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		pending:   make(map[string]*Handle),
		timeout:   config.DefaultCorrelationTimeout,
		retention: config.DefaultCorrelationRetention,
		log:       logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.completed = cache.New(b.retention, b.retention)
	return b
}

// Register opens a slot for token.
func (b *Bridge) Register(token string) (*Handle, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, busy := b.pending[token]; busy {
		return nil, fmt.Errorf("%w: %s", ErrTokenInUse, token)
	}
	b.completed.Delete(token)

	h := &Handle{token: token, reply: make(chan model.ServiceRecord, 1)}
	b.pending[token] = h
	return h, nil
}

// Deliver completes the slot for token with record. It never blocks.
func (b *Bridge) Deliver(token string, record model.ServiceRecord) DeliveryOutcome {
	outcome := b.deliver(token, record)
	b.record(outcome.String())

	if outcome != Delivered {
		fields := logging.LogFields{"request_id": token, "outcome": outcome.String()}
		if issued, ok := ids.IssuedAt(token); ok {
			fields["token_age"] = time.Since(issued).String()
		}
		b.log.Warn("Dropping correlated reply", fields)
	}
	return outcome
}

func (b *Bridge) deliver(token string, record model.ServiceRecord) DeliveryOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.pending[token]; ok {
		delete(b.pending, token)
		b.completed.SetDefault(token, stateDelivered)
		h.reply <- record
		return Delivered
	}

	state, ok := b.completed.Get(token)
	switch {
	case !ok:
		return Unsolicited
	case state.(terminalState) == stateDelivered:
		return Duplicate
	default:
		return Late
	}
}

// Await blocks until h is delivered, the timeout elapses or ctx is done.
// A non-positive timeout uses the bridge default. On timeout or cancellation
// the slot is closed, so a reply arriving afterwards is reported as late.
func (b *Bridge) Await(ctx context.Context, h *Handle, timeout time.Duration) (model.ServiceRecord, error) {
	if h == nil {
		return model.ServiceRecord{}, ErrTokenRequired
	}
	if timeout <= 0 {
		timeout = b.timeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-h.reply:
		return r, nil
	case <-timer.C:
		if r, ok := b.expire(h); ok {
			return r, nil
		}
		b.log.Debug("Correlation timed out", logging.LogFields{"request_id": h.token, "timeout": timeout.String()})
		return model.ServiceRecord{}, &errspkg.CorrelationTimeoutError{Token: h.token, Timeout: timeout}
	case <-ctx.Done():
		if r, ok := b.expire(h); ok {
			return r, nil
		}
		return model.ServiceRecord{}, fmt.Errorf("await %s: %w", h.token, ctx.Err())
	}
}

// expire closes the slot. If a delivery got in first its record is returned.
func (b *Bridge) expire(h *Handle) (model.ServiceRecord, bool) {
	b.mu.Lock()
	if current, ok := b.pending[h.token]; ok && current == h {
		delete(b.pending, h.token)
		b.completed.SetDefault(h.token, stateTimedOut)
		b.mu.Unlock()
		b.record("timeout")
		return model.ServiceRecord{}, false
	}
	b.mu.Unlock()

	select {
	case r := <-h.reply:
		return r, true
	default:
		return model.ServiceRecord{}, false
	}
}

// Cancel closes the slot for h without waiting, for callers whose request
// never left the process. Replies that still arrive are reported as late.
func (b *Bridge) Cancel(h *Handle) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.pending[h.token]; ok && current == h {
		delete(b.pending, h.token)
		b.completed.SetDefault(h.token, stateTimedOut)
	}
}

// Pending returns the number of open slots.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) record(outcome string) {
	if b.observe != nil {
		b.observe(outcome)
	}
}
