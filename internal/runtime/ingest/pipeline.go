// Package ingest turns raw service messages into view updates and correlated
// replies.
package ingest

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/servicemirror/internal/runtime/correlation"
	"github.com/drblury/servicemirror/internal/runtime/decoder"
	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
	"github.com/drblury/servicemirror/internal/runtime/logging"
	"github.com/drblury/servicemirror/internal/runtime/model"
	"github.com/drblury/servicemirror/internal/runtime/view"
)

// Drop reasons reported to the Recorder.
const (
	DropUnparsable      = "unparsable"
	DropMissingIdentity = "missing_identity"
	DropPanic           = "panic"
)

// Recorder receives per-message counters.
type Recorder interface {
	Ingested(strategy string)
	Dropped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Ingested(string) {}
func (nopRecorder) Dropped(string)  {}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDecoder replaces the payload decoder.
func WithDecoder(d *decoder.Decoder) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.decoder = d
		}
	}
}

// WithLogger sets the logger used for drops and recovered panics.
func WithLogger(log logging.ServiceLogger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithRecorder sets the sink for ingest and drop counts.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// Pipeline feeds the view and the correlation bridge.
type Pipeline struct {
	view     *view.View
	bridge   *correlation.Bridge
	decoder  *decoder.Decoder
	log      logging.ServiceLogger
	recorder Recorder
}

// New wires a pipeline onto v and b.
func New(v *view.View, b *correlation.Bridge, opts ...Option) *Pipeline {
	p := &Pipeline{
		view:     v,
		bridge:   b,
		decoder:  decoder.New(),
		log:      logging.NewNopLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest processes one raw payload. Every failure is logged and counted;
// nothing is returned and nothing panics.
func (p *Pipeline) Ingest(ctx context.Context, raw string) {
	p.ingest(ctx, raw, "")
}

// Handler adapts the pipeline to a watermill consumer. Messages are always
// acked: a payload that cannot be applied now will not apply on redelivery.
func (p *Pipeline) Handler() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		p.ingest(msg.Context(), string(msg.Payload), msg.UUID)
		return nil
	}
}

func (p *Pipeline) ingest(ctx context.Context, raw, messageUUID string) {
	fields := logging.LogFields{"payload_size": len(raw)}
	if messageUUID != "" {
		fields["message_uuid"] = messageUUID
	}

	defer func() {
		if r := recover(); r != nil {
			p.recorder.Dropped(DropPanic)
			p.log.Error("Recovered from panic while ingesting service message", fmt.Errorf("panic: %v", r), fields)
		}
	}()

	decoded := p.decoder.DecodeWithInfo(raw)
	fields["decode_strategy"] = decoded.Strategy

	var record model.ServiceRecord
	if err := jsoncodec.UnmarshalString(decoded.Payload, &record); err != nil {
		p.recorder.Dropped(DropUnparsable)
		p.log.Error("Failed to parse service message", &errspkg.UnprocessableEventError{Strategy: decoded.Strategy, Err: err}, fields)
		return
	}

	id, ok := record.Identity()
	if !ok {
		fields["raw_identity"] = record.IdentityString()
		p.recorder.Dropped(DropMissingIdentity)
		p.log.Warn("Dropping service message without identity", fields)
		return
	}
	fields["service_id"] = id.String()
	fields["event_type"] = string(record.EventType())

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("service.id", id.String()),
		attribute.String("service.decode_strategy", decoded.Strategy),
		attribute.String("service.event_type", string(record.EventType())),
	)

	// Error replies describe a failed lookup, not the service.
	if record.ErrorMessage == "" {
		created, err := p.view.Upsert(record)
		if err != nil {
			p.recorder.Dropped(DropMissingIdentity)
			p.log.Error("Failed to store service", err, fields)
			return
		}
		fields["created"] = created
		p.log.Info("Service stored", fields)
	}
	p.recorder.Ingested(decoded.Strategy)

	if record.Correlated() {
		outcome := p.bridge.Deliver(record.RequestID, record)
		fields["request_id"] = record.RequestID
		fields["outcome"] = outcome.String()
		p.log.Debug("Correlated reply handed to bridge", fields)
	}
}
