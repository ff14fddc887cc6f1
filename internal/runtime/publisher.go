package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
	idspkg "github.com/drblury/servicemirror/internal/runtime/ids"
	"github.com/drblury/servicemirror/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/servicemirror/internal/runtime/logging"
	metadatapkg "github.com/drblury/servicemirror/internal/runtime/metadata"
	"github.com/drblury/servicemirror/internal/runtime/model"
)

// NewMessageFromJSON marshals payload and wraps it in a watermill message with
// a ULID id and the JSON content type.
func NewMessageFromJSON(payload any, metadata metadatapkg.Metadata) (*message.Message, error) {
	if payload == nil {
		return nil, errspkg.ErrEventPayloadRequired
	}

	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), body)
	metadata.With(metadatapkg.KeyContentType, metadatapkg.ContentTypeJSON).Apply(msg)
	return msg, nil
}

// PublishJSON marshals payload and publishes it to topic.
func PublishJSON(ctx context.Context, publisher message.Publisher, topic string, payload any, metadata metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewMessageFromJSON(payload, metadata)
	if err != nil {
		return err
	}

	if ctx != nil {
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}

// PublishJSON emits payload using the Service publisher.
func (s *Service) PublishJSON(ctx context.Context, topic string, payload any, metadata metadatapkg.Metadata) error {
	if s == nil {
		return errors.New("service mirror is nil")
	}
	return PublishJSON(ctx, s.publisher, topic, payload, metadata)
}

// PublishResult is observed once per comment event handed to the transport.
type PublishResult interface {
	Published(ok bool)
}

// CommentPublisher forwards comment events to the outbound topic. Delivery is
// best effort: failures are logged and counted, never returned.
type CommentPublisher struct {
	publisher message.Publisher
	topic     string
	log       loggingpkg.ServiceLogger
	results   PublishResult
}

// NewCommentPublisher creates a publisher for topic. log and results may be nil.
func NewCommentPublisher(publisher message.Publisher, topic string, log loggingpkg.ServiceLogger, results PublishResult) *CommentPublisher {
	if log == nil {
		log = loggingpkg.NewNopLogger()
	}
	return &CommentPublisher{
		publisher: publisher,
		topic:     topic,
		log:       log.With(loggingpkg.LogFields{"component": "comment_publisher", "topic": topic}),
		results:   results,
	}
}

// Publish sends event. It returns once the transport client has accepted or
// rejected the message. Failures and panics are logged and counted, never
// returned to the caller.
func (p *CommentPublisher) Publish(ctx context.Context, event model.CommentEvent) {
	correlationID := idspkg.CreateULID()
	md := metadatapkg.New(
		metadatapkg.KeyEventSchema, metadatapkg.SchemaCommentCreated,
		metadatapkg.KeyCorrelationID, correlationID,
		metadatapkg.KeyServiceUUID, event.ServiceUUID,
	)
	fields := loggingpkg.LogFields{
		"comment_id":     event.CommentID,
		"service_uuid":   event.ServiceUUID,
		"correlation_id": correlationID,
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Recovered from panic while publishing comment event", fmt.Errorf("panic: %v", r), fields)
			p.observe(false)
		}
	}()

	if err := PublishJSON(ctx, p.publisher, p.topic, event, md); err != nil {
		p.log.Error("Failed to publish comment event", err, fields)
		p.observe(false)
		return
	}

	p.log.Info("Published comment event", fields)
	p.observe(true)
}

func (p *CommentPublisher) observe(ok bool) {
	if p.results != nil {
		p.results.Published(ok)
	}
}

// PublishComment forwards event through the service comment publisher.
func (s *Service) PublishComment(ctx context.Context, event model.CommentEvent) {
	s.comments.Publish(ctx, event)
}
