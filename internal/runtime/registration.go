package runtime

import (
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/servicemirror/internal/runtime/errors"
)

// handlerRegistration mirrors MessageHandlerRegistration field for field so
// the two convert directly.
type handlerRegistration struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
	Handler      message.HandlerFunc
	Consumer     message.NoPublishHandlerFunc
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// MessageHandlerRegistration wires an extra watermill handler next to the
// ingest handler, for example to mirror a second upstream topic. Set Consumer
// for handlers that never publish, or Handler and PublishQueue otherwise.
type MessageHandlerRegistration struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
	Handler      message.HandlerFunc
	Consumer     message.NoPublishHandlerFunc
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}

	return svc.registerHandler(handlerRegistration(cfg))
}

// IngestTopic routes an additional topic through the ingest pipeline.
func (s *Service) IngestTopic(name, topic string) error {
	return s.registerHandler(handlerRegistration{
		Name:         name,
		ConsumeQueue: topic,
		Consumer:     s.pipeline.Handler(),
	})
}

func (s *Service) registerHandler(cfg handlerRegistration) error {
	if cfg.Handler == nil && cfg.Consumer == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if cfg.ConsumeQueue == "" {
		return errspkg.ErrConsumeQueueRequired
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = s.subscriber
	}

	if cfg.Consumer != nil {
		s.router.AddNoPublisherHandler(cfg.Name, cfg.ConsumeQueue, cfg.Subscriber, cfg.Consumer)
		return nil
	}

	if cfg.PublishQueue == "" {
		return errspkg.ErrTopicRequired
	}
	if cfg.Publisher == nil {
		cfg.Publisher = s.publisher
	}
	s.router.AddHandler(
		cfg.Name,
		cfg.ConsumeQueue,
		cfg.Subscriber,
		cfg.PublishQueue,
		cfg.Publisher,
		cfg.Handler,
	)
	return nil
}
