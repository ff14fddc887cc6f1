package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/servicemirror/internal/runtime/config"
	bus "github.com/drblury/servicemirror/transport"

	// Built-in transports register themselves with the bus registry.
	_ "github.com/drblury/servicemirror/transport/transports"
)

// Transport combines the publisher and subscriber the service runs on.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Capabilities describes the delivery guarantees of a transport.
type Capabilities = bus.Capabilities

// CapabilitiesFor returns the registered capabilities of the named transport.
// Unknown names yield capabilities with every guarantee unset.
func CapabilitiesFor(name string) Capabilities {
	return bus.GetCapabilities(strings.ToLower(strings.TrimSpace(name)))
}

// Factory abstracts how the service obtains its transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory builds transports through the bus registry, selected by
// Config.PubSubSystem.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, errors.New("config is required")
	}

	t, err := bus.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, err
	}
	return Transport{Publisher: t.Publisher, Subscriber: t.Subscriber}, nil
}
