package transport

// Capabilities describes the delivery guarantees of a transport backend.
type Capabilities struct {
	Name string

	// SupportsOrdering reports that messages for one key arrive in publish
	// order. Without it a stale snapshot can overwrite a newer one in the view.
	SupportsOrdering bool

	// SupportsPartitioning reports that ordering only holds per partition key.
	SupportsPartitioning bool

	// SupportsAck and SupportsNack report explicit acknowledgement and
	// redelivery.
	SupportsAck  bool
	SupportsNack bool

	// SupportsTracing reports that tracing headers survive the trip.
	SupportsTracing bool

	// Durable reports that messages published while the mirror is down are
	// delivered once it reconnects.
	Durable bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsReliableDelivery reports at-least-once delivery (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// PreservesLastWrite reports whether last-write-wins upserts converge on the
// latest published snapshot.
func (c Capabilities) PreservesLastWrite() bool {
	return c.SupportsOrdering
}

// Known capability sets.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsPartitioning: true,
		SupportsAck:          true,
		SupportsTracing:      true,
		Durable:              true,
		MaxMessageSize:       1048576,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsTracing:  true,
		Durable:          true,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576,
	}

	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsAck:     true,
		SupportsNack:    true,
		SupportsTracing: true,
		Durable:         true,
		MaxMessageSize:  262144,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}
)

// GetCapabilities returns the capabilities registered for transportName in the
// default registry.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
