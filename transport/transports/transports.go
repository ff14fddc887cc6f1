// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/servicemirror/transport/aws"
	_ "github.com/drblury/servicemirror/transport/channel"
	_ "github.com/drblury/servicemirror/transport/http"
	_ "github.com/drblury/servicemirror/transport/kafka"
	_ "github.com/drblury/servicemirror/transport/nats"
	_ "github.com/drblury/servicemirror/transport/rabbitmq"
)
