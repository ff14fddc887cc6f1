// Package servicemirror keeps a local, queryable copy of service snapshots
// published by an upstream service catalogue and emits comment events back to
// it. Snapshots arrive on a message bus (Kafka, RabbitMQ, AWS SNS/SQS, NATS,
// HTTP or in-memory Go channels, chosen by Config.PubSubSystem) and are
// upserted into an in-memory view, last write wins.
//
// Service hosts the Watermill router that feeds the view. Besides plain
// lookups it offers RequestService, which publishes a ServiceRequest carrying
// a fresh correlation token and blocks until the upstream replies on the
// service topic with the same requestId, and ValidateCommentTarget plus
// PublishComment for the write path. A minimal setup fills Config (or calls
// LoadConfig), creates a Service and calls Start.
//
// # Transports
//
//   - channel: In-memory Go channels for tests and local runs
//   - kafka: Ordered per partition, durable, consumer groups
//   - rabbitmq: Durable AMQP fanout exchanges
//   - aws: SNS topics fanned into SQS queues, LocalStack aware
//   - nats: Core NATS, neither ordered nor durable
//   - http: Webhook style delivery
//
// # Middleware
//
// The default chain adds correlation IDs, trace logging, OpenTelemetry spans,
// Prometheus metrics and panic recovery. Custom middleware can be appended via
// ServiceDependencies.Middlewares.
package servicemirror
