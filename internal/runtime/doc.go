/*
Package runtime wires the service mirror together: a watermill router
consuming the service topic, the materialized view it feeds, the correlation
bridge for request/reply lookups and the publisher for comment events.

# Architecture Overview

Service snapshots arrive on Config.ServiceTopic. The ingest pipeline decodes
each payload (direct JSON or base64 wrapped JSON), upserts the record into the
view and, when the message carries a requestId, hands it to the correlation
bridge so a waiting RequestService call can return.

# Package Structure

## Core Service (service.go)

The Service struct owns:
  - Message router (Watermill) and the transport publisher and subscriber
  - View, correlation bridge and ingest pipeline
  - Comment publisher
  - HTTP servers for metrics and the admin API

## Queries (query.go, request.go)

Read access to the view, comment target validation and the synchronous
RequestService helper.

## Middleware (middleware.go)

  - CorrelationID: Ensures message traceability
  - LogMessages: Trace logging of message payloads
  - Tracer: OpenTelemetry span per message
  - Metrics: Prometheus router and pipeline metrics
  - Recoverer: Panic recovery

## Publishing (publisher.go)

JSON publishing with the standard metadata, and the best effort
CommentPublisher.

## Admin API (admin.go)

Read-only JSON endpoints over the view and the pipeline counters.

# Sub-packages

  - config/: Configuration, YAML and environment loading
  - correlation/: Pending request table
  - decoder/: Payload format detection
  - errors/: Sentinel errors and error types
  - ids/: ULID generation
  - ingest/: Decode, validate, upsert, deliver
  - jsoncodec/: JSON marshaling
  - logging/: Logger interface and adapters
  - metadata/: Message header names
  - model/: Service records and comment events
  - transport/: Transport factory over the bus registry
  - view/: In-memory service view

# Usage Example

	cfg := servicemirror.DefaultConfig()
	cfg.PubSubSystem = "kafka"
	cfg.KafkaBrokers = []string{"localhost:9092"}

	svc := servicemirror.NewService(&cfg, logger, ctx, servicemirror.ServiceDependencies{})
	go svc.Start(ctx)

	record, err := svc.RequestService(ctx, id)
*/
package runtime
