// Package metadata names the headers the mirror reads from and writes to bus
// messages.
package metadata

// Header keys.
const (
	KeyEventSchema   = "event_message_schema"
	KeyCorrelationID = "correlation_id"
	KeyServiceUUID   = "service_uuid"
	KeyRequestID     = "request_id"
	KeyContentType   = "content_type"
)

// ContentTypeJSON is set on every outbound message.
const ContentTypeJSON = "application/json"

// Schema names set under KeyEventSchema.
const (
	SchemaCommentCreated = "CommentCreated"
	SchemaServiceRequest = "ServiceRequest"
)

// Metadata represents the headers carried alongside an event.
type Metadata map[string]string

// With returns a copy containing the provided key/value pair. Empty values are
// skipped so optional headers never appear blank on the wire.
func (m Metadata) With(key, value string) Metadata {
	cloned := make(Metadata, len(m)+1)
	for k, v := range m {
		cloned[k] = v
	}
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md = md.With(pairs[i], pairs[i+1])
	}
	return md
}
