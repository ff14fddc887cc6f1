package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies a watermill header map.
func FromWatermill(md message.Metadata) Metadata {
	result := make(Metadata, len(md))
	for k, v := range md {
		result[k] = v
	}
	return result
}

// Apply writes every header onto msg.
func (m Metadata) Apply(msg *message.Message) {
	for k, v := range m {
		msg.Metadata.Set(k, v)
	}
}
