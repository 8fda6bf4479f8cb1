// Package metadata holds the header map that travels next to a bus payload.
package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// Reserved header keys written by the bus.
const (
	KeyCorrelationID = "correlation_id"
	KeyDirection     = "fix_direction"
	KeyCodec         = "fix_codec"
	KeyContentType   = "content_type"
	KeyListener      = "fix_listener"
)

// Direction values for KeyDirection.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

// Metadata is a set of string headers.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs; a trailing odd key is dropped.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// Clone returns a copy that never aliases m; a nil m yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// With returns a copy of m with key set.
func (m Metadata) With(key, value string) Metadata {
	return m.Merge(Metadata{key: value})
}

// FromWatermill copies Watermill headers.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill copies m into a Watermill header map.
func ToWatermill(m Metadata) message.Metadata {
	return message.Metadata(m.Clone())
}
