package transport

// Capabilities describes delivery guarantees of a backend.
type Capabilities struct {
	Name string
	// Ordered means messages published to one topic are delivered in publish
	// order. FIX sequence numbers assume this.
	Ordered bool
	// Ack and Nack report explicit acknowledgement and redelivery support.
	Ack  bool
	Nack bool
	// Tracing means headers are propagated end to end.
	Tracing bool
	// MaxMessageSize in bytes; 0 means unknown or unlimited.
	MaxMessageSize int64
}

// ReliableDelivery reports at-least-once semantics.
func (c Capabilities) ReliableDelivery() bool {
	return c.Ack && c.Nack
}

// Fits reports whether a payload of size bytes is within the backend's limit.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{Name: "channel", Ordered: true, Ack: true, Nack: true}

	KafkaCapabilities = Capabilities{Name: "kafka", Ordered: true, Ack: true, Tracing: true, MaxMessageSize: 1 << 20}

	RabbitMQCapabilities = Capabilities{Name: "rabbitmq", Ordered: true, Ack: true, Nack: true, Tracing: true}

	NATSCapabilities = Capabilities{Name: "nats", Tracing: true, MaxMessageSize: 1 << 20}

	NATSJetStreamCapabilities = Capabilities{Name: "nats-jetstream", Ordered: true, Ack: true, Nack: true, Tracing: true, MaxMessageSize: 1 << 20}

	AWSCapabilities = Capabilities{Name: "aws", Ack: true, Nack: true, Tracing: true, MaxMessageSize: 256 << 10}

	HTTPCapabilities = Capabilities{Name: "http", Tracing: true}

	IOCapabilities = Capabilities{Name: "io", Ordered: true}
)
