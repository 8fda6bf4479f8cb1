package transports

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/fixflow/transport"
)

func TestAllRegistered(t *testing.T) {
	assert.Equal(t,
		[]string{"aws", "channel", "http", "io", "kafka", "nats", "nats-jetstream", "rabbitmq"},
		transport.DefaultRegistry.Names())
}
