// Package transports registers every built-in transport with the default
// registry when imported.
package transports

import (
	_ "github.com/drblury/fixflow/transport/aws"
	_ "github.com/drblury/fixflow/transport/channel"
	_ "github.com/drblury/fixflow/transport/http"
	_ "github.com/drblury/fixflow/transport/io"
	_ "github.com/drblury/fixflow/transport/jetstream"
	_ "github.com/drblury/fixflow/transport/kafka"
	_ "github.com/drblury/fixflow/transport/nats"
	_ "github.com/drblury/fixflow/transport/rabbitmq"
)
