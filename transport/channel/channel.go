// Package channel registers the in-memory Go channel transport, for tests and
// single-process deployments.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/fixflow/transport"
)

const TransportName = "channel"

// OutputBuffer is the per-subscriber buffer size.
var OutputBuffer int64 = 256

func init() {
	transport.Register(TransportName, Build, transport.ChannelCapabilities)
}

// Build returns one GoChannel acting as both publisher and subscriber.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: OutputBuffer,
		Persistent:          false,
	}, logger)
	return transport.Transport{Publisher: ps, Subscriber: ps}, nil
}
