/*
Package runtime connects the FIX field store to the message bus.

# Architecture Overview

Decoded messages are frozen field stores (package message). An Engine holds
the listeners that observe one FIX engine; a Service hosts a Watermill router
and moves those messages to and from a transport as frames.

# Package Structure

## Engine (engine.go, engine_metrics.go)

Engine is an explicit listener registry:
  - AddListener appends, or replaces a listener with the same ID in place
  - RemoveListener drops a listener by ID
  - NotifyReceive and NotifySend call listeners in order on a snapshot,
    recovering panics
  - EngineMetrics counts deliveries and panics in Prometheus and in memory

## Bus (bus.go)

NewFrame and DecodeFrame translate between a message plus session identity and
a Watermill message. BusListener mirrors an engine onto the received and sent
topics.

## Service (service.go, consume.go, admin.go)

Service builds the configured transport, publishes through Publish and
Receive, feeds inbound topics back to the engine and serves /metrics and
/api/listeners.

## Middleware (middleware.go)

  - CorrelationID: ensures frame traceability
  - LogMessages: debug logging of frame headers
  - Tracer: OpenTelemetry spans
  - Metrics: Watermill router metrics in Prometheus
  - PoisonQueue: routes undecodable frames to Config.PoisonTopic
  - Retry: exponential backoff, skipping undecodable frames
  - Recoverer: panic recovery

# Sub-packages

  - codec/: JSON and protobuf frame payloads
  - config/: service configuration with validation
  - errors/: sentinel errors and error types
  - fields/: tags, value kinds, descriptors and the dictionary
  - ids/: ULID generation for frame ids
  - logging/: logger interface and adapters
  - message/: builder and frozen field store
  - metadata/: frame header utilities
  - session/: session identity

# Usage Example

	cfg := &fixflow.Config{
		PubSubSystem:   "kafka",
		KafkaBrokers:   []string{"localhost:9092"},
		InboundTopic:   "fix.replay",
		MetricsEnabled: true,
		MetricsPort:    9090,
	}

	svc, err := fixflow.NewService(ctx, cfg, logger, fixflow.ServiceDependencies{})
	if err != nil {
		return err
	}
	_ = svc.Engine().AddListener(auditListener)

	go svc.Start(ctx)
	err = svc.Publish(ctx, sessionID, order)
*/
package runtime
