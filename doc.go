// Package fixflow stores the fields of decoded FIX messages and moves them
// between engines over Watermill.
//
// A Builder accumulates (tag, value) occurrences while a frame is decoded;
// Freeze turns it into an immutable Message that answers typed lookups:
//
//	b := fixflow.NewBuilder()
//	fixflow.AddValue(b, fixflow.MsgType, "D")
//	fixflow.AddValue(b, clOrdID, "ORD-1")
//	msg := b.Freeze()
//
//	id, err := fixflow.Get(msg, clOrdID)
//
// Tags may repeat; GetAt selects an occurrence and GetAll returns every one in
// insertion order. Lookups fail with ErrTagAbsent, ErrIndexOutOfRange or
// ErrTypeMismatch, matched with errors.Is. Field descriptors are plain values
// (Field[T]) built with NewStringField, NewIntField, NewDecimalField and
// friends; several descriptors may share a tag.
//
// # Engine and listeners
//
// Engine keeps the listeners observing one FIX engine. AddListener replaces an
// existing listener with the same ID; NotifyReceive and NotifySend call every
// listener in registration order and recover listener panics.
//
// # Bus
//
// Service publishes the messages an engine sees as frames on a Watermill
// transport and can consume frames back into the engine. The transport is
// chosen by Config.PubSubSystem among the packages registered under
// fixflow/transport (import fixflow/transport/transports for all of them):
//   - channel: in-memory Go channels for tests
//   - kafka: consumer-group streaming
//   - rabbitmq: durable AMQP exchanges
//   - nats: NATS Core
//   - http: webhook style POSTs
//   - aws: SNS/SQS with LocalStack support
//   - io: line-delimited journal file
//
// Frames carry the session identity, direction and codec as headers; the
// payload is a JSON or protobuf envelope of typed values. The default router
// middleware adds correlation ids, OpenTelemetry spans, Prometheus metrics,
// retries, poison queue forwarding and panic recovery.
package fixflow
