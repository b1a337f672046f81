// Package telemetry relays payloads emitted by an activated feature to an
// external telemetry sink.
//
// Delivery is best effort and at most once: the Relay forwards each payload
// to the Sink as soon as it is emitted, without buffering, batching or
// retrying, and it does not look at the Sink's result.
//
// # Sinks
//
// HTTPSink posts each payload as JSON to a collector. LogSink writes payloads
// to a Logger and is used when sending is disabled by the study's telemetry
// policy.
package telemetry
