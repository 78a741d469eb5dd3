// Package sinks implements concrete event consumers such as Prometheus,
// Cloud Pub/Sub, webhook fan-out, and structured logging. Each sink satisfies
// the notify.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
