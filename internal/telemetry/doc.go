// Package telemetry delivers named analytics events (processing outcomes and
// playback engagement) to a configured sink: structured logs, a Kafka topic,
// or nowhere. Delivery is fire-and-forget.
package telemetry
