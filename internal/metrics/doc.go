// Package metrics exposes Prometheus collectors for jobs, pipeline stages,
// uploads, engine commands and analytics events on a private registry served
// at /metrics.
package metrics
