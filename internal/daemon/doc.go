// Package daemon coordinates the long-running sermoncast process.
//
// It wires configuration, queue storage, the workflow manager, the ingest
// watcher and the HTTP API into a single lifecycle with flock-based locking
// to prevent multiple instances. Preflight results are captured at startup
// and reported through the status endpoint.
//
// The HTTP API accepts uploads, reports job state, streams job progress over
// a websocket, hosts server-side playback sessions, and serves published
// media for the filesystem backend along with Prometheus metrics.
package daemon
