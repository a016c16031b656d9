// Command sermoncast processes uploaded sermon recordings and serves the
// resulting media.
//
// `sermoncast serve` runs the daemon: the single-worker queue, the optional
// watch folder, and the HTTP API. The remaining commands operate on the
// queue database directly or query a running daemon over HTTP, so they work
// whether or not the daemon is up.
package main
