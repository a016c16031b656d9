// Package queue persists processing jobs and playback positions in SQLite.
//
// The Store manages the connection, schema initialization, stats queries,
// heartbeat tracking, stuck-job recovery and status transitions. Jobs carry
// the submitted asset (id, kind, source file and options JSON), progress, the
// result JSON on success, and the failing stage plus error classification on
// failure. Playback positions are stored per asset as plain numeric strings.
//
// The database is transient storage for in-flight work rather than an
// archive. Schema changes ship as new files under migrations/, applied in
// name order and counted in SQLite's user_version.
package queue
