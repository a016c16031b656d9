// Package workflow drives persisted jobs through the processing pipeline.
//
// The Manager runs exactly one worker goroutine fed by a channel. A dispatcher
// goroutine polls the queue for the oldest pending job, claims it, and hands
// it to the worker, so one asset finishes before the next begins. Progress is
// written back to the store and fanned out to live subscribers through the
// Hub; results and classified failures are persisted when a run ends.
//
// Jobs interrupted by a shutdown are left in processing and returned to
// pending the next time the manager starts.
package workflow
