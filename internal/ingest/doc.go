// Package ingest watches a drop directory and queues new sermon uploads.
//
// Files are enqueued once they have been quiet for the configured settle
// delay so partially copied uploads are not picked up. The asset id is
// derived from the file name; a file whose asset already has a job for the
// same source path is skipped, so restarting the daemon does not reprocess
// the backlog.
package ingest
