// Package media holds the shared vocabulary for sermon uploads: the media
// Kind, the declared Source file, produced Blobs, content types, and the
// file-type check that gates every pipeline run.
package media
