// Package blob persists sermon artifacts into path-addressed object storage.
//
// Paths builds the canonical keys (sermons/video/<id>.mp4,
// sermons/video/<id>/master.m3u8, sermons/audio/<id>.mp3, ...). Uploader wraps
// a Backend, classifies failures as upload errors and resolves public URLs.
// Two backends exist: a local directory served by the API under /media/, and
// S3-compatible buckets through aws-sdk-go-v2.
package blob
