package queue

// NeedsReview reports whether a failure of the given kind requires operator
// changes (different file, options or configuration) before a retry can
// succeed. Engine, encode, upload and transient failures are plain retries.
func NeedsReview(kind string) bool {
	switch kind {
	case "validation", "invalid_file_type", "configuration", "not_found":
		return true
	default:
		return false
	}
}
