package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error markers. Wrap one of these around a failure so callers can classify
// it with errors.Is regardless of the message detail.
var (
	ErrEngineLoad      = errors.New("media engine unavailable")
	ErrEncode          = errors.New("encode failed")
	ErrUpload          = errors.New("upload failed")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

var errorKinds = []struct {
	marker error
	kind   string
}{
	{ErrEngineLoad, "engine_load"},
	{ErrEncode, "encode"},
	{ErrUpload, "upload"},
	{ErrInvalidFileType, "invalid_file_type"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
}

// Wrap builds an error message that includes stage context while tagging it
// with marker for later classification. A nil marker is treated as transient.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorKind returns the stable classification string for err, or "unknown"
// when no marker is present. Context cancellation is reported as "canceled".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unknown"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "media pipeline failure"
	}
	return strings.Join(parts, ": ")
}
