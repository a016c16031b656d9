package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 3 * time.Second

// Version runs "<binary> -version" and returns the version token from the
// first line, e.g. "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func Version(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	return parseVersion(out)
}

func parseVersion(out []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", fmt.Errorf("empty version output")
	}
	fields := strings.Fields(scanner.Text())
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1], nil
		}
	}
	return "", fmt.Errorf("unrecognized version line %q", scanner.Text())
}

// Versions fills Version for every available status. Failures are recorded
// in Detail without marking the binary unavailable.
func Versions(ctx context.Context, statuses []Status) []Status {
	out := make([]Status, len(statuses))
	for i, status := range statuses {
		if status.Available {
			version, err := Version(ctx, status.Path)
			if err != nil {
				status.Detail = err.Error()
			} else {
				status.Version = version
			}
		}
		out[i] = status
	}
	return out
}
