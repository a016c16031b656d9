package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"sermoncast/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("sermoncast", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "sermoncast:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := renderStatusLine("Storage", statusOK, "", false); !strings.HasSuffix(got, "[OK]") {
		t.Fatalf("expected bare status, got %q", got)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("sermoncast", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]api.DependencyStatus{
		{Name: "FFmpeg", Command: "ffmpeg", Available: true, Version: "7.1"},
		{Name: "FFprobe", Command: "ffprobe", Available: false, Optional: true},
		{Name: "Other", Command: "other", Available: false, Detail: `binary "other" not found`},
		{Name: "Plain", Command: "plain", Available: true},
	}, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	checks := []string{"[OK] Ready (ffmpeg 7.1)", "[WARN] not available", `[ERROR] binary "other" not found`, "[OK] Ready (command: plain)"}
	for i, want := range checks {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]api.CheckStatus{
		{Name: "Storage", Passed: true, Detail: "/srv/media (read/write ok)"},
		{Name: "Kafka"},
	}, false)
	if !strings.Contains(lines[0], "[OK] /srv/media") || !strings.Contains(lines[1], "[ERROR] failed") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader(" Queue ", false)
	if lines[0] != "== Queue ==" || lines[1] != strings.Repeat("-", len("== Queue ==")) {
		t.Fatalf("unexpected header %q", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderTable(t *testing.T) {
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
	out := renderTable([]string{"Status", "Count"}, [][]string{{"Pending", "3"}, {"Failed"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Status", "Count", "Pending", "Failed", "3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
}

func TestBuildQueueStatusRowsZeroFills(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"failed": 2})
	if len(rows) != 4 {
		t.Fatalf("expected a row per status, got %d", len(rows))
	}
	if rows[0][0] != "Pending" || rows[0][1] != "0" || rows[3][0] != "Failed" || rows[3][1] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
