package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sermoncast/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sermoncast.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: -1, Lines: 2})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "b" || chunk.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 6 {
		t.Fatalf("expected offset 6, got %d", chunk.Offset)
	}
}

func TestTailFewerLinesThanLimit(t *testing.T) {
	path := writeLog(t, "only\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: -1, Lines: 10})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")
	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: -1, Lines: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("expected empty chunk, got %+v", chunk)
	}
}

func TestTailFromOffsetLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "first\nsecond\npart")

	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: 6})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "second" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset != 13 {
		t.Fatalf("expected offset 13, got %d", chunk.Offset)
	}

	appendLog(t, path, "ial\n")
	chunk, err = logs.Tail(context.Background(), path, logs.Request{Offset: chunk.Offset})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "partial" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
}

func TestTailRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "new\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: 500})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "new" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
}

func TestTailRejectsDirectory(t *testing.T) {
	if _, err := logs.Tail(context.Background(), t.TempDir(), logs.Request{Offset: -1, Lines: 1}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestTailWaitsForNewLines(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := logs.Tail(ctx, path, logs.Request{Offset: -1, Lines: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.Chunk, 1)
	go func() {
		chunk, err := logs.Tail(ctx, path, logs.Request{Offset: first.Offset, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail: %v", err)
		}
		done <- chunk
	}()

	time.Sleep(200 * time.Millisecond)
	appendLog(t, path, "later\n")

	select {
	case chunk := <-done:
		if len(chunk.Lines) != 1 || chunk.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", chunk.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail did not return")
	}
}

func TestTailWaitTimesOut(t *testing.T) {
	path := writeLog(t, "start\n")

	chunk, err := logs.Tail(context.Background(), path, logs.Request{Offset: 6, Wait: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 6 {
		t.Fatalf("expected empty chunk at offset 6, got %+v", chunk)
	}
}
