package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Request selects what Tail reads. A negative Offset reads the last Lines
// lines; otherwise everything after Offset is returned. When Wait is set and
// nothing new is available, Tail polls until a line arrives or Wait elapses.
type Request struct {
	Offset int64
	Lines  int
	Wait   time.Duration
}

// Chunk is one read of the log file. Offset is where the next read starts.
type Chunk struct {
	Lines  []string
	Offset int64
}

// Tail reads path according to req. A missing file yields an empty chunk at
// offset zero so callers can start following before the daemon writes.
func Tail(ctx context.Context, path string, req Request) (Chunk, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{Offset: req.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Chunk{Offset: req.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var chunk Chunk
	if req.Offset < 0 {
		chunk, err = lastLines(path, req.Lines)
	} else {
		chunk, err = linesFrom(path, req.Offset)
	}
	if err != nil || len(chunk.Lines) > 0 || req.Wait <= 0 {
		return chunk, err
	}
	return waitForLines(ctx, path, chunk.Offset, req.Wait)
}

func lastLines(path string, limit int) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Chunk{}, fmt.Errorf("seek log file: %w", err)
		}
		return Chunk{Offset: end}, nil
	}

	ring := make([]string, 0, limit)
	next := 0
	end, err := scanLines(file, func(line string) {
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return Chunk{}, err
	}
	lines := append(append([]string(nil), ring[next:]...), ring[:next]...)
	return Chunk{Lines: lines, Offset: end}, nil
}

func linesFrom(path string, offset int64) (Chunk, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Chunk{}, nil
		}
		return Chunk{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		// truncated or rotated; restart from the top
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Chunk{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	read, err := scanLines(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Chunk{Offset: offset}, err
	}
	return Chunk{Lines: lines, Offset: offset + read}, nil
}

// scanLines feeds complete lines to fn and returns the bytes consumed. A
// trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == nil {
			consumed += int64(len(line))
			fn(trimEOL(line))
			continue
		}
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		return consumed, fmt.Errorf("read log file: %w", err)
	}
}

func trimEOL(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) > maxLineBytes {
		line = line[:maxLineBytes]
	}
	return line
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (Chunk, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Chunk{Offset: offset}, ctx.Err()
		case <-timer.C:
			return Chunk{Offset: offset}, nil
		case <-ticker.C:
		}
		chunk, err := linesFrom(path, offset)
		if err != nil {
			return chunk, err
		}
		if len(chunk.Lines) > 0 {
			return chunk, nil
		}
		offset = chunk.Offset
	}
}
