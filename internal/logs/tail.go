package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// TailOptions selects which lines Tail returns.
type TailOptions struct {
	// Offset < 0 requests the last Limit lines; otherwise reading resumes at
	// this byte offset.
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	// Match keeps only lines containing it, compared case-insensitively.
	Match string
}

// TailResult carries the lines read and the offset to pass next time.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. A missing file yields no lines and offset 0.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	match := newMatcher(opts.Match)
	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		result, err = linesFrom(path, offset, match)
	}
	if err != nil || !opts.Follow || opts.Wait <= 0 || len(result.Lines) > 0 {
		return result, err
	}
	return poll(ctx, path, result.Offset, opts.Wait, match)
}

type matcher func(line string) bool

func newMatcher(pattern string) matcher {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return func(string) bool { return true }
	}
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), pattern)
	}
}

func open(path string, offset int64) (*os.File, *bufio.Scanner, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("seek log file: %w", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return file, scanner, nil
}

func endOffset(file *os.File) (int64, error) {
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return offset, nil
}

// lastLines keeps a ring of the final limit matching lines.
func lastLines(path string, limit int, match matcher) (TailResult, error) {
	file, scanner, err := open(path, 0)
	if err != nil {
		return TailResult{}, err
	}
	defer file.Close()

	if limit <= 0 {
		size, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: size}, nil
	}

	ring := make([]string, 0, limit)
	start := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !match(line) {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, line)
			continue
		}
		ring[start] = line
		start = (start + 1) % limit
	}
	if err := scanner.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	offset, err := endOffset(file)
	if err != nil {
		return TailResult{}, err
	}
	lines := append(ring[start:len(ring):len(ring)], ring[:start]...)
	return TailResult{Lines: lines, Offset: offset}, nil
}

func linesFrom(path string, offset int64, match matcher) (TailResult, error) {
	file, scanner, err := open(path, offset)
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	defer file.Close()

	var lines []string
	for scanner.Scan() {
		if line := scanner.Text(); match(line) {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("read log file: %w", err)
	}
	next, err := endOffset(file)
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: next}, nil
}

func poll(ctx context.Context, path string, offset int64, wait time.Duration, match matcher) (TailResult, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-ticker.C:
		}
		next, err := linesFrom(path, result.Offset, match)
		if err != nil {
			return result, err
		}
		result = next
		if len(result.Lines) > 0 {
			return result, nil
		}
	}
}
