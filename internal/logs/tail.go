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
	defaultPoll  = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options selects a page of the log file.
type Options struct {
	// Offset is the byte position to continue from; negative reads the
	// last Limit lines.
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	Poll   time.Duration
}

// Page is a run of complete lines and the offset after them.
type Page struct {
	Lines  []string
	Offset int64
}

// Tail reads one page from path. A missing file is an empty page at offset 0.
func Tail(ctx context.Context, path string, opts Options) (Page, error) {
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Page{}, nil
	}
	if err != nil {
		return Page{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Page{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var page Page
	if opts.Offset < 0 {
		page, err = lastLines(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Truncated or rotated; restart from the current end.
			offset = info.Size()
		}
		page, err = linesFrom(path, offset)
	}
	if err != nil {
		return page, err
	}
	if opts.Follow && opts.Wait > 0 && len(page.Lines) == 0 {
		return waitForLines(ctx, path, page.Offset, opts.Wait, opts.Poll)
	}
	return page, nil
}

func openAt(path string, offset int64) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("seek log file: %w", err)
	}
	return file, nil
}

// scan feeds each line after the file position to fn and returns the offset
// reached.
func scan(file *os.File, fn func(string)) (int64, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("determine log offset: %w", err)
	}
	return offset, nil
}

func lastLines(path string, limit int) (Page, error) {
	file, err := openAt(path, 0)
	if err != nil {
		return Page{}, err
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Page{}, fmt.Errorf("seek log file: %w", err)
		}
		return Page{Offset: end}, nil
	}

	ring := make([]string, limit)
	count := 0
	offset, err := scan(file, func(line string) {
		ring[count%limit] = line
		count++
	})
	if err != nil {
		return Page{}, err
	}

	n := min(count, limit)
	lines := make([]string, n)
	start := count - n
	for i := range n {
		lines[i] = ring[(start+i)%limit]
	}
	return Page{Lines: lines, Offset: offset}, nil
}

func linesFrom(path string, offset int64) (Page, error) {
	file, err := openAt(path, offset)
	if err != nil {
		return Page{Offset: offset}, err
	}
	defer file.Close()

	var lines []string
	next, err := scan(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return Page{Offset: offset}, err
	}
	return Page{Lines: lines, Offset: next}, nil
}

func waitForLines(ctx context.Context, path string, offset int64, wait, poll time.Duration) (Page, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Page{Offset: offset}, ctx.Err()
		case <-deadline.C:
			return Page{Offset: offset}, nil
		case <-ticker.C:
		}
		page, err := linesFrom(path, offset)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Page{Offset: offset}, err
		}
		if len(page.Lines) > 0 {
			return page, nil
		}
		offset = page.Offset
	}
}
