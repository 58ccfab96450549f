package activity

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

func newWriter(cfg Config) (Writer, error) {
	switch cfg.Sink {
	case "", "stdout":
		return NewStreamWriter(os.Stdout), nil
	case "file":
		return openFileSink(cfg.FilePath)
	default:
		return nil, fmt.Errorf("unsupported activity sink: %s", cfg.Sink)
	}
}

// LineWriter appends one JSON event per line. A buffered sink holds
// successful events until Flush, but denied and failed calls are written
// through at once so they survive a crash between flushes.
type LineWriter struct {
	mu     sync.Mutex
	out    io.Writer
	buf    *bufio.Writer
	closer io.Closer
}

// NewStreamWriter writes every event straight through to w.
func NewStreamWriter(w io.Writer) *LineWriter {
	return &LineWriter{out: w}
}

func newBufferedWriter(w io.Writer, closer io.Closer) *LineWriter {
	return &LineWriter{out: w, buf: bufio.NewWriter(w), closer: closer}
}

func openFileSink(path string) (*LineWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("activity file path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create activity log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log file: %w", err)
	}
	return newBufferedWriter(file, file), nil
}

func (w *LineWriter) Write(event *Event) error {
	if event == nil {
		return nil
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode activity event %s: %w", event.ID, err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf == nil {
		_, err = w.out.Write(line)
		return err
	}
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	if event.Result != ResultSuccess {
		return w.buf.Flush()
	}
	return nil
}

func (w *LineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf == nil {
		return nil
	}
	return w.buf.Flush()
}

// Close flushes pending lines and closes the underlying file, giving up
// when ctx expires.
func (w *LineWriter) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := w.Flush()
		if w.closer != nil {
			if cerr := w.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
