package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
)

var (
	// ErrTrailClosed is returned for events recorded after Shutdown.
	ErrTrailClosed = errors.New("activity trail closed")
	// ErrBufferFull is returned when the trail cannot keep up.
	ErrBufferFull = errors.New("activity buffer full")
)

// Config configures the trail.
type Config struct {
	Enabled       bool
	Sink          string // stdout or file
	FilePath      string
	BufferSize    int
	FlushInterval time.Duration
}

// Writer is an event sink.
type Writer interface {
	Write(event *Event) error
	Flush() error
	Close(ctx context.Context) error
}

// Trail buffers events and delivers them to a Writer from one goroutine.
// Recording never blocks a request: a full buffer drops the event.
type Trail struct {
	log    logger.Logger
	writer Writer

	events chan *Event
	ticker *time.Ticker
	wg     sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

// New creates a trail for cfg. A disabled config yields a nil trail, on
// which every method is a no-op.
func New(cfg Config, log logger.Logger) (*Trail, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	writer, err := newWriter(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithWriter(cfg, writer, log), nil
}

// NewWithWriter starts a trail delivering to writer
func NewWithWriter(cfg Config, writer Writer, log logger.Logger) *Trail {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	t := &Trail{
		log:    log,
		writer: writer,
		events: make(chan *Event, cfg.BufferSize),
		ticker: time.NewTicker(cfg.FlushInterval),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Enabled reports whether events are being recorded
func (t *Trail) Enabled() bool {
	return t != nil
}

// Record queues an event and returns its id.
func (t *Trail) Record(event *Event) (string, error) {
	if t == nil || event == nil {
		return "", nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		metrics.ActivityEventsTotal.WithLabelValues("dropped").Inc()
		return "", ErrTrailClosed
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case t.events <- event:
		return event.ID, nil
	default:
		metrics.ActivityEventsTotal.WithLabelValues("dropped").Inc()
		return "", ErrBufferFull
	}
}

func (t *Trail) run() {
	defer t.wg.Done()

	for {
		select {
		case event, ok := <-t.events:
			if !ok {
				t.flush()
				return
			}
			if err := t.writer.Write(event); err != nil {
				t.log.Error("Failed to write activity event", logger.Error(err))
				metrics.ActivityEventsTotal.WithLabelValues("error").Inc()
				continue
			}
			metrics.ActivityEventsTotal.WithLabelValues("written").Inc()
		case <-t.ticker.C:
			t.flush()
		}
	}
}

func (t *Trail) flush() {
	if err := t.writer.Flush(); err != nil {
		t.log.Error("Failed to flush activity writer", logger.Error(err))
	}
}

// Shutdown drains queued events and closes the writer.
func (t *Trail) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.events)
		t.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.ticker.Stop()
	return t.writer.Close(ctx)
}
