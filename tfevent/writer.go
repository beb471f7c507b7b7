package tfevent

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxQueue  = 10
	defaultFlushSecs = 120
)

// FileWriterOptions controls buffering of a FileWriter. Zero values select
// the defaults (10 pending events, 120 seconds).
type FileWriterOptions struct {
	MaxQueue  int
	FlushSecs int
	Now       func() time.Time
}

// FileWriter appends events to a log file inside a directory. Events are
// buffered and written out once MaxQueue events are pending or FlushSecs
// have elapsed since the last flush, whichever comes first. Flushing is
// checked on each write; the writer starts no goroutines.
//
// A FileWriter is not safe for concurrent use.
type FileWriter struct {
	dir       string
	maxQueue  int
	interval  time.Duration
	now       func() time.Time
	file      *os.File
	buf       *bufio.Writer
	records   *RecordWriter
	path      string
	pending   int
	lastFlush time.Time
}

// NewFileWriter opens a new event file in dir. The directory must exist.
func NewFileWriter(dir string, opts FileWriterOptions) (*FileWriter, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("event log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("event log directory: %s is not a directory", dir)
	}

	w := &FileWriter{
		dir:      dir,
		maxQueue: opts.MaxQueue,
		interval: time.Duration(opts.FlushSecs) * time.Second,
		now:      opts.Now,
	}
	if w.maxQueue <= 0 {
		w.maxQueue = defaultMaxQueue
	}
	if w.interval <= 0 {
		w.interval = defaultFlushSecs * time.Second
	}
	if w.now == nil {
		w.now = time.Now
	}

	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *FileWriter) open() error {
	now := w.now()
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	id := uuid.Must(uuid.NewV7()).String()
	name := fmt.Sprintf("events.out.tfevents.%010d.%s.%s", now.Unix(), host, id[len(id)-12:])

	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open event file: %w", err)
	}

	w.file = f
	w.path = path
	w.buf = bufio.NewWriter(f)
	w.records = NewRecordWriter(w.buf)
	w.pending = 0
	w.lastFlush = now

	return w.AddEvent(&Event{WallTime: wallTime(now), FileVersion: FileVersion})
}

// Path returns the file currently being written.
func (w *FileWriter) Path() string {
	return w.path
}

// Dir returns the log directory.
func (w *FileWriter) Dir() string {
	return w.dir
}

// AddEvent appends e. A zero WallTime is filled with the current time.
func (w *FileWriter) AddEvent(e *Event) error {
	if w.file == nil {
		return ErrWriterClose
	}
	if e.WallTime == 0 {
		e.WallTime = wallTime(w.now())
	}
	if err := w.records.Write(e.Marshal()); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.pending++
	if w.pending >= w.maxQueue || w.now().Sub(w.lastFlush) >= w.interval {
		return w.Flush()
	}
	return nil
}

// AddSummary appends s as an event at step.
func (w *FileWriter) AddSummary(s *Summary, step int64) error {
	return w.AddEvent(&Event{Step: step, Summary: s})
}

// AddScalar appends a single scalar summary at step.
func (w *FileWriter) AddScalar(tag string, v float64, step int64) error {
	return w.AddSummary(&Summary{Values: []*Value{NewSimpleValue(tag, float32(v))}}, step)
}

// Flush writes buffered events through to the file.
func (w *FileWriter) Flush() error {
	if w.file == nil {
		return ErrWriterClose
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush event file: %w", err)
	}
	w.pending = 0
	w.lastFlush = w.now()
	return nil
}

// Close flushes and closes the current file. Closing twice is a no-op.
func (w *FileWriter) Close() error {
	if w.file == nil {
		return nil
	}
	flushErr := w.Flush()
	closeErr := w.file.Close()
	w.file = nil
	w.buf = nil
	w.records = nil

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Reopen starts a new file in the same directory, closing the current one
// if it is still open.
func (w *FileWriter) Reopen() error {
	if err := w.Close(); err != nil {
		return err
	}
	return w.open()
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
