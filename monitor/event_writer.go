package monitor

import (
	"context"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/tensor"
	"github.com/tailored-agentic-units/trainmon/tfevent"
	"github.com/tailored-agentic-units/trainmon/train"
)

type writerState int

const (
	stateUnopened writerState = iota
	stateOpen
	stateClosed
)

func (s writerState) String() string {
	switch s {
	case stateUnopened:
		return "unopened"
	case stateOpen:
		return "open"
	default:
		return "closed"
	}
}

// EventWriter appends every signal to an event file readable by
// TensorBoard. The file is opened in Setup, flushed after every epoch and
// closed in AfterTrain.
type EventWriter struct {
	Base

	cfg    EventWriterConfig
	opts   options
	writer *tfevent.FileWriter
	state  writerState
}

// NewEventWriter returns an EventWriter, or a NoneMonitor with a warning
// when cfg.LogDir is empty. A LogDir that is not a directory fails with
// ErrInvalidLogDir.
func NewEventWriter(cfg EventWriterConfig, opts ...Option) (Monitor, error) {
	o := newOptions(opts)
	if cfg.LogDir == "" {
		return ignored(o, "EventWriter"), nil
	}

	info, err := os.Stat(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLogDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidLogDir, cfg.LogDir)
	}

	merged := DefaultEventWriterConfig()
	merged.Merge(&cfg)
	return &EventWriter{cfg: merged, opts: o}, nil
}

func (w *EventWriter) Name() string {
	return "EventWriter"
}

// Path returns the event file currently written, or "" when not open.
func (w *EventWriter) Path() string {
	if w.state != stateOpen {
		return ""
	}
	return w.writer.Path()
}

func (w *EventWriter) Setup(ctx context.Context, p train.Progress) error {
	if err := w.Base.Setup(ctx, p); err != nil {
		return err
	}
	if w.state == stateOpen {
		return nil
	}

	fw, err := tfevent.NewFileWriter(w.cfg.LogDir, tfevent.FileWriterOptions{
		MaxQueue:  w.cfg.MaxQueue,
		FlushSecs: w.cfg.FlushSecs,
		Now:       w.opts.now,
	})
	if err != nil {
		return err
	}
	w.writer = fw
	w.state = stateOpen
	return nil
}

func (w *EventWriter) ProcessScalar(name string, val float64) error {
	if err := w.ready(); err != nil {
		return err
	}
	return w.writer.AddScalar(name, val, w.step())
}

func (w *EventWriter) ProcessSummary(s *tfevent.Summary) error {
	if err := w.ready(); err != nil {
		return err
	}
	return w.writer.AddSummary(s, w.step())
}

func (w *EventWriter) ProcessEvent(e *tfevent.Event) error {
	if err := w.ready(); err != nil {
		return err
	}
	return w.writer.AddEvent(e)
}

// ProcessImage writes each image of the batch as a PNG image summary
// tagged name/image/i.
func (w *EventWriter) ProcessImage(name string, img *tensor.Tensor) error {
	if err := w.ready(); err != nil {
		return err
	}

	n, h, wd, c := img.Shape[0], img.Shape[1], img.Shape[2], img.Shape[3]
	size := h * wd * c
	s := &tfevent.Summary{Values: make([]*tfevent.Value, 0, n)}
	for i := range n {
		encoded, err := tfevent.NewImage(h, wd, c, img.Data[i*size:(i+1)*size])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		s.Values = append(s.Values, tfevent.NewImageValue(fmt.Sprintf("%s/image/%d", name, i), encoded))
	}
	return w.writer.AddSummary(s, w.step())
}

func (w *EventWriter) TriggerEpoch(ctx context.Context) error {
	if err := w.ready(); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if !w.cfg.SplitFiles {
		return nil
	}

	closed := w.writer.Path()
	if err := w.writer.Reopen(); err != nil {
		w.state = stateClosed
		return err
	}
	w.opts.observer.OnEvent(ctx, observability.Event{
		Type:      EventFileSplit,
		Level:     observability.LevelVerbose,
		Timestamp: w.opts.now(),
		Source:    "monitor.EventWriter",
		Step:      w.GlobalStep(),
		Data:      map[string]any{"closed": closed, "opened": w.writer.Path()},
	})
	return nil
}

func (w *EventWriter) AfterTrain(context.Context) error {
	if w.state != stateOpen {
		return nil
	}
	w.state = stateClosed
	return w.writer.Close()
}

func (w *EventWriter) ready() error {
	if w.state != stateOpen {
		return fmt.Errorf("%w: %s", ErrNotOpen, w.state)
	}
	return nil
}

func (w *EventWriter) step() int64 {
	return int64(w.GlobalStep())
}
