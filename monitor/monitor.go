// Package monitor fans training signals out to a set of sinks.
//
// A training loop owns one Monitors hub and pushes scalars, images,
// summaries and raw events into it. The hub normalizes each signal, stamps
// it with the current global step and forwards it to every sink: an event
// file writer, a JSON ledger, a console printer, and an always-present
// in-memory ScalarHistory that answers GetLatest and GetHistory.
//
//	hub := monitor.New([]monitor.Monitor{printer, ledger})
//	loop.Run(ctx, hub, func(ctx context.Context, p train.Progress) error {
//		return hub.PutScalar("loss", loss)
//	})
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/tensor"
	"github.com/tailored-agentic-units/trainmon/tfevent"
	"github.com/tailored-agentic-units/trainmon/train"
)

// Monitor is a sink for training signals. It receives the scheduler's
// lifecycle hooks through the hub and may ignore any of them.
type Monitor interface {
	train.Callback

	// Name identifies the sink in errors and logs.
	Name() string

	ProcessScalar(name string, val float64) error
	// ProcessImage receives a rank 4 NHWC tensor with values in [0,255].
	ProcessImage(name string, img *tensor.Tensor) error
	// ProcessSummary receives the summary after scalar tags were cleaned.
	ProcessSummary(s *tfevent.Summary) error
	// ProcessEvent receives an event already stamped with step and time.
	ProcessEvent(e *tfevent.Event) error
}

// Base implements Monitor's hooks and Process methods as no-ops. Embed it
// and override what the sink handles.
type Base struct {
	train.Base
}

func (*Base) ProcessScalar(string, float64) error       { return nil }
func (*Base) ProcessImage(string, *tensor.Tensor) error { return nil }
func (*Base) ProcessSummary(*tfevent.Summary) error     { return nil }
func (*Base) ProcessEvent(*tfevent.Event) error         { return nil }

// NoneMonitor accepts and drops everything. File sinks return one when no
// log directory is configured.
type NoneMonitor struct {
	Base
	name string
}

func NewNoneMonitor(name string) *NoneMonitor {
	return &NoneMonitor{name: name}
}

func (m *NoneMonitor) Name() string {
	if m.name == "" {
		return "NoneMonitor"
	}
	return "NoneMonitor(" + m.name + ")"
}

// ignored reports a file sink that could not be built without a log
// directory and returns its placeholder.
func ignored(o options, name string) *NoneMonitor {
	o.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventSinkIgnored,
		Level:     observability.LevelWarning,
		Timestamp: o.now(),
		Source:    "monitor." + name,
		Data:      map[string]any{"reason": "log directory was not set"},
	})
	return NewNoneMonitor(name)
}

type options struct {
	logger   *slog.Logger
	observer observability.Observer
	now      func() time.Time
}

// Option configures the hub and the sinks.
type Option func(*options)

// WithLogger sets the logger used for console output and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(obs observability.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = observability.NewSlogObserver(o.logger)
	}
	return o
}
