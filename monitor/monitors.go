package monitor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/tailored-agentic-units/trainmon/observability"
	"github.com/tailored-agentic-units/trainmon/tensor"
	"github.com/tailored-agentic-units/trainmon/tfevent"
	"github.com/tailored-agentic-units/trainmon/train"
)

// Replica tower qualifiers and the suffix some summary ops append.
var towerPrefix = regexp.MustCompile(`tower[0-9]+/`)

const summarySuffix = "-summary"

// Monitors is the hub a training loop talks to. It forwards lifecycle
// hooks and signals to its sinks in order, the built-in ScalarHistory last.
//
// Lifecycle hooks stop at the first failing sink, except AfterTrain, which
// reaches every sink so all files get closed. Signal methods deliver to
// every sink and join the errors.
type Monitors struct {
	train.Base

	monitors []Monitor
	history  *ScalarHistory
	opts     options
}

// New creates a hub over monitors plus a fresh ScalarHistory.
func New(monitors []Monitor, opts ...Option) *Monitors {
	history := NewScalarHistory()
	all := make([]Monitor, 0, len(monitors)+1)
	for _, m := range monitors {
		if m != nil {
			all = append(all, m)
		}
	}

	return &Monitors{
		monitors: append(all, history),
		history:  history,
		opts:     newOptions(opts),
	}
}

// Monitors returns the sinks, the built-in history included.
func (m *Monitors) Monitors() []Monitor {
	return append([]Monitor(nil), m.monitors...)
}

// History returns the built-in scalar history.
func (m *Monitors) History() *ScalarHistory {
	return m.history
}

func (m *Monitors) Setup(ctx context.Context, p train.Progress) error {
	if err := m.Base.Setup(ctx, p); err != nil {
		return err
	}
	if err := m.each("setup", func(mon Monitor) error { return mon.Setup(ctx, p) }); err != nil {
		return err
	}

	names := make([]string, len(m.monitors))
	for i, mon := range m.monitors {
		names[i] = mon.Name()
	}
	m.emit(ctx, EventSetup, observability.LevelInfo, map[string]any{"monitors": names})
	return nil
}

func (m *Monitors) BeforeTrain(ctx context.Context) error {
	return m.each("before_train", func(mon Monitor) error { return mon.BeforeTrain(ctx) })
}

func (m *Monitors) BeforeEpoch(ctx context.Context) error {
	return m.each("before_epoch", func(mon Monitor) error { return mon.BeforeEpoch(ctx) })
}

func (m *Monitors) AfterEpoch(ctx context.Context) error {
	return m.each("after_epoch", func(mon Monitor) error { return mon.AfterEpoch(ctx) })
}

func (m *Monitors) TriggerStep(ctx context.Context) error {
	return m.each("trigger_step", func(mon Monitor) error { return mon.TriggerStep(ctx) })
}

func (m *Monitors) TriggerEpoch(ctx context.Context) error {
	return m.each("trigger_epoch", func(mon Monitor) error { return mon.TriggerEpoch(ctx) })
}

func (m *Monitors) AfterTrain(ctx context.Context) error {
	err := m.all(func(mon Monitor) error { return mon.AfterTrain(ctx) })
	m.emit(ctx, EventAfterTrain, observability.LevelInfo, map[string]any{"error": err != nil})
	return err
}

// PutScalar records val under name. val may be any integer or floating
// point type, named types included.
func (m *Monitors) PutScalar(name string, val any) error {
	v, err := toFloat(val)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return m.all(func(mon Monitor) error { return mon.ProcessScalar(name, v) })
}

// PutSummary accepts a serialized summary or a *tfevent.Summary. Each
// simple value has replica tower prefixes and a trailing "-summary" removed
// from its tag, in place, and is dispatched as a scalar. The whole summary
// is then passed to every sink's ProcessSummary.
func (m *Monitors) PutSummary(summary any) error {
	var s *tfevent.Summary
	switch x := summary.(type) {
	case []byte:
		parsed, err := tfevent.UnmarshalSummary(x)
		if err != nil {
			return err
		}
		s = parsed
	case *tfevent.Summary:
		if x == nil {
			return fmt.Errorf("%w: nil", ErrNotSummary)
		}
		s = x
	default:
		return fmt.Errorf("%w: %T", ErrNotSummary, summary)
	}

	var errs []error
	for _, v := range s.Values {
		if v.Kind() != tfevent.KindSimple {
			continue
		}
		v.Tag = CleanTag(v.Tag)
		val := float64(v.SimpleValue)
		errs = append(errs, m.all(func(mon Monitor) error { return mon.ProcessScalar(v.Tag, val) }))
	}
	errs = append(errs, m.all(func(mon Monitor) error { return mon.ProcessSummary(s) }))
	return errors.Join(errs...)
}

// CleanTag removes replica tower qualifiers and a trailing "-summary":
// "tower3/loss-summary" becomes "loss".
func CleanTag(tag string) string {
	tag = towerPrefix.ReplaceAllString(tag, "")
	return strings.TrimSuffix(tag, summarySuffix)
}

// PutImage normalizes img to NHWC and dispatches it. Values are expected
// in [0,255]; three channels are read as RGB.
func (m *Monitors) PutImage(name string, img *tensor.Tensor) error {
	nhwc, err := tensor.ToNHWC(img)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return m.all(func(mon Monitor) error { return mon.ProcessImage(name, nhwc) })
}

// PutEvent stamps e with the current global step and wall time, then
// dispatches it.
func (m *Monitors) PutEvent(e *tfevent.Event) error {
	if e == nil {
		return ErrNilEvent
	}
	e.Step = int64(m.GlobalStep())
	e.WallTime = float64(m.opts.now().UnixNano()) / 1e9
	return m.all(func(mon Monitor) error { return mon.ProcessEvent(e) })
}

// GetLatest returns the last value recorded under name, or ErrNotFound.
func (m *Monitors) GetLatest(name string) (float64, error) {
	p, err := m.history.Latest(name)
	if err != nil {
		return 0, err
	}
	return p.Value, nil
}

// GetHistory returns every (step, value) point recorded under name, or
// ErrNotFound.
func (m *Monitors) GetHistory(name string) ([]Point, error) {
	return m.history.History(name)
}

func (m *Monitors) each(hook string, fn func(Monitor) error) error {
	for _, mon := range m.monitors {
		if err := fn(mon); err != nil {
			return fmt.Errorf("%s %s: %w", mon.Name(), hook, err)
		}
	}
	return nil
}

func (m *Monitors) all(fn func(Monitor) error) error {
	var errs []error
	for _, mon := range m.monitors {
		if err := fn(mon); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mon.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Monitors) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	m.opts.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: m.opts.now(),
		Source:    "monitor.Monitors",
		Step:      m.GlobalStep(),
		Data:      data,
	})
}

func toFloat(val any) (float64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotScalar, val)
	}
}
