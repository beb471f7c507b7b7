package train

import (
	"context"
	"time"
)

// ScalarPutter accepts scalar metrics; monitor.Monitors satisfies it.
type ScalarPutter interface {
	PutScalar(name string, val any) error
}

// ThroughputTracker publishes training throughput once per epoch, measured
// from the time spent between BeforeEpoch and AfterEpoch only, so work done
// by epoch triggers is excluded.
//
// With samplesPerStep > 0 it publishes "throughput/samples_per_sec",
// otherwise "throughput" in steps per second.
type ThroughputTracker struct {
	Base

	sink           ScalarPutter
	samplesPerStep int
	now            func() time.Time

	elapsed  time.Duration
	started  time.Time
	lastStep int
}

// TrackerOption configures a ThroughputTracker.
type TrackerOption func(*ThroughputTracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *ThroughputTracker) { t.now = now }
}

func NewThroughputTracker(sink ScalarPutter, samplesPerStep int, opts ...TrackerOption) *ThroughputTracker {
	t := &ThroughputTracker{
		sink:           sink,
		samplesPerStep: samplesPerStep,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ThroughputTracker) BeforeTrain(context.Context) error {
	t.reset()
	return nil
}

func (t *ThroughputTracker) BeforeEpoch(context.Context) error {
	t.started = t.now()
	return nil
}

func (t *ThroughputTracker) AfterEpoch(context.Context) error {
	t.elapsed += t.now().Sub(t.started)
	return nil
}

func (t *ThroughputTracker) TriggerEpoch(context.Context) error {
	seconds := t.elapsed.Seconds()
	steps := t.GlobalStep() - t.lastStep
	t.reset()

	if seconds <= 0 {
		return nil
	}

	stepsPerSec := float64(steps) / seconds
	if t.samplesPerStep > 0 {
		return t.sink.PutScalar("throughput/samples_per_sec", stepsPerSec*float64(t.samplesPerStep))
	}
	return t.sink.PutScalar("throughput", stepsPerSec)
}

func (t *ThroughputTracker) reset() {
	t.elapsed = 0
	t.lastStep = t.GlobalStep()
}
