// Package train defines the contract between a training scheduler and the
// callbacks it drives, plus a minimal synchronous Loop implementing it.
//
// Hooks always run in this order:
//
//	Setup → BeforeTrain → { BeforeEpoch → { step, TriggerStep }* → AfterEpoch → TriggerEpoch }* → AfterTrain
package train

import "context"

// Progress exposes the scheduler's counters to callbacks.
type Progress interface {
	// GlobalStep is the number of steps completed in the whole run.
	GlobalStep() int
	// LocalStep is the index of the current step within its epoch.
	LocalStep() int
	StepsPerEpoch() int
	// EpochNum is the current epoch, counting from StartingEpoch.
	EpochNum() int
	StartingEpoch() int
}

// Callback receives the scheduler's lifecycle hooks. Any returned error
// terminates the run.
type Callback interface {
	Setup(ctx context.Context, p Progress) error
	BeforeTrain(ctx context.Context) error
	BeforeEpoch(ctx context.Context) error
	AfterEpoch(ctx context.Context) error
	TriggerStep(ctx context.Context) error
	TriggerEpoch(ctx context.Context) error
	AfterTrain(ctx context.Context) error
}

// Base implements every hook as a no-op and remembers the Progress given to
// Setup. Embed it and override the hooks you need; overriding Setup must
// still call Base.Setup.
type Base struct {
	progress Progress
}

func (b *Base) Setup(_ context.Context, p Progress) error {
	b.progress = p
	return nil
}

// Progress returns the scheduler passed to Setup, or nil before Setup.
func (b *Base) Progress() Progress {
	return b.progress
}

// GlobalStep returns the current global step, or 0 before Setup.
func (b *Base) GlobalStep() int {
	if b.progress == nil {
		return 0
	}
	return b.progress.GlobalStep()
}

// LastStepOfEpoch reports whether the current step is the final one of its
// epoch, where per-step work is usually deferred to TriggerEpoch.
func (b *Base) LastStepOfEpoch() bool {
	if b.progress == nil {
		return false
	}
	return b.progress.LocalStep() == b.progress.StepsPerEpoch()-1
}

func (*Base) BeforeTrain(context.Context) error  { return nil }
func (*Base) BeforeEpoch(context.Context) error  { return nil }
func (*Base) AfterEpoch(context.Context) error   { return nil }
func (*Base) TriggerStep(context.Context) error  { return nil }
func (*Base) TriggerEpoch(context.Context) error { return nil }
func (*Base) AfterTrain(context.Context) error   { return nil }
