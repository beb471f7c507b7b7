package train

import (
	"context"
	"errors"
	"fmt"
)

// Callbacks runs a list of callbacks in order. A hook stops at the first
// failing callback, except AfterTrain, which reaches every callback so each
// can release its resources, and joins their errors.
type Callbacks []Callback

func (cs Callbacks) Setup(ctx context.Context, p Progress) error {
	for _, cb := range cs {
		if err := cb.Setup(ctx, p); err != nil {
			return fmt.Errorf("%T setup: %w", cb, err)
		}
	}
	return nil
}

func (cs Callbacks) BeforeTrain(ctx context.Context) error {
	return cs.each(ctx, "before train", Callback.BeforeTrain)
}

func (cs Callbacks) BeforeEpoch(ctx context.Context) error {
	return cs.each(ctx, "before epoch", Callback.BeforeEpoch)
}

func (cs Callbacks) AfterEpoch(ctx context.Context) error {
	return cs.each(ctx, "after epoch", Callback.AfterEpoch)
}

func (cs Callbacks) TriggerStep(ctx context.Context) error {
	return cs.each(ctx, "trigger step", Callback.TriggerStep)
}

func (cs Callbacks) TriggerEpoch(ctx context.Context) error {
	return cs.each(ctx, "trigger epoch", Callback.TriggerEpoch)
}

func (cs Callbacks) AfterTrain(ctx context.Context) error {
	var errs []error
	for _, cb := range cs {
		if err := cb.AfterTrain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%T after train: %w", cb, err))
		}
	}
	return errors.Join(errs...)
}

func (cs Callbacks) each(ctx context.Context, hook string, fn func(Callback, context.Context) error) error {
	for _, cb := range cs {
		if err := fn(cb, ctx); err != nil {
			return fmt.Errorf("%T %s: %w", cb, hook, err)
		}
	}
	return nil
}
