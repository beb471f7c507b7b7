package train

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by NewLoop for unusable counters.
var ErrInvalidConfig = errors.New("invalid loop config")

// Config holds the scheduler's counters.
type Config struct {
	StepsPerEpoch int `json:"steps_per_epoch,omitempty"`
	StartingEpoch int `json:"starting_epoch,omitempty"`
	MaxEpoch      int `json:"max_epoch,omitempty"`
}

// DefaultConfig returns 100 steps per epoch over epochs 1 to 10.
func DefaultConfig() Config {
	return Config{
		StepsPerEpoch: 100,
		StartingEpoch: 1,
		MaxEpoch:      10,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.StepsPerEpoch > 0 {
		c.StepsPerEpoch = source.StepsPerEpoch
	}
	if source.StartingEpoch > 0 {
		c.StartingEpoch = source.StartingEpoch
	}
	if source.MaxEpoch > 0 {
		c.MaxEpoch = source.MaxEpoch
	}
}

// StepFunc performs one training step.
type StepFunc func(ctx context.Context, p Progress) error

// Loop is a synchronous scheduler that drives a Callback through epochs of
// steps. It implements Progress.
type Loop struct {
	cfg        Config
	globalStep int
	localStep  int
	epochNum   int
}

// NewLoop validates cfg and returns a Loop positioned before StartingEpoch.
// Steps of epochs before StartingEpoch count as already completed.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.StepsPerEpoch <= 0 {
		return nil, fmt.Errorf("%w: steps_per_epoch %d", ErrInvalidConfig, cfg.StepsPerEpoch)
	}
	if cfg.StartingEpoch <= 0 {
		return nil, fmt.Errorf("%w: starting_epoch %d", ErrInvalidConfig, cfg.StartingEpoch)
	}
	if cfg.MaxEpoch < cfg.StartingEpoch-1 {
		return nil, fmt.Errorf("%w: max_epoch %d before starting_epoch %d", ErrInvalidConfig, cfg.MaxEpoch, cfg.StartingEpoch)
	}

	return &Loop{
		cfg:        cfg,
		globalStep: (cfg.StartingEpoch - 1) * cfg.StepsPerEpoch,
		epochNum:   cfg.StartingEpoch - 1,
	}, nil
}

func (l *Loop) GlobalStep() int    { return l.globalStep }
func (l *Loop) LocalStep() int     { return l.localStep }
func (l *Loop) StepsPerEpoch() int { return l.cfg.StepsPerEpoch }
func (l *Loop) EpochNum() int      { return l.epochNum }
func (l *Loop) StartingEpoch() int { return l.cfg.StartingEpoch }

// Run drives cb from StartingEpoch through MaxEpoch, calling step once per
// step. Once BeforeTrain has been reached, AfterTrain always runs, even
// when a hook or step fails or ctx is cancelled; its error is joined with
// the one that ended the run.
func (l *Loop) Run(ctx context.Context, cb Callback, step StepFunc) error {
	if err := cb.Setup(ctx, l); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	err := l.train(ctx, cb, step)
	if afterErr := cb.AfterTrain(context.WithoutCancel(ctx)); afterErr != nil {
		err = errors.Join(err, fmt.Errorf("after train: %w", afterErr))
	}
	return err
}

func (l *Loop) train(ctx context.Context, cb Callback, step StepFunc) error {
	if err := cb.BeforeTrain(ctx); err != nil {
		return fmt.Errorf("before train: %w", err)
	}

	for epoch := l.cfg.StartingEpoch; epoch <= l.cfg.MaxEpoch; epoch++ {
		l.epochNum = epoch
		l.localStep = 0

		if err := cb.BeforeEpoch(ctx); err != nil {
			return fmt.Errorf("epoch %d before epoch: %w", epoch, err)
		}

		for l.localStep = 0; l.localStep < l.cfg.StepsPerEpoch; l.localStep++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := step(ctx, l); err != nil {
				return fmt.Errorf("epoch %d step %d: %w", epoch, l.localStep, err)
			}
			l.globalStep++

			if err := cb.TriggerStep(ctx); err != nil {
				return fmt.Errorf("epoch %d trigger step: %w", epoch, err)
			}
		}
		l.localStep = l.cfg.StepsPerEpoch - 1

		if err := cb.AfterEpoch(ctx); err != nil {
			return fmt.Errorf("epoch %d after epoch: %w", epoch, err)
		}
		if err := cb.TriggerEpoch(ctx); err != nil {
			return fmt.Errorf("epoch %d trigger epoch: %w", epoch, err)
		}
	}

	return nil
}
