package monitor

import (
	"context"
	"fmt"
	"regexp"
	"slices"
)

// ScalarPrinter logs the latest value of each scalar as "name: value" at
// Info level, sorted by name. Values accumulate between prints and are
// dropped after each print.
//
// With both per-step and per-epoch printing enabled, the last step of an
// epoch does not print; the epoch trigger right after it does.
type ScalarPrinter struct {
	Base

	enableStep  bool
	enableEpoch bool
	whitelist   []*regexp.Regexp
	blacklist   []*regexp.Regexp
	opts        options
	values      map[string]float64
}

// NewScalarPrinter compiles cfg's name filters. An invalid expression is
// an error.
func NewScalarPrinter(cfg ScalarPrinterConfig, opts ...Option) (*ScalarPrinter, error) {
	whitelist, err := compileAll(cfg.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}
	blacklist, err := compileAll(cfg.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}

	return &ScalarPrinter{
		enableStep:  cfg.EnableStep,
		enableEpoch: cfg.EnableEpoch,
		whitelist:   whitelist,
		blacklist:   blacklist,
		opts:        newOptions(opts),
		values:      make(map[string]float64),
	}, nil
}

func (p *ScalarPrinter) Name() string {
	return "ScalarPrinter"
}

func (p *ScalarPrinter) BeforeTrain(ctx context.Context) error {
	p.print(ctx)
	return nil
}

func (p *ScalarPrinter) TriggerStep(ctx context.Context) error {
	if !p.enableStep {
		return nil
	}
	if !p.LastStepOfEpoch() || !p.enableEpoch {
		p.print(ctx)
	}
	return nil
}

func (p *ScalarPrinter) TriggerEpoch(ctx context.Context) error {
	if p.enableEpoch {
		p.print(ctx)
	}
	return nil
}

func (p *ScalarPrinter) ProcessScalar(name string, val float64) error {
	p.values[name] = val
	return nil
}

func (p *ScalarPrinter) print(ctx context.Context) {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if p.allowed(name) {
			p.opts.logger.InfoContext(ctx, fmt.Sprintf("%s: %.5g", name, p.values[name]))
		}
	}
	clear(p.values)
}

func (p *ScalarPrinter) allowed(name string) bool {
	if p.whitelist != nil && !matchAny(p.whitelist, name) {
		return false
	}
	return !matchAny(p.blacklist, name)
}

// compileAll returns nil for a nil list, which matches every name when
// used as a whitelist.
func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	if exprs == nil {
		return nil, nil
	}
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		re, err := regexp.Compile(e)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, name string) bool {
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
