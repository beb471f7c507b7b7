package monitor

import (
	"fmt"

	"github.com/tailored-agentic-units/trainmon/config"
)

// Constructor names registered by Register.
const (
	FuncMonitors      = "monitors"
	FuncEventWriter   = "event_writer"
	FuncJSONWriter    = "json_writer"
	FuncScalarPrinter = "scalar_printer"
)

// Register adds the monitor constructors to reg, so config trees can
// describe a hub and its sinks:
//
//	monitors:
//	  _fn: monitors
//	  sinks:
//	    printer: {_fn: scalar_printer, enable_step: true}
//	    ledger: {_fn: json_writer, log_dir: /tmp/run}
//
// Every constructor built from reg receives opts.
func Register(reg *config.Registry, opts ...Option) error {
	ctors := []struct {
		name string
		fn   config.Func
	}{
		{FuncMonitors, monitorsFunc(opts)},
		{FuncEventWriter, eventWriterFunc(opts)},
		{FuncJSONWriter, jsonWriterFunc(opts)},
		{FuncScalarPrinter, scalarPrinterFunc(opts)},
	}

	for _, c := range ctors {
		if err := reg.Register(c.name, c.fn); err != nil {
			return err
		}
	}
	return nil
}

// monitorsFunc builds a hub from positional sinks followed by the "sinks"
// keyword, a list or a node of sinks in key order.
func monitorsFunc(opts []Option) config.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		var sinks []Monitor
		for i, a := range args {
			m, ok := a.(Monitor)
			if !ok {
				return nil, fmt.Errorf("%w: argument %d is %T, not a monitor", config.ErrDecode, i, a)
			}
			sinks = append(sinks, m)
		}

		for k, v := range kwargs {
			if k != "sinks" {
				return nil, fmt.Errorf("%w: unknown keyword %q", config.ErrDecode, k)
			}
			more, err := collectSinks(v)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, more...)
		}

		return New(sinks, opts...), nil
	}
}

func collectSinks(v any) ([]Monitor, error) {
	var items []any
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items = x
	case *config.Node:
		for _, k := range x.Keys() {
			item, _ := x.Get(k)
			items = append(items, item)
		}
	default:
		return nil, fmt.Errorf("%w: sinks is %T", config.ErrDecode, v)
	}

	sinks := make([]Monitor, 0, len(items))
	for _, item := range items {
		m, ok := item.(Monitor)
		if !ok {
			return nil, fmt.Errorf("%w: sink is %T, not a monitor", config.ErrDecode, item)
		}
		sinks = append(sinks, m)
	}
	return sinks, nil
}

func eventWriterFunc(opts []Option) config.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		cfg := DefaultEventWriterConfig()
		if err := decodeKwargs(FuncEventWriter, args, kwargs, &cfg); err != nil {
			return nil, err
		}
		return NewEventWriter(cfg, opts...)
	}
}

func jsonWriterFunc(opts []Option) config.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		cfg := DefaultJSONWriterConfig()
		if err := decodeKwargs(FuncJSONWriter, args, kwargs, &cfg); err != nil {
			return nil, err
		}
		return NewJSONWriter(cfg, opts...), nil
	}
}

func scalarPrinterFunc(opts []Option) config.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		cfg := DefaultScalarPrinterConfig()
		if err := decodeKwargs(FuncScalarPrinter, args, kwargs, &cfg); err != nil {
			return nil, err
		}
		return NewScalarPrinter(cfg, opts...)
	}
}

func decodeKwargs(name string, args []any, kwargs map[string]any, dst any) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: %s takes no positional arguments", config.ErrDecode, name)
	}
	return config.Decode(kwargs, dst)
}
