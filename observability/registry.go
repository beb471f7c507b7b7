package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrUnknownObserver is returned by Resolve for an unregistered name.
var ErrUnknownObserver = errors.New("unknown observer")

// Factory builds an observer that writes through logger.
type Factory func(logger *slog.Logger) Observer

var (
	factories = map[string]Factory{
		"noop": func(*slog.Logger) Observer { return NoOpObserver{} },
		"slog": func(l *slog.Logger) Observer { return NewSlogObserver(l) },
	}
	mutex sync.RWMutex
)

// Register adds or replaces a named observer factory. "noop" and "slog" are
// always available.
func Register(name string, f Factory) {
	mutex.Lock()
	defer mutex.Unlock()

	factories[name] = f
}

// Names returns the registered names, sorted.
func Names() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve builds the named observers over logger. No names gives a
// NoOpObserver, a single name its observer, several a MultiObserver in the
// given order.
func Resolve(logger *slog.Logger, names ...string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	built := make([]Observer, 0, len(names))
	for _, name := range names {
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObserver, name)
		}
		built = append(built, f(logger))
	}

	switch len(built) {
	case 0:
		return NoOpObserver{}, nil
	case 1:
		return built[0], nil
	default:
		return NewMultiObserver(built...), nil
	}
}
