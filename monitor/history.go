package monitor

import (
	"fmt"
	"slices"
	"sync"
)

// Point is one recorded scalar.
type Point struct {
	Step  int
	Value float64
}

// ScalarHistory keeps every scalar it receives, per name, in arrival order.
// Reads are safe while the training loop writes.
type ScalarHistory struct {
	Base

	mu     sync.RWMutex
	series map[string][]Point
}

func NewScalarHistory() *ScalarHistory {
	return &ScalarHistory{series: make(map[string][]Point)}
}

func (h *ScalarHistory) Name() string {
	return "ScalarHistory"
}

func (h *ScalarHistory) ProcessScalar(name string, val float64) error {
	step := h.GlobalStep()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.series[name] = append(h.series[name], Point{Step: step, Value: val})
	return nil
}

// Latest returns the most recent point recorded under name.
func (h *ScalarHistory) Latest(name string) (Point, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.series[name]
	if len(s) == 0 {
		return Point{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s[len(s)-1], nil
}

// History returns a copy of every point recorded under name.
func (h *ScalarHistory) History(name string) ([]Point, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.series[name]
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return slices.Clone(s), nil
}

// Names returns the recorded scalar names, sorted.
func (h *ScalarHistory) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.series))
	for name := range h.series {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
