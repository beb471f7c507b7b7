package observability

import "context"

// MultiObserver delivers every event to each of its observers, in order.
type MultiObserver struct {
	targets []Observer
}

// NewMultiObserver drops nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range observers {
		if obs != nil {
			m.targets = append(m.targets, obs)
		}
	}
	return m
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.targets {
		obs.OnEvent(ctx, event)
	}
}
