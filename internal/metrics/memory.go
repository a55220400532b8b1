package metrics

import (
	"context"
	"sync"
)

// MemorySink keeps every datum in memory. Used by tests and the dev profile.
type MemorySink struct {
	mu   sync.Mutex
	data []Datum
	// Err, when set, is returned by Put after the datum is recorded.
	Err error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Type() string { return "memory" }

func (m *MemorySink) Put(_ context.Context, d Datum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data, d)
	return m.Err
}

// Data returns a copy of the recorded data.
func (m *MemorySink) Data() []Datum {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Datum, len(m.data))
	copy(out, m.data)
	return out
}

// Sum adds up every value recorded under name.
func (m *MemorySink) Sum(name string) float64 {
	var total float64
	for _, d := range m.Data() {
		if d.Name == name {
			total += d.Value
		}
	}
	return total
}

// Names lists recorded metric names in order.
func (m *MemorySink) Names() []string {
	data := m.Data()
	names := make([]string, len(data))
	for i, d := range data {
		names[i] = d.Name
	}
	return names
}
