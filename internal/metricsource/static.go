package metricsource

import (
	"context"
	"sync"
)

// Static is an in-memory Source. Values can be changed while in use.
type Static struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStatic creates a Static source seeded with values.
func NewStatic(values map[string]float64) *Static {
	s := &Static{values: make(map[string]float64, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Set stores a metric value.
func (s *Static) Set(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Delete removes a metric.
func (s *Static) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, name)
}

// FetchMetrics implements Source.
func (s *Static) FetchMetrics(ctx context.Context, names []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(names))
	for _, n := range names {
		if v, ok := s.values[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}
