// Package metrics provides the nil-safe indirection between domain
// packages (internal/rescache, responsebuilder) and the
// Prometheus implementation in pkg/metrics/prometheus. Domain packages
// depend only on this package's interfaces, never on prometheus directly,
// so metrics stay entirely optional: when InitRegistry is never called,
// every constructor here returns nil and callers skip recording at zero
// cost.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and returns the registry backing
// it. Safe to call more than once; later calls are no-ops and return the
// existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// reset is used by tests to restore a clean global state between cases.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	registry = nil
}
