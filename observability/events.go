package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	instructions *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the registry counting ledger instructions emitted by
// committed operations.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "synthex",
				Subsystem: "events",
				Name:      "instructions_total",
				Help:      "Count of ledger instructions segmented by kind and token.",
			}, []string{"kind", "token"}),
		}
		prometheus.MustRegister(eventRegistry.instructions)
	})
	return eventRegistry
}

// RecordInstruction increments the instruction counter for the supplied kind
// and token address.
func (m *eventMetrics) RecordInstruction(kind, token string) {
	if m == nil {
		return
	}
	kind = strings.TrimSpace(strings.ToLower(kind))
	if kind == "" {
		kind = "unknown"
	}
	token = strings.TrimSpace(strings.ToLower(token))
	if token == "" {
		token = "unknown"
	}
	m.instructions.WithLabelValues(kind, token).Inc()
}
