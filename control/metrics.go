// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus registry for allocator metrics and runtime collectors.

package control

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/hioload-cmdbuf/pool"
)

// MetricsRegistry wraps a prometheus registry.
type MetricsRegistry struct {
	reg *prometheus.Registry
}

// NewMetricsRegistry creates a registry with the Go runtime collector.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return &MetricsRegistry{reg: reg}
}

// RegisterAllocator exposes an allocator metrics context.
func (mr *MetricsRegistry) RegisterAllocator(am *pool.AllocatorMetrics) error {
	return mr.reg.Register(am)
}

// GetSnapshot gathers every metric family as name to sample values.
func (mr *MetricsRegistry) GetSnapshot() (map[string][]float64, error) {
	families, err := mr.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] = append(out[mf.GetName()], m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				out[mf.GetName()] = append(out[mf.GetName()], m.GetGauge().GetValue())
			}
		}
	}
	return out, nil
}

// Handler serves the registry in the exposition format.
func (mr *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(mr.reg, promhttp.HandlerOpts{})
}
