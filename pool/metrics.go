// File: pool/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Allocation statistics shared by every manager constructed with the same
// context. One mutex guards all counters.

package pool

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cmdbuf"

// MetricsSnapshot is a consistent copy of AllocatorMetrics.
type MetricsSnapshot struct {
	Allocations     uint64
	Releases        uint64
	LiveBytes       uint64
	PeakBytes       uint64
	Managers        int64
	Acquired        uint64
	Exhausted       uint64
	Recycled        uint64
	OverrunsLogged  uint64
	ByManagerBusy   map[string]int
	ByManagerTotals map[string]int
}

// AllocatorMetrics counts physical allocations and pool traffic.
type AllocatorMetrics struct {
	mu sync.Mutex

	allocations uint64
	releases    uint64
	liveBytes   uint64
	peakBytes   uint64
	managers    int64
	acquired    uint64
	exhausted   uint64
	recycled    uint64
	overruns    uint64
	busy        map[string]int
	totals      map[string]int
}

// NewAllocatorMetrics returns an empty metrics context.
func NewAllocatorMetrics() *AllocatorMetrics {
	return &AllocatorMetrics{
		busy:   make(map[string]int),
		totals: make(map[string]int),
	}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *AllocatorMetrics
)

// DefaultAllocatorMetrics returns the context used by managers built without
// WithMetrics.
func DefaultAllocatorMetrics() *AllocatorMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewAllocatorMetrics()
	})
	return defaultMetrics
}

func (am *AllocatorMetrics) recordAlloc(bytes uint64) {
	am.mu.Lock()
	am.allocations++
	am.liveBytes += bytes
	am.peakBytes = max(am.peakBytes, am.liveBytes)
	am.mu.Unlock()
}

func (am *AllocatorMetrics) recordRelease(bytes uint64) {
	am.mu.Lock()
	am.releases++
	am.liveBytes -= min(bytes, am.liveBytes)
	am.mu.Unlock()
}

func (am *AllocatorMetrics) managerUp(name string, total int) {
	am.mu.Lock()
	am.managers++
	am.totals[name] = total
	am.busy[name] = 0
	am.mu.Unlock()
}

func (am *AllocatorMetrics) managerDown(name string) {
	am.mu.Lock()
	am.managers--
	delete(am.totals, name)
	delete(am.busy, name)
	am.mu.Unlock()
}

func (am *AllocatorMetrics) recordAcquire(name string, ok bool) {
	am.mu.Lock()
	if ok {
		am.acquired++
		am.busy[name]++
	} else {
		am.exhausted++
	}
	am.mu.Unlock()
}

func (am *AllocatorMetrics) recordRecycle(name string, n int) {
	am.mu.Lock()
	am.recycled += uint64(n)
	am.busy[name] -= n
	am.mu.Unlock()
}

// RecordOverrun counts a sentinel mismatch reported by a command buffer.
func (am *AllocatorMetrics) RecordOverrun() {
	am.mu.Lock()
	am.overruns++
	am.mu.Unlock()
}

// Snapshot copies the counters.
func (am *AllocatorMetrics) Snapshot() MetricsSnapshot {
	am.mu.Lock()
	defer am.mu.Unlock()
	s := MetricsSnapshot{
		Allocations:     am.allocations,
		Releases:        am.releases,
		LiveBytes:       am.liveBytes,
		PeakBytes:       am.peakBytes,
		Managers:        am.managers,
		Acquired:        am.acquired,
		Exhausted:       am.exhausted,
		Recycled:        am.recycled,
		OverrunsLogged:  am.overruns,
		ByManagerBusy:   make(map[string]int, len(am.busy)),
		ByManagerTotals: make(map[string]int, len(am.totals)),
	}
	for k, v := range am.busy {
		s.ByManagerBusy[k] = v
	}
	for k, v := range am.totals {
		s.ByManagerTotals[k] = v
	}
	return s
}

var (
	descAllocations = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "allocations_total"),
		"Physical allocations made by managers", nil, nil)
	descReleases = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "releases_total"),
		"Physical allocations released", nil, nil)
	descLiveBytes = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "allocated_bytes"),
		"Bytes currently allocated", nil, nil)
	descPeakBytes = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "allocated_bytes_peak"),
		"Peak bytes allocated", nil, nil)
	descManagers = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "managers"),
		"Initialized managers", nil, nil)
	descAcquired = prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "acquired_total"),
		"Resources handed out", nil, nil)
	descExhausted = prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "exhausted_total"),
		"Acquisitions that found the pool empty", nil, nil)
	descRecycled = prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "recycled_total"),
		"Resources returned to their pool", nil, nil)
	descOverruns = prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "overruns_total"),
		"Command buffer overruns detected at commit", nil, nil)
	descBusy = prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "busy"),
		"Resources currently acquired", []string{"manager"}, nil)
	descTotal = prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", "resources"),
		"Resources owned by the manager", []string{"manager"}, nil)
)

// Describe implements prometheus.Collector.
func (am *AllocatorMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descAllocations, descReleases, descLiveBytes, descPeakBytes, descManagers,
		descAcquired, descExhausted, descRecycled, descOverruns, descBusy, descTotal,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (am *AllocatorMetrics) Collect(ch chan<- prometheus.Metric) {
	s := am.Snapshot()
	ch <- prometheus.MustNewConstMetric(descAllocations, prometheus.CounterValue, float64(s.Allocations))
	ch <- prometheus.MustNewConstMetric(descReleases, prometheus.CounterValue, float64(s.Releases))
	ch <- prometheus.MustNewConstMetric(descLiveBytes, prometheus.GaugeValue, float64(s.LiveBytes))
	ch <- prometheus.MustNewConstMetric(descPeakBytes, prometheus.GaugeValue, float64(s.PeakBytes))
	ch <- prometheus.MustNewConstMetric(descManagers, prometheus.GaugeValue, float64(s.Managers))
	ch <- prometheus.MustNewConstMetric(descAcquired, prometheus.CounterValue, float64(s.Acquired))
	ch <- prometheus.MustNewConstMetric(descExhausted, prometheus.CounterValue, float64(s.Exhausted))
	ch <- prometheus.MustNewConstMetric(descRecycled, prometheus.CounterValue, float64(s.Recycled))
	ch <- prometheus.MustNewConstMetric(descOverruns, prometheus.CounterValue, float64(s.OverrunsLogged))
	for name, n := range s.ByManagerBusy {
		ch <- prometheus.MustNewConstMetric(descBusy, prometheus.GaugeValue, float64(n), name)
	}
	for name, n := range s.ByManagerTotals {
		ch <- prometheus.MustNewConstMetric(descTotal, prometheus.GaugeValue, float64(n), name)
	}
}

var _ prometheus.Collector = (*AllocatorMetrics)(nil)
