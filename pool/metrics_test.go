package pool_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-cmdbuf/fake"
	"github.com/momentics/hioload-cmdbuf/pool"
)

func TestMetricsShareContext(t *testing.T) {
	metrics := pool.NewAllocatorMetrics()
	prov := fake.NewProvider()
	a, err := pool.New("a", cmdParams(), pool.WithMemoryProvider(prov), pool.WithMetrics(metrics))
	require.NoError(t, err)
	b, err := pool.New("b", cmdParams(), pool.WithMemoryProvider(prov), pool.WithMetrics(metrics))
	require.NoError(t, err)

	snap := metrics.Snapshot()
	require.Equal(t, uint64(2), snap.Allocations)
	require.Equal(t, uint64(2*272), snap.LiveBytes)
	require.Equal(t, int64(2), snap.Managers)
	require.Equal(t, map[string]int{"a": 4, "b": 4}, snap.ByManagerTotals)

	require.NoError(t, a.Uninitialize())
	snap = metrics.Snapshot()
	require.Equal(t, uint64(272), snap.LiveBytes)
	require.Equal(t, uint64(2*272), snap.PeakBytes)
	require.Equal(t, int64(1), snap.Managers)
	require.NoError(t, b.Uninitialize())
}

func TestMetricsCollector(t *testing.T) {
	metrics := pool.NewAllocatorMetrics()
	m, err := pool.New("c", cmdParams(), pool.WithMemoryProvider(fake.NewProvider()), pool.WithMetrics(metrics))
	require.NoError(t, err)
	_, err = m.GetBuffer()
	require.NoError(t, err)
	metrics.RecordOverrun()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(metrics))
	// Nine totals plus busy and resources for one manager.
	ch := make(chan prometheus.Metric, 32)
	metrics.Collect(ch)
	close(ch)
	require.Len(t, ch, 11)
	require.Equal(t, uint64(1), metrics.Snapshot().OverrunsLogged)
	_, err = reg.Gather()
	require.NoError(t, err)
}

func TestDefaultMetricsSingleton(t *testing.T) {
	require.Same(t, pool.DefaultAllocatorMetrics(), pool.DefaultAllocatorMetrics())
}
