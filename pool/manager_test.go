package pool_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/core/packet"
	"github.com/momentics/hioload-cmdbuf/fake"
	"github.com/momentics/hioload-cmdbuf/pool"
)

func cmdParams() api.ResourceParams {
	return api.ResourceParams{
		ResourceSize: 64,
		PoolSize:     256,
		Alignment:    4,
		Usage:        api.UsageCmdBuffer,
		MemFlags:     api.MemFlagCmdBuffer | api.MemFlagUMDAccess,
		CmdParams:    api.CmdParams{Type: api.CmdTypeGeneric},
	}
}

func newManager(t *testing.T, params api.ResourceParams, opts ...pool.Option) (*pool.Manager, *fake.Provider, *pool.AllocatorMetrics) {
	t.Helper()
	prov := fake.NewProvider()
	metrics := pool.NewAllocatorMetrics()
	opts = append([]pool.Option{pool.WithMemoryProvider(prov), pool.WithMetrics(metrics)}, opts...)
	m, err := pool.New("test", params, opts...)
	require.NoError(t, err)
	return m, prov, metrics
}

func TestSizing(t *testing.T) {
	m, prov, _ := newManager(t, cmdParams())
	require.Equal(t, pool.Sizing{Alignment: 4, PaddedSize: 68, Count: 4, RegionSize: 272}, m.Sizing())
	allocs := prov.Allocs()
	require.Len(t, allocs, 1)
	require.Equal(t, uint64(272), allocs[0].Size)
	require.Equal(t, api.MemFlagCmdBuffer|api.MemFlagUMDAccess, allocs[0].Flags)
}

func TestExhaustionAndRecycle(t *testing.T) {
	m, _, metrics := newManager(t, cmdParams())

	refs := make([]pool.Ref, 0, 4)
	for range 4 {
		ref, err := m.GetBuffer()
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	_, err := m.GetBuffer()
	require.ErrorIs(t, err, api.ErrOutOfMemory)

	require.NoError(t, m.Recycle(refs[1]))
	_, err = m.GetBuffer()
	require.NoError(t, err)

	snap := metrics.Snapshot()
	require.Equal(t, uint64(5), snap.Acquired)
	require.Equal(t, uint64(1), snap.Exhausted)
	require.Equal(t, uint64(1), snap.Recycled)
	require.Equal(t, 4, snap.ByManagerBusy["test"])
}

func TestDistinctSlots(t *testing.T) {
	m, _, _ := newManager(t, cmdParams())
	seen := map[uint32]bool{}
	for range 4 {
		ref, err := m.GetBuffer()
		require.NoError(t, err)
		cb, err := ref.CmdBuffer()
		require.NoError(t, err)
		require.False(t, seen[cb.Offset()])
		seen[cb.Offset()] = true
		require.Zero(t, cb.Offset()%68)
	}
}

func TestStaleRef(t *testing.T) {
	m, _, _ := newManager(t, cmdParams())
	ref, err := m.GetBuffer()
	require.NoError(t, err)
	require.True(t, ref.Valid())

	require.NoError(t, m.Recycle(ref))
	require.False(t, ref.Valid())
	_, err = ref.CmdBuffer()
	require.ErrorIs(t, err, api.ErrStaleRef)
	require.NotErrorIs(t, err, api.ErrUninitialized)
	require.ErrorIs(t, m.Recycle(ref), api.ErrStaleRef)
	require.Equal(t, api.ErrCodeInvalidState, api.CodeOf(m.Recycle(ref)))

	other, _, _ := newManager(t, cmdParams())
	ref2, err := m.GetBuffer()
	require.NoError(t, err)
	require.ErrorIs(t, other.Recycle(ref2), api.ErrInvalidArgument)
	require.ErrorIs(t, m.Recycle(pool.Ref{}), api.ErrInvalidArgument)
}

func TestAcquireResets(t *testing.T) {
	params := cmdParams()
	params.PoolSize = 64
	m, _, _ := newManager(t, params)

	ref, err := m.GetBufferForRequest(9)
	require.NoError(t, err)
	cb, err := ref.CmdBuffer()
	require.NoError(t, err)
	require.Equal(t, api.RequestID(9), cb.RequestID())
	require.NoError(t, cb.WriteDwords(1, 2, 3))
	require.NoError(t, m.Recycle(ref))

	ref, err = m.GetBuffer()
	require.NoError(t, err)
	cb, err = ref.CmdBuffer()
	require.NoError(t, err)
	require.Zero(t, cb.UsedDwords())
	require.Equal(t, api.InvalidRequestID, cb.RequestID())
}

func TestRecycleAllByRequest(t *testing.T) {
	m, _, _ := newManager(t, cmdParams())
	for _, id := range []api.RequestID{1, 2, 1} {
		_, err := m.GetBufferForRequest(id)
		require.NoError(t, err)
	}
	_, err := m.GetBuffer()
	require.NoError(t, err)

	_, err = m.GetBufferForRequest(api.InvalidRequestID)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	require.Equal(t, 2, m.RecycleAll(1))
	st := m.Stats()
	require.Equal(t, 1, st.Busy)
	require.Equal(t, 1, st.Held)
	require.Equal(t, 2, st.Free)

	_, ok := m.CheckBufferWithRequest(1)
	require.False(t, ok)
	ref, ok := m.CheckBufferWithRequest(2)
	require.True(t, ok)
	res, err := ref.Resource()
	require.NoError(t, err)
	require.Equal(t, api.RequestID(2), res.RequestID())
	// Lookup does not remove.
	require.Equal(t, 1, m.Stats().Busy)

	require.Zero(t, m.RecycleAll(7))
	require.Equal(t, 1, m.RecycleAllRequests())
	st = m.Stats()
	require.Zero(t, st.Busy)
	require.Equal(t, 1, st.Held)
	require.Equal(t, st.Total, st.Free+st.Busy+st.Held)
	_, ok = m.CheckBufferWithRequest(2)
	require.False(t, ok)
}

func TestPacketPool(t *testing.T) {
	pp := api.PacketParams{MaxNumCmdBuffers: 2, MaxNumIOConfigs: 1, MaxNumPatches: 4, EnableAddrPatching: true}
	size := packet.CalculatePacketSize(pp)
	params := api.ResourceParams{
		ResourceSize: size,
		PoolSize:     size * 2,
		Alignment:    8,
		Usage:        api.UsagePacket,
		MemFlags:     api.MemFlagPacketBuffer,
		PacketParams: pp,
	}
	m, _, _ := newManager(t, params)
	ref, err := m.GetBufferForRequest(5)
	require.NoError(t, err)
	p, err := ref.Packet()
	require.NoError(t, err)
	require.Equal(t, pp, p.Params())
	_, err = ref.CmdBuffer()
	require.ErrorIs(t, err, api.ErrInvalidState)

	require.NoError(t, p.CommitPacket())
	sub := fake.NewSubmitter()
	require.NoError(t, p.Submit(t.Context(), sub))
	require.Len(t, sub.Submitted(), 1)
	require.Equal(t, uint64(5), sub.Submitted()[0].Header.RequestID)

	params.ResourceSize = size - 4
	_, err = pool.New("small", params, pool.WithMemoryProvider(fake.NewProvider()))
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestInitializeRollsBack(t *testing.T) {
	prov := fake.NewProvider()
	// The last slot no longer fits.
	prov.ShortBy(8)
	metrics := pool.NewAllocatorMetrics()
	_, err := pool.New("short", cmdParams(), pool.WithMemoryProvider(prov), pool.WithMetrics(metrics))
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	require.Zero(t, prov.Live())
	require.Len(t, prov.Released(), 1)

	snap := metrics.Snapshot()
	require.Equal(t, uint64(1), snap.Allocations)
	require.Equal(t, uint64(1), snap.Releases)
	require.Zero(t, snap.LiveBytes)
	require.Zero(t, snap.Managers)
}

func TestAllocFailure(t *testing.T) {
	prov := fake.NewProvider()
	boom := errors.New("no device memory")
	prov.SetAllocError(boom)
	_, err := pool.New("fail", cmdParams(), pool.WithMemoryProvider(prov))
	require.ErrorIs(t, err, boom)
	require.Empty(t, prov.Released())
}

func TestInvalidParams(t *testing.T) {
	params := cmdParams()
	params.PoolSize = 32
	_, err := pool.New("bad", params, pool.WithMemoryProvider(fake.NewProvider()))
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	params = cmdParams()
	params.Alignment = 12
	_, err = pool.New("bad", params, pool.WithMemoryProvider(fake.NewProvider()))
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestUninitialize(t *testing.T) {
	m, prov, metrics := newManager(t, cmdParams())
	ref, err := m.GetBuffer()
	require.NoError(t, err)

	require.NoError(t, m.Uninitialize())
	require.Zero(t, prov.Live())
	require.False(t, ref.Valid())
	_, err = ref.Resource()
	require.ErrorIs(t, err, api.ErrStaleRef)

	require.ErrorIs(t, m.Uninitialize(), api.ErrUninitialized)
	_, err = m.GetBuffer()
	require.ErrorIs(t, err, api.ErrUninitialized)
	require.NotErrorIs(t, err, api.ErrStaleRef)
	require.Zero(t, m.RecycleAllRequests())
	require.Zero(t, metrics.Snapshot().Managers)
}

func TestUninitializeReportsReleaseError(t *testing.T) {
	m, prov, _ := newManager(t, cmdParams())
	boom := errors.New("driver gone")
	prov.SetReleaseError(boom)
	require.ErrorIs(t, m.Uninitialize(), boom)
}

func TestConcurrentAcquireRecycle(t *testing.T) {
	m, _, _ := newManager(t, cmdParams())
	var g errgroup.Group
	for w := range 16 {
		g.Go(func() error {
			for i := range 200 {
				ref, err := m.GetBufferForRequest(api.RequestID(w*1000 + i))
				if errors.Is(err, api.ErrOutOfMemory) {
					continue
				}
				if err != nil {
					return err
				}
				cb, err := ref.CmdBuffer()
				if err != nil {
					return err
				}
				if err := cb.WriteDwords(uint32(w), uint32(i)); err != nil {
					return err
				}
				if err := m.Recycle(ref); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	st := m.Stats()
	require.Equal(t, 4, st.Free)
	require.Zero(t, st.Busy)
	require.Zero(t, st.Held)
}

type probes map[string]func() any

func (p probes) RegisterProbe(name string, fn func() any) { p[name] = fn }

func TestProbeRegistration(t *testing.T) {
	reg := probes{}
	m, _, _ := newManager(t, cmdParams(), pool.WithProbes(reg))
	_, err := m.GetBuffer()
	require.NoError(t, err)
	st := reg["pool/test"]().(pool.Stats)
	require.Equal(t, 1, st.Held)
	require.Zero(t, st.Busy)
	require.Equal(t, 4, st.Total)
}
