package memory_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-cmdbuf/api"
	"github.com/momentics/hioload-cmdbuf/memory"
)

func TestHeapAlignment(t *testing.T) {
	hp := memory.NewHeapProvider()
	for _, align := range []uint32{4, 64, 4096} {
		info, err := hp.Alloc(1000, align, api.MemFlagCmdBuffer, nil)
		require.NoError(t, err)
		require.Len(t, info.Data, 1000)
		require.True(t, info.Handle.Valid())
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(info.Data)))
		require.Zero(t, addr%uintptr(align), "align %d", align)
		require.Equal(t, api.MemFlagCmdBuffer, info.Flags)
	}
	require.Equal(t, 3, hp.Live())
}

func TestHeapRejectsBadArgs(t *testing.T) {
	hp := memory.NewHeapProvider()
	_, err := hp.Alloc(0, 4, 0, nil)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	_, err = hp.Alloc(16, 3, 0, nil)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestHeapDoubleRelease(t *testing.T) {
	hp := memory.NewHeapProvider()
	info, err := hp.Alloc(64, 4, 0, nil)
	require.NoError(t, err)
	require.NoError(t, hp.Release(info))
	require.ErrorIs(t, hp.Release(info), api.ErrInvalidArgument)
	require.Zero(t, hp.Live())
}

func TestHandlesAreDistinct(t *testing.T) {
	hp := memory.NewHeapProvider()
	a, err := hp.Alloc(8, 4, 0, nil)
	require.NoError(t, err)
	b, err := hp.Alloc(8, 4, 0, nil)
	require.NoError(t, err)
	require.NotEqual(t, a.Handle, b.Handle)
}

func TestDefaultIsStable(t *testing.T) {
	require.Same(t, memory.Default(), memory.Default())
}
