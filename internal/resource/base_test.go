package resource

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-cmdbuf/api"
)

func TestInitBounds(t *testing.T) {
	info := api.BufferInfo{Handle: 3, Data: make([]byte, 128)}
	var b Base
	require.ErrorIs(t, b.Init(info, 64, 64, 68, api.UsageCmdBuffer), api.ErrInvalidArgument)
	require.ErrorIs(t, b.Init(info, 0, 0, 4, api.UsageCmdBuffer), api.ErrInvalidArgument)
	require.ErrorIs(t, b.Init(info, 0, 8, 4, api.UsageCmdBuffer), api.ErrInvalidArgument)

	require.NoError(t, b.Init(info, 60, 64, 68, api.UsageCmdBuffer))
	require.Equal(t, api.MemHandle(3), b.MemHandle())
	require.Equal(t, uint32(60), b.Offset())
	require.Len(t, b.Slot(), 68)
	require.Equal(t, 68, cap(b.Slot()))
	require.Equal(t, api.InvalidRequestID, b.RequestID())
}

func TestBytesTrackLength(t *testing.T) {
	info := api.BufferInfo{Handle: 3, Data: make([]byte, 32)}
	var b Base
	require.NoError(t, b.Init(info, 8, 16, 16, api.UsagePacket))
	b.SetLength(4)
	b.SetRequestID(11)
	copy(b.Bytes(), "abcd")
	require.Equal(t, []byte("abcd"), info.Data[8:12])

	b.ResetBase()
	require.Zero(t, b.Length())
	require.Equal(t, api.InvalidRequestID, b.RequestID())
	require.Equal(t, api.UsagePacket, b.Usage())
}
