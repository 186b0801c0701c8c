package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5core/internal/driver"
	"github.com/scigolib/h5core/internal/utils"
)

func TestObjectHeaderZeroMessages(t *testing.T) {
	d := driver.NewMemory(nil)
	addr, err := WriteObjectHeader(d, nil)
	require.NoError(t, err)

	oh, err := ReadObjectHeader(d, addr)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), oh.Version)
	assert.Equal(t, uint32(1), oh.RefCount)
	assert.Empty(t, oh.Messages)
}

func TestObjectHeaderMessageRoundTrip(t *testing.T) {
	d := driver.NewMemory(nil)
	msg := EncodeSOHMMessage(SOHMInfo{NIndexes: 3, TableAddr: 0x1000})
	addr, err := WriteObjectHeader(d, []HeaderMessage{msg})
	require.NoError(t, err)

	oh, err := ReadObjectHeader(d, addr)
	require.NoError(t, err)
	require.Len(t, oh.Messages, 1)
	assert.Equal(t, uint16(MsgSharedTable), oh.Messages[0].Type)

	info, err := DecodeSOHMMessage(&oh.Messages[0])
	require.NoError(t, err)
	assert.Equal(t, uint8(3), info.NIndexes)
	assert.Equal(t, uint64(0x1000), info.TableAddr)
}

func TestReadObjectHeaderBadVersion(t *testing.T) {
	d := driver.NewMemory(make([]byte, 32))
	_, err := ReadObjectHeader(d, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrBadValue)
}

func TestExtensionObjectRoundTrip(t *testing.T) {
	d := driver.NewMemory(nil)
	addr, err := CreateExtensionObject(d, SOHMInfo{NIndexes: 1, TableAddr: driver.Undef})
	require.NoError(t, err)

	plist := NewPropertyList()
	require.NoError(t, ReadExtensionObject(d, addr, plist))
	v, err := plist.Get(PropSOHMNIndexes)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)
	v, err = plist.Get(PropSOHMTableAddr)
	require.NoError(t, err)
	assert.Equal(t, driver.Undef, v)
}
