package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOffsetRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		width uint8
		value uint64
	}{
		{"2-byte small", 2, 0x1234},
		{"4-byte", 4, 0xDEADBEEF},
		{"8-byte", 8, 0x0123456789ABCDEF},
		{"8-byte zero", 8, 0},
		{"16-byte wide", 16, 0x0123456789ABCDEF},
		{"32-byte wide", 32, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.width)
			require.NoError(t, EncodeOffset(buf, tt.width, tt.value))
			got, err := DecodeOffset(buf, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestEncodeDecodeUndef(t *testing.T) {
	for _, width := range []uint8{2, 4, 8, 16, 32} {
		buf := make([]byte, width)
		require.NoError(t, EncodeOffset(buf, width, Undef))
		for _, b := range buf {
			assert.Equal(t, byte(0xff), b)
		}
		got, err := DecodeOffset(buf, width)
		require.NoError(t, err)
		assert.Equal(t, Undef, got)
		assert.False(t, AddrDefined(got))
	}
}

func TestEncodeOffsetRange(t *testing.T) {
	buf := make([]byte, 2)
	err := EncodeOffset(buf, 2, 0x10000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadRange)
}

func TestDecodeOffsetWideSignificantBytes(t *testing.T) {
	buf := make([]byte, 16)
	buf[9] = 1 // beyond the eighth byte
	_, err := DecodeOffset(buf, 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestEncodeOffsetBadWidth(t *testing.T) {
	buf := make([]byte, 8)
	assert.ErrorIs(t, EncodeOffset(buf, 3, 1), ErrBadValue)
	_, err := DecodeOffset(buf, 5)
	assert.ErrorIs(t, err, ErrBadValue)
}

func TestValidOffsetSize(t *testing.T) {
	for _, w := range []uint8{2, 4, 8, 16, 32} {
		assert.True(t, ValidOffsetSize(w))
	}
	for _, w := range []uint8{0, 1, 3, 6, 7, 9, 64} {
		assert.False(t, ValidOffsetSize(w))
	}
}
