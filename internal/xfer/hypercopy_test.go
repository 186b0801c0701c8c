package xfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperCopyFullArray(t *testing.T) {
	src := []byte("0123456789abcdef")
	dst := make([]byte, 16)
	err := hyperCopy(3,
		[]uint64{4, 4, 1},
		[]uint64{4, 4, 1}, []int64{0, 0, 0}, dst,
		[]uint64{4, 4, 1}, []int64{0, 0, 0}, src)
	require.NoError(t, err)
	assert.Equal(t, src, dst)
}

func TestHyperCopySubRectangle(t *testing.T) {
	// 4x4 source, copy the center 2x2 into the top-left of a 4x4 dest.
	src := []byte(
		"abcd" +
			"efgh" +
			"ijkl" +
			"mnop")
	dst := make([]byte, 16)
	for i := range dst {
		dst[i] = '.'
	}
	err := hyperCopy(3,
		[]uint64{2, 2, 1},
		[]uint64{4, 4, 1}, []int64{0, 0, 0}, dst,
		[]uint64{4, 4, 1}, []int64{1, 1, 0}, src)
	require.NoError(t, err)
	assert.Equal(t, []byte(
		"fg.." +
			"jk.." +
			"...." +
			"...."), dst)
}

func TestHyperCopyWiderElements(t *testing.T) {
	// 2x2 arrays of 4-byte elements, copy the element at source offset
	// (1,1) to the destination origin.
	src := []byte("AAAABBBBCCCCDDDD")
	dst := []byte("................")
	err := hyperCopy(3,
		[]uint64{1, 1, 4},
		[]uint64{2, 2, 4}, []int64{0, 0, 0}, dst,
		[]uint64{2, 2, 4}, []int64{1, 1, 0}, src)
	require.NoError(t, err)
	assert.Equal(t, []byte("DDDD............"), dst)
}

func TestHyperCopyOverrunDetected(t *testing.T) {
	src := make([]byte, 8)
	dst := make([]byte, 4)
	err := hyperCopy(1, []uint64{8}, []uint64{4}, []int64{0}, dst, []uint64{8}, []int64{0}, src)
	require.Error(t, err)
}
