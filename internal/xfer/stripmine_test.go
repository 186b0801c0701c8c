package xfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5core/internal/utils"
)

func simple(t *testing.T, dims ...uint64) *Dataspace {
	t.Helper()
	ds, err := NewSimple(dims)
	require.NoError(t, err)
	return ds
}

func TestStripmineSplitsSlowestAxisOnly(t *testing.T) {
	tests := []struct {
		name    string
		dims    []uint64
		desired uint64
		want    uint64
	}{
		{"exact rows", []uint64{10, 20}, 100, 100},
		{"rounds down to row multiple", []uint64{10, 20}, 105, 100},
		{"one row", []uint64{7, 8, 9}, 72, 72},
		{"floor of big budget", []uint64{7, 8, 9}, 100, 72},
		{"1-d is element granular", []uint64{1000}, 37, 37},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := simple(t, tt.dims...)
			file := simple(t, tt.dims...)
			got, err := Stripmine(mem, file, tt.desired)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			acc := uint64(1)
			for _, d := range tt.dims[1:] {
				acc *= d
			}
			assert.Zero(t, got%acc, "pass size must be a whole number of slab rows")
		})
	}
}

func TestStripmineBufferTooSmall(t *testing.T) {
	mem := simple(t, 7, 8, 9)
	file := simple(t, 7, 8, 9)
	_, err := Stripmine(mem, file, 71) // one row is 72 elements
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}

func TestStripmineRankChangeFitsInOnePass(t *testing.T) {
	mem := simple(t, 2, 2, 2)
	file := simple(t, 2, 4)
	got, err := Stripmine(mem, file, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), got)
}

func TestStripmineRankChangeTooLarge(t *testing.T) {
	mem := simple(t, 4, 16, 64)
	file := simple(t, 64, 64)
	_, err := Stripmine(mem, file, 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}

func TestStripmineRejectsSampling(t *testing.T) {
	mem := simple(t, 4, 4)
	file := simple(t, 4, 4)
	require.NoError(t, mem.SetHyperslab(Hyperslab{
		Offset: []int64{0, 0},
		Count:  []uint64{4, 4},
		Sample: []uint64{1, 2},
	}))
	_, err := Stripmine(mem, file, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrUnsupported)
}
