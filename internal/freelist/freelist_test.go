package freelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unlimited() {
	SetListLimits(Limits{-1, -1, -1, -1, -1, -1})
}

func TestRegularRecyclesSameBlock(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewRegular("test_record", 64)
	a := h.Alloc(false)
	require.Len(t, a, 64)
	h.Free(a)
	assert.Equal(t, 1, h.OnList())

	b := h.Alloc(false)
	assert.Equal(t, 0, h.OnList())
	// LIFO recycling returns the identical backing block.
	assert.Same(t, &a[0], &b[0])
}

func TestRegularClearOnAlloc(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewRegular("test_clear", 16)
	a := h.Alloc(false)
	for i := range a {
		a[i] = 0xAA
	}
	h.Free(a)

	b := h.Alloc(true)
	for _, v := range b {
		assert.Equal(t, byte(0), v)
	}
}

func TestRegularListLimitReleasesOldest(t *testing.T) {
	defer unlimited()
	defer GarbageCollect()

	h := NewRegular("test_capped", 100)
	bufs := make([][]byte, 4)
	for i := range bufs {
		bufs[i] = h.Alloc(false)
	}

	// Cap below current usage: the release triggers on the next Free.
	SetListLimits(Limits{RegGlobal: -1, RegList: 250, ArrGlobal: -1, ArrList: -1, BlkGlobal: -1, BlkList: -1})
	for _, b := range bufs {
		h.Free(b)
	}
	assert.Equal(t, 2, h.OnList())
	assert.LessOrEqual(t, h.ListMem(), int64(250))
}

func TestGarbageCollectZeroesOnList(t *testing.T) {
	unlimited()

	h := NewRegular("test_gc", 32)
	blk := NewBlock("test_gc_blk")
	for i := 0; i < 5; i++ {
		h.Free(h.Alloc(false))
	}
	blk.Free(blk.Alloc(100, false))
	blk.Free(blk.Alloc(200, false))

	GarbageCollect()
	assert.Equal(t, 0, h.OnList())
	assert.Equal(t, int64(0), h.ListMem())
	assert.Equal(t, 0, blk.OnList())
	assert.Equal(t, int64(0), blk.ListMem())
}

func TestBlockSizeClasses(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewBlock("test_blk")
	small := h.Alloc(128, false)
	large := h.Alloc(4096, false)
	h.Free(small)
	h.Free(large)
	assert.Equal(t, 2, h.OnList())

	// Each size pops from its own class.
	s2 := h.Alloc(128, false)
	assert.Same(t, &small[0], &s2[0])
	l2 := h.Alloc(4096, false)
	assert.Same(t, &large[0], &l2[0])
	assert.Equal(t, 0, h.OnList())
}

func TestBlockReallocMigrates(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewBlock("test_blk_realloc")
	a := h.Alloc(8, false)
	copy(a, "abcdefgh")
	b := h.Realloc(a, 16)
	require.Len(t, b, 16)
	assert.Equal(t, "abcdefgh", string(b[:8]))
	for _, v := range b[8:] {
		assert.Equal(t, byte(0), v)
	}
	// The old block went back on its class.
	assert.Equal(t, 1, h.OnList())
}

func TestArrayRecycling(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewArray("test_arr", 8, 16)
	a := h.Alloc(4, false)
	require.Len(t, a, 32)
	h.Free(a)
	assert.Equal(t, 1, h.OnList())

	b := h.Alloc(4, false)
	assert.Same(t, &a[0], &b[0])
}

func TestArrayBeyondMaxBypassesList(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewArray("test_arr_big", 8, 4)
	a := h.Alloc(10, false)
	require.Len(t, a, 80)
	h.Free(a)
	assert.Equal(t, 0, h.OnList())
}

func TestArrayReallocPopsTargetCount(t *testing.T) {
	unlimited()
	defer GarbageCollect()

	h := NewArray("test_arr_realloc", 4, 8)
	spare := h.Alloc(6, false)
	h.Free(spare)

	a := h.Alloc(2, false)
	copy(a, "12345678")
	b := h.Realloc(a, 6)
	require.Len(t, b, 24)
	assert.Same(t, &spare[0], &b[0])
	assert.Equal(t, "12345678", string(b[:8]))
}
