package freelist

import "sort"

// sizeClass is one node of the block free list's priority queue: a LIFO of
// free blocks that all share a size.
type sizeClass struct {
	size uint64
	list [][]byte
}

// Block is a free list for variable-size blocks, organized as a priority
// queue keyed by block size. Each size class keeps its own LIFO. The block
// size is recovered from the slice header on free, which locates the class
// in O(log n) over the number of distinct sizes.
type Block struct {
	name      string
	allocated int
	onlist    int
	listMem   int64
	classes   []sizeClass // sorted ascending by size
}

// NewBlock registers a variable-size block free list.
func NewBlock(name string) *Block {
	h := &Block{name: name}
	mu.Lock()
	blkHeads = append(blkHeads, h)
	mu.Unlock()
	return h
}

func (h *Block) classIndexLocked(size uint64) (int, bool) {
	i := sort.Search(len(h.classes), func(i int) bool { return h.classes[i].size >= size })
	if i < len(h.classes) && h.classes[i].size == size {
		return i, true
	}
	return i, false
}

// Alloc returns a block of exactly the requested size, recycling one from
// the matching size class when available.
func (h *Block) Alloc(size uint64, clear bool) []byte {
	mu.Lock()
	if i, ok := h.classIndexLocked(size); ok {
		if cl := &h.classes[i]; len(cl.list) > 0 {
			n := len(cl.list)
			buf := cl.list[n-1]
			cl.list[n-1] = nil
			cl.list = cl.list[:n-1]
			h.onlist--
			h.listMem -= int64(size)
			blkGlobalMem -= int64(size)
			mu.Unlock()
			if clear {
				zero(buf)
			}
			return buf
		}
	}
	h.allocated++
	mu.Unlock()
	return make([]byte, size)
}

// Free pushes a block onto its size class, creating the class on first use,
// then trims the oldest blocks if a cap is exceeded.
func (h *Block) Free(buf []byte) {
	size := uint64(len(buf))
	if size == 0 {
		return
	}
	mu.Lock()
	i, ok := h.classIndexLocked(size)
	if !ok {
		h.classes = append(h.classes, sizeClass{})
		copy(h.classes[i+1:], h.classes[i:])
		h.classes[i] = sizeClass{size: size}
	}
	cl := &h.classes[i]
	cl.list = append(cl.list, buf)
	h.onlist++
	h.listMem += int64(size)
	blkGlobalMem += int64(size)
	for h.overCapLocked() && h.onlist > 0 {
		h.releaseOldestLocked()
	}
	mu.Unlock()
}

// Realloc resizes a block. A block of the target size is popped from its
// class when one is free; otherwise a fresh block is allocated and the
// contents migrated. The old block goes back on its own class either way.
func (h *Block) Realloc(buf []byte, newSize uint64) []byte {
	if uint64(len(buf)) == newSize {
		return buf
	}
	out := h.Alloc(newSize, false)
	copy(out, buf)
	if uint64(len(buf)) < newSize {
		zero(out[len(buf):])
	}
	h.Free(buf)
	return out
}

func (h *Block) overCapLocked() bool {
	if limits.BlkList >= 0 && h.listMem > limits.BlkList {
		return true
	}
	if limits.BlkGlobal >= 0 && blkGlobalMem > limits.BlkGlobal {
		return true
	}
	return false
}

func (h *Block) releaseOldestLocked() {
	for i := range h.classes {
		cl := &h.classes[i]
		if len(cl.list) == 0 {
			continue
		}
		copy(cl.list, cl.list[1:])
		cl.list[len(cl.list)-1] = nil
		cl.list = cl.list[:len(cl.list)-1]
		h.onlist--
		h.listMem -= int64(cl.size)
		blkGlobalMem -= int64(cl.size)
		h.allocated--
		return
	}
}

func (h *Block) drainLocked() {
	for i := range h.classes {
		cl := &h.classes[i]
		for j := range cl.list {
			cl.list[j] = nil
		}
		cl.list = cl.list[:0]
	}
	h.allocated -= h.onlist
	blkGlobalMem -= h.listMem
	h.onlist = 0
	h.listMem = 0
}

// OnList returns the number of blocks currently held across all size classes.
func (h *Block) OnList() int {
	mu.Lock()
	defer mu.Unlock()
	return h.onlist
}

// ListMem returns the bytes currently held on the list.
func (h *Block) ListMem() int64 {
	mu.Lock()
	defer mu.Unlock()
	return h.listMem
}
